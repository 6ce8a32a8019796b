package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"reg-scraper/pkg/crawler"
)

// ErrJobLimit is returned by CreateJob when the manager is at capacity.
// The crawl is polite and serial, so the default capacity is one job.
var ErrJobLimit = errors.New("another crawl job is already running")

// JobStatus represents the current state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one crawl run started over MCP. Getters hand out copies, so a
// Job value a caller holds is a snapshot, not a live view.
type Job struct {
	ID           string    `json:"id"`
	Resume       bool      `json:"resume"`
	MaxPages     int       `json:"max_pages"`
	Status       JobStatus `json:"status"`
	Phase        string    `json:"phase,omitempty"`
	Scraped      int       `json:"scraped"`
	Failed       int       `json:"failed"`
	Queued       int       `json:"queued"`
	LastURL      string    `json:"last_url,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// jobState pairs the published Job with the run's cancel handle.
type jobState struct {
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks crawl jobs behind its own mutex. The crawler stays
// lock-free; it reports progress through a callback that lands here.
type JobManager struct {
	mu      sync.RWMutex
	jobs    map[string]*jobState
	maxJobs int
}

func NewJobManager(maxConcurrent int) *JobManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &JobManager{
		jobs:    make(map[string]*jobState),
		maxJobs: maxConcurrent,
	}
}

// CreateJob registers a new pending job, or fails with ErrJobLimit while
// too many jobs are still pending or running.
func (m *JobManager) CreateJob(resume bool, maxPages int) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeLocked() >= m.maxJobs {
		return Job{}, ErrJobLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &jobState{
		job: Job{
			ID:        uuid.NewString(),
			Resume:    resume,
			MaxPages:  maxPages,
			Status:    JobStatusPending,
			StartedAt: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	m.jobs[state.job.ID] = state
	return state.job, nil
}

func (m *JobManager) activeLocked() int {
	n := 0
	for _, state := range m.jobs {
		if state.job.Status == JobStatusPending || state.job.Status == JobStatusRunning {
			n++
		}
	}
	return n
}

// GetJob returns a snapshot of one job.
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return state.job, true
}

// ActiveJob returns the pending or running job, if any.
func (m *JobManager) ActiveJob() (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, state := range m.jobs {
		if state.job.Status == JobStatusPending || state.job.Status == JobStatusRunning {
			return state.job, true
		}
	}
	return Job{}, false
}

// GetContext returns the context the job's crawl runs under.
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.jobs[jobID]; ok {
		return state.ctx
	}
	return context.Background()
}

// UpdateStatus moves a job to a new status. Terminal statuses stamp
// CompletedAt, freeing a slot for the next job.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]
	if !ok {
		return
	}
	state.job.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		if state.job.CompletedAt.IsZero() {
			state.job.CompletedAt = time.Now()
		}
	}
	if errorMsg != "" {
		state.job.ErrorMessage = errorMsg
	}
}

// UpdateProgress copies a crawler progress report into the job.
func (m *JobManager) UpdateProgress(jobID string, p crawler.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]
	if !ok {
		return
	}
	state.job.Phase = string(p.Phase)
	state.job.Scraped = p.Scraped
	state.job.Failed = p.Failed
	state.job.Queued = p.Queued
	state.job.LastURL = p.LastURL
}

// CancelJob cancels a pending or running job. Returns false when the job
// does not exist or has already finished.
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]
	if !ok {
		return false
	}
	if state.job.Status != JobStatusPending && state.job.Status != JobStatusRunning {
		return false
	}
	state.cancel()
	state.job.Status = JobStatusCancelled
	state.job.CompletedAt = time.Now()
	return true
}

// CancelAll cancels every pending or running job.
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, state := range m.jobs {
		if state.job.Status == JobStatusPending || state.job.Status == JobStatusRunning {
			state.cancel()
			state.job.Status = JobStatusCancelled
			state.job.CompletedAt = time.Now()
		}
	}
}

// ListJobs returns snapshots of all known jobs.
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, state := range m.jobs {
		jobs = append(jobs, state.job)
	}
	return jobs
}
