package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter enforces a minimum interval between consecutive network
// requests. The crawl targets a single host, so one timestamp is enough;
// cache hits never touch the limiter.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
	log         *logrus.Entry
}

// NewLimiter creates a limiter with the given minimum interval between
// requests. A non-positive interval disables waiting.
func NewLimiter(minInterval time.Duration, log *logrus.Entry) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		log:         log.WithField("component", "limiter"),
	}
}

// Wait blocks until at least the configured interval has elapsed since
// the last recorded request, or until the context is cancelled. The first
// request of a run goes through without waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.minInterval <= 0 {
		return nil
	}

	l.mu.Lock()
	last := l.last
	l.mu.Unlock()
	if last.IsZero() {
		return nil
	}

	remaining := l.minInterval - time.Since(last)
	if remaining <= 0 {
		return nil
	}

	l.log.WithField("sleep", remaining).Debug("Politeness delay")
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Touch records now as the time of the last network request. Call after
// every attempt, successful or not.
func (l *Limiter) Touch() {
	l.mu.Lock()
	l.last = time.Now()
	l.mu.Unlock()
}
