package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/utils"
)

// Store persists checkpoints as a pair of JSON files: the progress record
// (visited set, pending frontier, scraped counter) and the failed URL
// list. Both files are rewritten whole at every checkpoint so neither can
// lag the other.
type Store struct {
	progressPath string
	failedPath   string
	log          *logrus.Entry
}

// NewStore returns a store writing to the given paths.
func NewStore(progressPath, failedPath string, log *logrus.Entry) *Store {
	return &Store{
		progressPath: progressPath,
		failedPath:   failedPath,
		log:          log.WithField("component", "state_store"),
	}
}

// Exists reports whether a progress file is present, i.e. whether there
// is a checkpoint to resume from.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.progressPath)
	return err == nil
}

// Save writes both checkpoint files. The failed file is rewritten even
// when the list is empty, so a fully recovered crawl leaves no stale
// failure list behind.
func (st *Store) Save(progress Progress, failed []string) error {
	if err := os.MkdirAll(filepath.Dir(st.progressPath), 0755); err != nil {
		return fmt.Errorf("%w: creating state directory: %w", utils.ErrFilesystem, err)
	}

	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding progress: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(st.progressPath, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, st.progressPath, err)
	}

	if failed == nil {
		failed = []string{}
	}
	failedData, err := json.MarshalIndent(failed, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding failed list: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(st.failedPath, failedData, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, st.failedPath, err)
	}

	st.log.WithFields(logrus.Fields{
		"visited": len(progress.VisitedURLs),
		"pending": len(progress.PendingURLs),
		"failed":  len(failed),
	}).Debug("Checkpoint written")
	return nil
}

// Load reads the last checkpoint. A missing progress file yields zero
// values and no error (fresh start); a present-but-unreadable file is a
// hard error so a corrupted checkpoint is never silently discarded.
func (st *Store) Load() (Progress, []string, error) {
	var progress Progress

	data, err := os.ReadFile(st.progressPath)
	if err != nil {
		if os.IsNotExist(err) {
			return progress, nil, nil
		}
		return progress, nil, fmt.Errorf("%w: reading %s: %w", utils.ErrStateCorrupt, st.progressPath, err)
	}
	if err := json.Unmarshal(data, &progress); err != nil {
		return Progress{}, nil, fmt.Errorf("%w: parsing %s: %w", utils.ErrStateCorrupt, st.progressPath, err)
	}

	failed, err := st.loadFailed()
	if err != nil {
		return Progress{}, nil, err
	}

	st.log.WithFields(logrus.Fields{
		"visited": len(progress.VisitedURLs),
		"pending": len(progress.PendingURLs),
		"failed":  len(failed),
	}).Info("Checkpoint loaded")
	return progress, failed, nil
}

func (st *Store) loadFailed() ([]string, error) {
	data, err := os.ReadFile(st.failedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %w", utils.ErrStateCorrupt, st.failedPath, err)
	}
	var failed []string
	if err := json.Unmarshal(data, &failed); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", utils.ErrStateCorrupt, st.failedPath, err)
	}
	return failed, nil
}
