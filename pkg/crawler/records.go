package crawler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// RecordWriter appends RegulationRecords to the durable JSONL stream as
// the crawl proceeds. The stream is the raw history; the deduplicated
// aggregate is compiled from it at Done.
type RecordWriter struct {
	path string
	file *os.File
	log  *logrus.Entry
}

// NewRecordWriter creates a writer for the given stream path without
// opening it. Call Open once the crawl mode (fresh/resume) is known.
func NewRecordWriter(path string, log *logrus.Entry) *RecordWriter {
	return &RecordWriter{path: path, log: log.WithField("component", "record_writer")}
}

// Open opens the stream file: truncated on a fresh crawl, appended to on
// resume so records from prior passes survive.
func (w *RecordWriter) Open(resume bool) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("%w: creating record stream directory: %w", utils.ErrFilesystem, err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		w.log.Infof("Resume mode: appending to record stream %s", w.path)
		flags |= os.O_APPEND
	} else {
		w.log.Infof("Fresh crawl: truncating record stream %s", w.path)
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(w.path, flags, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening record stream %s: %w", utils.ErrFilesystem, w.path, err)
	}
	w.file = file
	return nil
}

// Append writes one record as a JSON line.
func (w *RecordWriter) Append(record models.RegulationRecord) error {
	if w.file == nil {
		return fmt.Errorf("%w: record stream not open", utils.ErrFilesystem)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encoding record for %s: %w", utils.ErrFilesystem, record.URL, err)
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: writing record for %s: %w", utils.ErrFilesystem, record.URL, err)
	}
	return nil
}

// Path returns the stream path.
func (w *RecordWriter) Path() string {
	return w.path
}

// Close syncs and closes the stream. Errors are logged, not returned;
// the stream content already written is what matters.
func (w *RecordWriter) Close() {
	if w.file == nil {
		return
	}
	if err := w.file.Sync(); err != nil {
		w.log.Errorf("Error syncing record stream %s: %v", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		w.log.Errorf("Error closing record stream %s: %v", w.path, err)
	}
	w.file = nil
}

// ReadStream loads every readable record from a JSONL stream in order.
// Corrupt lines are logged and skipped so one bad write never poisons
// the aggregate.
func ReadStream(path string, log *logrus.Entry) ([]models.RegulationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening record stream %s: %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	var records []models.RegulationRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record models.RegulationRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Warnf("Skipping corrupt record stream line %d in %s: %v", line, path, err)
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading record stream %s: %w", utils.ErrFilesystem, path, err)
	}
	return records, nil
}

// CompileAggregate deduplicates records by URL (first occurrence wins),
// assigns SourceIndex by final position, and writes the ordered JSON
// array consumed by the analyze, export, and migrate stages.
func CompileAggregate(records []models.RegulationRecord, path string, log *logrus.Entry) ([]models.RegulationRecord, error) {
	seen := make(map[string]struct{}, len(records))
	aggregate := make([]models.RegulationRecord, 0, len(records))
	for _, record := range records {
		if _, ok := seen[record.URL]; ok {
			continue
		}
		seen[record.URL] = struct{}{}
		record.SourceIndex = len(aggregate)
		aggregate = append(aggregate, record)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating aggregate directory: %w", utils.ErrFilesystem, err)
	}
	data, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encoding aggregate: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("%w: writing aggregate %s: %w", utils.ErrFilesystem, path, err)
	}

	log.WithFields(logrus.Fields{
		"records":    len(records),
		"aggregate":  len(aggregate),
		"duplicates": len(records) - len(aggregate),
	}).Info("Aggregate compiled")
	return aggregate, nil
}

// LoadAggregate reads a compiled aggregate back into memory.
func LoadAggregate(path string) ([]models.RegulationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading aggregate %s: %w", utils.ErrFilesystem, path, err)
	}
	var records []models.RegulationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing aggregate %s: %w", utils.ErrParsing, path, err)
	}
	return records, nil
}
