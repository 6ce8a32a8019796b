// Package export writes one JSON file per aggregate record, for consumers
// that want regulations as individual documents rather than one large array.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// fileBody is the shape of each exported file. Content carries the cleaned
// text, the same view the analysis stage consumes.
type fileBody struct {
	URL         string          `json:"url"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	URLType     models.LinkType `json:"url_type"`
	SourceIndex int             `json:"source_index"`
}

// Summary totals one export run.
type Summary struct {
	Records int // aggregate records seen
	Written int // files written
	Failed  int // records whose file could not be written
}

// Exporter fans an aggregate out into individual JSON files.
type Exporter struct {
	dir string
	log *logrus.Entry
}

func NewExporter(dir string, log *logrus.Entry) *Exporter {
	return &Exporter{
		dir: dir,
		log: log.WithField("component", "exporter"),
	}
}

// Run recreates the output directory and writes every record to its own
// file. Filenames embed the record's position, so they stay unique even
// when two URLs sanitize to the same tail. The run ends with a 1:1
// record/file verification against the directory.
func (e *Exporter) Run(records []models.RegulationRecord) (*Summary, error) {
	if err := os.RemoveAll(e.dir); err != nil {
		return nil, fmt.Errorf("%w: clearing export directory %s: %w", utils.ErrFilesystem, e.dir, err)
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating export directory %s: %w", utils.ErrFilesystem, e.dir, err)
	}

	e.log.WithFields(logrus.Fields{
		"records": len(records),
		"dir":     e.dir,
	}).Info("Exporting individual regulation files")

	summary := &Summary{Records: len(records)}
	for i, record := range records {
		if err := e.writeRecord(i, record); err != nil {
			summary.Failed++
			e.log.WithField("url", record.URL).Errorf("Export failed: %v", err)
			continue
		}
		summary.Written++
	}

	onDisk, err := countJSONFiles(e.dir)
	if err != nil {
		return summary, err
	}
	if onDisk == len(records) {
		e.log.Infof("Export complete: %d/%d files, 1:1 mapping verified", onDisk, len(records))
	} else {
		e.log.Warnf("Export incomplete: %d files on disk for %d records", onDisk, len(records))
	}
	return summary, nil
}

func (e *Exporter) writeRecord(i int, record models.RegulationRecord) error {
	name := fmt.Sprintf("%06d_%s.json", i, utils.SanitizeFilename(urlTail(record.URL)))
	body := fileBody{
		URL:         record.URL,
		Title:       record.Title,
		Content:     record.CleanedContent,
		URLType:     record.URLType,
		SourceIndex: i,
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling record %d: %w", utils.ErrParsing, i, err)
	}
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

// urlTail returns the last path segment, the meaningful part of a
// regulation URL.
func urlTail(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

func countJSONFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: reading export directory %s: %w", utils.ErrFilesystem, dir, err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			n++
		}
	}
	return n, nil
}
