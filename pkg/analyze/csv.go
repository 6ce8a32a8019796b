package analyze

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// csvHeader fixes the snapshot column order consumed by the migration
// stage and downstream spreadsheets.
var csvHeader = []string{
	"source_index", "title", "url", "content", "url_type",
	"red_flags", "specific_text_examples", "severity_score",
}

// WriteCSV snapshots verdicts to path, rewriting the whole file. List
// columns are encoded as JSON arrays.
func WriteCSV(records []models.AnalysisRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating CSV directory: %w", utils.ErrFilesystem, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating CSV %s: %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("%w: writing CSV header: %w", utils.ErrFilesystem, err)
	}
	for _, record := range records {
		row, err := csvRow(record)
		if err != nil {
			return err
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("%w: writing CSV row for %s: %w", utils.ErrFilesystem, record.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flushing CSV %s: %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

// ReadCSV loads a verdict snapshot back into memory, for the migration
// stage. The header row is validated by width, not content; list columns
// tolerate both JSON arrays and empty/null cells.
func ReadCSV(path string) ([]models.AnalysisRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening CSV %s: %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading CSV %s: %w", utils.ErrParsing, path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) != len(csvHeader) {
		return nil, fmt.Errorf("%w: CSV %s has %d columns, want %d", utils.ErrParsing, path, len(rows[0]), len(csvHeader))
	}

	records := make([]models.AnalysisRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		record, err := parseCSVRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: CSV %s row %d: %w", utils.ErrParsing, path, i+2, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func parseCSVRow(row []string) (models.AnalysisRecord, error) {
	sourceIndex, err := strconv.Atoi(row[0])
	if err != nil {
		return models.AnalysisRecord{}, fmt.Errorf("source_index: %w", err)
	}
	severity, err := strconv.Atoi(row[7])
	if err != nil {
		return models.AnalysisRecord{}, fmt.Errorf("severity_score: %w", err)
	}
	record := models.AnalysisRecord{
		SourceIndex: sourceIndex,
		Title:       row[1],
		URL:         row[2],
		Content:     row[3],
		URLType:     models.LinkType(row[4]),
		Analysis: models.RegulationAnalysis{
			SeverityScore: severity,
		},
	}
	if err := parseJSONCell(row[5], &record.Analysis.RedFlags); err != nil {
		return models.AnalysisRecord{}, fmt.Errorf("red_flags: %w", err)
	}
	if err := parseJSONCell(row[6], &record.Analysis.SpecificTextExamples); err != nil {
		return models.AnalysisRecord{}, fmt.Errorf("specific_text_examples: %w", err)
	}
	return record, nil
}

func parseJSONCell(cell string, target interface{}) error {
	if cell == "" || cell == "null" {
		return nil
	}
	return json.Unmarshal([]byte(cell), target)
}

func csvRow(record models.AnalysisRecord) ([]string, error) {
	flags, err := json.Marshal(record.Analysis.RedFlags)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding red flags for %s: %w", utils.ErrParsing, record.URL, err)
	}
	examples, err := json.Marshal(record.Analysis.SpecificTextExamples)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding text examples for %s: %w", utils.ErrParsing, record.URL, err)
	}
	return []string{
		strconv.Itoa(record.SourceIndex),
		record.Title,
		record.URL,
		record.Content,
		string(record.URLType),
		string(flags),
		string(examples),
		strconv.Itoa(record.Analysis.SeverityScore),
	}, nil
}
