package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/config"
	"reg-scraper/pkg/extract"
	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// Summary totals one migration run.
type Summary struct {
	Documents   int // documents upserted
	Analyses    int // analysis rows inserted
	RedFlagRows int
	StatuteRows int
	Skipped     int // documents skipped after a row error
}

const upsertDocumentSQL = `
INSERT INTO regulatory_documents (source_index, type, state, title, url, url_type, content)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(state, source_index, type) DO UPDATE SET
	title = excluded.title,
	url = excluded.url,
	url_type = excluded.url_type,
	content = excluded.content
RETURNING id`

const insertAnalysisSQL = `
INSERT INTO analyses (document_id, model_version, max_severity, num_flags, is_current, analyzed_at)
VALUES (?, ?, ?, ?, TRUE, ?)
RETURNING id`

const insertRedFlagSQL = `
INSERT INTO red_flags (analysis_id, category, text_examples)
VALUES (?, ?, ?)`

const upsertStatuteSQL = `
INSERT INTO statute_references (document_id, usc_citations, cfr_citations, public_laws, state_title, state_section)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(document_id) DO UPDATE SET
	usc_citations = excluded.usc_citations,
	cfr_citations = excluded.cfr_citations,
	public_laws = excluded.public_laws,
	state_title = excluded.state_title,
	state_section = excluded.state_section`

// Migrate writes the aggregate and its verdicts into the relational
// schema. Every aggregate record becomes a document row (with statute
// references extracted from its content); records with a verdict also get
// an analysis row, which retires any previous analysis for the document.
// Commits are batched; a failed document is logged and skipped.
func (d *DB) Migrate(ctx context.Context, records []models.RegulationRecord, verdicts []models.AnalysisRecord, cfg config.MigrateConfig) (*Summary, error) {
	commitBatch := cfg.CommitBatch
	if commitBatch <= 0 {
		commitBatch = 10
	}

	byURL := make(map[string]*models.AnalysisRecord, len(verdicts))
	for i := range verdicts {
		byURL[verdicts[i].URL] = &verdicts[i]
	}

	d.log.WithFields(logrus.Fields{
		"documents": len(records),
		"verdicts":  len(verdicts),
		"state":     cfg.State,
	}).Info("Starting migration")

	summary := &Summary{}
	matched := 0
	var tx *sql.Tx
	inTx := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			return summary, err
		}
		if tx == nil {
			var err error
			if tx, err = d.db.BeginTx(ctx, nil); err != nil {
				return summary, fmt.Errorf("%w: beginning transaction: %w", utils.ErrDatabase, err)
			}
		}

		verdict := byURL[record.URL]
		if verdict != nil {
			matched++
		}
		if err := d.migrateDocument(ctx, tx, record, verdict, cfg, summary); err != nil {
			summary.Skipped++
			d.log.WithField("url", record.URL).Errorf("Document skipped: %v", err)
		}

		if inTx++; inTx >= commitBatch {
			if err := tx.Commit(); err != nil {
				return summary, fmt.Errorf("%w: committing batch: %w", utils.ErrDatabase, err)
			}
			d.log.WithField("documents", summary.Documents).Debug("Batch committed")
			tx, inTx = nil, 0
		}
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return summary, fmt.Errorf("%w: committing final batch: %w", utils.ErrDatabase, err)
		}
	}

	if unmatched := len(verdicts) - matched; unmatched > 0 {
		d.log.Warnf("%d verdicts matched no aggregate record and were not migrated", unmatched)
	}
	d.log.Infof("Migration complete: %d documents, %d analyses, %d red flag rows, %d statute rows, %d skipped",
		summary.Documents, summary.Analyses, summary.RedFlagRows, summary.StatuteRows, summary.Skipped)
	return summary, nil
}

func (d *DB) migrateDocument(ctx context.Context, tx *sql.Tx, record models.RegulationRecord, verdict *models.AnalysisRecord, cfg config.MigrateConfig, summary *Summary) error {
	var docID int64
	err := tx.QueryRowContext(ctx, upsertDocumentSQL,
		record.SourceIndex, cfg.DocType, cfg.State,
		record.Title, record.URL, string(record.URLType), record.CleanedContent,
	).Scan(&docID)
	if err != nil {
		return fmt.Errorf("%w: upserting document %d: %w", utils.ErrDatabase, record.SourceIndex, err)
	}
	summary.Documents++

	if refs := extract.ExtractCitations(record); extract.HasReferences(refs) {
		_, err := tx.ExecContext(ctx, upsertStatuteSQL, docID,
			jsonList(refs.USCCitations), jsonList(refs.CFRCitations), jsonList(refs.PublicLaws),
			nullable(refs.StateTitle), nullable(refs.StateSection))
		if err != nil {
			return fmt.Errorf("%w: upserting statute references for document %d: %w", utils.ErrDatabase, docID, err)
		}
		summary.StatuteRows++
	}

	if verdict == nil {
		return nil
	}

	// History contract: exactly one current analysis per document.
	if _, err := tx.ExecContext(ctx, `UPDATE analyses SET is_current = FALSE WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("%w: retiring previous analyses for document %d: %w", utils.ErrDatabase, docID, err)
	}

	var analyzedAt interface{}
	if !verdict.AnalyzedAt.IsZero() {
		analyzedAt = verdict.AnalyzedAt.UTC().Format(time.RFC3339)
	}
	var analysisID int64
	err = tx.QueryRowContext(ctx, insertAnalysisSQL,
		docID, verdict.Model, verdict.Analysis.SeverityScore, len(verdict.Analysis.RedFlags), analyzedAt,
	).Scan(&analysisID)
	if err != nil {
		return fmt.Errorf("%w: inserting analysis for document %d: %w", utils.ErrDatabase, docID, err)
	}
	summary.Analyses++

	examples := jsonList(verdict.Analysis.SpecificTextExamples)
	for _, flag := range verdict.Analysis.RedFlags {
		if _, err := tx.ExecContext(ctx, insertRedFlagSQL, analysisID, string(flag), examples); err != nil {
			return fmt.Errorf("%w: inserting red flag %s for analysis %d: %w", utils.ErrDatabase, flag, analysisID, err)
		}
		summary.RedFlagRows++
	}
	return nil
}

// jsonList renders a string list as a JSON text column, NULL when empty.
func jsonList(values []string) interface{} {
	if len(values) == 0 {
		return nil
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
