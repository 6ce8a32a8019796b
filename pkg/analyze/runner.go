package analyze

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"reg-scraper/pkg/config"
	"reg-scraper/pkg/models"
)

// Summary totals one analyze run.
type Summary struct {
	Total    int // records in the aggregate
	Analyzed int // fresh verdicts stored this run
	Skipped  int // verdicts already in the store
	Failed   int // failures; nothing stored, retried next run
}

// Runner walks the aggregate in batches, fans each batch out to the
// analyzer under a concurrency limit, and snapshots the store to CSV as
// verdicts accumulate.
type Runner struct {
	analyzer    *Analyzer
	store       *ResultStore
	csvPath     string
	batchSize   int
	concurrency int
	flushEvery  int
	limit       int
	log         *logrus.Entry
}

// NewRunner wires a runner from the analysis configuration. The config
// arrives validated, but the guards keep a hand-built config safe too.
func NewRunner(analyzer *Analyzer, store *ResultStore, cfg config.AnalysisConfig, log *logrus.Entry) *Runner {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = batchSize
	}
	flushEvery := cfg.CSVFlushEvery
	if flushEvery <= 0 {
		flushEvery = 5
	}
	return &Runner{
		analyzer:    analyzer,
		store:       store,
		csvPath:     cfg.CSVFile,
		batchSize:   batchSize,
		concurrency: concurrency,
		flushEvery:  flushEvery,
		limit:       cfg.Limit,
		log:         log.WithField("component", "analysis_runner"),
	}
}

// Run analyzes every record without a stored verdict, up to the
// configured limit. Per-record failures are counted and retried on the
// next run; only store access trouble and cancellation abort the run.
func (r *Runner) Run(ctx context.Context, records []models.RegulationRecord) (*Summary, error) {
	summary := &Summary{Total: len(records)}

	pending := make([]models.RegulationRecord, 0, len(records))
	for _, record := range records {
		if r.limit > 0 && len(pending) >= r.limit {
			break
		}
		stored, err := r.store.Has(record.URL)
		if err != nil {
			return summary, err
		}
		if stored {
			summary.Skipped++
			continue
		}
		pending = append(pending, record)
	}
	r.log.WithFields(logrus.Fields{
		"total":   summary.Total,
		"pending": len(pending),
		"skipped": summary.Skipped,
	}).Info("Starting red flag analysis")

	sinceFlush := 0
	for start := 0; start < len(pending); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		end := min(start+r.batchSize, len(pending))
		batch := pending[start:end]
		r.log.Infof("Processing batch %d (%d regulations)...", start/r.batchSize+1, len(batch))

		verdicts := make([]*models.AnalysisRecord, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for i, record := range batch {
			g.Go(func() error {
				analysis, err := r.analyzer.Analyze(gctx, record)
				if err != nil {
					r.log.WithField("url", record.URL).Warnf("Analysis failed, will retry next run: %v", err)
					return nil
				}
				verdicts[i] = &models.AnalysisRecord{
					SourceIndex: record.SourceIndex,
					URL:         record.URL,
					Title:       record.Title,
					URLType:     record.URLType,
					Content:     record.CleanedContent,
					Analysis:    analysis,
					Model:       r.analyzer.ModelName(),
					AnalyzedAt:  time.Now().UTC(),
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}

		for i, verdict := range verdicts {
			if verdict == nil {
				summary.Failed++
				continue
			}
			if err := r.store.Put(*verdict); err != nil {
				summary.Failed++
				r.log.WithField("url", batch[i].URL).Errorf("Verdict not stored: %v", err)
				continue
			}
			summary.Analyzed++
			sinceFlush++
			r.log.Infof("  %.50s... %d flags (severity: %d)",
				verdict.Title, len(verdict.Analysis.RedFlags), verdict.Analysis.SeverityScore)
		}

		if sinceFlush >= r.flushEvery {
			sinceFlush = 0
			r.snapshotCSV()
		}
	}

	verdicts := r.snapshotCSV()
	r.logTotals(verdicts)
	return summary, nil
}

// snapshotCSV rewrites the CSV from the full store. Snapshot failure
// never aborts the run; verdicts are already durable in the store.
func (r *Runner) snapshotCSV() []models.AnalysisRecord {
	verdicts, err := r.store.All()
	if err != nil {
		r.log.Errorf("CSV snapshot skipped, store scan failed: %v", err)
		return nil
	}
	if err := WriteCSV(verdicts, r.csvPath); err != nil {
		r.log.Errorf("CSV snapshot failed: %v", err)
		return verdicts
	}
	r.log.WithFields(logrus.Fields{"verdicts": len(verdicts), "csv": r.csvPath}).Info("Saved progress")
	return verdicts
}

func (r *Runner) logTotals(verdicts []models.AnalysisRecord) {
	flagged, high, medium := 0, 0, 0
	for _, v := range verdicts {
		if len(v.Analysis.RedFlags) > 0 {
			flagged++
		}
		switch {
		case v.Analysis.SeverityScore >= 9:
			high++
		case v.Analysis.SeverityScore >= 7:
			medium++
		}
	}
	r.log.Infof("Analysis complete: %d verdicts stored, %d with red flags, %d high severity (9-10), %d medium (7-8)",
		len(verdicts), flagged, high, medium)
}
