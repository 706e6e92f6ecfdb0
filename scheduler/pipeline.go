package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
	"github.com/giygas/nhi-hospitals/metrics"
)

// Pipeline runs the fetch and classify steps shared by the batch commands and the scheduler
type Pipeline struct {
	Checker    interfaces.ReleaseChecker // nil skips the fetch step
	Reader     interfaces.RecordReader
	Classifier *classifier.Classifier
	Validator  interfaces.DataValidator // nil skips record validation
	Sink       interfaces.ResultSink    // nil skips the export

	OutputFile       string // empty skips the JSON artifact
	UnclassifiedFile string // empty skips the unclassified list
}

// ClassifyRun is what one classification produced
type ClassifyRun struct {
	Result      *classifier.Result
	RecordCount int
	Report      *interfaces.DataQualityReport
}

// Fetch checks the listing page and downloads changed releases
func (p *Pipeline) Fetch(ctx context.Context, runID string) (*entities.DownloadOutcome, error) {
	if p.Checker == nil {
		return nil, nil
	}

	start := time.Now()
	outcome, err := p.Checker.CheckAndDownload(ctx)
	if err != nil {
		return nil, fmt.Errorf("release check failed: %w", err)
	}

	metrics.RecordOutcome(outcome)
	logging.Info("Release check completed",
		"run_id", runID,
		"duration", time.Since(start).String(),
		"max_year", outcome.MaxYear,
		"downloaded", len(outcome.Downloaded),
		"skipped", len(outcome.Skipped),
		"failed", len(outcome.Failed),
	)
	return outcome, nil
}

// Classify extracts the records on disk, classifies them and writes the artifacts.
// With a Validator set, an unusable record set is an error and nothing is written.
func (p *Pipeline) Classify(ctx context.Context, runID string) (*ClassifyRun, error) {
	start := time.Now()

	records, err := p.Reader.ReadRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to read hospital records: %w", err)
	}

	run := &ClassifyRun{RecordCount: len(records)}

	if p.Validator != nil {
		if err := p.Validator.ValidateRecords(records); err != nil {
			return nil, fmt.Errorf("invalid hospital records: %w", err)
		}
		run.Report = p.Validator.ReportDataQuality(records)
	}

	run.Result = p.Classifier.ClassifyAll(records)

	if p.OutputFile != "" {
		if err := classifier.WriteResultJSON(p.OutputFile, run.Result); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.OutputFile, err)
		}
	}
	if p.UnclassifiedFile != "" {
		if err := classifier.WriteUnclassified(p.UnclassifiedFile, run.Result.Unclassified); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.UnclassifiedFile, err)
		}
	}

	if p.Sink != nil {
		// Export is best effort, the files on disk are the primary output
		if err := p.Sink.Export(ctx, runID, run.Result); err != nil {
			logging.Error("Failed to export classification", "run_id", runID, "error", err)
		}
	}

	metrics.RecordClassification(run.Result)
	logging.Info("Classification completed",
		"run_id", runID,
		"duration", time.Since(start).String(),
		"records", len(records),
		"classified", run.Result.TotalClassified(),
		"unclassified", len(run.Result.Unclassified),
	)
	return run, nil
}
