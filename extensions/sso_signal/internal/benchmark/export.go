package benchmark

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ssonetwork/node/internal/benchmark/benchexport"
)

const (
	resultsCSVName      = "admission_benchmark.csv"
	resultsMarkdownName = "admission_benchmark.md"
)

// ExportInput names the run results and where they land.
type ExportInput struct {
	Results []Result
	Dir     string

	// InstanceType labels the machine class in the markdown summary,
	// "local" when unset.
	InstanceType string
}

// ExportResults appends the run to the CSV history and the markdown
// comparison document under input.Dir. All rows of one call share a run id
// so machines and dates stay comparable across appends.
func ExportResults(input ExportInput) error {
	if len(input.Results) == 0 {
		return errors.New("no results to export")
	}
	if input.Dir == "" {
		return errors.New("no export directory")
	}
	instance := input.InstanceType
	if instance == "" {
		instance = "local"
	}
	if err := os.MkdirAll(input.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create results dir")
	}

	runID := uuid.New().String()
	recordedAt := time.Now().UTC()
	saved := lo.Map(input.Results, func(r Result, _ int) benchexport.SavedRunResult {
		return toSavedResult(r, runID, recordedAt)
	})

	csvPath := filepath.Join(input.Dir, resultsCSVName)
	if err := benchexport.SaveOrAppendToCSV(saved, csvPath); err != nil {
		return errors.Wrap(err, "save csv results")
	}

	err := benchexport.SaveAsMarkdown(benchexport.SaveAsMarkdownInput{
		Results:      saved,
		CurrentDate:  recordedAt,
		InstanceType: instance,
		FilePath:     filepath.Join(input.Dir, resultsMarkdownName),
	})
	return errors.Wrap(err, "save markdown results")
}

func toSavedResult(r Result, runID string, recordedAt time.Time) benchexport.SavedRunResult {
	s := r.Stats()
	return benchexport.SavedRunResult{
		RunID:      runID,
		RecordedAt: recordedAt.Format(time.RFC3339),
		Operation:  string(r.Operation),
		Providers:  r.Case.Providers,
		Enclaves:   r.Case.EnclavesPerProvider,
		Samples:    r.Case.Samples,
		MeanMs:     s.MeanMs,
		P50Ms:      s.P50Ms,
		P95Ms:      s.P95Ms,
		P99Ms:      s.P99Ms,
		OpsPerSec:  s.OpsPerSec,
		AllocBytes: r.AllocBytes,
	}
}
