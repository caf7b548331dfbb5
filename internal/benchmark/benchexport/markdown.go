package benchexport

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	markdown "github.com/fbiville/markdown-table-formatter/pkg/markdown"
	"golang.org/x/exp/slices"
)

type SaveAsMarkdownInput struct {
	Results      []SavedRunResult
	CurrentDate  time.Time
	InstanceType string
	FilePath     string
}

// SaveAsMarkdown appends one table per call to the given file, so repeated
// runs on the same machine accumulate into a single comparison document.
// Rows are ordered by operation, then corpus size, to keep diffs readable
// across runs.
func SaveAsMarkdown(input SaveAsMarkdownInput) error {
	if len(input.Results) == 0 {
		return fmt.Errorf("no results to save")
	}

	results := slices.Clone(input.Results)
	slices.SortStableFunc(results, func(a, b SavedRunResult) int {
		if c := strings.Compare(a.Operation, b.Operation); c != 0 {
			return c
		}
		if a.Providers != b.Providers {
			return a.Providers - b.Providers
		}
		return a.Enclaves - b.Enclaves
	})

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Operation,
			strconv.Itoa(r.Providers),
			strconv.Itoa(r.Enclaves),
			strconv.Itoa(r.Samples),
			formatMs(r.MeanMs),
			formatMs(r.P50Ms),
			formatMs(r.P95Ms),
			formatMs(r.P99Ms),
			strconv.FormatFloat(r.OpsPerSec, 'f', 1, 64),
		})
	}

	table, err := markdown.NewTableFormatterBuilder().
		WithPrettyPrint().
		Build("operation", "providers", "enclaves", "samples", "mean ms", "p50 ms", "p95 ms", "p99 ms", "ops/s").
		Format(rows)
	if err != nil {
		return err
	}

	// Open the file in append mode, or create it if it doesn't exist
	file, err := os.OpenFile(input.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Write the document header only if the file is empty
	stat, err := file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		if _, err = file.WriteString("## Admission latency runs\n\n"); err != nil {
			return err
		}
	}

	date := input.CurrentDate.Format("2006-01-02 15:04:05")
	section := fmt.Sprintf("%s - %s - run %s\n\n", date, input.InstanceType, results[0].RunID)
	if _, err = file.WriteString(section); err != nil {
		return err
	}
	if _, err = file.WriteString(table); err != nil {
		return err
	}
	_, err = file.WriteString("\n")
	return err
}

func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
