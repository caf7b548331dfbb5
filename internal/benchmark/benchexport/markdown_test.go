package benchexport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveAsMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.md")

	input := SaveAsMarkdownInput{
		Results: []SavedRunResult{
			sampleRow("update_signal", 8),
			sampleRow("submit_signal", 4),
		},
		CurrentDate:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		InstanceType: "local",
		FilePath:     path,
	}
	require.NoError(t, SaveAsMarkdown(input))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	require.True(t, strings.HasPrefix(text, "## Admission latency runs"))
	require.Contains(t, text, "2026-08-25 10:00:00 - local - run run-1")
	require.Contains(t, text, "| operation")

	subIdx := strings.Index(text, "submit_signal")
	updIdx := strings.Index(text, "update_signal")
	require.Greater(t, updIdx, subIdx, "rows ordered by operation")

	// A second run appends a new section without a second document header.
	require.NoError(t, SaveAsMarkdown(input))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(content), "## Admission latency runs"))
	require.Equal(t, 2, strings.Count(string(content), "run run-1"))
}

func TestSaveAsMarkdownRejectsEmptyResults(t *testing.T) {
	err := SaveAsMarkdown(SaveAsMarkdownInput{FilePath: filepath.Join(t.TempDir(), "x.md")})
	require.ErrorContains(t, err, "no results")
}
