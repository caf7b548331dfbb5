package benchexport

import (
	"encoding/csv"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// SavedRunResult is one exported benchmark row. JSON tags double as CSV
// headers and markdown column sources, so runs from different machines
// append into the same file with a stable shape.
type SavedRunResult struct {
	RunID      string  `json:"run_id"`
	RecordedAt string  `json:"recorded_at"`
	Operation  string  `json:"operation"`
	Providers  int     `json:"providers"`
	Enclaves   int     `json:"enclaves_per_provider"`
	Samples    int     `json:"samples"`
	MeanMs     float64 `json:"mean_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	OpsPerSec  float64 `json:"ops_per_sec"`
	AllocBytes uint64  `json:"alloc_bytes"`
}

// SaveOrAppendToCSV appends rows to filePath, creating the file first when
// needed. Column order follows the struct's json tags; the header row is
// written only when the file is empty, so repeated runs accumulate.
func SaveOrAppendToCSV[T any](rows []T, filePath string) error {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)

	if stat.Size() == 0 {
		header, err := csvHeader(reflect.TypeOf((*T)(nil)).Elem())
		if err != nil {
			return err
		}
		if err := writer.Write(header); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := writer.Write(csvRecord(row)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// csvHeader lists the json tag names of t's fields, skipping untagged and
// "-" fields.
func csvHeader(t reflect.Type) ([]string, error) {
	var header []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		header = append(header, strings.Split(tag, ",")[0])
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("no valid JSON tags found in struct")
	}
	return header, nil
}

// csvRecord renders one struct value in the same column order as csvHeader.
func csvRecord(item any) []string {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()

	var record []string
	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		record = append(record, fmt.Sprintf("%v", v.Field(i).Interface()))
	}
	return record
}
