package migrations

import (
	"embed"
	"path/filepath"
	"runtime"
	"strings"
)

//go:embed *.sql test_only/*.sql
var seedFiles embed.FS

func seedNames() []string {
	var names []string

	entries, err := seedFiles.ReadDir(".")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}

	entries, err = seedFiles.ReadDir("test_only")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, "test_only/"+entry.Name())
		}
	}

	if len(names) == 0 {
		panic("no seed scripts found in embedded directory")
	}

	return names
}

// GetSeedScriptPaths returns the genesis seed scripts in execution order:
// numbered root scripts first, then test-only helpers. Paths are absolute
// so the kwil test harness can read them from disk.
func GetSeedScriptPaths() []string {
	// Resolve the on-disk directory holding this file.
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)

	names := seedNames()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(name)))
	}
	return paths
}

// GetSeedScriptStatements returns the embedded seed scripts as raw SQL, one
// batch per file, for harnesses that seed without filesystem access.
func GetSeedScriptStatements() []string {
	names := seedNames()
	statements := make([]string, 0, len(names))
	for _, name := range names {
		raw, err := seedFiles.ReadFile(name)
		if err != nil {
			panic(err)
		}
		statements = append(statements, string(raw))
	}
	return statements
}
