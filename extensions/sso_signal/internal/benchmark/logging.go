package benchmark

import (
	"fmt"
	"log"
	"testing"
	"time"
)

// The trace helpers log through t.Log when a test drives the run, and fall
// back to the standard logger when invoked outside the test binary.

func emit(t *testing.T, msg string) {
	if t != nil {
		t.Log(msg)
	} else {
		log.Println(msg)
	}
}

// LogPhaseEnter marks the start of a named phase.
func LogPhaseEnter(t *testing.T, phase string, format string, args ...any) {
	msg := fmt.Sprintf("[BENCHMARK_TRACE] Entering phase: %s", phase)
	if format != "" {
		msg = fmt.Sprintf("%s. Details: %s", msg, fmt.Sprintf(format, args...))
	}
	emit(t, msg)
}

// LogPhaseExit marks the end of a named phase with its duration.
func LogPhaseExit(t *testing.T, start time.Time, phase string, format string, args ...any) {
	msg := fmt.Sprintf("[BENCHMARK_TRACE] Exiting phase: %s. Duration: %v", phase, time.Since(start))
	if format != "" {
		msg = fmt.Sprintf("%s. Details: %s", msg, fmt.Sprintf(format, args...))
	}
	emit(t, msg)
}

// LogInfo is a general informational line in the benchmark log stream.
func LogInfo(t *testing.T, format string, args ...any) {
	emit(t, fmt.Sprintf("[BENCHMARK_INFO] %s", fmt.Sprintf(format, args...)))
}
