// Package benchmark measures admission throughput of the verification
// engine offline: operations run against a scripted in-memory DB, so the
// numbers isolate decode plus policy plus signature cost from Postgres.
package benchmark

import (
	"time"
)

// OperationEnum names one measured decision path.
type OperationEnum string

const (
	OpVerifyReceipt OperationEnum = "verify_receipt"
	OpSubmitSignal  OperationEnum = "submit_signal"
	OpUpdateSignal  OperationEnum = "update_signal"
	OpRevokeSignal  OperationEnum = "revoke_signal"
	OpGetSignal     OperationEnum = "get_signal"
)

// AllOperations is the full measured set, in admission-pipeline order.
var AllOperations = []OperationEnum{
	OpVerifyReceipt,
	OpSubmitSignal,
	OpUpdateSignal,
	OpRevokeSignal,
	OpGetSignal,
}

// BenchmarkCase describes one corpus shape to measure.
type BenchmarkCase struct {
	// Providers is the number of distinct provider identities minted for
	// the corpus. Samples rotate through them.
	Providers int

	// EnclavesPerProvider is the allowlist width per provider. Receipts
	// are signed by the last enclave, so wider lists cost a longer scan.
	EnclavesPerProvider int

	// Samples is the number of timed executions per operation.
	Samples int

	// Operations selects the decision paths to measure.
	Operations []OperationEnum
}

// Result holds the timings of one operation under one case.
type Result struct {
	Case          BenchmarkCase
	Operation     OperationEnum
	CaseDurations []time.Duration

	// AllocBytes is the heap allocated while the sample loop ran, from
	// runtime.MemStats TotalAlloc. It covers the whole loop, not one call.
	AllocBytes uint64
}

// Stats summarizes the recorded durations.
func (r Result) Stats() CaseStats {
	return summarize(r.CaseDurations)
}
