package benchmark

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/engine"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/tests/utils"
)

// RunCaseInput ties one case to the test driving it. A nil Logger routes
// trace output to the standard logger.
type RunCaseInput struct {
	Case   BenchmarkCase
	Logger *testing.T
}

// RunCase mints the corpus for one case and measures every requested
// operation over it. An empty operation list measures all of them.
func RunCase(ctx context.Context, input RunCaseInput) ([]Result, error) {
	LogPhaseEnter(input.Logger, "RunCase", "Case: %+v", input.Case)
	defer LogPhaseExit(input.Logger, time.Now(), "RunCase", "")

	if input.Case.Samples < 1 {
		return nil, errors.New("case needs at least one sample")
	}
	ops := input.Case.Operations
	if len(ops) == 0 {
		ops = AllOperations
	}

	fixtures, err := buildCorpus(ctx, input.Case)
	if err != nil {
		return nil, errors.Wrap(err, "build corpus")
	}

	results := make([]Result, 0, len(ops))
	for _, op := range ops {
		result, err := runOperation(ctx, input, op, fixtures)
		if err != nil {
			return nil, errors.Wrapf(err, "run operation %s", op)
		}
		results = append(results, result)
	}
	return results, nil
}

// runOperation times one decision path across the corpus. Scripted DBs are
// built before the loop, so measured samples pay only for payload decode,
// gate evaluation and signature verification.
func runOperation(ctx context.Context, input RunCaseInput, op OperationEnum, fixtures []*providerFixture) (Result, error) {
	LogPhaseEnter(input.Logger, "runOperation", "Operation: %s, Samples: %d", op, input.Case.Samples)
	defer LogPhaseExit(input.Logger, time.Now(), "runOperation", "")

	exec, err := operationExec(op, fixtures)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Case:          input.Case,
		Operation:     op,
		CaseDurations: make([]time.Duration, input.Case.Samples),
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	for i := 0; i < input.Case.Samples; i++ {
		n := i % len(fixtures)
		start := time.Now()
		err := exec(ctx, n)
		result.CaseDurations[i] = time.Since(start)
		if err != nil {
			return Result{}, errors.Wrapf(err, "sample %d", i)
		}
	}
	runtime.ReadMemStats(&after)
	result.AllocBytes = after.TotalAlloc - before.TotalAlloc

	return result, nil
}

// operationExec binds an operation to per-fixture state. The returned
// closure runs one sample against fixture n. Every path is stateless: the
// scripted rows never change, so samples repeat the identical decision.
func operationExec(op OperationEnum, fixtures []*providerFixture) (func(ctx context.Context, n int) error, error) {
	block := engine.BlockInfo{Slot: submitSlot, Timestamp: submitSlot}

	switch op {
	case OpVerifyReceipt:
		return func(_ context.Context, n int) error {
			f := fixtures[n]
			receipt, err := records.ParseTeeReceipt(f.receipt)
			if err != nil {
				return err
			}
			return attest.VerifyReceipt(receipt, f.verifyParams())
		}, nil

	case OpSubmitSignal:
		dbs := scriptedDBs(fixtures, func(f *providerFixture) *utils.TableDB {
			return f.admissionDB()
		})
		return func(ctx context.Context, n int) error {
			f := fixtures[n]
			_, err := engine.SubmitSignal(ctx, dbs[n], block, f.address, f.signalID, f.market, f.assessment, f.receipt)
			return err
		}, nil

	case OpUpdateSignal:
		dbs := scriptedDBs(fixtures, func(f *providerFixture) *utils.TableDB {
			return f.lifecycleDB(records.StatusActive)
		})
		return func(ctx context.Context, n int) error {
			f := fixtures[n]
			_, err := engine.UpdateSignal(ctx, dbs[n], block, f.address, f.signalID, f.market, f.assessment, f.receipt)
			return err
		}, nil

	case OpRevokeSignal:
		dbs := scriptedDBs(fixtures, func(f *providerFixture) *utils.TableDB {
			return f.lifecycleDB(records.StatusActive)
		})
		return func(ctx context.Context, n int) error {
			f := fixtures[n]
			return engine.RevokeSignal(ctx, dbs[n], block, f.address, f.signalID)
		}, nil

	case OpGetSignal:
		dbs := scriptedDBs(fixtures, func(f *providerFixture) *utils.TableDB {
			return f.lifecycleDB(records.StatusActive)
		})
		return func(ctx context.Context, n int) error {
			f := fixtures[n]
			_, err := engine.GetSignal(ctx, dbs[n], f.address, f.signalID, submitSlot+50)
			return err
		}, nil
	}

	return nil, errors.Errorf("unknown operation %q", op)
}

func scriptedDBs(fixtures []*providerFixture, build func(*providerFixture) *utils.TableDB) []*utils.TableDB {
	dbs := make([]*utils.TableDB, len(fixtures))
	for i, f := range fixtures {
		dbs[i] = build(f)
	}
	return dbs
}
