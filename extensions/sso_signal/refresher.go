package sso_signal

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/syncschecker"
)

const refreshTimeout = 30 * time.Second

// reportRefresher periodically asks the local attester for a fresh
// platform report and hands it to the extension singleton for the
// node_attestation view. Leaderless and node-local: every node refreshes
// its own identity, and nothing here touches consensus state.
type reportRefresher struct {
	logger   log.Logger
	attester attest.Attester
	checker  *syncschecker.Checker
	record   func(*attest.PlatformReport)
	cron     *gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

func newReportRefresher(logger log.Logger, attester attest.Attester, checker *syncschecker.Checker) *reportRefresher {
	return &reportRefresher{
		logger:   logger.New("refresher"),
		attester: attester,
		checker:  checker,
		record:   func(rep *attest.PlatformReport) { getExtension().recordReport(rep) },
		cron:     gocron.NewScheduler(time.UTC),
	}
}

// Start registers a single cron job with the provided expression.
func (r *reportRefresher) Start(ctx context.Context, cronExpr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Cancel any previous context to avoid leaks on restarts.
	if r.cancel != nil {
		r.cancel()
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	// Clear existing jobs so restarts never double-schedule.
	r.cron.Clear()

	jobFunc := func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("panic in refresh job", "panic", rec, "stack", string(debug.Stack()))
			}
		}()
		r.refreshOnce(r.ctx)
	}

	if j, err := r.cron.Cron(cronExpr).Do(jobFunc); err != nil {
		// Fallback for schedules that include a seconds field.
		if j2, err2 := r.cron.CronWithSeconds(cronExpr).Do(jobFunc); err2 != nil {
			return fmt.Errorf("register refresh job: %w", err)
		} else {
			j2.SingletonMode()
		}
	} else {
		// Prevent overlapping runs.
		j.SingletonMode()
	}

	r.cron.StartAsync()
	r.logger.Info("report refresher started", "schedule", cronExpr)
	return nil
}

func (r *reportRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cron.Stop()
	if r.cancel != nil {
		r.cancel()
	}
	r.logger.Info("report refresher stopped")
}

func (r *reportRefresher) refreshOnce(ctx context.Context) {
	if r.checker != nil {
		if ok, reason := r.checker.Ready(); !ok {
			r.logger.Debug("skipping attester refresh", "reason", reason)
			return
		}
	}

	if r.attester == nil || !r.attester.Available() {
		r.logger.Debug("attester unavailable; nothing to refresh")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	// Zero user data: the probe attests the node identity, not a signal.
	report, err := r.attester.Report(ctx, [64]byte{})
	if err != nil {
		r.logger.Warn("attester refresh failed", "error", err)
		return
	}

	r.record(report)
	r.logger.Info("local attestation refreshed",
		"platform", report.Platform.String(),
		"tcb_version", report.TcbVersion)
}

// RunOnce executes the refresh payload once (for tests and manual triggering).
func (r *reportRefresher) RunOnce(ctx context.Context) {
	r.refreshOnce(ctx)
}
