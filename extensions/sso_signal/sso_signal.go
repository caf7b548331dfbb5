package sso_signal

import (
	"context"
	"fmt"

	"github.com/trufnetwork/kwil-db/common"
	"github.com/trufnetwork/kwil-db/extensions/hooks"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/syncschecker"
)

// InitializeExtension registers the sso_signal extension.
// This includes:
// - Registering the oracle precompile method table
// - Registering the engine ready hook that wires node-local services
// - Registering the end block hook that feeds the sync gate
func InitializeExtension() {
	if err := registerPrecompile(); err != nil {
		panic(fmt.Sprintf("failed to register %s precompile: %v", ExtensionName, err))
	}

	if err := hooks.RegisterEngineReadyHook(ExtensionName+"_engine_ready", engineReadyHook); err != nil {
		panic(fmt.Sprintf("failed to register %s engine ready hook: %v", ExtensionName, err))
	}

	if err := hooks.RegisterEndBlockHook(ExtensionName+"_end_block", endBlockHook); err != nil {
		panic(fmt.Sprintf("failed to register %s end block hook: %v", ExtensionName, err))
	}
}

// engineReadyHook wires the node-local half of the extension: logger,
// extension config, this machine's attester capability, the sync gate, and
// the optional report refresher. Consensus state needs no setup here; the
// seeded migrations own the tables.
func engineReadyHook(ctx context.Context, app *common.App) error {
	if app == nil || app.Service == nil {
		return nil
	}

	ext := getExtension()
	ext.setService(app.Service)
	logger := ext.Logger()

	cfg, err := LoadConfig(app.Service)
	if err != nil {
		return fmt.Errorf("load %s config: %w", ExtensionName, err)
	}
	ext.setConfig(cfg)

	attester := attest.NewAttester(logger)
	ext.setAttester(attester)

	checker := syncschecker.New(logger, syncschecker.Options{
		MaxBlockAgeSeconds: cfg.MaxBlockAgeSeconds,
	})
	checker.Start(ctx)
	ext.setSyncChecker(checker)

	if cfg.RefreshEnabled {
		refresher := newReportRefresher(logger, attester, checker)
		if err := refresher.Start(ctx, cfg.RefreshSchedule); err != nil {
			return fmt.Errorf("start report refresher: %w", err)
		}
		ext.setRefresher(refresher)
	}

	go func() {
		<-ctx.Done()
		if r := ext.Refresher(); r != nil {
			r.Stop()
		}
		checker.Stop()
	}()

	logger.Info("sso_signal extension ready",
		"platform", attester.Platform().String(),
		"attester_available", attester.Available(),
		"refresher_enabled", cfg.RefreshEnabled)
	return nil
}

// endBlockHook feeds the locally observed chain tip into the sync gate so
// background work pauses when this node stops following the chain.
func endBlockHook(ctx context.Context, app *common.App, block *common.BlockContext) error {
	if block == nil {
		return nil
	}
	if sc := getExtension().SyncChecker(); sc != nil {
		sc.ObserveBlock(block.Height, block.Timestamp)
	}
	return nil
}
