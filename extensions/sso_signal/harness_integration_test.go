//go:build kwiltest

package sso_signal

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trufnetwork/kwil-db/common"
	"github.com/trufnetwork/kwil-db/extensions/precompiles"
	kwilTesting "github.com/trufnetwork/kwil-db/testing"

	database_size "github.com/ssonetwork/node/extensions/database-size"
	"github.com/ssonetwork/node/internal/migrations"
)

func ensurePrecompileRegistered(t *testing.T) {
	t.Helper()
	if _, ok := precompiles.RegisteredPrecompiles()[ExtensionName]; !ok {
		require.NoError(t, registerPrecompile())
	}
	// The seed scripts alias database_size as well, so the initializer has
	// to exist before the schema runs.
	if _, ok := precompiles.RegisteredPrecompiles()[database_size.ExtensionName]; !ok {
		database_size.InitializeExtension()
	}
}

// TestSignalLifecycleWithHarness runs the full oracle lifecycle through the
// live seed scripts: schema, forwarding actions and the extension alias all
// come from internal/migrations, so this exercises the exact SQL path user
// transactions take in production.
func TestSignalLifecycleWithHarness(t *testing.T) {
	registered := precompiles.RegisteredPrecompiles()
	_, alreadyRegistered := registered[ExtensionName]
	ensurePrecompileRegistered(t)
	if !alreadyRegistered {
		defer delete(precompiles.RegisteredPrecompiles(), ExtensionName)
	}

	options := &kwilTesting.Options{
		UseTestContainer: true,
		SetupMetaStore:   true,
	}

	kwilTesting.RunSchemaTest(t, kwilTesting.SchemaTest{
		Name:        "sso_signal_lifecycle_harness",
		SeedScripts: migrations.GetSeedScriptPaths(),
		Owner:       "0x" + hex.EncodeToString(testAdmin),
		FunctionTests: []kwilTesting.TestFunc{
			func(ctx context.Context, platform *kwilTesting.Platform) error {
				platform.Deployer = testAdmin

				enclave := newTestEnclave(t)
				id := testSignalID()

				// Bootstrap policy; the first caller becomes admin.
				require.NoError(t, callAction(ctx, platform, testAdmin, 1, "initialize_config",
					[]any{int64(10), int64(1000), int64(2), int64(5000), int64(200)}))

				err := callAction(ctx, platform, testAdmin, 2, "initialize_config",
					[]any{int64(10), int64(1000), int64(2), int64(5000), int64(200)})
				require.ErrorContains(t, err, "already initialized")

				// Provider onboarding seeds the allowlist in the same transaction.
				require.NoError(t, callAction(ctx, platform, testProvider, 900, "register_provider",
					[]any{"alpha", enclave.Measurement[:]}))

				// Admitted submission at slot 1000.
				require.NoError(t, callAction(ctx, platform, testProvider, 1000, "submit_signal",
					[]any{id[:], testMarket().Encode(), testAssessment().Encode(),
						enclave.receiptFor(t, id, testProvider, 1000)}))

				// A duplicate submission must be rejected before any write.
				err = callAction(ctx, platform, testProvider, 1001, "submit_signal",
					[]any{id[:], testMarket().Encode(), testAssessment().Encode(),
						enclave.receiptFor(t, id, testProvider, 1001)})
				require.ErrorContains(t, err, "already exists")

				// Reads go straight through the extension alias.
				row := callView(t, ctx, platform, testProvider, 1050, "get_signal", []any{testProvider, id[:]})
				require.Equal(t, "active", row[1])
				require.Equal(t, "long", row[2])
				require.Equal(t, "BTC", row[8])
				require.Equal(t, int64(0), row[16])

				// Status is derived from the validity window at read time.
				row = callView(t, ctx, platform, testProvider, 1101, "get_signal", []any{testProvider, id[:]})
				require.Equal(t, "expired", row[1])

				// A lapsed record is still revocable.
				require.NoError(t, callAction(ctx, platform, testProvider, 1102, "revoke_signal", []any{id[:]}))
				row = callView(t, ctx, platform, testProvider, 1103, "get_signal", []any{testProvider, id[:]})
				require.Equal(t, "revoked", row[1])

				err = callAction(ctx, platform, testProvider, 1104, "revoke_signal", []any{id[:]})
				require.ErrorContains(t, err, "already been revoked")

				// Registry and policy views reflect the admitted submission.
				prow := callView(t, ctx, platform, testProvider, 1105, "get_provider", []any{testProvider})
				require.Equal(t, "alpha", prow[0])
				require.Equal(t, int64(1), prow[2])
				require.Equal(t, enclave.Measurement[:], prow[6])

				crow := callView(t, ctx, platform, testProvider, 1105, "get_config", []any{})
				require.Equal(t, testAdmin, crow[0])
				require.Equal(t, int64(1), crow[8])
				require.Equal(t, int64(1), crow[9])

				return nil
			},
		},
	}, options)
}

func harnessEngineCtx(ctx context.Context, platform *kwilTesting.Platform, signer []byte, height int64) *common.EngineContext {
	return &common.EngineContext{
		TxContext: &common.TxContext{
			Ctx:          ctx,
			BlockContext: &common.BlockContext{Height: height, Timestamp: height},
			Signer:       signer,
			Caller:       "0x" + hex.EncodeToString(signer),
			TxID:         platform.Txid(),
		},
	}
}

// callAction executes a main-namespace forwarding action as the given signer.
func callAction(ctx context.Context, platform *kwilTesting.Platform, signer []byte, height int64, action string, args []any) error {
	engineCtx := harnessEngineCtx(ctx, platform, signer, height)
	res, err := platform.Engine.Call(engineCtx, platform.DB, "", action, args, nil)
	if err != nil {
		return err
	}
	if res != nil && res.Error != nil {
		return res.Error
	}
	return nil
}

// callView calls a PUBLIC VIEW extension method through the sso alias and
// returns the last emitted row.
func callView(t *testing.T, ctx context.Context, platform *kwilTesting.Platform, signer []byte, height int64, method string, args []any) []any {
	t.Helper()

	var row []any
	engineCtx := harnessEngineCtx(ctx, platform, signer, height)
	res, err := platform.Engine.Call(engineCtx, platform.DB, "sso", method, args, func(r *common.Row) error {
		row = append([]any(nil), r.Values...)
		return nil
	})
	require.NoError(t, err)
	if res != nil {
		require.NoError(t, res.Error)
	}
	require.NotNil(t, row, "view %s returned no rows", method)
	return row
}
