package sso_signal

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trufnetwork/kwil-db/common"
	kcrypto "github.com/trufnetwork/kwil-db/core/crypto"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
	"github.com/ssonetwork/node/tests/utils"
)

// Handler tests exercise the surface plumbing: argument coercion, caller
// and block extraction, and result row shapes. The admission rule order
// itself is covered by the internal/engine tests; here one admitted and
// one rejected submission prove the wiring end to end. Clock convention
// matches the engine tests: provider registered at slot 900, market
// captured at 990, assessment window 1000 to 1100.

var (
	testAdmin    = bytes.Repeat([]byte{0xAD}, 20)
	testProvider = bytes.Repeat([]byte{0xA7}, 20)
)

func testSignalID() [32]byte {
	var id [32]byte
	id[0], id[1] = 0x51, 0x6E
	return id
}

func measurement(b byte) [32]byte {
	var m [32]byte
	m[0] = b
	return m
}

// resetExtension installs a fresh singleton so tests never observe each
// other's attester or cached report.
func resetExtension() *signalExtension {
	getExtension()
	ext := &signalExtension{logger: log.DiscardLogger, cfg: DefaultConfig()}
	SetExtension(ext)
	return ext
}

func engineCtx(signer []byte, height int64) *common.EngineContext {
	return &common.EngineContext{
		TxContext: &common.TxContext{
			Ctx:          context.Background(),
			BlockContext: &common.BlockContext{Height: height, Timestamp: height},
			Signer:       signer,
			Caller:       "test",
			TxID:         "test-tx",
		},
	}
}

// configScript wires the policy row as GetConfig scans it: bounds
// 10/1000, two sources, confidence floor 5000, receipt age 200.
func configScript(db *utils.TableDB, paused bool) *utils.TableDB {
	db.On("SELECT 1 FROM main.signal_config", utils.Rows([]any{int64(1)}))
	db.On("SELECT admin", utils.Rows([]any{
		testAdmin, int64(10), int64(1000), int64(2), int64(5000), int64(200),
		paused, int64(records.SpecVersion), int64(3), int64(1),
	}))
	return db
}

// registeredDB scripts an initialized config plus a registered active
// provider holding the given allowlist.
func registeredDB(enclaves ...[32]byte) *utils.TableDB {
	db := configScript(utils.NewTableDB(), false)
	db.On("SELECT 1 FROM main.signal_providers", utils.Rows([]any{int64(1)}))
	db.On("SELECT name", utils.Rows([]any{"alpha", true, int64(3), int64(900), int64(900)}))
	rows := make([][]any, len(enclaves))
	for i, m := range enclaves {
		rows[i] = []any{append([]byte(nil), m[:]...)}
	}
	db.On("SELECT measurement", utils.Rows(rows...))
	return db
}

type testEnclave struct {
	priv        kcrypto.PrivateKey
	pub         kcrypto.PublicKey
	Measurement [32]byte
}

func newTestEnclave(t *testing.T) *testEnclave {
	t.Helper()
	priv, pub, err := kcrypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	e := &testEnclave{priv: priv, pub: pub}
	copy(e.Measurement[:], pub.Bytes())
	return e
}

func (e *testEnclave) receiptFor(t *testing.T, signalID [32]byte, submitter []byte, ts int64) []byte {
	t.Helper()
	hash := attest.ComputeBindingHash(signalID, submitter)
	sig, err := e.priv.Sign(hash[:])
	require.NoError(t, err)

	r := &records.TeeReceipt{
		MrEnclave:            e.Measurement,
		AttestationTimestamp: ts,
		Platform:             records.PlatformAmdSevSnp,
		Svn:                  1,
	}
	copy(r.EnclaveSignature[:], sig)
	copy(r.EnclavePubkey[:], e.pub.Bytes())
	report := attest.BuildReportData(hash)
	copy(r.ReportData[:], report[:])
	return r.Encode()
}

func testMarket() *records.MarketContext {
	m := &records.MarketContext{
		Timestamp:         990,
		CapturedAtSlot:    990,
		PriceUSD:          65_000 * records.PriceScale,
		Volume24hUSD:      1_500_000 * records.PriceScale,
		MarketCapUSD:      1_200_000_000 * records.PriceScale,
		PriceChange24hBps: -250,
		SpreadBps:         12,
		Depth2PctUSD:      400_000 * records.PriceScale,
		SourceCount:       3,
		SourceBitmap:      0b111,
	}
	copy(m.AssetSymbol[:], "BTC")
	return m
}

func testAssessment() *records.SignalAssessment {
	return &records.SignalAssessment{
		Direction:        records.DirectionLong,
		StrengthBps:      7200,
		ConfidenceBps:    8000,
		TimeHorizonSlots: 120,
		ValidUntilSlot:   1100,
		GeneratedAtSlot:  1000,
		RiskScoreBps:     2100,
		SuggestedSizeBps: 400,
		ModelVersion:     3,
	}
}

func TestCallContext(t *testing.T) {
	t.Run("extracts signer and block", func(t *testing.T) {
		caller, block, err := callContext(engineCtx(testProvider, 1234))
		require.NoError(t, err)
		require.Equal(t, testProvider, caller)
		require.Equal(t, uint64(1234), block.Slot)
		require.Equal(t, int64(1234), block.Timestamp)
	})

	t.Run("rejects missing context", func(t *testing.T) {
		_, _, err := callContext(nil)
		require.Error(t, err)
		_, _, err = callContext(&common.EngineContext{})
		require.Error(t, err)
	})

	t.Run("rejects empty signer", func(t *testing.T) {
		_, _, err := callContext(engineCtx(nil, 10))
		require.Error(t, err)
	})
}

func TestHandleInitializeConfig(t *testing.T) {
	resetExtension()

	t.Run("writes config with caller as admin", func(t *testing.T) {
		db := utils.NewTableDB()
		inputs := []any{int64(10), int64(1000), int64(2), int64(5000), int64(200)}
		err := handleInitializeConfig(engineCtx(testAdmin, 100), &common.App{DB: db}, inputs, nil)
		require.NoError(t, err)

		inserts := db.StmtsContaining("INSERT INTO main.signal_config")
		require.Len(t, inserts, 1)
		require.Equal(t, testAdmin, inserts[0].Args[0])
	})

	t.Run("rejects out of range source count", func(t *testing.T) {
		db := utils.NewTableDB()
		inputs := []any{int64(10), int64(1000), int64(300), int64(5000), int64(200)}
		err := handleInitializeConfig(engineCtx(testAdmin, 100), &common.App{DB: db}, inputs, nil)
		require.ErrorIs(t, err, signalerr.ErrInvalidConfigParameter)
		require.Empty(t, db.Calls)
	})

	t.Run("rejects negative bound", func(t *testing.T) {
		db := utils.NewTableDB()
		inputs := []any{int64(-1), int64(1000), int64(2), int64(5000), int64(200)}
		err := handleInitializeConfig(engineCtx(testAdmin, 100), &common.App{DB: db}, inputs, nil)
		require.ErrorIs(t, err, signalerr.ErrInvalidConfigParameter)
		require.Empty(t, db.Calls)
	})

	t.Run("rejects non integer argument", func(t *testing.T) {
		db := utils.NewTableDB()
		inputs := []any{"ten", int64(1000), int64(2), int64(5000), int64(200)}
		err := handleInitializeConfig(engineCtx(testAdmin, 100), &common.App{DB: db}, inputs, nil)
		require.ErrorContains(t, err, "min_validity_slots")
		require.Empty(t, db.Calls)
	})
}

func TestHandleUpdateConfig(t *testing.T) {
	resetExtension()

	t.Run("null arguments keep stored values", func(t *testing.T) {
		db := configScript(utils.NewTableDB(), false)
		inputs := []any{nil, nil, nil, int64(7500), nil}
		err := handleUpdateConfig(engineCtx(testAdmin, 100), &common.App{DB: db}, inputs, nil)
		require.NoError(t, err)

		updates := db.StmtsContaining("SET min_validity_slots")
		require.Len(t, updates, 1)
		require.Equal(t, int64(10), updates[0].Args[0])
		require.Equal(t, int64(1000), updates[0].Args[1])
		require.Equal(t, int64(7500), updates[0].Args[3])
	})

	t.Run("non admin caller is refused", func(t *testing.T) {
		db := configScript(utils.NewTableDB(), false)
		inputs := []any{nil, nil, nil, int64(7500), nil}
		err := handleUpdateConfig(engineCtx(testProvider, 100), &common.App{DB: db}, inputs, nil)
		require.ErrorIs(t, err, signalerr.ErrUnauthorized)
		require.Empty(t, db.StmtsContaining("SET min_validity_slots"))
	})
}

func TestHandleSetPaused(t *testing.T) {
	resetExtension()
	db := configScript(utils.NewTableDB(), false)
	err := handleSetPaused(engineCtx(testAdmin, 100), &common.App{DB: db}, []any{true}, nil)
	require.NoError(t, err)

	writes := db.StmtsContaining("SET is_paused")
	require.Len(t, writes, 1)
	require.Equal(t, true, writes[0].Args[0])
}

func TestHandleRegisterProvider(t *testing.T) {
	resetExtension()

	t.Run("null enclave registers bare", func(t *testing.T) {
		db := configScript(utils.NewTableDB(), false)
		err := handleRegisterProvider(engineCtx(testProvider, 900), &common.App{DB: db}, []any{"alpha", nil}, nil)
		require.NoError(t, err)

		inserts := db.StmtsContaining("INSERT INTO main.signal_providers")
		require.Len(t, inserts, 1)
		require.Equal(t, "alpha", inserts[0].Args[1])
		require.Empty(t, db.StmtsContaining("INSERT INTO main.provider_enclaves"))
	})

	t.Run("seeds the initial enclave", func(t *testing.T) {
		m := measurement(9)
		db := configScript(utils.NewTableDB(), false)
		err := handleRegisterProvider(engineCtx(testProvider, 900), &common.App{DB: db}, []any{"alpha", m[:]}, nil)
		require.NoError(t, err)

		seeds := db.StmtsContaining("INSERT INTO main.provider_enclaves")
		require.Len(t, seeds, 1)
		require.Equal(t, m[:], seeds[0].Args[2])
	})

	t.Run("rejects malformed enclave", func(t *testing.T) {
		db := configScript(utils.NewTableDB(), false)
		err := handleRegisterProvider(engineCtx(testProvider, 900), &common.App{DB: db}, []any{"alpha", []byte{1, 2}}, nil)
		require.ErrorContains(t, err, "initial_enclave")
		require.Empty(t, db.Calls)
	})
}

func TestHandleSubmitSignal(t *testing.T) {
	resetExtension()
	enclave := newTestEnclave(t)
	id := testSignalID()

	t.Run("admits a valid submission", func(t *testing.T) {
		db := registeredDB(enclave.Measurement)
		inputs := []any{
			id[:], testMarket().Encode(), testAssessment().Encode(),
			enclave.receiptFor(t, id, testProvider, 1000),
		}
		err := handleSubmitSignal(engineCtx(testProvider, 1000), &common.App{DB: db}, inputs, nil)
		require.NoError(t, err)
		require.Len(t, db.StmtsContaining("INSERT INTO main.signals"), 1)
	})

	t.Run("typed rejections pass through", func(t *testing.T) {
		db := registeredDB(enclave.Measurement)
		weak := testAssessment()
		weak.ConfidenceBps = 1000
		inputs := []any{
			id[:], testMarket().Encode(), weak.Encode(),
			enclave.receiptFor(t, id, testProvider, 1000),
		}
		err := handleSubmitSignal(engineCtx(testProvider, 1000), &common.App{DB: db}, inputs, nil)
		require.ErrorIs(t, err, signalerr.ErrConfidenceBelowMinimum)
		require.Empty(t, db.StmtsContaining("INSERT INTO main.signals"))
	})

	t.Run("rejects a short signal id before touching state", func(t *testing.T) {
		db := registeredDB(enclave.Measurement)
		inputs := []any{
			[]byte{0x51}, testMarket().Encode(), testAssessment().Encode(),
			enclave.receiptFor(t, id, testProvider, 1000),
		}
		err := handleSubmitSignal(engineCtx(testProvider, 1000), &common.App{DB: db}, inputs, nil)
		require.ErrorContains(t, err, "signal_id")
		require.Empty(t, db.Calls)
	})

	t.Run("requires a caller identity", func(t *testing.T) {
		db := registeredDB(enclave.Measurement)
		inputs := []any{
			id[:], testMarket().Encode(), testAssessment().Encode(),
			enclave.receiptFor(t, id, testProvider, 1000),
		}
		err := handleSubmitSignal(engineCtx(nil, 1000), &common.App{DB: db}, inputs, nil)
		require.ErrorContains(t, err, "caller")
		require.Empty(t, db.Calls)
	})
}

func TestHandleRevokeSignal(t *testing.T) {
	resetExtension()
	enclave := newTestEnclave(t)
	id := testSignalID()

	db := registeredDB(enclave.Measurement)
	db.On("SELECT spec_version", utils.Rows([]any{
		int64(records.SpecVersion), int64(records.StatusActive),
		testMarket().Encode(), testAssessment().Encode(),
		enclave.receiptFor(t, id, testProvider, 1000),
		int64(1000), int64(1000), int64(0),
	}))

	err := handleRevokeSignal(engineCtx(testProvider, 1050), &common.App{DB: db}, []any{id[:]}, nil)
	require.NoError(t, err)

	writes := db.StmtsContaining("SET status")
	require.Len(t, writes, 1)
}

func TestHandleGetSignal(t *testing.T) {
	resetExtension()
	enclave := newTestEnclave(t)
	id := testSignalID()

	db := utils.NewTableDB()
	db.On("SELECT spec_version", utils.Rows([]any{
		int64(records.SpecVersion), int64(records.StatusActive),
		testMarket().Encode(), testAssessment().Encode(),
		enclave.receiptFor(t, id, testProvider, 1000),
		int64(1000), int64(1000), int64(2),
	}))

	var row []any
	collect := func(r []any) error {
		row = r
		return nil
	}

	t.Run("returns the record fields", func(t *testing.T) {
		err := handleGetSignal(engineCtx(testProvider, 1050), &common.App{DB: db}, []any{testProvider, id[:]}, collect)
		require.NoError(t, err)
		require.Len(t, row, 17)
		require.Equal(t, int64(records.SpecVersion), row[0])
		require.Equal(t, "active", row[1])
		require.Equal(t, "long", row[2])
		require.Equal(t, int64(1100), row[7])
		require.Equal(t, "BTC", row[8])
		require.Equal(t, enclave.Measurement[:], row[12])
		require.Equal(t, "amd-sev-snp", row[13])
		require.Equal(t, int64(2), row[16])
	})

	t.Run("derives expiry from the read slot", func(t *testing.T) {
		err := handleGetSignal(engineCtx(testProvider, 1101), &common.App{DB: db}, []any{testProvider, id[:]}, collect)
		require.NoError(t, err)
		require.Equal(t, "expired", row[1])
	})

	t.Run("missing record maps to the typed error", func(t *testing.T) {
		err := handleGetSignal(engineCtx(testProvider, 1050), &common.App{DB: utils.NewTableDB()}, []any{testProvider, id[:]}, collect)
		require.ErrorIs(t, err, signalerr.ErrSignalNotFound)
	})
}

func TestHandleGetProvider(t *testing.T) {
	resetExtension()

	t.Run("one row per enclave", func(t *testing.T) {
		m1, m2 := measurement(1), measurement(2)
		db := registeredDB(m1, m2)

		var rows [][]any
		err := handleGetProvider(engineCtx(testProvider, 1000), &common.App{DB: db}, []any{testProvider}, func(r []any) error {
			rows = append(rows, r)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, "alpha", rows[0][0])
		require.Equal(t, true, rows[0][1])
		require.Equal(t, int64(0), rows[0][5])
		require.Equal(t, m1[:], rows[0][6])
		require.Equal(t, int64(1), rows[1][5])
		require.Equal(t, m2[:], rows[1][6])
	})

	t.Run("empty allowlist yields one null enclave row", func(t *testing.T) {
		db := registeredDB()

		var rows [][]any
		err := handleGetProvider(engineCtx(testProvider, 1000), &common.App{DB: db}, []any{testProvider}, func(r []any) error {
			rows = append(rows, r)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Nil(t, rows[0][5])
		require.Nil(t, rows[0][6])
	})

	t.Run("unknown provider maps to the typed error", func(t *testing.T) {
		err := handleGetProvider(engineCtx(testProvider, 1000), &common.App{DB: utils.NewTableDB()}, []any{testProvider}, func([]any) error {
			return nil
		})
		require.ErrorIs(t, err, signalerr.ErrProviderNotRegistered)
	})
}

func TestHandleGetConfig(t *testing.T) {
	resetExtension()
	db := configScript(utils.NewTableDB(), true)

	var row []any
	err := handleGetConfig(engineCtx(testAdmin, 1000), &common.App{DB: db}, nil, func(r []any) error {
		row = r
		return nil
	})
	require.NoError(t, err)
	require.Len(t, row, 10)
	require.Equal(t, testAdmin, row[0])
	require.Equal(t, int64(10), row[1])
	require.Equal(t, int64(5000), row[4])
	require.Equal(t, true, row[6])
	require.Equal(t, int64(records.SpecVersion), row[7])
}

type fakeAttester struct {
	platform  records.TeePlatform
	available bool
	report    *attest.PlatformReport
	err       error
}

func (f *fakeAttester) Platform() records.TeePlatform { return f.platform }
func (f *fakeAttester) Available() bool               { return f.available }

func (f *fakeAttester) Report(context.Context, [64]byte) (*attest.PlatformReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeAttester) Measurement(context.Context) ([32]byte, error) {
	if f.report == nil {
		return [32]byte{}, attest.ErrAttesterUnavailable
	}
	return f.report.Measurement, nil
}

func TestHandleNodeAttestation(t *testing.T) {
	t.Run("no attester wired", func(t *testing.T) {
		resetExtension()

		var row []any
		err := handleNodeAttestation(engineCtx(testProvider, 1), &common.App{}, nil, func(r []any) error {
			row = r
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []any{"unknown", false, nil, nil}, row)
	})

	t.Run("reports the cached probe", func(t *testing.T) {
		ext := resetExtension()
		rep := &attest.PlatformReport{Platform: records.PlatformAmdSevSnp, TcbVersion: 7}
		rep.Measurement[0] = 0xEE
		ext.setAttester(&fakeAttester{platform: records.PlatformAmdSevSnp, available: true, report: rep})
		ext.recordReport(rep)

		var row []any
		err := handleNodeAttestation(engineCtx(testProvider, 1), &common.App{}, nil, func(r []any) error {
			row = r
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, "amd-sev-snp", row[0])
		require.Equal(t, true, row[1])
		require.Equal(t, rep.Measurement[:], row[2])
		require.Equal(t, int64(7), row[3])
	})

	t.Run("attester without a report yet", func(t *testing.T) {
		ext := resetExtension()
		ext.setAttester(&fakeAttester{platform: records.PlatformIntelTdx, available: true})

		var row []any
		err := handleNodeAttestation(engineCtx(testProvider, 1), &common.App{}, nil, func(r []any) error {
			row = r
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, "intel-tdx", row[0])
		require.Equal(t, true, row[1])
		require.Nil(t, row[2])
		require.Nil(t, row[3])
	})
}
