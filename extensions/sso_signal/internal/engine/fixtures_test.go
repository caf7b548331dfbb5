package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	kcrypto "github.com/trufnetwork/kwil-db/core/crypto"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/tests/utils"
)

// Shared fixtures for the engine tests. Clock convention: the provider
// registered at slot 900, market data is captured at slot 990, the
// assessment window runs 1000 to 1100, and submissions land at slot 1000.

var (
	testAdmin    = bytes.Repeat([]byte{0xAD}, 20)
	testProvider = bytes.Repeat([]byte{0xA7}, 20)
)

func testSignalID() [32]byte {
	var id [32]byte
	id[0], id[1] = 0x51, 0x6E
	return id
}

func defaultParams() ConfigParams {
	return ConfigParams{
		MinValiditySlots:   10,
		MaxValiditySlots:   1000,
		MinSourceCount:     2,
		MinConfidenceBps:   5000,
		MaxReceiptAgeSlots: 200,
	}
}

// configRow is a stored policy row as GetConfig scans it, matching
// defaultParams.
func configRow(admin []byte, paused bool) []any {
	return []any{
		admin, int64(10), int64(1000), int64(2), int64(5000), int64(200),
		paused, int64(records.SpecVersion), int64(0), int64(0),
	}
}

func providerRow(name string, active bool) []any {
	return []any{name, active, int64(0), int64(900), int64(900)}
}

// dbScript declares which rows exist. Absent fields mean absent rows,
// which the store maps to its not-found sentinels.
type dbScript struct {
	cfg      []any
	provider []any
	enclaves [][32]byte
	stored   []any
}

func scriptDB(s dbScript) *utils.TableDB {
	db := utils.NewTableDB()
	if s.cfg != nil {
		db.On("SELECT 1 FROM main.signal_config", utils.Rows([]any{int64(1)}))
		db.On("SELECT admin", utils.Rows(s.cfg))
	}
	if s.provider != nil {
		db.On("SELECT 1 FROM main.signal_providers", utils.Rows([]any{int64(1)}))
		db.On("SELECT name", utils.Rows(s.provider))
		rows := make([][]any, len(s.enclaves))
		for i, m := range s.enclaves {
			rows[i] = []any{append([]byte(nil), m[:]...)}
		}
		db.On("SELECT measurement", utils.Rows(rows...))
	}
	if s.stored != nil {
		db.On("SELECT 1 FROM main.signals", utils.Rows([]any{int64(1)}))
		db.On("SELECT spec_version", utils.Rows(s.stored))
	}
	return db
}

// testEnclave mints receipts the way a real enclave would: sign the
// binding hash with the enclave key and embed the hash in report_data.
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

// storedRow is a persisted signal as GetSignal scans it: created at slot
// 1000 with the fixture payloads and the given lifecycle state.
func storedRow(t *testing.T, enclave *testEnclave, status records.SignalStatus, validUntil uint64, updateCount uint64) []any {
	t.Helper()
	assessment := testAssessment()
	assessment.ValidUntilSlot = validUntil
	return []any{
		int64(records.SpecVersion), int64(status),
		testMarket().Encode(), assessment.Encode(),
		enclave.receiptFor(t, testSignalID(), testProvider, 1000),
		int64(1000), int64(1000), int64(updateCount),
	}
}
