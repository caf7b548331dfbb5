package benchmark

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	mathrand "math/rand"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	kcrypto "github.com/trufnetwork/kwil-db/core/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/tests/utils"
)

// Corpus clock. Providers register at slot 900, market data is captured at
// slot 990, and every measured operation executes at slot 1000 against an
// assessment window of 1000 to 1100.
const (
	registeredAtSlot = 900
	capturedAtSlot   = 990
	submitSlot       = 1000
	validUntilSlot   = 1100
)

// Policy under which the whole corpus admits.
const (
	policyMinValiditySlots   = 10
	policyMaxValiditySlots   = 1000
	policyMinSourceCount     = 2
	policyMinConfidenceBps   = 5000
	policyMaxReceiptAgeSlots = 200
)

// mintBatchSize is the number of providers one minting goroutine handles.
const mintBatchSize = 32

var (
	benchAdmin   = bytes.Repeat([]byte{0xB0}, 20)
	benchSymbols = []string{"BTC", "ETH", "SOL", "AVAX"}
)

// providerFixture is one synthetic provider: identity, allowlist and an
// admissible submission. The receipt is signed by the last allowlisted
// enclave so wider allowlists pay the full scan.
type providerFixture struct {
	address    []byte
	name       string
	allowlist  [][32]byte
	signalID   [32]byte
	market     []byte
	assessment []byte
	receipt    []byte
}

// buildCorpus mints the provider fixtures for one case. Key generation and
// receipt signing dominate setup cost, so providers are minted in parallel
// batches. Addresses and payloads derive from a per-index seed, which keeps
// the corpus identical across runs regardless of goroutine interleaving.
func buildCorpus(ctx context.Context, c BenchmarkCase) ([]*providerFixture, error) {
	if c.Providers < 1 {
		return nil, errors.New("corpus needs at least one provider")
	}
	if c.EnclavesPerProvider < 1 || c.EnclavesPerProvider > records.MaxEnclavesPerProvider {
		return nil, errors.Errorf("enclaves per provider must be 1..%d, got %d",
			records.MaxEnclavesPerProvider, c.EnclavesPerProvider)
	}

	fixtures := make([]*providerFixture, c.Providers)
	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range lo.Chunk(lo.Range(c.Providers), mintBatchSize) {
		batch := batch
		g.Go(func() error {
			for _, i := range batch {
				if err := gctx.Err(); err != nil {
					return err
				}
				f, err := mintProvider(i, c.EnclavesPerProvider)
				if err != nil {
					return errors.Wrapf(err, "mint provider %d", i)
				}
				fixtures[i] = f
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fixtures, nil
}

func mintProvider(idx, enclaveCount int) (*providerFixture, error) {
	rng := mathrand.New(mathrand.NewSource(int64(idx) + 1))

	address := make([]byte, 20)
	_, _ = rng.Read(address)

	f := &providerFixture{
		address:  address,
		name:     fmt.Sprintf("bench-provider-%03d", idx),
		signalID: sha256.Sum256(append([]byte("bench-signal:"), address...)),
	}

	var lastKey kcrypto.PrivateKey
	for e := 0; e < enclaveCount; e++ {
		priv, pub, err := kcrypto.GenerateEd25519Key(nil)
		if err != nil {
			return nil, errors.Wrap(err, "generate enclave key")
		}
		var m [32]byte
		copy(m[:], pub.Bytes())
		f.allowlist = append(f.allowlist, m)
		lastKey = priv
	}

	f.market = benchMarket(rng, idx).Encode()
	f.assessment = benchAssessment(rng).Encode()

	receipt, err := mintReceipt(lastKey, f.allowlist[len(f.allowlist)-1], f.signalID, address)
	if err != nil {
		return nil, err
	}
	f.receipt = receipt
	return f, nil
}

func benchMarket(rng *mathrand.Rand, idx int) *records.MarketContext {
	jitter, _ := apd.New(rng.Int63n(500), 0).Float64()
	m := &records.MarketContext{
		Timestamp:         capturedAtSlot,
		CapturedAtSlot:    capturedAtSlot,
		PriceUSD:          uint64(65_000+jitter) * records.PriceScale,
		Volume24hUSD:      1_500_000 * records.PriceScale,
		MarketCapUSD:      1_200_000_000 * records.PriceScale,
		PriceChange24hBps: int32(rng.Intn(1000) - 500),
		SpreadBps:         12,
		Depth2PctUSD:      400_000 * records.PriceScale,
		SourceCount:       3,
		SourceBitmap:      0b111,
	}
	copy(m.AssetSymbol[:], benchSymbols[idx%len(benchSymbols)])
	return m
}

func benchAssessment(rng *mathrand.Rand) *records.SignalAssessment {
	return &records.SignalAssessment{
		Direction:        records.DirectionLong,
		StrengthBps:      uint16(5000 + rng.Intn(4000)),
		ConfidenceBps:    uint16(policyMinConfidenceBps + rng.Intn(3000)),
		TimeHorizonSlots: 120,
		ValidUntilSlot:   validUntilSlot,
		GeneratedAtSlot:  submitSlot,
		RiskScoreBps:     2100,
		SuggestedSizeBps: 400,
		ModelVersion:     3,
	}
}

// mintReceipt signs the binding hash the way a real enclave would and lays
// it into the receipt's report data.
func mintReceipt(key kcrypto.PrivateKey, measurement [32]byte, signalID [32]byte, submitter []byte) ([]byte, error) {
	hash := attest.ComputeBindingHash(signalID, submitter)
	sig, err := key.Sign(hash[:])
	if err != nil {
		return nil, errors.Wrap(err, "sign binding hash")
	}

	r := &records.TeeReceipt{
		MrEnclave:            measurement,
		AttestationTimestamp: submitSlot,
		Platform:             records.PlatformAmdSevSnp,
		Svn:                  1,
	}
	copy(r.EnclaveSignature[:], sig)
	copy(r.EnclavePubkey[:], key.Public().Bytes())
	report := attest.BuildReportData(hash)
	copy(r.ReportData[:], report[:])
	return r.Encode(), nil
}

func (f *providerFixture) configRow() []any {
	return []any{
		append([]byte(nil), benchAdmin...),
		int64(policyMinValiditySlots), int64(policyMaxValiditySlots),
		int64(policyMinSourceCount), int64(policyMinConfidenceBps),
		int64(policyMaxReceiptAgeSlots),
		false, int64(records.SpecVersion), int64(0), int64(0),
	}
}

func (f *providerFixture) providerRow() []any {
	return []any{f.name, true, int64(0), int64(registeredAtSlot), int64(registeredAtSlot)}
}

// admissionDB scripts policy, provider and allowlist rows with no stored
// signal, so submissions run the full admission gate sequence.
func (f *providerFixture) admissionDB() *utils.TableDB {
	db := utils.NewTableDB()
	db.On("SELECT 1 FROM main.signal_config", utils.Rows([]any{int64(1)}))
	db.On("SELECT admin", utils.Rows(f.configRow()))
	db.On("SELECT 1 FROM main.signal_providers", utils.Rows([]any{int64(1)}))
	db.On("SELECT name", utils.Rows(f.providerRow()))
	enclaves := make([][]any, len(f.allowlist))
	for i, m := range f.allowlist {
		enclaves[i] = []any{append([]byte(nil), m[:]...)}
	}
	db.On("SELECT measurement", utils.Rows(enclaves...))
	return db
}

// lifecycleDB adds a stored record in the given status, created at the
// submit slot, for the update, revoke and read paths.
func (f *providerFixture) lifecycleDB(status records.SignalStatus) *utils.TableDB {
	db := f.admissionDB()
	db.On("SELECT 1 FROM main.signals", utils.Rows([]any{int64(1)}))
	db.On("SELECT spec_version", utils.Rows([]any{
		int64(records.SpecVersion), int64(status),
		f.market, f.assessment, f.receipt,
		int64(submitSlot), int64(submitSlot), int64(0),
	}))
	return db
}

func (f *providerFixture) verifyParams() attest.VerifyParams {
	return attest.VerifyParams{
		SignalID:        f.signalID,
		Submitter:       f.address,
		AllowedEnclaves: f.allowlist,
		BlockTimestamp:  submitSlot,
		MaxAgeSlots:     policyMaxReceiptAgeSlots,
	}
}
