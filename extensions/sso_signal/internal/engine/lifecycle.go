package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/trufnetwork/kwil-db/node/types/sql"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/attest"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/store"
)

// admitPayloads runs the payload-level gates shared by submit and update:
// market validity and freshness, the source floor, assessment validity,
// the confidence floor, the committed width bounds, and liveness at the
// current slot. The attestation binding is not part of this set; it runs
// separately, last.
func admitPayloads(cfg *store.PolicyConfig, p *payloadSet, block BlockInfo) error {
	if err := p.Market.Validate(); err != nil {
		return err
	}
	if !p.Market.FreshAt(block.Slot) {
		return fmt.Errorf("%w: captured at slot %d, current slot %d",
			signalerr.ErrStaleMarketData, p.Market.CapturedAtSlot, block.Slot)
	}
	if p.Market.SourceCount < cfg.MinSourceCount {
		return fmt.Errorf("%w: got %d, need %d",
			signalerr.ErrInsufficientSources, p.Market.SourceCount, cfg.MinSourceCount)
	}

	if err := p.Assessment.Validate(); err != nil {
		return err
	}
	if p.Assessment.ConfidenceBps < cfg.MinConfidenceBps {
		return fmt.Errorf("%w: got %d bps, need %d bps",
			signalerr.ErrConfidenceBelowMinimum, p.Assessment.ConfidenceBps, cfg.MinConfidenceBps)
	}

	// The width rule measures the window the enclave committed to, not the
	// window remaining at admission time.
	width := p.Assessment.ValidityWidth()
	if width < cfg.MinValiditySlots {
		return fmt.Errorf("%w: width %d slots, minimum %d",
			signalerr.ErrValidityPeriodTooShort, width, cfg.MinValiditySlots)
	}
	if width > cfg.MaxValiditySlots {
		return fmt.Errorf("%w: width %d slots, maximum %d",
			signalerr.ErrValidityPeriodTooLong, width, cfg.MaxValiditySlots)
	}

	if p.Assessment.ValidUntilSlot <= block.Slot {
		return fmt.Errorf("%w: valid_until_slot %d, current slot %d",
			signalerr.ErrSignalExpired, p.Assessment.ValidUntilSlot, block.Slot)
	}
	return nil
}

func verifyBinding(p *payloadSet, signalID [32]byte, caller []byte, allowlist [][32]byte, cfg *store.PolicyConfig, block BlockInfo) error {
	return attest.VerifyReceipt(p.Receipt, attest.VerifyParams{
		SignalID:        signalID,
		Submitter:       caller,
		AllowedEnclaves: allowlist,
		BlockTimestamp:  block.Timestamp,
		MaxAgeSlots:     cfg.MaxReceiptAgeSlots,
	})
}

// SubmitSignal admits a new attested signal under (caller, signalID).
// Checks run cheapest-first and the first violation decides the error;
// the attestation binding is verified last, after every policy gate has
// passed. On success the record is stored Active and the provider and
// config counters advance.
func SubmitSignal(ctx context.Context, db sql.DB, block BlockInfo, caller []byte, signalID [32]byte, marketRaw, assessmentRaw, receiptRaw []byte) (*records.SignalRecord, error) {
	cfg, err := store.GetConfig(ctx, db)
	if err != nil {
		return nil, err
	}
	if cfg.IsPaused {
		return nil, signalerr.ErrProtocolPaused
	}

	provider, err := store.GetProvider(ctx, db, caller)
	if err != nil {
		return nil, err
	}
	if !provider.IsActive {
		return nil, signalerr.ErrProviderNotActive
	}

	// One record per (provider, signal_id), forever.
	exists, err := store.SignalExists(ctx, db, caller, signalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, signalerr.ErrSignalAlreadyExists
	}

	p, err := decodePayloads(marketRaw, assessmentRaw, receiptRaw)
	if err != nil {
		return nil, err
	}
	if err := admitPayloads(cfg, p, block); err != nil {
		return nil, err
	}
	if err := verifyBinding(p, signalID, caller, provider.Enclaves, cfg, block); err != nil {
		return nil, err
	}

	rec := &records.SignalRecord{
		Provider:      caller,
		SignalID:      signalID,
		SpecVersion:   records.SpecVersion,
		Status:        records.StatusActive,
		Market:        *p.Market,
		Assessment:    *p.Assessment,
		Receipt:       *p.Receipt,
		CreatedAtSlot: block.Slot,
		UpdatedAtSlot: block.Slot,
		UpdateCount:   0,
	}
	if err := store.InsertSignal(ctx, db, rec); err != nil {
		return nil, err
	}
	if err := store.RecordSubmission(ctx, db, caller, block.Slot); err != nil {
		return nil, err
	}
	if err := store.IncrementTotalSignals(ctx, db); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateSignal replaces the payloads of an existing signal under the same
// admission gates as submission. Record state is checked before policy: a
// missing record, a revoked record, and a lapsed validity window each
// fail before any payload is inspected. Ownership is structural, records
// are keyed by the calling provider.
func UpdateSignal(ctx context.Context, db sql.DB, block BlockInfo, caller []byte, signalID [32]byte, marketRaw, assessmentRaw, receiptRaw []byte) (*records.SignalRecord, error) {
	rec, err := store.GetSignal(ctx, db, caller, signalID)
	if err != nil {
		return nil, err
	}
	if rec.Status == records.StatusRevoked {
		return nil, fmt.Errorf("%w: signal is revoked", signalerr.ErrInvalidUpdate)
	}
	if block.Slot > rec.Assessment.ValidUntilSlot {
		return nil, fmt.Errorf("%w: validity window lapsed at slot %d",
			signalerr.ErrSignalExpired, rec.Assessment.ValidUntilSlot)
	}

	cfg, err := store.GetConfig(ctx, db)
	if err != nil {
		return nil, err
	}
	if cfg.IsPaused {
		return nil, signalerr.ErrProtocolPaused
	}
	provider, err := store.GetProvider(ctx, db, caller)
	if err != nil {
		return nil, err
	}
	if !provider.IsActive {
		return nil, signalerr.ErrProviderNotActive
	}

	p, err := decodePayloads(marketRaw, assessmentRaw, receiptRaw)
	if err != nil {
		return nil, err
	}
	if err := admitPayloads(cfg, p, block); err != nil {
		return nil, err
	}
	if err := verifyBinding(p, signalID, caller, provider.Enclaves, cfg, block); err != nil {
		return nil, err
	}

	rec.Market = *p.Market
	rec.Assessment = *p.Assessment
	rec.Receipt = *p.Receipt
	rec.UpdatedAtSlot = block.Slot
	if rec.UpdateCount < math.MaxUint64 {
		rec.UpdateCount++
	}
	if err := store.UpdateSignalPayloads(ctx, db, rec); err != nil {
		return nil, err
	}
	if err := store.TouchActivity(ctx, db, caller, block.Slot); err != nil {
		return nil, err
	}
	return rec, nil
}

// RevokeSignal retracts one of the caller's signals. The record is kept
// as a tombstone and never returns to Active. A record whose window has
// already lapsed may still be revoked, and revocation works while the
// protocol is paused.
func RevokeSignal(ctx context.Context, db sql.DB, block BlockInfo, caller []byte, signalID [32]byte) error {
	rec, err := store.GetSignal(ctx, db, caller, signalID)
	if err != nil {
		return err
	}
	if rec.Status == records.StatusRevoked {
		return signalerr.ErrAlreadyRevoked
	}
	return store.MarkRevoked(ctx, db, caller, signalID, block.Slot)
}

// SignalView is the read model of one record: stored fields plus the
// status derived at the requested slot.
type SignalView struct {
	Record *records.SignalRecord
	Status records.SignalStatus
}

// GetSignal loads a record and derives its effective status at
// currentSlot. Stored state is never modified on the read path.
func GetSignal(ctx context.Context, db sql.DB, provider []byte, signalID [32]byte, currentSlot uint64) (*SignalView, error) {
	rec, err := store.GetSignal(ctx, db, provider, signalID)
	if err != nil {
		return nil, err
	}
	return &SignalView{Record: rec, Status: rec.DerivedStatus(currentSlot)}, nil
}
