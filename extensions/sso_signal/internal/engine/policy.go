package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/trufnetwork/kwil-db/node/types/sql"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/store"
)

// ConfigParams are the operator-tunable admission thresholds.
type ConfigParams struct {
	MinValiditySlots   uint64
	MaxValiditySlots   uint64
	MinSourceCount     uint8
	MinConfidenceBps   uint16
	MaxReceiptAgeSlots uint64 // 0 disables the receipt staleness check
}

func validateConfigParams(p ConfigParams) error {
	if p.MinValiditySlots == 0 {
		return fmt.Errorf("%w: min_validity_slots must be positive", signalerr.ErrInvalidConfigParameter)
	}
	if p.MaxValiditySlots < p.MinValiditySlots {
		return fmt.Errorf("%w: max_validity_slots %d below min_validity_slots %d",
			signalerr.ErrInvalidConfigParameter, p.MaxValiditySlots, p.MinValiditySlots)
	}
	if p.MinSourceCount == 0 {
		return fmt.Errorf("%w: min_source_count must be positive", signalerr.ErrInvalidConfigParameter)
	}
	if p.MinConfidenceBps > records.BpsScale {
		return fmt.Errorf("%w: min_confidence_bps %d exceeds %d",
			signalerr.ErrInvalidConfigParameter, p.MinConfidenceBps, records.BpsScale)
	}
	return nil
}

// InitializeConfig creates the policy singleton. The first caller becomes
// the protocol admin; any later call fails with AlreadyInitialized.
func InitializeConfig(ctx context.Context, db sql.DB, caller []byte, params ConfigParams) error {
	exists, err := store.ConfigExists(ctx, db)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: config", signalerr.ErrAlreadyInitialized)
	}
	if err := validateConfigParams(params); err != nil {
		return err
	}
	return store.InsertConfig(ctx, db, &store.PolicyConfig{
		Admin:              caller,
		MinValiditySlots:   params.MinValiditySlots,
		MaxValiditySlots:   params.MaxValiditySlots,
		MinSourceCount:     params.MinSourceCount,
		MinConfidenceBps:   params.MinConfidenceBps,
		MaxReceiptAgeSlots: params.MaxReceiptAgeSlots,
		IsPaused:           false,
		ProtocolVersion:    uint32(records.SpecVersion),
	})
}

// ConfigUpdate is a partial policy change. Nil fields keep their stored
// value.
type ConfigUpdate struct {
	MinValiditySlots   *uint64
	MaxValiditySlots   *uint64
	MinSourceCount     *uint8
	MinConfidenceBps   *uint16
	MaxReceiptAgeSlots *uint64
}

// UpdateConfig merges patch into the stored policy and revalidates the
// merged result before writing. Admin only.
func UpdateConfig(ctx context.Context, db sql.DB, caller []byte, patch ConfigUpdate) error {
	cfg, err := store.GetConfig(ctx, db)
	if err != nil {
		return err
	}
	if !bytes.Equal(cfg.Admin, caller) {
		return fmt.Errorf("%w: config update requires admin", signalerr.ErrUnauthorized)
	}

	merged := ConfigParams{
		MinValiditySlots:   cfg.MinValiditySlots,
		MaxValiditySlots:   cfg.MaxValiditySlots,
		MinSourceCount:     cfg.MinSourceCount,
		MinConfidenceBps:   cfg.MinConfidenceBps,
		MaxReceiptAgeSlots: cfg.MaxReceiptAgeSlots,
	}
	if patch.MinValiditySlots != nil {
		merged.MinValiditySlots = *patch.MinValiditySlots
	}
	if patch.MaxValiditySlots != nil {
		merged.MaxValiditySlots = *patch.MaxValiditySlots
	}
	if patch.MinSourceCount != nil {
		merged.MinSourceCount = *patch.MinSourceCount
	}
	if patch.MinConfidenceBps != nil {
		merged.MinConfidenceBps = *patch.MinConfidenceBps
	}
	if patch.MaxReceiptAgeSlots != nil {
		merged.MaxReceiptAgeSlots = *patch.MaxReceiptAgeSlots
	}
	if err := validateConfigParams(merged); err != nil {
		return err
	}
	return store.UpdateConfigParams(ctx, db,
		merged.MinValiditySlots, merged.MaxValiditySlots,
		merged.MinSourceCount, merged.MinConfidenceBps, merged.MaxReceiptAgeSlots)
}

// SetPaused flips the protocol gate. Admin only. Pausing blocks
// registration and signal admission; revocation and reads stay available.
func SetPaused(ctx context.Context, db sql.DB, caller []byte, paused bool) error {
	cfg, err := store.GetConfig(ctx, db)
	if err != nil {
		return err
	}
	if !bytes.Equal(cfg.Admin, caller) {
		return fmt.Errorf("%w: pause control requires admin", signalerr.ErrUnauthorized)
	}
	return store.SetPaused(ctx, db, paused)
}
