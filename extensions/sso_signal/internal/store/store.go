// Package store persists oracle state in the main namespace.
//
// Table Ownership Design
//
// The signal oracle is the exclusive writer of the tables it reads:
//
//   - main.signal_config
//   - main.signal_providers
//   - main.provider_enclaves
//   - main.signals
//
// All writes flow through precompile handlers executing inside the block
// transaction, so every statement here runs against the engine-supplied DB
// handle and commits or rolls back atomically with the enclosing action.
// The tables themselves are created by the seed migrations.
package store

import (
	"context"
	"fmt"

	"github.com/trufnetwork/kwil-db/node/types/sql"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// PolicyConfig mirrors the main.signal_config singleton row (id = 1).
type PolicyConfig struct {
	Admin              []byte
	MinValiditySlots   uint64
	MaxValiditySlots   uint64
	MinSourceCount     uint8
	MinConfidenceBps   uint16
	MaxReceiptAgeSlots uint64
	IsPaused           bool
	ProtocolVersion    uint32
	TotalSignals       uint64
	TotalProviders     uint64
}

// GetConfig loads the policy singleton. A missing row maps to
// ConfigNotInitialized.
func GetConfig(ctx context.Context, db sql.DB) (*PolicyConfig, error) {
	res, err := db.Execute(ctx, `
		SELECT admin, min_validity_slots, max_validity_slots, min_source_count,
		       min_confidence_bps, max_receipt_age_slots, is_paused,
		       protocol_version, total_signals, total_providers
		FROM main.signal_config
		WHERE id = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query signal_config: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil, signalerr.ErrConfigNotInitialized
	}
	row := res.Rows[0]

	cfg := &PolicyConfig{}
	if cfg.Admin, err = colBytes(row[0], "admin"); err != nil {
		return nil, err
	}
	if cfg.MinValiditySlots, err = colUint64(row[1], "min_validity_slots"); err != nil {
		return nil, err
	}
	if cfg.MaxValiditySlots, err = colUint64(row[2], "max_validity_slots"); err != nil {
		return nil, err
	}
	minSources, err := colUint64(row[3], "min_source_count")
	if err != nil {
		return nil, err
	}
	cfg.MinSourceCount = uint8(minSources)
	minConf, err := colUint64(row[4], "min_confidence_bps")
	if err != nil {
		return nil, err
	}
	cfg.MinConfidenceBps = uint16(minConf)
	if cfg.MaxReceiptAgeSlots, err = colUint64(row[5], "max_receipt_age_slots"); err != nil {
		return nil, err
	}
	if cfg.IsPaused, err = colBool(row[6], "is_paused"); err != nil {
		return nil, err
	}
	version, err := colUint64(row[7], "protocol_version")
	if err != nil {
		return nil, err
	}
	cfg.ProtocolVersion = uint32(version)
	if cfg.TotalSignals, err = colUint64(row[8], "total_signals"); err != nil {
		return nil, err
	}
	if cfg.TotalProviders, err = colUint64(row[9], "total_providers"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigExists reports whether the policy singleton has been written.
func ConfigExists(ctx context.Context, db sql.DB) (bool, error) {
	res, err := db.Execute(ctx, `SELECT 1 FROM main.signal_config WHERE id = 1`)
	if err != nil {
		return false, fmt.Errorf("query signal_config: %w", err)
	}
	return len(res.Rows) > 0, nil
}

// InsertConfig writes the policy singleton. Callers check AlreadyInitialized
// before calling.
func InsertConfig(ctx context.Context, db sql.DB, cfg *PolicyConfig) error {
	_, err := db.Execute(ctx, `
		INSERT INTO main.signal_config
			(id, admin, min_validity_slots, max_validity_slots, min_source_count,
			 min_confidence_bps, max_receipt_age_slots, is_paused,
			 protocol_version, total_signals, total_providers)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, cfg.Admin, int64(cfg.MinValiditySlots), int64(cfg.MaxValiditySlots),
		int64(cfg.MinSourceCount), int64(cfg.MinConfidenceBps),
		int64(cfg.MaxReceiptAgeSlots), cfg.IsPaused,
		int64(cfg.ProtocolVersion), int64(cfg.TotalSignals), int64(cfg.TotalProviders))
	if err != nil {
		return fmt.Errorf("insert signal_config: %w", err)
	}
	return nil
}

// UpdateConfigParams replaces the tunable policy parameters, leaving admin,
// pause state and counters untouched.
func UpdateConfigParams(ctx context.Context, db sql.DB, minValidity, maxValidity uint64, minSources uint8, minConfidence uint16, maxReceiptAge uint64) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signal_config
		SET min_validity_slots = $1, max_validity_slots = $2,
		    min_source_count = $3, min_confidence_bps = $4,
		    max_receipt_age_slots = $5
		WHERE id = 1
	`, int64(minValidity), int64(maxValidity), int64(minSources),
		int64(minConfidence), int64(maxReceiptAge))
	if err != nil {
		return fmt.Errorf("update signal_config: %w", err)
	}
	return nil
}

// SetPaused flips the protocol pause flag.
func SetPaused(ctx context.Context, db sql.DB, paused bool) error {
	_, err := db.Execute(ctx, `UPDATE main.signal_config SET is_paused = $1 WHERE id = 1`, paused)
	if err != nil {
		return fmt.Errorf("update pause flag: %w", err)
	}
	return nil
}

// IncrementTotalSignals bumps the global signal counter.
func IncrementTotalSignals(ctx context.Context, db sql.DB) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signal_config SET total_signals = total_signals + 1 WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("increment total_signals: %w", err)
	}
	return nil
}

// IncrementTotalProviders bumps the global provider counter.
func IncrementTotalProviders(ctx context.Context, db sql.DB) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signal_config SET total_providers = total_providers + 1 WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("increment total_providers: %w", err)
	}
	return nil
}
