package store

import (
	"context"
	"fmt"

	"github.com/trufnetwork/kwil-db/node/types/sql"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// ProviderRow mirrors main.signal_providers plus the provider's enclave
// allowlist in insertion order.
type ProviderRow struct {
	Authority        []byte
	Name             string
	IsActive         bool
	SignalCount      uint64
	RegisteredAtSlot uint64
	LastActiveSlot   uint64
	Enclaves         [][32]byte
}

// GetProvider loads a registry entry and its allowlist. A missing row maps
// to ProviderNotRegistered.
func GetProvider(ctx context.Context, db sql.DB, authority []byte) (*ProviderRow, error) {
	res, err := db.Execute(ctx, `
		SELECT name, is_active, signal_count, registered_at_slot, last_active_slot
		FROM main.signal_providers
		WHERE authority = $1
	`, authority)
	if err != nil {
		return nil, fmt.Errorf("query signal_providers: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil, signalerr.ErrProviderNotRegistered
	}
	row := res.Rows[0]

	p := &ProviderRow{Authority: authority}
	if p.Name, err = colText(row[0], "name"); err != nil {
		return nil, err
	}
	if p.IsActive, err = colBool(row[1], "is_active"); err != nil {
		return nil, err
	}
	if p.SignalCount, err = colUint64(row[2], "signal_count"); err != nil {
		return nil, err
	}
	if p.RegisteredAtSlot, err = colUint64(row[3], "registered_at_slot"); err != nil {
		return nil, err
	}
	if p.LastActiveSlot, err = colUint64(row[4], "last_active_slot"); err != nil {
		return nil, err
	}

	if p.Enclaves, err = loadEnclaves(ctx, db, authority); err != nil {
		return nil, err
	}
	return p, nil
}

func loadEnclaves(ctx context.Context, db sql.DB, authority []byte) ([][32]byte, error) {
	res, err := db.Execute(ctx, `
		SELECT measurement
		FROM main.provider_enclaves
		WHERE authority = $1
		ORDER BY position
	`, authority)
	if err != nil {
		return nil, fmt.Errorf("query provider_enclaves: %w", err)
	}

	enclaves := make([][32]byte, 0, len(res.Rows))
	for _, row := range res.Rows {
		raw, err := colBytes(row[0], "measurement")
		if err != nil {
			return nil, err
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("%w: enclave measurement is %d bytes", signalerr.ErrCorruptedRecordData, len(raw))
		}
		var m [32]byte
		copy(m[:], raw)
		enclaves = append(enclaves, m)
	}
	return enclaves, nil
}

// ProviderExists reports whether an authority already has a registry entry.
func ProviderExists(ctx context.Context, db sql.DB, authority []byte) (bool, error) {
	res, err := db.Execute(ctx, `
		SELECT 1 FROM main.signal_providers WHERE authority = $1
	`, authority)
	if err != nil {
		return false, fmt.Errorf("query signal_providers: %w", err)
	}
	return len(res.Rows) > 0, nil
}

// InsertProvider writes a new registry entry and its initial allowlist.
func InsertProvider(ctx context.Context, db sql.DB, p *ProviderRow) error {
	_, err := db.Execute(ctx, `
		INSERT INTO main.signal_providers
			(authority, name, is_active, signal_count, registered_at_slot, last_active_slot)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.Authority, p.Name, p.IsActive, int64(p.SignalCount),
		int64(p.RegisteredAtSlot), int64(p.LastActiveSlot))
	if err != nil {
		return fmt.Errorf("insert signal_providers: %w", err)
	}

	for i, m := range p.Enclaves {
		if err := insertEnclave(ctx, db, p.Authority, m, i); err != nil {
			return err
		}
	}
	return nil
}

func insertEnclave(ctx context.Context, db sql.DB, authority []byte, measurement [32]byte, position int) error {
	_, err := db.Execute(ctx, `
		INSERT INTO main.provider_enclaves (authority, position, measurement)
		VALUES ($1, $2, $3)
	`, authority, int64(position), measurement[:])
	if err != nil {
		return fmt.Errorf("insert provider_enclaves: %w", err)
	}
	return nil
}

// AppendEnclave adds a measurement at the end of the allowlist.
func AppendEnclave(ctx context.Context, db sql.DB, authority []byte, measurement [32]byte, position int) error {
	return insertEnclave(ctx, db, authority, measurement, position)
}

// RemoveEnclave deletes a measurement and shifts later entries down one
// position, so the allowlist keeps its insertion order with no gaps.
func RemoveEnclave(ctx context.Context, db sql.DB, authority []byte, measurement [32]byte) error {
	res, err := db.Execute(ctx, `
		SELECT position FROM main.provider_enclaves
		WHERE authority = $1 AND measurement = $2
	`, authority, measurement[:])
	if err != nil {
		return fmt.Errorf("query provider_enclaves: %w", err)
	}
	if len(res.Rows) == 0 {
		return signalerr.ErrEnclaveNotFound
	}
	position, err := colUint64(res.Rows[0][0], "position")
	if err != nil {
		return err
	}

	if _, err = db.Execute(ctx, `
		DELETE FROM main.provider_enclaves
		WHERE authority = $1 AND position = $2
	`, authority, int64(position)); err != nil {
		return fmt.Errorf("delete provider_enclaves: %w", err)
	}

	if _, err = db.Execute(ctx, `
		UPDATE main.provider_enclaves
		SET position = position - 1
		WHERE authority = $1 AND position > $2
	`, authority, int64(position)); err != nil {
		return fmt.Errorf("shift provider_enclaves: %w", err)
	}
	return nil
}

// SetProviderActive flips the registry active flag.
func SetProviderActive(ctx context.Context, db sql.DB, authority []byte, active bool) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signal_providers SET is_active = $2 WHERE authority = $1
	`, authority, active)
	if err != nil {
		return fmt.Errorf("update signal_providers: %w", err)
	}
	return nil
}

// RecordSubmission bumps the provider's signal counter and activity slot
// after an admitted submission.
func RecordSubmission(ctx context.Context, db sql.DB, authority []byte, slot uint64) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signal_providers
		SET signal_count = signal_count + 1, last_active_slot = $2
		WHERE authority = $1
	`, authority, int64(slot))
	if err != nil {
		return fmt.Errorf("update provider activity: %w", err)
	}
	return nil
}

// TouchActivity refreshes last_active_slot without counting a new signal.
func TouchActivity(ctx context.Context, db sql.DB, authority []byte, slot uint64) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signal_providers SET last_active_slot = $2 WHERE authority = $1
	`, authority, int64(slot))
	if err != nil {
		return fmt.Errorf("update provider activity: %w", err)
	}
	return nil
}
