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

// RegisterProvider creates the registry row for caller, active and with an
// optionally seeded allowlist. Registration is blocked while paused.
func RegisterProvider(ctx context.Context, db sql.DB, block BlockInfo, caller []byte, name string, initialEnclave *[32]byte) error {
	cfg, err := store.GetConfig(ctx, db)
	if err != nil {
		return err
	}
	if cfg.IsPaused {
		return signalerr.ErrProtocolPaused
	}
	if len(name) > records.MaxProviderNameLen {
		return fmt.Errorf("%w: provider name exceeds %d bytes",
			signalerr.ErrInvalidConfigParameter, records.MaxProviderNameLen)
	}

	exists, err := store.ProviderExists(ctx, db, caller)
	if err != nil {
		return err
	}
	if exists {
		return signalerr.ErrAlreadyRegistered
	}

	row := &store.ProviderRow{
		Authority:        caller,
		Name:             name,
		IsActive:         true,
		RegisteredAtSlot: block.Slot,
		LastActiveSlot:   block.Slot,
	}
	if initialEnclave != nil {
		row.Enclaves = [][32]byte{*initialEnclave}
	}
	if err := store.InsertProvider(ctx, db, row); err != nil {
		return err
	}
	return store.IncrementTotalProviders(ctx, db)
}

// AddEnclave appends a measurement to the caller's allowlist. Capacity is
// checked before duplicates, matching the persisted check order.
func AddEnclave(ctx context.Context, db sql.DB, caller []byte, measurement [32]byte) error {
	provider, err := store.GetProvider(ctx, db, caller)
	if err != nil {
		return err
	}
	if len(provider.Enclaves) >= records.MaxEnclavesPerProvider {
		return signalerr.ErrAllowlistFull
	}
	for _, e := range provider.Enclaves {
		if e == measurement {
			return fmt.Errorf("%w: %x", signalerr.ErrEnclaveAlreadyAllowed, measurement)
		}
	}
	return store.AppendEnclave(ctx, db, caller, measurement, len(provider.Enclaves))
}

// RemoveEnclave deletes a measurement from the caller's allowlist. The
// remaining entries keep their relative order.
func RemoveEnclave(ctx context.Context, db sql.DB, caller []byte, measurement [32]byte) error {
	if _, err := store.GetProvider(ctx, db, caller); err != nil {
		return err
	}
	return store.RemoveEnclave(ctx, db, caller, measurement)
}

// DeactivateProvider clears is_active on a registry row. A nil or empty
// target means self-deactivation; deactivating another provider requires
// the protocol admin. Deactivation is idempotent and permanent: no
// operation sets is_active back to true.
func DeactivateProvider(ctx context.Context, db sql.DB, caller, target []byte) error {
	if len(target) == 0 {
		target = caller
	}
	if !bytes.Equal(target, caller) {
		cfg, err := store.GetConfig(ctx, db)
		if err != nil {
			return err
		}
		if !bytes.Equal(cfg.Admin, caller) {
			return fmt.Errorf("%w: only the provider or the admin may deactivate", signalerr.ErrUnauthorized)
		}
	}
	if _, err := store.GetProvider(ctx, db, target); err != nil {
		return err
	}
	return store.SetProviderActive(ctx, db, target, false)
}
