package sso_signal

import (
	"fmt"
	"math"

	"github.com/trufnetwork/kwil-db/common"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/engine"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/store"
)

// callContext extracts the caller identity and block position shared by
// every write method. The SQL action layer forwards @caller through the
// transaction signer; the block height doubles as the slot clock.
func callContext(ctx *common.EngineContext) ([]byte, engine.BlockInfo, error) {
	if ctx == nil || ctx.TxContext == nil || ctx.TxContext.BlockContext == nil {
		return nil, engine.BlockInfo{}, fmt.Errorf("missing transaction context")
	}
	tx := ctx.TxContext
	if len(tx.Signer) == 0 {
		return nil, engine.BlockInfo{}, fmt.Errorf("missing caller identity")
	}
	block := engine.BlockInfo{Timestamp: tx.BlockContext.Timestamp}
	if h := tx.BlockContext.Height; h > 0 {
		block.Slot = uint64(h)
	}
	return tx.Signer, block, nil
}

func handleInitializeConfig(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, _, err := callContext(ctx)
	if err != nil {
		return err
	}
	params, err := configParamsFromInputs(inputs)
	if err != nil {
		return err
	}
	if err := engine.InitializeConfig(ctx.TxContext.Ctx, app.DB, caller, params); err != nil {
		return err
	}
	getExtension().Logger().Info("protocol config initialized",
		"min_validity_slots", params.MinValiditySlots,
		"max_validity_slots", params.MaxValiditySlots,
		"min_source_count", params.MinSourceCount,
		"min_confidence_bps", params.MinConfidenceBps,
		"max_receipt_age_slots", params.MaxReceiptAgeSlots)
	return nil
}

func handleUpdateConfig(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, _, err := callContext(ctx)
	if err != nil {
		return err
	}
	patch, err := configUpdateFromInputs(inputs)
	if err != nil {
		return err
	}
	if err := engine.UpdateConfig(ctx.TxContext.Ctx, app.DB, caller, patch); err != nil {
		return err
	}
	getExtension().Logger().Info("protocol config updated")
	return nil
}

func handleSetPaused(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, _, err := callContext(ctx)
	if err != nil {
		return err
	}
	paused, err := toBool(inputs[0], "paused")
	if err != nil {
		return err
	}
	if err := engine.SetPaused(ctx.TxContext.Ctx, app.DB, caller, paused); err != nil {
		return err
	}
	getExtension().Logger().Info("protocol pause flag set", "paused", paused)
	return nil
}

func handleRegisterProvider(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, block, err := callContext(ctx)
	if err != nil {
		return err
	}
	name, err := toText(inputs[0], "name")
	if err != nil {
		return err
	}
	var initial *[32]byte
	if inputs[1] != nil {
		m, err := toHash32(inputs[1], "initial_enclave")
		if err != nil {
			return err
		}
		initial = &m
	}
	if err := engine.RegisterProvider(ctx.TxContext.Ctx, app.DB, block, caller, name, initial); err != nil {
		return err
	}
	getExtension().Logger().Info("provider registered",
		"name", name, "slot", block.Slot, "seeded_enclave", initial != nil)
	return nil
}

func handleAddEnclave(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, _, err := callContext(ctx)
	if err != nil {
		return err
	}
	m, err := toHash32(inputs[0], "measurement")
	if err != nil {
		return err
	}
	if err := engine.AddEnclave(ctx.TxContext.Ctx, app.DB, caller, m); err != nil {
		return err
	}
	getExtension().Logger().Info("enclave allowlisted")
	return nil
}

func handleRemoveEnclave(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, _, err := callContext(ctx)
	if err != nil {
		return err
	}
	m, err := toHash32(inputs[0], "measurement")
	if err != nil {
		return err
	}
	if err := engine.RemoveEnclave(ctx.TxContext.Ctx, app.DB, caller, m); err != nil {
		return err
	}
	getExtension().Logger().Info("enclave removed from allowlist")
	return nil
}

func handleDeactivateProvider(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, _, err := callContext(ctx)
	if err != nil {
		return err
	}
	target, err := toBlobAllowNil(inputs[0], "provider")
	if err != nil {
		return err
	}
	if err := engine.DeactivateProvider(ctx.TxContext.Ctx, app.DB, caller, target); err != nil {
		return err
	}
	getExtension().Logger().Info("provider deactivated", "self", len(target) == 0)
	return nil
}

func handleSubmitSignal(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, block, err := callContext(ctx)
	if err != nil {
		return err
	}
	id, market, assessment, receipt, err := signalPayloadsFromInputs(inputs)
	if err != nil {
		return err
	}
	rec, err := engine.SubmitSignal(ctx.TxContext.Ctx, app.DB, block, caller, id, market, assessment, receipt)
	if err != nil {
		return err
	}
	getExtension().Logger().Debug("signal admitted",
		"slot", block.Slot,
		"asset", rec.Market.Symbol(),
		"direction", rec.Assessment.Direction.String(),
		"valid_until_slot", rec.Assessment.ValidUntilSlot)
	return nil
}

func handleUpdateSignal(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, block, err := callContext(ctx)
	if err != nil {
		return err
	}
	id, market, assessment, receipt, err := signalPayloadsFromInputs(inputs)
	if err != nil {
		return err
	}
	rec, err := engine.UpdateSignal(ctx.TxContext.Ctx, app.DB, block, caller, id, market, assessment, receipt)
	if err != nil {
		return err
	}
	getExtension().Logger().Debug("signal updated",
		"slot", block.Slot,
		"update_count", rec.UpdateCount,
		"valid_until_slot", rec.Assessment.ValidUntilSlot)
	return nil
}

func handleRevokeSignal(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	caller, block, err := callContext(ctx)
	if err != nil {
		return err
	}
	id, err := toHash32(inputs[0], "signal_id")
	if err != nil {
		return err
	}
	if err := engine.RevokeSignal(ctx.TxContext.Ctx, app.DB, block, caller, id); err != nil {
		return err
	}
	getExtension().Logger().Debug("signal revoked", "slot", block.Slot)
	return nil
}

func handleGetSignal(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	if ctx == nil || ctx.TxContext == nil || ctx.TxContext.BlockContext == nil {
		return fmt.Errorf("missing transaction context")
	}
	provider, err := toBlob(inputs[0], "provider")
	if err != nil {
		return err
	}
	id, err := toHash32(inputs[1], "signal_id")
	if err != nil {
		return err
	}
	var currentSlot uint64
	if h := ctx.TxContext.BlockContext.Height; h > 0 {
		currentSlot = uint64(h)
	}
	view, err := engine.GetSignal(ctx.TxContext.Ctx, app.DB, provider, id, currentSlot)
	if err != nil {
		return err
	}
	rec := view.Record
	return resultFn([]any{
		int64(rec.SpecVersion),
		view.Status.String(),
		rec.Assessment.Direction.String(),
		int64(rec.Assessment.StrengthBps),
		int64(rec.Assessment.ConfidenceBps),
		int64(rec.Assessment.TimeHorizonSlots),
		int64(rec.Assessment.GeneratedAtSlot),
		int64(rec.Assessment.ValidUntilSlot),
		rec.Market.Symbol(),
		int64(rec.Market.PriceUSD),
		int64(rec.Market.SourceCount),
		int64(rec.Market.CapturedAtSlot),
		rec.Receipt.MrEnclave[:],
		rec.Receipt.Platform.String(),
		int64(rec.CreatedAtSlot),
		int64(rec.UpdatedAtSlot),
		int64(rec.UpdateCount),
	})
}

func handleGetProvider(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	if ctx == nil || ctx.TxContext == nil {
		return fmt.Errorf("missing transaction context")
	}
	authority, err := toBlob(inputs[0], "provider")
	if err != nil {
		return err
	}
	p, err := store.GetProvider(ctx.TxContext.Ctx, app.DB, authority)
	if err != nil {
		return err
	}
	base := []any{
		p.Name,
		p.IsActive,
		int64(p.SignalCount),
		int64(p.RegisteredAtSlot),
		int64(p.LastActiveSlot),
	}
	if len(p.Enclaves) == 0 {
		return resultFn(append(append([]any{}, base...), nil, nil))
	}
	for i, m := range p.Enclaves {
		measurement := append([]byte(nil), m[:]...)
		row := append(append([]any{}, base...), int64(i), measurement)
		if err := resultFn(row); err != nil {
			return err
		}
	}
	return nil
}

func handleGetConfig(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	if ctx == nil || ctx.TxContext == nil {
		return fmt.Errorf("missing transaction context")
	}
	cfg, err := store.GetConfig(ctx.TxContext.Ctx, app.DB)
	if err != nil {
		return err
	}
	return resultFn([]any{
		cfg.Admin,
		int64(cfg.MinValiditySlots),
		int64(cfg.MaxValiditySlots),
		int64(cfg.MinSourceCount),
		int64(cfg.MinConfidenceBps),
		int64(cfg.MaxReceiptAgeSlots),
		cfg.IsPaused,
		int64(cfg.ProtocolVersion),
		int64(cfg.TotalSignals),
		int64(cfg.TotalProviders),
	})
}

// handleNodeAttestation reports this node's own enclave identity. The
// result is node-local observability, not consensus state.
func handleNodeAttestation(ctx *common.EngineContext, app *common.App, inputs []any, resultFn func([]any) error) error {
	ext := getExtension()
	att := ext.Attester()
	if att == nil {
		return resultFn([]any{records.PlatformUnknown.String(), false, nil, nil})
	}
	var measurement, tcb any
	if rep := ext.LatestReport(); rep != nil {
		measurement = append([]byte(nil), rep.Measurement[:]...)
		tcb = int64(rep.TcbVersion)
	}
	return resultFn([]any{att.Platform().String(), att.Available(), measurement, tcb})
}

func configParamsFromInputs(inputs []any) (engine.ConfigParams, error) {
	var p engine.ConfigParams

	minValidity, err := toBounded(inputs[0], "min_validity_slots", math.MaxInt64)
	if err != nil {
		return p, err
	}
	maxValidity, err := toBounded(inputs[1], "max_validity_slots", math.MaxInt64)
	if err != nil {
		return p, err
	}
	minSources, err := toBounded(inputs[2], "min_source_count", math.MaxUint8)
	if err != nil {
		return p, err
	}
	minConfidence, err := toBounded(inputs[3], "min_confidence_bps", math.MaxUint16)
	if err != nil {
		return p, err
	}
	maxReceiptAge, err := toBounded(inputs[4], "max_receipt_age_slots", math.MaxInt64)
	if err != nil {
		return p, err
	}

	p.MinValiditySlots = uint64(minValidity)
	p.MaxValiditySlots = uint64(maxValidity)
	p.MinSourceCount = uint8(minSources)
	p.MinConfidenceBps = uint16(minConfidence)
	p.MaxReceiptAgeSlots = uint64(maxReceiptAge)
	return p, nil
}

func configUpdateFromInputs(inputs []any) (engine.ConfigUpdate, error) {
	var patch engine.ConfigUpdate

	if inputs[0] != nil {
		v, err := toBounded(inputs[0], "min_validity_slots", math.MaxInt64)
		if err != nil {
			return patch, err
		}
		u := uint64(v)
		patch.MinValiditySlots = &u
	}
	if inputs[1] != nil {
		v, err := toBounded(inputs[1], "max_validity_slots", math.MaxInt64)
		if err != nil {
			return patch, err
		}
		u := uint64(v)
		patch.MaxValiditySlots = &u
	}
	if inputs[2] != nil {
		v, err := toBounded(inputs[2], "min_source_count", math.MaxUint8)
		if err != nil {
			return patch, err
		}
		u := uint8(v)
		patch.MinSourceCount = &u
	}
	if inputs[3] != nil {
		v, err := toBounded(inputs[3], "min_confidence_bps", math.MaxUint16)
		if err != nil {
			return patch, err
		}
		u := uint16(v)
		patch.MinConfidenceBps = &u
	}
	if inputs[4] != nil {
		v, err := toBounded(inputs[4], "max_receipt_age_slots", math.MaxInt64)
		if err != nil {
			return patch, err
		}
		u := uint64(v)
		patch.MaxReceiptAgeSlots = &u
	}
	return patch, nil
}

func signalPayloadsFromInputs(inputs []any) (id [32]byte, market, assessment, receipt []byte, err error) {
	if id, err = toHash32(inputs[0], "signal_id"); err != nil {
		return
	}
	if market, err = toBlob(inputs[1], "market_context"); err != nil {
		return
	}
	if assessment, err = toBlob(inputs[2], "assessment"); err != nil {
		return
	}
	receipt, err = toBlob(inputs[3], "receipt")
	return
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d exceeds int64 max", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// toBounded converts an integer argument and enforces a protocol range, so
// the narrowing casts in the config builders cannot truncate an oversized
// value into a valid-looking one.
func toBounded(value any, name string, max int64) (int64, error) {
	v, err := toInt64(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if v < 0 || v > max {
		return 0, fmt.Errorf("%w: %s %d out of range", signalerr.ErrInvalidConfigParameter, name, v)
	}
	return v, nil
}

func toBool(value any, name string) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be bool, got %T", name, value)
	}
	return b, nil
}

func toText(value any, name string) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s must be text, got %T", name, value)
	}
	return s, nil
}

func toBlob(value any, name string) ([]byte, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("%s must be bytea, got %T", name, value)
	}
	return b, nil
}

func toBlobAllowNil(value any, name string) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return toBlob(value, name)
}

func toHash32(value any, name string) ([32]byte, error) {
	var out [32]byte
	b, err := toBlob(value, name)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("%s must be %d bytes, got %d", name, len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
