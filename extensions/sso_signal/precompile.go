package sso_signal

import (
	"github.com/trufnetwork/kwil-db/core/types"
	"github.com/trufnetwork/kwil-db/extensions/precompiles"
)

// registerPrecompile registers the sso_signal precompile methods.
// This is called from InitializeExtension().
//
// Write methods are SYSTEM access: they are reachable only through the
// seeded SQL action layer, which forwards @caller as the provider
// identity. Read methods are PUBLIC VIEW.
func registerPrecompile() error {
	return precompiles.RegisterPrecompile(ExtensionName, buildPrecompile())
}

func buildPrecompile() precompiles.Precompile {
	return precompiles.Precompile{
		Methods: []precompiles.Method{
			initializeConfigMethod(),
			updateConfigMethod(),
			setPausedMethod(),
			registerProviderMethod(),
			addEnclaveMethod(),
			removeEnclaveMethod(),
			deactivateProviderMethod(),
			submitSignalMethod(),
			updateSignalMethod(),
			revokeSignalMethod(),
			getSignalMethod(),
			getProviderMethod(),
			getConfigMethod(),
			nodeAttestationMethod(),
		},
	}
}

// configParamValues is shared by initialize_config (all required) and
// update_config (all nullable, null meaning keep the current value).
func configParamValues(nullable bool) []precompiles.PrecompileValue {
	return []precompiles.PrecompileValue{
		precompiles.NewPrecompileValue("min_validity_slots", types.IntType, nullable),
		precompiles.NewPrecompileValue("max_validity_slots", types.IntType, nullable),
		precompiles.NewPrecompileValue("min_source_count", types.IntType, nullable),
		precompiles.NewPrecompileValue("min_confidence_bps", types.IntType, nullable),
		precompiles.NewPrecompileValue("max_receipt_age_slots", types.IntType, nullable),
	}
}

// signalPayloadValues is shared by submit_signal and update_signal.
func signalPayloadValues() []precompiles.PrecompileValue {
	return []precompiles.PrecompileValue{
		precompiles.NewPrecompileValue("signal_id", types.ByteaType, false),
		precompiles.NewPrecompileValue("market_context", types.ByteaType, false),
		precompiles.NewPrecompileValue("assessment", types.ByteaType, false),
		precompiles.NewPrecompileValue("receipt", types.ByteaType, false),
	}
}

func initializeConfigMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "initialize_config",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters:      configParamValues(false),
		Handler:         handleInitializeConfig,
	}
}

func updateConfigMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "update_config",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters:      configParamValues(true),
		Handler:         handleUpdateConfig,
	}
}

func setPausedMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "set_paused",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("paused", types.BoolType, false),
		},
		Handler: handleSetPaused,
	}
}

func registerProviderMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "register_provider",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("name", types.TextType, false),
			precompiles.NewPrecompileValue("initial_enclave", types.ByteaType, true),
		},
		Handler: handleRegisterProvider,
	}
}

func addEnclaveMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "add_enclave",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("measurement", types.ByteaType, false),
		},
		Handler: handleAddEnclave,
	}
}

func removeEnclaveMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "remove_enclave",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("measurement", types.ByteaType, false),
		},
		Handler: handleRemoveEnclave,
	}
}

func deactivateProviderMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "deactivate_provider",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters: []precompiles.PrecompileValue{
			// Null targets the caller's own registration. A foreign target
			// requires the protocol admin.
			precompiles.NewPrecompileValue("provider", types.ByteaType, true),
		},
		Handler: handleDeactivateProvider,
	}
}

func submitSignalMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "submit_signal",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters:      signalPayloadValues(),
		Handler:         handleSubmitSignal,
	}
}

func updateSignalMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "update_signal",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters:      signalPayloadValues(),
		Handler:         handleUpdateSignal,
	}
}

func revokeSignalMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "revoke_signal",
		AccessModifiers: []precompiles.Modifier{precompiles.SYSTEM},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("signal_id", types.ByteaType, false),
		},
		Handler: handleRevokeSignal,
	}
}

func getSignalMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "get_signal",
		AccessModifiers: []precompiles.Modifier{precompiles.PUBLIC, precompiles.VIEW},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("provider", types.ByteaType, false),
			precompiles.NewPrecompileValue("signal_id", types.ByteaType, false),
		},
		Returns: &precompiles.MethodReturn{
			IsTable: false,
			Fields: []precompiles.PrecompileValue{
				precompiles.NewPrecompileValue("spec_version", types.IntType, false),
				// status reflects the validity window at the current block,
				// so an Active record past valid_until reads as expired.
				precompiles.NewPrecompileValue("status", types.TextType, false),
				precompiles.NewPrecompileValue("direction", types.TextType, false),
				precompiles.NewPrecompileValue("strength_bps", types.IntType, false),
				precompiles.NewPrecompileValue("confidence_bps", types.IntType, false),
				precompiles.NewPrecompileValue("time_horizon_slots", types.IntType, false),
				precompiles.NewPrecompileValue("generated_at_slot", types.IntType, false),
				precompiles.NewPrecompileValue("valid_until_slot", types.IntType, false),
				precompiles.NewPrecompileValue("asset_symbol", types.TextType, false),
				precompiles.NewPrecompileValue("price_usd", types.IntType, false),
				precompiles.NewPrecompileValue("source_count", types.IntType, false),
				precompiles.NewPrecompileValue("captured_at_slot", types.IntType, false),
				precompiles.NewPrecompileValue("mr_enclave", types.ByteaType, false),
				precompiles.NewPrecompileValue("platform", types.TextType, false),
				precompiles.NewPrecompileValue("created_at_slot", types.IntType, false),
				precompiles.NewPrecompileValue("updated_at_slot", types.IntType, false),
				precompiles.NewPrecompileValue("update_count", types.IntType, false),
			},
		},
		Handler: handleGetSignal,
	}
}

func getProviderMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "get_provider",
		AccessModifiers: []precompiles.Modifier{precompiles.PUBLIC, precompiles.VIEW},
		Parameters: []precompiles.PrecompileValue{
			precompiles.NewPrecompileValue("provider", types.ByteaType, false),
		},
		Returns: &precompiles.MethodReturn{
			// One row per allowlisted enclave; a provider with an empty
			// allowlist returns a single row with null enclave columns.
			IsTable: true,
			Fields: []precompiles.PrecompileValue{
				precompiles.NewPrecompileValue("name", types.TextType, false),
				precompiles.NewPrecompileValue("is_active", types.BoolType, false),
				precompiles.NewPrecompileValue("signal_count", types.IntType, false),
				precompiles.NewPrecompileValue("registered_at_slot", types.IntType, false),
				precompiles.NewPrecompileValue("last_active_slot", types.IntType, false),
				precompiles.NewPrecompileValue("enclave_position", types.IntType, true),
				precompiles.NewPrecompileValue("enclave_measurement", types.ByteaType, true),
			},
		},
		Handler: handleGetProvider,
	}
}

func getConfigMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "get_config",
		AccessModifiers: []precompiles.Modifier{precompiles.PUBLIC, precompiles.VIEW},
		Parameters:      []precompiles.PrecompileValue{},
		Returns: &precompiles.MethodReturn{
			IsTable: false,
			Fields: []precompiles.PrecompileValue{
				precompiles.NewPrecompileValue("admin", types.ByteaType, false),
				precompiles.NewPrecompileValue("min_validity_slots", types.IntType, false),
				precompiles.NewPrecompileValue("max_validity_slots", types.IntType, false),
				precompiles.NewPrecompileValue("min_source_count", types.IntType, false),
				precompiles.NewPrecompileValue("min_confidence_bps", types.IntType, false),
				precompiles.NewPrecompileValue("max_receipt_age_slots", types.IntType, false),
				precompiles.NewPrecompileValue("is_paused", types.BoolType, false),
				precompiles.NewPrecompileValue("protocol_version", types.IntType, false),
				precompiles.NewPrecompileValue("total_signals", types.IntType, false),
				precompiles.NewPrecompileValue("total_providers", types.IntType, false),
			},
		},
		Handler: handleGetConfig,
	}
}

func nodeAttestationMethod() precompiles.Method {
	return precompiles.Method{
		Name:            "node_attestation",
		AccessModifiers: []precompiles.Modifier{precompiles.PUBLIC, precompiles.VIEW},
		Parameters:      []precompiles.PrecompileValue{},
		Returns: &precompiles.MethodReturn{
			IsTable: false,
			Fields: []precompiles.PrecompileValue{
				precompiles.NewPrecompileValue("platform", types.TextType, false),
				precompiles.NewPrecompileValue("available", types.BoolType, false),
				precompiles.NewPrecompileValue("measurement", types.ByteaType, true),
				precompiles.NewPrecompileValue("tcb_version", types.IntType, true),
			},
		},
		Handler: handleNodeAttestation,
	}
}
