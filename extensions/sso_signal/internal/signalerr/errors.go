// Package signalerr defines the stable error space of the signal oracle.
//
// Every admission failure maps to exactly one of these errors so that
// providers and downstream consumers can react to codes instead of parsing
// message text. Codes are wire-visible protocol constants: they are assigned
// explicitly (never iota) and existing codes are never renumbered. Gaps in
// the sequence mark retired codes.
package signalerr

import (
	"errors"
	"fmt"
)

// Error is a typed oracle error. Instances are package-level sentinels;
// callers wrap them with fmt.Errorf("...: %w", err) to add operation
// context and compare with errors.Is.
type Error struct {
	Code uint32
	Name string
	msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.msg)
}

func newErr(code uint32, name, msg string) *Error {
	return &Error{Code: code, Name: name, msg: msg}
}

// Authorization (6000-6004).
var (
	ErrProviderNotRegistered     = newErr(6000, "ProviderNotRegistered", "provider is not registered in the protocol")
	ErrUnauthorized              = newErr(6001, "Unauthorized", "signer is not authorized to perform this action")
	ErrProviderNotActive         = newErr(6002, "ProviderNotActive", "provider is not active")
	ErrAdminRequired             = newErr(6003, "AdminRequired", "admin authority required for this operation")
	ErrProviderAuthorityMismatch = newErr(6004, "ProviderAuthorityMismatch", "provider authority does not match signer")
)

// Slot and validity window (6005-6009).
var (
	ErrSignalExpired          = newErr(6005, "SignalExpired", "signal has already expired")
	ErrValidityPeriodTooLong  = newErr(6006, "ValidityPeriodTooLong", "signal validity period exceeds maximum allowed")
	ErrValidityPeriodTooShort = newErr(6007, "ValidityPeriodTooShort", "signal validity period below minimum required")
	ErrInvalidSlotTimestamp   = newErr(6008, "InvalidSlotTimestamp", "generated_at_slot exceeds valid_until_slot")
	ErrStaleMarketData        = newErr(6009, "StaleMarketData", "market data slot drift exceeds maximum allowed")
)

// Market context (6010-6014).
var (
	ErrInvalidMarketContext = newErr(6010, "InvalidMarketContext", "market context validation failed")
	ErrZeroPrice            = newErr(6011, "ZeroPrice", "price cannot be zero")
	ErrInsufficientSources  = newErr(6012, "InsufficientSources", "source count is below minimum required")
	ErrSourceBitmapMismatch = newErr(6013, "SourceBitmapMismatch", "source bitmap does not match source count")
	ErrInvalidAssetSymbol   = newErr(6014, "InvalidAssetSymbol", "invalid asset symbol format")
)

// Signal assessment (6015-6019).
var (
	ErrInvalidSignalAssessment = newErr(6015, "InvalidSignalAssessment", "signal assessment validation failed")
	ErrConfidenceBelowMinimum  = newErr(6016, "ConfidenceBelowMinimum", "confidence score is below minimum threshold")
	ErrBasisPointOverflow      = newErr(6017, "BasisPointOverflow", "basis point value exceeds maximum (10000)")
	ErrInvalidSignalDirection  = newErr(6018, "InvalidSignalDirection", "invalid signal direction value")
	ErrInvalidStrengthScore    = newErr(6019, "InvalidStrengthScore", "strength score must be 0-10000")
)

// TEE verification (6020-6025).
var (
	ErrTeeVerificationFailed  = newErr(6020, "TeeVerificationFailed", "TEE attestation verification failed")
	ErrEnclaveNotAllowed      = newErr(6021, "EnclaveNotAllowed", "mr_enclave not in provider's allowlist")
	ErrSignatureInvalid       = newErr(6022, "SignatureInvalid", "invalid TEE signature")
	ErrUnsupportedTeePlatform = newErr(6023, "UnsupportedTeePlatform", "TEE platform not supported")
	ErrInvalidTeeTimestamp    = newErr(6024, "InvalidTeeTimestamp", "TEE receipt timestamp is invalid")
	ErrReportDataMismatch     = newErr(6025, "ReportDataMismatch", "report data binding verification failed")
)

// Record state (6026-6031).
var (
	ErrInvalidUpdate       = newErr(6026, "InvalidUpdate", "signal is not in a state that permits this operation")
	ErrAlreadyInitialized  = newErr(6027, "AlreadyInitialized", "already initialized")
	ErrSignalNotFound      = newErr(6028, "SignalNotFound", "signal record not found")
	ErrAlreadyRevoked      = newErr(6029, "AlreadyRevoked", "signal has already been revoked")
	ErrCannotUpdateExpired = newErr(6030, "CannotUpdateExpired", "cannot update an expired signal")
	ErrCorruptedRecordData = newErr(6031, "CorruptedRecordData", "stored record data is corrupted")
)

// Protocol configuration (6032-6038).
var (
	ErrProtocolPaused         = newErr(6032, "ProtocolPaused", "protocol is currently paused")
	ErrConfigNotInitialized   = newErr(6033, "ConfigNotInitialized", "global config has not been initialized")
	ErrInvalidConfigParameter = newErr(6034, "InvalidConfigParameter", "invalid configuration parameter")
	ErrAllowlistFull          = newErr(6035, "AllowlistFull", "enclave allowlist is at capacity")
	ErrEnclaveAlreadyAllowed  = newErr(6036, "EnclaveAlreadyAllowed", "enclave already in provider's allowlist")
	ErrEnclaveNotFound        = newErr(6037, "EnclaveNotFound", "enclave not found in provider's allowlist")
	ErrVersionMismatch        = newErr(6038, "VersionMismatch", "protocol version mismatch")
)

// General (6039, 6041-6045). Code 6040 is retired.
var (
	ErrArithmeticOverflow     = newErr(6039, "ArithmeticOverflow", "arithmetic overflow")
	ErrSignalAlreadyExists    = newErr(6041, "SignalAlreadyExists", "signal record already exists")
	ErrOperationNotAllowed    = newErr(6042, "OperationNotAllowed", "operation not allowed in current state")
	ErrAlreadyRegistered      = newErr(6043, "AlreadyRegistered", "provider is already registered")
	ErrAttestationStale       = newErr(6044, "AttestationStale", "attestation receipt exceeds configured age bound")
	ErrAttestationUnavailable = newErr(6045, "AttestationUnavailable", "no attestation capability on this platform")
)

// CodeOf extracts the oracle error code from err or any error it wraps.
// The second return is false when err carries no oracle code.
func CodeOf(err error) (uint32, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// IsOracleError reports whether err is (or wraps) a typed oracle error.
func IsOracleError(err error) bool {
	_, ok := CodeOf(err)
	return ok
}
