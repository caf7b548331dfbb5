// Package records defines the fixed-layout payloads exchanged between
// signal providers and the oracle, plus the stored signal record.
//
// Providers serialize these structures inside their enclaves; every
// validator must parse them byte-identically, so all layouts are fixed
// width, little-endian, with reserved tails that are zero on encode and
// preserved on decode. Parsers validate every offset and reject trailing
// bytes so storage corruption surfaces as a descriptive error instead of
// a silent misread.
package records

// Protocol constants. These are wire-visible and never change within a
// spec version.
const (
	// SpecVersion identifies the record layout generation.
	SpecVersion uint8 = 12

	// MaxEnclavesPerProvider bounds the enclave allowlist.
	MaxEnclavesPerProvider = 8

	// MaxProviderNameLen bounds the provider display name, in bytes.
	MaxProviderNameLen = 32

	// MaxMarketDataSlotDrift is the freshness bound for market context
	// capture, in slots.
	MaxMarketDataSlotDrift uint64 = 100

	// BpsScale is the denominator of all basis-point fields.
	BpsScale uint16 = 10_000

	// PriceScale is the fixed-point denominator of USD price fields.
	PriceScale uint64 = 100_000_000
)

// SignalDirection is the provider's directional view.
type SignalDirection uint8

const (
	DirectionNeutral SignalDirection = 0
	DirectionLong    SignalDirection = 1
	DirectionShort   SignalDirection = 2
)

func (d SignalDirection) Valid() bool {
	return d <= DirectionShort
}

func (d SignalDirection) String() string {
	switch d {
	case DirectionNeutral:
		return "neutral"
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "invalid"
	}
}

// TeePlatform tags which TEE technology produced a receipt.
type TeePlatform uint8

const (
	PlatformUnknown   TeePlatform = 0
	PlatformAmdSevSnp TeePlatform = 1
	PlatformIntelTdx  TeePlatform = 2
	PlatformIntelSgx  TeePlatform = 3
)

func (p TeePlatform) Valid() bool {
	return p <= PlatformIntelSgx
}

func (p TeePlatform) String() string {
	switch p {
	case PlatformAmdSevSnp:
		return "amd-sev-snp"
	case PlatformIntelTdx:
		return "intel-tdx"
	case PlatformIntelSgx:
		return "intel-sgx"
	default:
		return "unknown"
	}
}

// SignalStatus is the stored lifecycle state of a signal record.
//
// Expired is never written: it is derived at read time by comparing the
// current slot with the record's validity window. The only stored
// transition chain is Uninitialized -> Active -> Revoked.
type SignalStatus uint8

const (
	StatusUninitialized SignalStatus = 0
	StatusActive        SignalStatus = 1
	StatusExpired       SignalStatus = 2
	StatusRevoked       SignalStatus = 3
)

func (s SignalStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusRevoked:
		return "revoked"
	default:
		return "invalid"
	}
}

// SignalRecord is one admitted signal: the three payloads plus lifecycle
// bookkeeping. Provider is the submitting caller's identity bytes as
// resolved by the host.
type SignalRecord struct {
	Provider      []byte
	SignalID      [32]byte
	SpecVersion   uint8
	Status        SignalStatus
	Market        MarketContext
	Assessment    SignalAssessment
	Receipt       TeeReceipt
	CreatedAtSlot uint64
	UpdatedAtSlot uint64
	UpdateCount   uint64
}

// DerivedStatus maps a stored Active record past its validity window to
// Expired without mutating stored state.
func (r *SignalRecord) DerivedStatus(currentSlot uint64) SignalStatus {
	if r.Status == StatusActive && currentSlot > r.Assessment.ValidUntilSlot {
		return StatusExpired
	}
	return r.Status
}

// IsValidAt reports whether the record is live: stored Active and still
// inside its validity window at the given slot.
func (r *SignalRecord) IsValidAt(currentSlot uint64) bool {
	return r.Status == StatusActive && currentSlot <= r.Assessment.ValidUntilSlot
}
