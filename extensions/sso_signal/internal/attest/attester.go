package attest

import (
	"context"
	"errors"
	"os"

	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
)

// ErrAttesterUnavailable reports the absence of attestation capability as an
// explicit state. Callers must never treat it as a report.
var ErrAttesterUnavailable = errors.New("tee attester unavailable on this platform")

// Guest device nodes exposed inside confidential VMs. Package vars so tests
// can point them at fixtures.
var (
	sevGuestDevice = "/dev/sev-guest"
	tdxGuestDevice = "/dev/tdx_guest"
)

// PlatformReport is the raw output of a platform attestation request, before
// it is distilled into a TeeReceipt by the provider pipeline.
type PlatformReport struct {
	Platform        records.TeePlatform
	Raw             []byte   // full report blob as returned by the platform
	Measurement     [32]byte // registry form of the launch measurement
	ReportID        [32]byte
	PlatformVersion uint32
	TcbVersion      uint64
}

// Attester is the node-side attestation capability. Implementations are
// platform-specific. A node outside a TEE gets the unavailable variant,
// which fails every request with ErrAttesterUnavailable.
type Attester interface {
	Platform() records.TeePlatform
	Available() bool
	Report(ctx context.Context, userData [64]byte) (*PlatformReport, error)
	Measurement(ctx context.Context) ([32]byte, error)
}

// DetectPlatform probes the guest device nodes. Unknown means the node is
// not running inside a supported TEE.
func DetectPlatform() records.TeePlatform {
	if _, err := os.Stat(sevGuestDevice); err == nil {
		return records.PlatformAmdSevSnp
	}
	if _, err := os.Stat(tdxGuestDevice); err == nil {
		return records.PlatformIntelTdx
	}
	return records.PlatformUnknown
}

// NewAttester returns the attester for the detected platform.
func NewAttester(logger log.Logger) Attester {
	switch DetectPlatform() {
	case records.PlatformAmdSevSnp:
		return newSevSnpAttester(logger)
	case records.PlatformIntelTdx:
		return newTdxAttester(logger)
	default:
		logger.Warn("no TEE guest device detected; attestation unavailable")
		return unavailableAttester{}
	}
}

type unavailableAttester struct{}

func (unavailableAttester) Platform() records.TeePlatform { return records.PlatformUnknown }
func (unavailableAttester) Available() bool               { return false }

func (unavailableAttester) Report(context.Context, [64]byte) (*PlatformReport, error) {
	return nil, ErrAttesterUnavailable
}

func (unavailableAttester) Measurement(context.Context) ([32]byte, error) {
	return [32]byte{}, ErrAttesterUnavailable
}
