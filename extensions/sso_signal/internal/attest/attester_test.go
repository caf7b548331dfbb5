package attest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
)

func pointDevicesAt(t *testing.T, dir string) (sev, tdx string) {
	t.Helper()
	origSev, origTdx := sevGuestDevice, tdxGuestDevice
	t.Cleanup(func() { sevGuestDevice, tdxGuestDevice = origSev, origTdx })

	sevGuestDevice = filepath.Join(dir, "sev-guest")
	tdxGuestDevice = filepath.Join(dir, "tdx_guest")
	return sevGuestDevice, tdxGuestDevice
}

func TestDetectPlatform_DeviceProbes(t *testing.T) {
	dir := t.TempDir()
	sevDev, tdxDev := pointDevicesAt(t, dir)

	require.Equal(t, records.PlatformUnknown, DetectPlatform())

	require.NoError(t, os.WriteFile(tdxDev, nil, 0o600))
	require.Equal(t, records.PlatformIntelTdx, DetectPlatform())

	// sev-guest wins when both devices exist
	require.NoError(t, os.WriteFile(sevDev, nil, 0o600))
	require.Equal(t, records.PlatformAmdSevSnp, DetectPlatform())
}

func TestNewAttester_OutsideTee(t *testing.T) {
	pointDevicesAt(t, t.TempDir())

	a := NewAttester(log.DiscardLogger)
	require.Equal(t, records.PlatformUnknown, a.Platform())
	require.False(t, a.Available())

	_, err := a.Report(context.Background(), [64]byte{})
	require.ErrorIs(t, err, ErrAttesterUnavailable)

	_, err = a.Measurement(context.Background())
	require.ErrorIs(t, err, ErrAttesterUnavailable)
}
