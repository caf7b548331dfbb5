// Package attest implements the binding protocol between a TEE attestation
// receipt and the signal payload it vouches for.
//
// The binding rule ties a receipt to exactly one (signal_id, submitter) pair:
//
//	binding_hash = sha256(signal_id || submitter_identity)
//	report_data  = binding_hash || 32 zero bytes
//
// An enclave signs binding_hash with its Ed25519 key and embeds report_data
// in the platform report, so a receipt minted for one submission cannot be
// replayed for a different signal or a different submitter.
//
// The package also ships the node-side Attester capability for producing
// platform reports on AMD SEV-SNP and Intel TDX hosts.
package attest

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	kcrypto "github.com/trufnetwork/kwil-db/core/crypto"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// slotSeconds is the chain's block cadence: one slot per block, one second
// per block. Receipt age in seconds therefore maps 1:1 onto slots.
const slotSeconds = 1

// ComputeBindingHash derives the digest an enclave must sign for a
// submission. The concatenation order is fixed; swapping inputs produces a
// different digest.
func ComputeBindingHash(signalID [32]byte, submitter []byte) [32]byte {
	h := sha256.New()
	h.Write(signalID[:])
	h.Write(submitter)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// BuildReportData lays the binding hash into the fixed 64-byte report_data
// shape shared by all supported platforms.
func BuildReportData(bindingHash [32]byte) [64]byte {
	var out [64]byte
	copy(out[:32], bindingHash[:])
	return out
}

// VerifyParams carries the submission context a receipt is checked against.
type VerifyParams struct {
	SignalID        [32]byte
	Submitter       []byte     // caller identity bytes as resolved by the host
	AllowedEnclaves [][32]byte // provider's current allowlist
	BlockTimestamp  int64      // unix seconds
	MaxAgeSlots     uint64     // 0 disables the staleness check
}

// VerifyReceipt checks a TeeReceipt against a specific submission.
//
// Verification steps, in order (the first violation decides the error):
// 1. Platform must be AMD SEV-SNP
// 2. mr_enclave must be on the provider's allowlist
// 3. report_data must embed the recomputed binding hash, zero-padded
// 4. Enclave signature must verify over the binding hash
// 5. Receipt must be within the configured age bound, when one is set
//
// The check is pure: it never mutates state and is safe to retry.
func VerifyReceipt(receipt *records.TeeReceipt, p VerifyParams) error {
	if receipt.Platform != records.PlatformAmdSevSnp {
		return fmt.Errorf("%w: platform %s", signalerr.ErrUnsupportedTeePlatform, receipt.Platform)
	}

	allowed := false
	for _, e := range p.AllowedEnclaves {
		if e == receipt.MrEnclave {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: mr_enclave %x", signalerr.ErrEnclaveNotAllowed, receipt.MrEnclave)
	}

	expected := ComputeBindingHash(p.SignalID, p.Submitter)
	if !bytes.Equal(receipt.ReportData[:32], expected[:]) {
		return fmt.Errorf("%w: report data does not embed the binding hash", signalerr.ErrReportDataMismatch)
	}
	var zeroPad [32]byte
	if !bytes.Equal(receipt.ReportData[32:], zeroPad[:]) {
		return fmt.Errorf("%w: report data padding is not zero", signalerr.ErrReportDataMismatch)
	}

	pub, err := kcrypto.UnmarshalEd25519PublicKey(receipt.EnclavePubkey[:])
	if err != nil {
		return fmt.Errorf("%w: enclave pubkey: %s", signalerr.ErrSignatureInvalid, err)
	}
	ok, err := pub.Verify(expected[:], receipt.EnclaveSignature[:])
	if err != nil {
		return fmt.Errorf("%w: %s", signalerr.ErrSignatureInvalid, err)
	}
	if !ok {
		return fmt.Errorf("%w: enclave signature does not verify over binding hash", signalerr.ErrSignatureInvalid)
	}

	if p.MaxAgeSlots > 0 {
		if receipt.AttestationTimestamp > p.BlockTimestamp {
			return fmt.Errorf("%w: attestation timestamp %d is in the future", signalerr.ErrInvalidTeeTimestamp, receipt.AttestationTimestamp)
		}
		age := uint64(p.BlockTimestamp-receipt.AttestationTimestamp) / slotSeconds
		if age > p.MaxAgeSlots {
			return fmt.Errorf("%w: receipt is %d slots old, bound is %d", signalerr.ErrAttestationStale, age, p.MaxAgeSlots)
		}
	}

	return nil
}
