package records

import (
	"encoding/binary"
	"fmt"
)

// TeeReceiptSize is the exact encoded length of a TeeReceipt.
const TeeReceiptSize = 32 + 32 + 64 + 32 + 64 + 8 + 1 + 2 + 13 // 248

// ReportDataSize is the attestation user-data field width shared by the
// supported platforms.
const ReportDataSize = 64

// TeeReceipt carries the attestation evidence for one signal submission.
//
// Layout (little-endian):
//
//	32 bytes  mr_enclave
//	32 bytes  mr_signer
//	64 bytes  enclave_signature (Ed25519)
//	32 bytes  enclave_pubkey (Ed25519)
//	64 bytes  report_data
//	8 bytes   attestation_timestamp (unix seconds, signed)
//	1 byte    platform
//	2 bytes   svn
//	13 bytes  reserved
type TeeReceipt struct {
	MrEnclave            [32]byte
	MrSigner             [32]byte
	EnclaveSignature     [64]byte
	EnclavePubkey        [32]byte
	ReportData           [ReportDataSize]byte
	AttestationTimestamp int64
	Platform             TeePlatform
	Svn                  uint16
	Reserved             [13]byte
}

// Encode serializes the receipt into its fixed layout.
func (r *TeeReceipt) Encode() []byte {
	buf := make([]byte, TeeReceiptSize)
	cursor := 0

	copy(buf[cursor:], r.MrEnclave[:])
	cursor += 32
	copy(buf[cursor:], r.MrSigner[:])
	cursor += 32
	copy(buf[cursor:], r.EnclaveSignature[:])
	cursor += 64
	copy(buf[cursor:], r.EnclavePubkey[:])
	cursor += 32
	copy(buf[cursor:], r.ReportData[:])
	cursor += 64
	binary.LittleEndian.PutUint64(buf[cursor:], uint64(r.AttestationTimestamp))
	cursor += 8
	buf[cursor] = uint8(r.Platform)
	cursor++
	binary.LittleEndian.PutUint16(buf[cursor:], r.Svn)
	cursor += 2
	copy(buf[cursor:], r.Reserved[:])

	return buf
}

// ParseTeeReceipt decodes a fixed-layout receipt, rejecting short input,
// trailing bytes, and unknown platform tags.
func ParseTeeReceipt(data []byte) (*TeeReceipt, error) {
	if len(data) < TeeReceiptSize {
		return nil, fmt.Errorf("tee receipt too short: got %d bytes, want %d", len(data), TeeReceiptSize)
	}
	if len(data) > TeeReceiptSize {
		return nil, fmt.Errorf("tee receipt has %d trailing bytes", len(data)-TeeReceiptSize)
	}

	r := &TeeReceipt{}
	cursor := 0

	copy(r.MrEnclave[:], data[cursor:cursor+32])
	cursor += 32
	copy(r.MrSigner[:], data[cursor:cursor+32])
	cursor += 32
	copy(r.EnclaveSignature[:], data[cursor:cursor+64])
	cursor += 64
	copy(r.EnclavePubkey[:], data[cursor:cursor+32])
	cursor += 32
	copy(r.ReportData[:], data[cursor:cursor+64])
	cursor += 64
	r.AttestationTimestamp = int64(binary.LittleEndian.Uint64(data[cursor:]))
	cursor += 8
	r.Platform = TeePlatform(data[cursor])
	cursor++
	if !r.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform tag %d", uint8(r.Platform))
	}
	r.Svn = binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2
	copy(r.Reserved[:], data[cursor:cursor+13])

	return r, nil
}
