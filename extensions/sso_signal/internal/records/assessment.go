package records

import (
	"encoding/binary"
	"fmt"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// SignalAssessmentSize is the exact encoded length of a SignalAssessment.
const SignalAssessmentSize = 1 + 2 + 2 + 8 + 8 + 8 + 2 + 2 + 4 + 32 + 16 // 85

// SignalAssessment is the enclave model's directional output.
//
// Layout (little-endian):
//
//	1 byte    direction
//	2 bytes   strength_bps
//	2 bytes   confidence_bps
//	8 bytes   time_horizon_slots
//	8 bytes   valid_until_slot
//	8 bytes   generated_at_slot
//	2 bytes   risk_score_bps
//	2 bytes   suggested_size_bps
//	4 bytes   model_version
//	32 bytes  model_params_hash
//	16 bytes  reserved
type SignalAssessment struct {
	Direction        SignalDirection
	StrengthBps      uint16
	ConfidenceBps    uint16
	TimeHorizonSlots uint64
	ValidUntilSlot   uint64
	GeneratedAtSlot  uint64
	RiskScoreBps     uint16
	SuggestedSizeBps uint16
	ModelVersion     uint32
	ModelParamsHash  [32]byte
	Reserved         [16]byte
}

// Encode serializes the assessment into its fixed layout.
func (a *SignalAssessment) Encode() []byte {
	buf := make([]byte, SignalAssessmentSize)
	cursor := 0

	buf[cursor] = uint8(a.Direction)
	cursor++
	binary.LittleEndian.PutUint16(buf[cursor:], a.StrengthBps)
	cursor += 2
	binary.LittleEndian.PutUint16(buf[cursor:], a.ConfidenceBps)
	cursor += 2
	binary.LittleEndian.PutUint64(buf[cursor:], a.TimeHorizonSlots)
	cursor += 8
	binary.LittleEndian.PutUint64(buf[cursor:], a.ValidUntilSlot)
	cursor += 8
	binary.LittleEndian.PutUint64(buf[cursor:], a.GeneratedAtSlot)
	cursor += 8
	binary.LittleEndian.PutUint16(buf[cursor:], a.RiskScoreBps)
	cursor += 2
	binary.LittleEndian.PutUint16(buf[cursor:], a.SuggestedSizeBps)
	cursor += 2
	binary.LittleEndian.PutUint32(buf[cursor:], a.ModelVersion)
	cursor += 4
	copy(buf[cursor:], a.ModelParamsHash[:])
	cursor += 32
	copy(buf[cursor:], a.Reserved[:])

	return buf
}

// ParseSignalAssessment decodes a fixed-layout assessment, rejecting short
// input, trailing bytes, and out-of-range direction tags.
func ParseSignalAssessment(data []byte) (*SignalAssessment, error) {
	if len(data) < SignalAssessmentSize {
		return nil, fmt.Errorf("signal assessment too short: got %d bytes, want %d", len(data), SignalAssessmentSize)
	}
	if len(data) > SignalAssessmentSize {
		return nil, fmt.Errorf("signal assessment has %d trailing bytes", len(data)-SignalAssessmentSize)
	}

	a := &SignalAssessment{}
	cursor := 0

	a.Direction = SignalDirection(data[cursor])
	cursor++
	if !a.Direction.Valid() {
		return nil, fmt.Errorf("direction tag %d: %w", uint8(a.Direction), signalerr.ErrInvalidSignalDirection)
	}
	a.StrengthBps = binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2
	a.ConfidenceBps = binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2
	a.TimeHorizonSlots = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	a.ValidUntilSlot = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	a.GeneratedAtSlot = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	a.RiskScoreBps = binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2
	a.SuggestedSizeBps = binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2
	a.ModelVersion = binary.LittleEndian.Uint32(data[cursor:])
	cursor += 4
	copy(a.ModelParamsHash[:], data[cursor:cursor+32])
	cursor += 32
	copy(a.Reserved[:], data[cursor:cursor+16])

	return a, nil
}

// Validate checks shape invariants that do not depend on the current slot:
// basis-point bounds and window ordering. Expiry against the chain clock is
// the verification engine's concern.
func (a *SignalAssessment) Validate() error {
	for _, bps := range []uint16{a.StrengthBps, a.ConfidenceBps, a.RiskScoreBps, a.SuggestedSizeBps} {
		if bps > BpsScale {
			return signalerr.ErrBasisPointOverflow
		}
	}
	if !a.Direction.Valid() {
		return signalerr.ErrInvalidSignalDirection
	}
	if a.GeneratedAtSlot > a.ValidUntilSlot {
		return signalerr.ErrInvalidSlotTimestamp
	}
	return nil
}

// ValidityWidth is the window the enclave committed to, in slots. Validate
// guarantees it is non-negative.
func (a *SignalAssessment) ValidityWidth() uint64 {
	if a.GeneratedAtSlot > a.ValidUntilSlot {
		return 0
	}
	return a.ValidUntilSlot - a.GeneratedAtSlot
}

// RemainingValidity returns the slots left before expiry, or false when the
// window has already lapsed.
func (a *SignalAssessment) RemainingValidity(currentSlot uint64) (uint64, bool) {
	if currentSlot > a.ValidUntilSlot {
		return 0, false
	}
	return a.ValidUntilSlot - currentSlot, true
}
