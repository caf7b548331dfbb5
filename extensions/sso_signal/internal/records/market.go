package records

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// MarketContextSize is the exact encoded length of a MarketContext.
const MarketContextSize = 8 + 8 + 8 + 8 + 8 + 4 + 4 + 8 + 1 + 2 + 8 + 32 // 99

// MarketContext is the enclave-captured market snapshot backing a signal.
//
// Layout (little-endian):
//
//	8 bytes   timestamp (unix seconds, signed)
//	8 bytes   captured_at_slot
//	8 bytes   price_usd (fixed-point, PriceScale)
//	8 bytes   volume_24h_usd
//	8 bytes   market_cap_usd
//	4 bytes   price_change_24h_bps (signed)
//	4 bytes   spread_bps
//	8 bytes   depth_2pct_usd
//	1 byte    source_count
//	2 bytes   source_bitmap
//	8 bytes   asset_symbol (zero-padded ASCII)
//	32 bytes  reserved
type MarketContext struct {
	Timestamp         int64
	CapturedAtSlot    uint64
	PriceUSD          uint64
	Volume24hUSD      uint64
	MarketCapUSD      uint64
	PriceChange24hBps int32
	SpreadBps         uint32
	Depth2PctUSD      uint64
	SourceCount       uint8
	SourceBitmap      uint16
	AssetSymbol       [8]byte
	Reserved          [32]byte
}

// Encode serializes the context into its fixed layout.
func (m *MarketContext) Encode() []byte {
	buf := make([]byte, MarketContextSize)
	cursor := 0

	binary.LittleEndian.PutUint64(buf[cursor:], uint64(m.Timestamp))
	cursor += 8
	binary.LittleEndian.PutUint64(buf[cursor:], m.CapturedAtSlot)
	cursor += 8
	binary.LittleEndian.PutUint64(buf[cursor:], m.PriceUSD)
	cursor += 8
	binary.LittleEndian.PutUint64(buf[cursor:], m.Volume24hUSD)
	cursor += 8
	binary.LittleEndian.PutUint64(buf[cursor:], m.MarketCapUSD)
	cursor += 8
	binary.LittleEndian.PutUint32(buf[cursor:], uint32(m.PriceChange24hBps))
	cursor += 4
	binary.LittleEndian.PutUint32(buf[cursor:], m.SpreadBps)
	cursor += 4
	binary.LittleEndian.PutUint64(buf[cursor:], m.Depth2PctUSD)
	cursor += 8
	buf[cursor] = m.SourceCount
	cursor++
	binary.LittleEndian.PutUint16(buf[cursor:], m.SourceBitmap)
	cursor += 2
	copy(buf[cursor:], m.AssetSymbol[:])
	cursor += 8
	copy(buf[cursor:], m.Reserved[:])

	return buf
}

// ParseMarketContext decodes a fixed-layout market context, rejecting
// short input and trailing bytes.
func ParseMarketContext(data []byte) (*MarketContext, error) {
	if len(data) < MarketContextSize {
		return nil, fmt.Errorf("market context too short: got %d bytes, want %d", len(data), MarketContextSize)
	}
	if len(data) > MarketContextSize {
		return nil, fmt.Errorf("market context has %d trailing bytes", len(data)-MarketContextSize)
	}

	m := &MarketContext{}
	cursor := 0

	m.Timestamp = int64(binary.LittleEndian.Uint64(data[cursor:]))
	cursor += 8
	m.CapturedAtSlot = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	m.PriceUSD = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	m.Volume24hUSD = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	m.MarketCapUSD = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	m.PriceChange24hBps = int32(binary.LittleEndian.Uint32(data[cursor:]))
	cursor += 4
	m.SpreadBps = binary.LittleEndian.Uint32(data[cursor:])
	cursor += 4
	m.Depth2PctUSD = binary.LittleEndian.Uint64(data[cursor:])
	cursor += 8
	m.SourceCount = data[cursor]
	cursor++
	m.SourceBitmap = binary.LittleEndian.Uint16(data[cursor:])
	cursor += 2
	copy(m.AssetSymbol[:], data[cursor:cursor+8])
	cursor += 8
	copy(m.Reserved[:], data[cursor:cursor+32])

	return m, nil
}

// Validate checks internal consistency of the snapshot.
func (m *MarketContext) Validate() error {
	if m.PriceUSD == 0 {
		return signalerr.ErrZeroPrice
	}
	if m.SourceCount == 0 {
		return signalerr.ErrInvalidMarketContext
	}
	if uint8(bits.OnesCount16(m.SourceBitmap)) != m.SourceCount {
		return signalerr.ErrSourceBitmapMismatch
	}
	return nil
}

// FreshAt reports whether the capture slot is within MaxMarketDataSlotDrift
// of currentSlot. A capture slot in the future is never fresh.
func (m *MarketContext) FreshAt(currentSlot uint64) bool {
	if currentSlot < m.CapturedAtSlot {
		return false
	}
	return currentSlot-m.CapturedAtSlot <= MaxMarketDataSlotDrift
}

// Symbol returns the asset symbol with zero padding stripped.
func (m *MarketContext) Symbol() string {
	end := len(m.AssetSymbol)
	for end > 0 && m.AssetSymbol[end-1] == 0 {
		end--
	}
	return string(m.AssetSymbol[:end])
}
