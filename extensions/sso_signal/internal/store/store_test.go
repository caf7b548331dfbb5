package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
	"github.com/ssonetwork/node/tests/utils"
)

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("missing row maps to ConfigNotInitialized", func(t *testing.T) {
		db := utils.NewTableDB().On("signal_config", utils.Rows())
		_, err := GetConfig(ctx, db)
		require.ErrorIs(t, err, signalerr.ErrConfigNotInitialized)
	})

	t.Run("row maps to struct", func(t *testing.T) {
		admin := []byte{0xAA, 0xBB}
		db := utils.NewTableDB().On("signal_config", utils.Rows(
			[]any{admin, int64(10), int64(1000), int64(3), int64(5000), int64(200), false, int64(12), int64(7), int64(2)},
		))

		cfg, err := GetConfig(ctx, db)
		require.NoError(t, err)
		require.Equal(t, admin, cfg.Admin)
		require.Equal(t, uint64(10), cfg.MinValiditySlots)
		require.Equal(t, uint64(1000), cfg.MaxValiditySlots)
		require.Equal(t, uint8(3), cfg.MinSourceCount)
		require.Equal(t, uint16(5000), cfg.MinConfidenceBps)
		require.Equal(t, uint64(200), cfg.MaxReceiptAgeSlots)
		require.False(t, cfg.IsPaused)
		require.Equal(t, uint32(12), cfg.ProtocolVersion)
		require.Equal(t, uint64(7), cfg.TotalSignals)
		require.Equal(t, uint64(2), cfg.TotalProviders)
	})

	t.Run("type mismatch names the column", func(t *testing.T) {
		db := utils.NewTableDB().On("signal_config", utils.Rows(
			[]any{"not-bytes", int64(10), int64(1000), int64(3), int64(5000), int64(0), false, int64(12), int64(0), int64(0)},
		))
		_, err := GetConfig(ctx, db)
		require.Error(t, err)
		require.Contains(t, err.Error(), "admin")
	})
}

func TestGetProvider(t *testing.T) {
	ctx := context.Background()
	authority := []byte{0x01, 0x02}

	t.Run("missing row maps to ProviderNotRegistered", func(t *testing.T) {
		db := utils.NewTableDB().On("signal_providers", utils.Rows())
		_, err := GetProvider(ctx, db, authority)
		require.ErrorIs(t, err, signalerr.ErrProviderNotRegistered)
	})

	t.Run("row and allowlist order", func(t *testing.T) {
		m1 := make([]byte, 32)
		m2 := make([]byte, 32)
		m1[0], m2[0] = 0x11, 0x22

		db := utils.NewTableDB().
			On("FROM main.signal_providers", utils.Rows(
				[]any{"acme", true, int64(4), int64(100), int64(900)},
			)).
			On("FROM main.provider_enclaves", utils.Rows([]any{m1}, []any{m2}))

		p, err := GetProvider(ctx, db, authority)
		require.NoError(t, err)
		require.Equal(t, "acme", p.Name)
		require.True(t, p.IsActive)
		require.Equal(t, uint64(4), p.SignalCount)
		require.Len(t, p.Enclaves, 2)
		require.Equal(t, byte(0x11), p.Enclaves[0][0])
		require.Equal(t, byte(0x22), p.Enclaves[1][0])
	})

	t.Run("short measurement is corrupted data", func(t *testing.T) {
		db := utils.NewTableDB().
			On("FROM main.signal_providers", utils.Rows(
				[]any{"acme", true, int64(0), int64(100), int64(100)},
			)).
			On("FROM main.provider_enclaves", utils.Rows([]any{[]byte{0x01}}))

		_, err := GetProvider(ctx, db, authority)
		require.ErrorIs(t, err, signalerr.ErrCorruptedRecordData)
	})
}

func TestRemoveEnclave(t *testing.T) {
	ctx := context.Background()
	authority := []byte{0x01}
	var m [32]byte
	m[0] = 0x42

	t.Run("unknown measurement maps to EnclaveNotFound", func(t *testing.T) {
		db := utils.NewTableDB().On("SELECT position", utils.Rows())
		err := RemoveEnclave(ctx, db, authority, m)
		require.ErrorIs(t, err, signalerr.ErrEnclaveNotFound)
	})

	t.Run("delete shifts later positions down", func(t *testing.T) {
		db := utils.NewTableDB().On("SELECT position", utils.Rows([]any{int64(1)}))

		require.NoError(t, RemoveEnclave(ctx, db, authority, m))

		deletes := db.StmtsContaining("DELETE FROM main.provider_enclaves")
		require.Len(t, deletes, 1)
		require.Equal(t, int64(1), deletes[0].Args[1])

		shifts := db.StmtsContaining("SET position = position - 1")
		require.Len(t, shifts, 1)
		require.Equal(t, int64(1), shifts[0].Args[1])
	})
}

func storedSignalRow(rec *records.SignalRecord) []any {
	return []any{
		int64(rec.SpecVersion), int64(rec.Status),
		rec.Market.Encode(), rec.Assessment.Encode(), rec.Receipt.Encode(),
		int64(rec.CreatedAtSlot), int64(rec.UpdatedAtSlot), int64(rec.UpdateCount),
	}
}

func sampleRecord() *records.SignalRecord {
	rec := &records.SignalRecord{
		Provider:    []byte{0x01, 0x02},
		SignalID:    [32]byte{0xD1},
		SpecVersion: records.SpecVersion,
		Status:      records.StatusActive,
		Market: records.MarketContext{
			Timestamp:      1_700_000_000,
			CapturedAtSlot: 990,
			PriceUSD:       42 * records.PriceScale,
			SourceCount:    1,
			SourceBitmap:   1,
		},
		Assessment: records.SignalAssessment{
			Direction:       records.DirectionLong,
			ConfidenceBps:   8000,
			ValidUntilSlot:  1100,
			GeneratedAtSlot: 1000,
		},
		Receipt: records.TeeReceipt{
			Platform:             records.PlatformAmdSevSnp,
			AttestationTimestamp: 1_700_000_000,
		},
		CreatedAtSlot: 1000,
		UpdatedAtSlot: 1000,
	}
	copy(rec.Market.AssetSymbol[:], "SOL")
	return rec
}

func TestGetSignal(t *testing.T) {
	ctx := context.Background()
	rec := sampleRecord()
	var id [32]byte
	copy(id[:], rec.SignalID[:])

	t.Run("missing row maps to SignalNotFound", func(t *testing.T) {
		db := utils.NewTableDB().On("FROM main.signals", utils.Rows())
		_, err := GetSignal(ctx, db, rec.Provider, id)
		require.ErrorIs(t, err, signalerr.ErrSignalNotFound)
	})

	t.Run("row decodes back into the record", func(t *testing.T) {
		db := utils.NewTableDB().On("FROM main.signals", utils.Rows(storedSignalRow(rec)))

		got, err := GetSignal(ctx, db, rec.Provider, id)
		require.NoError(t, err)
		require.Equal(t, rec, got)
	})

	t.Run("truncated blob maps to CorruptedRecordData", func(t *testing.T) {
		row := storedSignalRow(rec)
		row[2] = row[2].([]byte)[:10] // market blob

		db := utils.NewTableDB().On("FROM main.signals", utils.Rows(row))
		_, err := GetSignal(ctx, db, rec.Provider, id)
		require.ErrorIs(t, err, signalerr.ErrCorruptedRecordData)
	})
}

func TestInsertSignal_DenormalizesValidUntil(t *testing.T) {
	ctx := context.Background()
	rec := sampleRecord()

	db := utils.NewTableDB()
	require.NoError(t, InsertSignal(ctx, db, rec))

	inserts := db.StmtsContaining("INSERT INTO main.signals")
	require.Len(t, inserts, 1)
	// $8 is valid_until_slot, lifted out of the assessment
	require.Equal(t, int64(1100), inserts[0].Args[7])
}

func TestMarkRevoked_WritesTerminalStatus(t *testing.T) {
	ctx := context.Background()
	rec := sampleRecord()

	db := utils.NewTableDB()
	require.NoError(t, MarkRevoked(ctx, db, rec.Provider, rec.SignalID, 1200))

	updates := db.StmtsContaining("UPDATE main.signals")
	require.Len(t, updates, 1)
	require.Equal(t, int64(records.StatusRevoked), updates[0].Args[2])
	require.Equal(t, int64(1200), updates[0].Args[3])
}
