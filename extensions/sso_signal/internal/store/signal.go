package store

import (
	"context"
	"fmt"

	"github.com/trufnetwork/kwil-db/node/types/sql"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// GetSignal loads one signal record, decoding the persisted payload blobs.
// A missing row maps to SignalNotFound; an undecodable blob maps to
// CorruptedRecordData.
func GetSignal(ctx context.Context, db sql.DB, provider []byte, signalID [32]byte) (*records.SignalRecord, error) {
	res, err := db.Execute(ctx, `
		SELECT spec_version, status, market_context, assessment, receipt,
		       created_at_slot, updated_at_slot, update_count
		FROM main.signals
		WHERE provider = $1 AND signal_id = $2
	`, provider, signalID[:])
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil, signalerr.ErrSignalNotFound
	}
	row := res.Rows[0]

	rec := &records.SignalRecord{Provider: provider, SignalID: signalID}

	version, err := colUint64(row[0], "spec_version")
	if err != nil {
		return nil, err
	}
	rec.SpecVersion = uint8(version)

	status, err := colUint64(row[1], "status")
	if err != nil {
		return nil, err
	}
	rec.Status = records.SignalStatus(status)

	marketRaw, err := colBytes(row[2], "market_context")
	if err != nil {
		return nil, err
	}
	market, err := records.ParseMarketContext(marketRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: market context: %s", signalerr.ErrCorruptedRecordData, err)
	}
	rec.Market = *market

	assessmentRaw, err := colBytes(row[3], "assessment")
	if err != nil {
		return nil, err
	}
	assessment, err := records.ParseSignalAssessment(assessmentRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: assessment: %s", signalerr.ErrCorruptedRecordData, err)
	}
	rec.Assessment = *assessment

	receiptRaw, err := colBytes(row[4], "receipt")
	if err != nil {
		return nil, err
	}
	receipt, err := records.ParseTeeReceipt(receiptRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt: %s", signalerr.ErrCorruptedRecordData, err)
	}
	rec.Receipt = *receipt

	if rec.CreatedAtSlot, err = colUint64(row[5], "created_at_slot"); err != nil {
		return nil, err
	}
	if rec.UpdatedAtSlot, err = colUint64(row[6], "updated_at_slot"); err != nil {
		return nil, err
	}
	count, err := colUint64(row[7], "update_count")
	if err != nil {
		return nil, err
	}
	rec.UpdateCount = count

	return rec, nil
}

// SignalExists reports whether a record exists for (provider, signal_id),
// regardless of lifecycle state.
func SignalExists(ctx context.Context, db sql.DB, provider []byte, signalID [32]byte) (bool, error) {
	res, err := db.Execute(ctx, `
		SELECT 1 FROM main.signals WHERE provider = $1 AND signal_id = $2
	`, provider, signalID[:])
	if err != nil {
		return false, fmt.Errorf("query signals: %w", err)
	}
	return len(res.Rows) > 0, nil
}

// InsertSignal writes a newly admitted record. valid_until_slot is
// denormalized from the assessment so reads can derive expiry without
// decoding the blob.
func InsertSignal(ctx context.Context, db sql.DB, rec *records.SignalRecord) error {
	_, err := db.Execute(ctx, `
		INSERT INTO main.signals
			(provider, signal_id, spec_version, status, market_context,
			 assessment, receipt, valid_until_slot, created_at_slot,
			 updated_at_slot, update_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.Provider, rec.SignalID[:], int64(rec.SpecVersion), int64(rec.Status),
		rec.Market.Encode(), rec.Assessment.Encode(), rec.Receipt.Encode(),
		int64(rec.Assessment.ValidUntilSlot), int64(rec.CreatedAtSlot),
		int64(rec.UpdatedAtSlot), int64(rec.UpdateCount))
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// UpdateSignalPayloads replaces the payload blobs of an existing record and
// advances its update bookkeeping. Status is not touched here.
func UpdateSignalPayloads(ctx context.Context, db sql.DB, rec *records.SignalRecord) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signals
		SET market_context = $3, assessment = $4, receipt = $5,
		    valid_until_slot = $6, updated_at_slot = $7, update_count = $8
		WHERE provider = $1 AND signal_id = $2
	`, rec.Provider, rec.SignalID[:],
		rec.Market.Encode(), rec.Assessment.Encode(), rec.Receipt.Encode(),
		int64(rec.Assessment.ValidUntilSlot), int64(rec.UpdatedAtSlot),
		int64(rec.UpdateCount))
	if err != nil {
		return fmt.Errorf("update signal: %w", err)
	}
	return nil
}

// MarkRevoked writes the terminal Revoked status. The record stays
// queryable as a tombstone.
func MarkRevoked(ctx context.Context, db sql.DB, provider []byte, signalID [32]byte, slot uint64) error {
	_, err := db.Execute(ctx, `
		UPDATE main.signals
		SET status = $3, updated_at_slot = $4
		WHERE provider = $1 AND signal_id = $2
	`, provider, signalID[:], int64(records.StatusRevoked), int64(slot))
	if err != nil {
		return fmt.Errorf("revoke signal: %w", err)
	}
	return nil
}

// CountProviderSignals returns how many records a provider has submitted,
// including revoked tombstones.
func CountProviderSignals(ctx context.Context, db sql.DB, provider []byte) (uint64, error) {
	res, err := db.Execute(ctx, `
		SELECT COUNT(*) FROM main.signals WHERE provider = $1
	`, provider)
	if err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return colUint64(res.Rows[0][0], "count")
}
