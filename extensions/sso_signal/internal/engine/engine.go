// Package engine implements the deterministic rule set of the signal
// oracle: protocol policy, the provider registry, and the admission and
// lifecycle pipeline for attested signals.
//
// Every function here runs inside the block transaction opened by the
// calling precompile handler. State flows through the engine-supplied DB
// handle, checks run in a fixed order, and each failure carries a typed
// signalerr code so providers observe stable error identities across node
// versions.
package engine

import (
	"fmt"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
	"github.com/ssonetwork/node/extensions/sso_signal/internal/signalerr"
)

// BlockInfo pins an operation to its execution point in the chain. Height
// doubles as the slot clock: one block per slot, one second per slot.
type BlockInfo struct {
	Slot      uint64
	Timestamp int64 // unix seconds
}

// payloadSet is the decoded form of a submission's three wire blobs.
type payloadSet struct {
	Market     *records.MarketContext
	Assessment *records.SignalAssessment
	Receipt    *records.TeeReceipt
}

// decodePayloads parses the three blobs of a submission. Shape failures
// map to the owning payload's validation code. Assessment errors that
// already carry a code, such as an invalid direction tag, pass through
// unchanged.
func decodePayloads(marketRaw, assessmentRaw, receiptRaw []byte) (*payloadSet, error) {
	market, err := records.ParseMarketContext(marketRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", signalerr.ErrInvalidMarketContext, err)
	}
	assessment, err := records.ParseSignalAssessment(assessmentRaw)
	if err != nil {
		if signalerr.IsOracleError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", signalerr.ErrInvalidSignalAssessment, err)
	}
	receipt, err := records.ParseTeeReceipt(receiptRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", signalerr.ErrTeeVerificationFailed, err)
	}
	return &payloadSet{Market: market, Assessment: assessment, Receipt: receipt}, nil
}
