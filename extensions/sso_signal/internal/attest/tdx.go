package attest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/google/go-tdx-guest/abi"
	"github.com/google/go-tdx-guest/client"
	"github.com/google/go-tdx-guest/proto/tdx"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
)

// tdxAttester produces quotes through the TDX guest driver. Receipts minted
// from TDX reports are not yet admissible (verification requires SEV-SNP);
// the attester exists so TDX operators can self-check measurements before
// the platform is enabled.
type tdxAttester struct {
	logger log.Logger
	qp     client.QuoteProvider
}

func newTdxAttester(logger log.Logger) Attester {
	a := &tdxAttester{logger: logger.New("attest.tdx")}
	qp, err := client.GetQuoteProvider()
	if err != nil {
		a.logger.Warn("tdx quote provider unavailable", "error", err)
		return a
	}
	a.qp = qp
	a.logger.Info("tdx attester ready")
	return a
}

func (a *tdxAttester) Platform() records.TeePlatform { return records.PlatformIntelTdx }

func (a *tdxAttester) Available() bool {
	return a.qp != nil && a.qp.IsSupported() == nil
}

func (a *tdxAttester) Report(_ context.Context, userData [64]byte) (*PlatformReport, error) {
	if !a.Available() {
		return nil, ErrAttesterUnavailable
	}
	raw, err := a.qp.GetRawQuote(userData)
	if err != nil {
		return nil, fmt.Errorf("tdx raw quote: %w", err)
	}
	parsed, err := abi.QuoteToProto(raw)
	if err != nil {
		return nil, fmt.Errorf("parse tdx quote: %w", err)
	}
	quote, ok := parsed.(*tdx.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported tdx quote format %T", parsed)
	}

	out := &PlatformReport{
		Platform:        records.PlatformIntelTdx,
		Raw:             raw,
		Measurement:     sha256.Sum256(quote.TdQuoteBody.MrTd),
		PlatformVersion: quote.Header.Version,
	}
	if svn := quote.TdQuoteBody.TeeTcbSvn; len(svn) >= 8 {
		out.TcbVersion = binary.LittleEndian.Uint64(svn[:8])
	}
	return out, nil
}

func (a *tdxAttester) Measurement(ctx context.Context) ([32]byte, error) {
	report, err := a.Report(ctx, [64]byte{})
	if err != nil {
		return [32]byte{}, err
	}
	return report.Measurement, nil
}
