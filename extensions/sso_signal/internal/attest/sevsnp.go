package attest

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/google/go-sev-guest/abi"
	"github.com/google/go-sev-guest/client"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/ssonetwork/node/extensions/sso_signal/internal/records"
)

// sevSnpAttester produces reports through the SEV-SNP guest driver. SNP
// launch digests are 48 bytes; the registry keys on their sha256 so
// measurements fit the 32-byte receipt field.
type sevSnpAttester struct {
	logger log.Logger
	qp     client.QuoteProvider
}

func newSevSnpAttester(logger log.Logger) Attester {
	a := &sevSnpAttester{logger: logger.New("attest.sevsnp")}
	qp, err := client.GetQuoteProvider()
	if err != nil {
		a.logger.Warn("sev-snp quote provider unavailable", "error", err)
		return a
	}
	a.qp = qp
	a.logger.Info("sev-snp attester ready")
	return a
}

func (a *sevSnpAttester) Platform() records.TeePlatform { return records.PlatformAmdSevSnp }

func (a *sevSnpAttester) Available() bool {
	return a.qp != nil && a.qp.IsSupported()
}

func (a *sevSnpAttester) Report(_ context.Context, userData [64]byte) (*PlatformReport, error) {
	if !a.Available() {
		return nil, ErrAttesterUnavailable
	}
	raw, err := a.qp.GetRawQuote(userData)
	if err != nil {
		return nil, fmt.Errorf("sev-snp raw quote: %w", err)
	}
	// The driver may append certificate data after the report itself.
	if len(raw) > abi.ReportSize {
		raw = raw[:abi.ReportSize]
	}
	report, err := abi.ReportToProto(raw)
	if err != nil {
		return nil, fmt.Errorf("parse sev-snp report: %w", err)
	}

	out := &PlatformReport{
		Platform:        records.PlatformAmdSevSnp,
		Raw:             raw,
		Measurement:     sha256.Sum256(report.Measurement),
		PlatformVersion: report.Version,
		TcbVersion:      report.CurrentTcb,
	}
	copy(out.ReportID[:], report.ReportId)
	return out, nil
}

func (a *sevSnpAttester) Measurement(ctx context.Context) ([32]byte, error) {
	report, err := a.Report(ctx, [64]byte{})
	if err != nil {
		return [32]byte{}, err
	}
	return report.Measurement, nil
}
