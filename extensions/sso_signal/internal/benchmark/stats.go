package benchmark

import (
	"time"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/exp/slices"
)

// CaseStats are the derived latency figures of one operation run.
type CaseStats struct {
	MeanMs    float64
	P50Ms     float64
	P95Ms     float64
	P99Ms     float64
	OpsPerSec float64
}

// summarize derives mean, percentiles and throughput from raw durations.
// The divisions run through apd decimals and convert to float only at the
// end, after the integer nanosecond totals are reduced.
func summarize(durations []time.Duration) CaseStats {
	n := len(durations)
	if n == 0 {
		return CaseStats{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var totalNs int64
	for _, d := range sorted {
		totalNs += d.Nanoseconds()
	}

	apdCtx := apd.BaseContext.WithPrecision(16)

	mean := new(apd.Decimal)
	_, _ = apdCtx.Quo(mean, apd.New(totalNs, 0), apd.New(int64(n), 0))
	meanNs, _ := mean.Float64()

	var opsPerSec float64
	if totalNs > 0 {
		ops := new(apd.Decimal)
		_, _ = apdCtx.Quo(ops, apd.New(int64(n), 9), apd.New(totalNs, 0))
		opsPerSec, _ = ops.Float64()
	}

	return CaseStats{
		MeanMs:    meanNs / float64(time.Millisecond),
		P50Ms:     ms(percentile(sorted, 50)),
		P95Ms:     ms(percentile(sorted, 95)),
		P99Ms:     ms(percentile(sorted, 99)),
		OpsPerSec: opsPerSec,
	}
}

// percentile is the nearest-rank percentile over an ascending slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (p*len(sorted) + 99) / 100
	if idx < 1 {
		idx = 1
	}
	return sorted[idx-1]
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / float64(time.Millisecond)
}
