package loadtest

import (
	"math"
	"sort"
)

// Ranks reported by Summarize.
const (
	RankP75 = 0.75
	RankP95 = 0.95
	RankP99 = 0.99
)

// Percentiles holds latency statistics over successful samples, in
// milliseconds.
type Percentiles struct {
	P75  int64
	P95  int64
	P99  int64
	Min  int64
	Max  int64
	Mean int64
}

// PercentileSummary aggregates one run.
type PercentileSummary struct {
	Total        int
	SampleCount  int
	FailureCount int
	// Percentiles is nil when no job succeeded.
	Percentiles    *Percentiles
	FailuresByKind map[FailureKind]int
}

// Defined reports whether percentiles could be computed.
func (s PercentileSummary) Defined() bool {
	return s.Percentiles != nil
}

// Summarize partitions results into successes and failures and computes
// percentiles over the successful samples only.
func Summarize(results []Result) PercentileSummary {
	summary := PercentileSummary{
		Total:          len(results),
		FailuresByKind: make(map[FailureKind]int),
	}

	samples := make([]int64, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			samples = append(samples, r.ElapsedMillis())
			continue
		}
		summary.FailureCount++
		summary.FailuresByKind[r.Failure.Kind]++
	}
	summary.SampleCount = len(samples)

	if len(samples) == 0 {
		return summary
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var total int64
	for _, s := range samples {
		total += s
	}

	p := &Percentiles{
		Min:  samples[0],
		Max:  samples[len(samples)-1],
		Mean: total / int64(len(samples)),
	}
	p.P75, _ = PercentileAtRank(samples, RankP75)
	p.P95, _ = PercentileAtRank(samples, RankP95)
	p.P99, _ = PercentileAtRank(samples, RankP99)
	summary.Percentiles = p

	return summary
}

// PercentileAtRank returns the value at index floor(p*(n-1)) of an ascending
// sequence. It returns false for an empty sequence.
func PercentileAtRank(sorted []int64, p float64) (int64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}

	idx := int(math.Floor(p * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx], true
}
