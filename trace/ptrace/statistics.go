package ptrace

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"honnef.co/go/simtrace/trace"
)

// MaxHostBusyBuckets is the largest number of buckets ComputeHostBusy computes.
const MaxHostBusyBuckets = 1 << 20

// ComputeHostBusy returns, for each bucket of bucketSize seconds from time zero to the end of the trace, the
// percentage of h's cores that were busy computing. Only compute phases count, weighted by the number of cores
// each task was allocated. Over-subscribed traces can exceed the host's capacity; those buckets are reported as
// 100.
func ComputeHostBusy(tr *Trace, h *Host, bucketSize trace.Timestamp) ([]int, error) {
	if !(bucketSize > 0) {
		return nil, fmt.Errorf("invalid bucket size %g", bucketSize)
	}
	total := tr.End()
	n := math.Ceil(float64(total / bucketSize))
	if n > MaxHostBusyBuckets {
		return nil, fmt.Errorf("bucket size %g splits %g seconds into %g buckets, more than the supported %d",
			bucketSize, total, n, MaxHostBusyBuckets)
	}
	buckets := make([]float64, int(n))
	for _, t := range h.Tasks {
		if t.Compute.Placeholder {
			continue
		}
		ival := t.Compute.Intervals[0]
		start, end := ival.Start, t.IntervalEnd(ival)
		if end <= start {
			continue
		}
		for b := int(start / bucketSize); b < len(buckets); b++ {
			bStart := trace.Timestamp(b) * bucketSize
			bEnd := bStart + bucketSize
			if bStart >= end {
				break
			}
			overlap := min(end, bEnd) - max(start, bStart)
			buckets[b] += float64(overlap) * float64(t.NumCores)
		}
	}

	capacity := float64(bucketSize) * float64(h.Cores)
	out := make([]int, len(buckets))
	for i, n := range buckets {
		out[i] = min(100, int(math.Round(n/capacity*100)))
	}
	return out, nil
}

type Statistic struct {
	Count           int
	Min, Max, Total trace.Timestamp
	Average, Median float64
}

// Statistics holds one Statistic per phase kind. The PhaseNone entry is unused.
type Statistics [PhaseLast]Statistic

// ComputeStatistics summarizes phase durations over a set of tasks. Placeholder phases, which didn't happen,
// aren't counted.
func ComputeStatistics(tasks []*Task) Statistics {
	var values [PhaseLast][]trace.Timestamp
	var stats Statistics

	for _, t := range tasks {
		for k := PhaseRead; k < PhaseLast; k++ {
			if k != PhaseWhole && t.Phase(k).Placeholder {
				continue
			}
			stat := &stats[k]
			d := t.Duration(k)
			stat.Count++
			if d > stat.Max {
				stat.Max = d
			}
			if d < stat.Min || stat.Count == 1 {
				stat.Min = d
			}
			stat.Total += d
			values[k] = append(values[k], d)
		}
	}

	for k := range stats {
		stat := &stats[k]
		vs := values[k]
		if len(vs) == 0 {
			continue
		}

		stat.Average = float64(stat.Total) / float64(len(vs))

		slices.Sort(vs)
		if len(vs)%2 == 0 {
			mid := len(vs) / 2
			stat.Median = float64(vs[mid]+vs[mid-1]) / 2
		} else {
			stat.Median = float64(vs[len(vs)/2])
		}
	}

	return stats
}
