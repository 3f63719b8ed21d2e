package perf

import (
	"slices"
	"time"
)

// OperationSummary aggregates the retained samples of one operation.
type OperationSummary struct {
	Count int
	Total time.Duration
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
	P95   time.Duration
}

// Summary aggregates the retained history per operation.
func (m *Monitor) Summary() map[string]OperationSummary {
	byOp := make(map[string][]time.Duration)
	for _, metric := range m.History() {
		byOp[metric.Operation] = append(byOp[metric.Operation], metric.Duration)
	}

	out := make(map[string]OperationSummary, len(byOp))
	for op, durations := range byOp {
		slices.Sort(durations)

		var total time.Duration
		for _, d := range durations {
			total += d
		}

		n := len(durations)
		out[op] = OperationSummary{
			Count: n,
			Total: total,
			Mean:  total / time.Duration(n),
			Min:   durations[0],
			Max:   durations[n-1],
			P95:   durations[(n*95-1)/100],
		}
	}
	return out
}
