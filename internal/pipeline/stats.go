package pipeline

import "time"

// RunStats aggregates outcomes across a batch. Mutated only on the collector
// goroutine, so no locking is needed.
type RunStats struct {
	Total     int
	Processed int
	Resized   int
	Errors    int
	Moved     int
	Replaced  int

	TotalInputBytes  int64
	TotalOutputBytes int64
}

// Apply folds one successful or failed result into the counters.
func (s *RunStats) Apply(res Result) {
	if res.Err != nil {
		s.Errors++
		return
	}
	s.Processed++
	s.TotalInputBytes += res.InputBytes
	s.TotalOutputBytes += res.OutputBytes
	if res.Resized {
		s.Resized++
	}
}

// SpaceSaved returns input minus output bytes. Negative means outputs grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// SavingsPercent returns (1 - out/in) * 100 when both totals are positive.
func (s *RunStats) SavingsPercent() (float64, bool) {
	if s.TotalInputBytes <= 0 || s.TotalOutputBytes <= 0 {
		return 0, false
	}
	return (1 - float64(s.TotalOutputBytes)/float64(s.TotalInputBytes)) * 100, true
}

// Throughput returns processed images per second of wall time.
func (s *RunStats) Throughput(elapsed time.Duration) float64 {
	if elapsed <= 0 || s.Processed == 0 {
		return 0
	}
	return float64(s.Processed) / elapsed.Seconds()
}
