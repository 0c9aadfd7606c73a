package detector

// availabilityCounter tracks probe failures over the last N cycles. Failed
// probes never enter the latency window; they only move this counter.
type availabilityCounter struct {
	outcomes []bool
	capacity int
	failures int
}

func newAvailabilityCounter(capacity int) *availabilityCounter {
	if capacity <= 0 {
		capacity = 50
	}
	return &availabilityCounter{
		outcomes: make([]bool, 0, capacity),
		capacity: capacity,
	}
}

func (a *availabilityCounter) record(ok bool) {
	if len(a.outcomes) == a.capacity {
		if !a.outcomes[0] {
			a.failures--
		}
		copy(a.outcomes[0:], a.outcomes[1:])
		a.outcomes = a.outcomes[:a.capacity-1]
	}
	a.outcomes = append(a.outcomes, ok)
	if !ok {
		a.failures++
	}
}

// errorRate returns the failure fraction over the tracked cycles.
func (a *availabilityCounter) errorRate() float64 {
	if len(a.outcomes) == 0 {
		return 0
	}
	return float64(a.failures) / float64(len(a.outcomes))
}
