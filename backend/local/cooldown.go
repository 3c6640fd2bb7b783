package local

import "time"

// isWithinThresholdPeriod reports whether t happened less than period before now.
func isWithinThresholdPeriod(t, now time.Time, period time.Duration) bool {
	return t.After(now.Add(-period))
}

// isOutsideThresholdPeriod is the negation of isWithinThresholdPeriod.
func isOutsideThresholdPeriod(t, now time.Time, period time.Duration) bool {
	return !isWithinThresholdPeriod(t, now, period)
}
