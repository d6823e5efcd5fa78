// Package retry holds the fixed backoff schedule applied to failed jobs.
//
// The schedule is discrete on purpose: attempt 1 waits one minute, attempt 2
// five, attempt 3 fifteen, and every later attempt thirty.
package retry

import "time"

var schedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// Backoff returns the delay before the given retry attempt (1-based) becomes
// eligible. Attempts below 1 are treated as the first.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(schedule) {
		return schedule[len(schedule)-1]
	}
	return schedule[attempt-1]
}

func ShouldRetry(retryCount, maxRetries int) bool {
	return retryCount < maxRetries
}
