// Package backoff computes retry delays and the give-up window shared by the reconciliation jobs.
package backoff

import "time"

// NextRetryDelay returns min(minDelay * 2^attempt, maxDelay). attempt counts prior failed
// attempts, so the first retry waits exactly minDelay.
func NextRetryDelay(attempt int32, minDelay, maxDelay time.Duration) time.Duration {
	if minDelay <= 0 {
		return 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if attempt <= 0 {
		return minDelay
	}

	delay := minDelay
	for i := int32(0); i < attempt; i++ {
		if delay > maxDelay-delay {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// NextRetryAt is NextRetryDelay applied to now.
func NextRetryAt(now time.Time, attempt int32, minDelay, maxDelay time.Duration) time.Time {
	return now.Add(NextRetryDelay(attempt, minDelay, maxDelay))
}

// ShouldGiveUp reports whether a flow that started at startedAt fell out of the give-up window.
// A zero or negative window disables give-up, and a flow that never started is never given up.
func ShouldGiveUp(startedAt *time.Time, giveUpAfterDays int, now time.Time) bool {
	cutoff, ok := GiveUpCutoff(now, giveUpAfterDays)
	if !ok || startedAt == nil {
		return false
	}
	return startedAt.Before(cutoff)
}

// GiveUpCutoff is the oldest start time still eligible for retries.
func GiveUpCutoff(now time.Time, giveUpAfterDays int) (time.Time, bool) {
	if giveUpAfterDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -giveUpAfterDays), true
}
