package domain

import "time"

// BackoffDelay returns the retry delay after the given attempt:
// 2^retryCount minutes, i.e. 2m, 4m, 8m for attempts 1, 2, 3.
func BackoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(1<<uint(retryCount)) * time.Minute
}
