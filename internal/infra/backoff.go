package infra

import (
	"math"
	"time"
)

const (
	backoffBaseDelay = 1 * time.Second
	backoffMaxDelay  = 60 * time.Second
)

// CalculateBackoff returns the reconnect delay for the given retry count:
// 1s, 2s, 4s, ... capped at 60s.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// Cap retry count to prevent overflow (2^6 = 64 seconds > max 60s)
	if retryCount > 6 {
		return backoffMaxDelay
	}
	delay := backoffBaseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > backoffMaxDelay {
		delay = backoffMaxDelay
	}
	return delay
}
