package pool

import (
	"math/rand"
	"time"

	"chat-engine/pkg/config"
)

// nextBackoff computes the reconnect delay for the given attempt:
// exponential growth from the initial delay, capped at the ceiling, with a
// symmetric jitter fraction applied last.
func nextBackoff(cfg config.NetworkConfig, attempt int) time.Duration {
	base := time.Duration(cfg.InitialBackoffSeconds) * time.Second
	ceiling := time.Duration(cfg.MaxBackoffSeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	if ceiling < base {
		ceiling = base
	}

	// Shift overflow guard; past ~30 doublings the cap has long been hit.
	if attempt > 30 {
		attempt = 30
	}
	delay := base << uint(attempt)
	if delay <= 0 || delay > ceiling {
		delay = ceiling
	}

	if cfg.BackoffJitter > 0 {
		factor := 1 + cfg.BackoffJitter*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * factor)
	}
	if delay < 0 {
		delay = base
	}
	return delay
}
