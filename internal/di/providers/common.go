package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// limiterIdleTTL is how long an unused rate-limit bucket is kept.
	limiterIdleTTL = 10 * time.Minute
)
