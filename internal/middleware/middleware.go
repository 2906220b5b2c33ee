package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds middleware configuration.
type Config struct {
	Logger *zap.Logger

	CORS *CORSConfig

	// RateLimiter is shared across chains so callers can stop it on shutdown.
	RateLimiter *RateLimiter

	RequestTimeout time.Duration
}

// NewConfig builds a chain configuration with its own rate limiter.
func NewConfig(logger *zap.Logger, cors *CORSConfig, limit rate.Limit, burst int, timeout time.Duration) *Config {
	return &Config{
		Logger:         logger,
		CORS:           cors,
		RateLimiter:    NewRateLimiter(limit, burst),
		RequestTimeout: timeout,
	}
}

// Chain returns the common middleware stack, outermost first: logger,
// request id, recovery, CORS, rate limit, timeout.
func Chain(config *Config) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		h := handler

		h = Timeout(config.RequestTimeout)(h)

		if config.RateLimiter != nil {
			h = config.RateLimiter.Middleware()(h)
		}

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)

		h = RequestID(h)

		h = Logger(config.Logger)(h)

		return h
	}
}
