package server

import "time"

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Performance settings
	RateLimit int // Requests per minute per IP (0 to disable)
	CacheTTL  time.Duration

	// HTTP timeouts. WriteTimeout must stay zero: the SSE endpoint
	// holds its response open indefinitely and a write deadline would
	// sever every stream.
	ReadTimeout time.Duration
	IdleTimeout time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           4000,
		PathPrefix:     "/api/v1",
		CORSEnabled:    true,
		CORSOrigins:    []string{},
		RateLimit:      300,
		CacheTTL:       30 * time.Second,
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}
