// Package api provides the HTTP server for the resumable upload
// service.
package api

import (
	"fmt"
	"time"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Port is the TCP port the server listens on.
	Port int `mapstructure:"port" yaml:"port"`

	// ReadHeaderTimeout bounds reading request headers. Whole-request
	// read timeouts are deliberately not set: chunk PUTs stream for
	// minutes and are bounded by ChunkDeadline instead.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds the non-streaming endpoints (create, status,
	// draft, abort). Chunk PUTs are exempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// JWTSecret is the HMAC secret for bearer token verification.
	// Must be at least 32 characters.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTIssuer, when set, is required in the token's iss claim.
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// RateCreatePerHour caps session creates per principal per hour.
	RateCreatePerHour int `mapstructure:"rate_create_per_hour" yaml:"rate_create_per_hour"`

	// RateChunkPerMinute caps chunk PUTs per principal per minute.
	RateChunkPerMinute int `mapstructure:"rate_chunk_per_minute" yaml:"rate_chunk_per_minute"`

	// ChunkDeadline bounds one chunk PUT end to end. Sized for the
	// largest chunk at the slowest acceptable ingress rate.
	ChunkDeadline time.Duration `mapstructure:"chunk_deadline" yaml:"chunk_deadline"`
}

// ApplyDefaults fills in zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RateCreatePerHour == 0 {
		c.RateCreatePerHour = 10
	}
	if c.RateChunkPerMinute == 0 {
		c.RateChunkPerMinute = 100
	}
	if c.ChunkDeadline == 0 {
		c.ChunkDeadline = 15 * time.Minute
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
