package http

import (
	"fmt"
	"time"
)

// Config holds the listen address, document root, pool sizing and request
// limits of a Server.
type Config struct {
	Addr string
	Root string

	Workers    int
	QueueSize  int
	PopTimeout time.Duration

	ReadChunkSize int
	MaxLineBytes  int
	MaxBodyBytes  int64
}

func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:9000",
		Root:          "www",
		Workers:       16,
		QueueSize:     128,
		PopTimeout:    time.Second,
		ReadChunkSize: DefaultReadChunkSize,
		MaxLineBytes:  DefaultMaxLineBytes,
		MaxBodyBytes:  DefaultMaxBodyBytes,
	}
}

// Validate reports the first setting that would leave the server unable to run.
// Zero limits (MaxLineBytes, MaxBodyBytes) mean unlimited.
func (cfg Config) Validate() error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("http: config: empty address")
	case cfg.Root == "":
		return fmt.Errorf("http: config: empty document root")
	case cfg.Workers <= 0:
		return fmt.Errorf("http: config: workers must be positive, got %d", cfg.Workers)
	case cfg.QueueSize <= 0:
		return fmt.Errorf("http: config: queue size must be positive, got %d", cfg.QueueSize)
	case cfg.PopTimeout <= 0:
		return fmt.Errorf("http: config: pop timeout must be positive, got %s", cfg.PopTimeout)
	case cfg.ReadChunkSize <= 0:
		return fmt.Errorf("http: config: read chunk size must be positive, got %d", cfg.ReadChunkSize)
	case cfg.MaxLineBytes < 0:
		return fmt.Errorf("http: config: negative max line bytes")
	case cfg.MaxBodyBytes < 0:
		return fmt.Errorf("http: config: negative max body bytes")
	}
	return nil
}
