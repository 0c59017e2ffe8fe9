package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/freekieb7/staticd/http"
	"github.com/freekieb7/staticd/telemetry"
)

const name = "github.com/freekieb7/staticd"

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := configFromEnv(http.DefaultConfig())
	if err != nil {
		return err
	}

	telemetryEnabled := envBool("STATICD_TELEMETRY")
	if telemetryEnabled {
		shutdown, err := telemetry.Setup(ctx, "staticd")
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Println(err)
			}
		}()
	}

	level := slog.LevelInfo
	if envBool("STATICD_DEBUG") {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(name, telemetryEnabled, level)

	server, err := http.NewServer(cfg, logger)
	if err != nil {
		return err
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe(ctx)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serverErrCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// configFromEnv overrides the defaults with STATICD_* environment variables.
func configFromEnv(cfg http.Config) (http.Config, error) {
	if v, ok := os.LookupEnv("STATICD_ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := os.LookupEnv("STATICD_ROOT"); ok {
		cfg.Root = v
	}

	for _, setting := range []struct {
		key string
		dst *int
	}{
		{"STATICD_WORKERS", &cfg.Workers},
		{"STATICD_QUEUE_SIZE", &cfg.QueueSize},
		{"STATICD_READ_CHUNK_SIZE", &cfg.ReadChunkSize},
		{"STATICD_MAX_LINE_BYTES", &cfg.MaxLineBytes},
	} {
		v, ok := os.LookupEnv(setting.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", setting.key, err)
		}
		*setting.dst = n
	}

	if v, ok := os.LookupEnv("STATICD_MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("STATICD_MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v, ok := os.LookupEnv("STATICD_POP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("STATICD_POP_TIMEOUT: %w", err)
		}
		cfg.PopTimeout = d
	}

	return cfg, cfg.Validate()
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
