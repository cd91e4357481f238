// Command vocalisd runs the audio ingestion and delivery server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vocalis-app/vocalis/internal/api"
	"github.com/vocalis-app/vocalis/internal/cache"
	"github.com/vocalis-app/vocalis/internal/config"
	"github.com/vocalis-app/vocalis/internal/health"
	"github.com/vocalis-app/vocalis/internal/ingest"
	"github.com/vocalis-app/vocalis/internal/log"
	"github.com/vocalis-app/vocalis/internal/media"
	"github.com/vocalis-app/vocalis/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vocalisd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		logger := log.Base()
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(configPath string) error {
	cfg, err := config.FromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "vocalisd",
	})
	logger := log.WithComponent("daemon")
	logger.Info().
		Str("version", version).
		Str("listen_addr", cfg.ListenAddr).
		Str("store_backend", cfg.StoreBackend).
		Str("cache_backend", cfg.CacheBackend).
		Msg("starting vocalisd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}

	st, err := store.Open(cfg.StoreBackend, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	c, err := buildCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	transcoder := media.NewTranscoder(cfg.FFmpegBin, cfg.TranscodeTimeout)
	ingestSvc := ingest.NewService(st, cfg.UploadDir, cfg.MaxUploadBytes, transcoder)

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewDirChecker("upload_dir", cfg.UploadDir))
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpegBin))
	hm.RegisterChecker(health.NewStoreChecker("store", st))

	srv := api.NewServer(cfg, st, c, ingestSvc, hm).HTTPServer(cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen_addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func buildCache(cfg config.AppConfig, logger zerolog.Logger) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	default:
		return cache.NewMemoryCache(time.Minute), nil
	}
}
