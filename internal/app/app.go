package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/maestroprog/wschatserver/internal/auth"
	"github.com/maestroprog/wschatserver/internal/cache"
	"github.com/maestroprog/wschatserver/internal/chat"
	"github.com/maestroprog/wschatserver/internal/config"
	"github.com/maestroprog/wschatserver/internal/store"
	"github.com/maestroprog/wschatserver/internal/store/sqlite"
	transporthttp "github.com/maestroprog/wschatserver/internal/transport/http"
)

// App wires together the chat engine, external stores, and transport.
type App struct {
	cfg      config.Config
	server   *stdhttp.Server
	chat     *chat.Server
	store    store.UserStore
	keyCache *cache.Redis
	log      *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	keyCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	resolver := auth.NewService(keyCache, st)

	chatSrv := chat.NewServer(chat.Options{
		IPConnLimit:    cfg.IPConnLimit,
		HistoryLimit:   cfg.HistoryLimit,
		PingInterval:   cfg.PingInterval,
		PingTimeout:    cfg.PingTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	}, resolver, logger)

	var jwtCfg *auth.JWTConfig
	if cfg.AdminJWTSecret != "" {
		jwtCfg = &auth.JWTConfig{
			Secret: []byte(cfg.AdminJWTSecret),
			Issuer: cfg.AdminJWTIssuer,
			TTL:    24 * time.Hour,
		}
	}

	a := &App{
		cfg:      cfg,
		chat:     chatSrv,
		store:    st,
		keyCache: keyCache,
		log:      logger,
	}
	a.server = transporthttp.NewServer(chatSrv, cfg, jwtCfg, a.saveSnapshot, logger)

	return a, nil
}

// Run starts the engine and the HTTP server and blocks until context
// cancellation or a fatal error. Rooms are restored from the snapshot
// file at startup and persisted back on shutdown.
func (a *App) Run(ctx context.Context) error {
	chatCtx, stopChat := context.WithCancel(context.Background())
	defer stopChat()
	go a.chat.Run(chatCtx)

	if err := a.restoreSnapshot(); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.SnapshotPath).Msg("failed to restore snapshot")
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Msg("starting http server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)

		if snapErr := a.saveSnapshot(); snapErr != nil {
			a.log.Warn().Err(snapErr).Msg("failed to save snapshot on shutdown")
		}

		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

func (a *App) restoreSnapshot() error {
	if a.cfg.SnapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(a.cfg.SnapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.chat.RestoreSnapshot(data); err != nil {
		return err
	}
	a.log.Info().Str("path", a.cfg.SnapshotPath).Msg("rooms restored from snapshot")
	return nil
}

func (a *App) saveSnapshot() error {
	if a.cfg.SnapshotPath == "" {
		return nil
	}
	data, err := a.chat.SnapshotJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.cfg.SnapshotPath, data, 0o644); err != nil {
		return err
	}
	a.log.Info().Str("path", a.cfg.SnapshotPath).Msg("rooms snapshot saved")
	return nil
}

// cleanup closes the database and cache clients.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		}
	}
	if a.keyCache != nil {
		if err := a.keyCache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close key cache")
		}
	}
}
