package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/auth"
	"github.com/vovakirdan/chatline-server/internal/config"
	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/store"
	"github.com/vovakirdan/chatline-server/internal/store/postgres"
	"github.com/vovakirdan/chatline-server/internal/store/redisstore"
	"github.com/vovakirdan/chatline-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatline-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	store           store.Store
	unseen          *redisstore.UnseenCounter
	log             *zerolog.Logger
}

// OpenStore opens the store selected by cfg.Database and applies its schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverSQLite, "":
		st, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	var unseen core.UnseenCounter = core.NewMemoryUnseen()
	if cfg.Unseen.Backend == config.UnseenRedis {
		rc, err := redisstore.Dial(ctx, cfg.Unseen.RedisURL)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init unseen counter: %w", err)
		}
		a.unseen = rc
		unseen = rc
		logger.Info().Msg("unseen counters stored in redis")
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		TTL:        cfg.JWT.TTL,
		ConnectTTL: cfg.JWT.ConnectTTL,
	})

	var verifier core.IdentityVerifier = authService
	if cfg.Session.TrustClientIdentity {
		logger.Warn().Msg("session.trust_client_identity is enabled: connect accepts bare user ids")
		verifier = auth.NewTrustedVerifier(st)
	}

	registry := core.NewRegistry(core.NewBroadcaster(logger), logger)
	router := core.NewRouter(st, st, registry, unseen, logger)
	gateway := core.NewGateway(registry, verifier, core.SessionConfig{
		AuthTimeout:  cfg.Session.AuthTimeout,
		PingInterval: cfg.Session.PingInterval,
		PingTimeout:  cfg.Session.PingTimeout,
		SendBuffer:   cfg.Session.SendBuffer,
	}, logger)

	a.registry = registry
	a.server = transporthttp.NewServer(transporthttp.Services{
		Auth:     authService,
		Users:    st,
		Router:   router,
		Registry: registry,
		Gateway:  gateway,
	}, cfg, logger)

	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Int("sessions", a.registry.Len()).Msg("shutting down http server")
		a.registry.CloseAll(core.CloseShutdown)
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.unseen != nil {
		if err := a.unseen.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
