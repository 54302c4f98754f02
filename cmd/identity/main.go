package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/bootstrap"
	"github.com/DTADMI/gamehub-api/internal/config"
	"github.com/DTADMI/gamehub-api/internal/features"
	"github.com/DTADMI/gamehub-api/internal/federation"
	httptransport "github.com/DTADMI/gamehub-api/internal/http"
	"github.com/DTADMI/gamehub-api/internal/http/handler"
	httpmiddleware "github.com/DTADMI/gamehub-api/internal/http/middleware"
	"github.com/DTADMI/gamehub-api/internal/ratelimit"
	"github.com/DTADMI/gamehub-api/internal/refresh"
	"github.com/DTADMI/gamehub-api/internal/server"
	"github.com/DTADMI/gamehub-api/internal/service"
	"github.com/DTADMI/gamehub-api/internal/telemetry"
	"github.com/DTADMI/gamehub-api/internal/token"
	"github.com/DTADMI/gamehub-api/internal/user"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newRedisClient,
			newUserRepository,
			newRefreshStore,
			newRefreshService,
			newTokenService,
			newAdmitter,
			newMessageLimiter,
			newFeatureService,
			newFederationVerifier,
			newAuthService,
			newAuthMiddleware,
			newAuthHandler,
			newFeatureHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, useMessageLimiter, bootstrap.EnsureAdmin, startSweeper, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

// newRedisClient is optional: with no REDIS_ADDR the service runs on the
// in-process limiter instead of shared counters.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newUserRepository(pool *pgxpool.Pool) user.Repository {
	return user.NewPostgresRepository(pool)
}

func newRefreshStore(pool *pgxpool.Pool) refresh.Store {
	return refresh.NewPostgresStore(pool)
}

func newRefreshService(store refresh.Store, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *refresh.Service {
	return refresh.NewService(store, node, cfg.RefreshTokenTTL, cfg.RefreshTokenBytes, logger)
}

func newTokenService(cfg config.Config) (*token.Service, error) {
	key, err := token.DeriveKey(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return token.NewService(key, cfg.AccessTokenTTL)
}

func newAdmitter(client redis.UniversalClient, cfg config.Config, logger *zap.Logger) ratelimit.Admitter {
	if client == nil {
		logger.Warn("redis not configured, using in-process rate limiter")
		return ratelimit.NewLocalLimiter(cfg.UserRPM, cfg.GuestRPM)
	}
	return ratelimit.NewLimiter(ratelimit.NewRedisCounter(client), cfg.UserRPM, cfg.GuestRPM, logger)
}

// newMessageLimiter serves the realtime gateway's per-message throttling.
// Without Redis the socket path has no shared counter and admits everything;
// the gateway applies its own local backpressure in that mode.
func newMessageLimiter(client redis.UniversalClient, cfg config.Config, logger *zap.Logger) *ratelimit.MessageLimiter {
	if client == nil {
		return nil
	}
	return ratelimit.NewMessageLimiter(ratelimit.NewRedisCounter(client), cfg.SocketUserRPM, cfg.SocketGuestRPM, logger)
}

func newFeatureService() *features.Service {
	return features.NewService(features.EnvSource{})
}

func newFederationVerifier() federation.Verifier {
	return federation.Disabled{}
}

func newAuthService(users user.Repository, refreshSvc *refresh.Service, tokens *token.Service, verifier federation.Verifier, node *snowflake.Node, logger *zap.Logger) *service.AuthService {
	return service.NewAuthService(users, refreshSvc, tokens, verifier, node, logger)
}

func newAuthMiddleware(authService *service.AuthService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Auth: authService}
}

func newAuthHandler(authService *service.AuthService, logger *zap.Logger) *handler.AuthHandler {
	return handler.NewAuthHandler(authService, logger)
}

func newFeatureHandler(flags *features.Service, logger *zap.Logger) *handler.FeatureHandler {
	return handler.NewFeatureHandler(flags, logger)
}

func startSweeper(lc fx.Lifecycle, refreshSvc *refresh.Service, cfg config.Config, logger *zap.Logger) {
	sweeper := refresh.NewSweeper(refreshSvc, cfg.SweepInterval, logger)

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			go sweeper.Run(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			logger.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}

func useMessageLimiter(*ratelimit.MessageLimiter) {}
