package main

import (
	"context"
	"net/http"
	"os"

	"shopcore/internal/config"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

func init() {
	// Release mode unless GIN_MODE says otherwise, so a misconfigured
	// deployment does not print debug routes.
	gin.SetMode(gin.ReleaseMode)
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, engine *gin.Engine, cfg *config.Config, logger zerolog.Logger) {
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info().
				Str("address", server.Addr).
				Str("mode", gin.Mode()).
				Msg("HTTP server started")
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("HTTP server failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down HTTP server")
			if err := server.Shutdown(ctx); err != nil {
				_ = server.Close()
				return errors.Wrap(err, "server shutdown failed")
			}
			logger.Info().Msg("server shutdown completed")
			return nil
		},
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	app := fx.New(
		fx.NopLogger,
		fx.StopTimeout(cfg.Server.ShutdownTimeout),
		fx.Supply(cfg),
		Module,
		fx.Provide(func() *gin.Engine { return gin.New() }),
		fx.Invoke(startServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start shopcore")
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("failed to stop shopcore cleanly")
		os.Exit(1)
	}
}
