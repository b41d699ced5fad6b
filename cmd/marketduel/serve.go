package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"marketduel/internal/api"
	"marketduel/internal/bus"
	"marketduel/internal/config"
	"marketduel/internal/game"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket game server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = serve(ctx, cfg, logger)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			if err != nil {
				logger.Error("server exited with error", "err", err)
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var events bus.Publisher = bus.Nop{}
	if cfg.Redis.Enabled() {
		rb, err := bus.NewRedis(ctx, bus.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return err
		}
		defer rb.Close()
		events = rb
		logger.Info("mirroring room events to redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	}

	reg := game.NewRegistry(cfg.Game.Session(), game.RandomCodes(cfg.Game.CodeLength), logger)
	dispatcher := game.NewDispatcher(reg, logger)
	srv := api.NewServer(dispatcher, events, api.Options{
		CORSOrigins:   cfg.Server.CORSOrigins,
		MessageLimit:  cfg.Server.MessageLimit,
		MessageWindow: cfg.Server.MessageWindow.Duration,
		RequestLimit:  cfg.Server.RequestLimit,
		RequestWindow: cfg.Server.RequestWindow.Duration,
		TurnTimeout:   cfg.Game.TurnTimeout.Duration,
	}, logger)
	defer srv.Shutdown()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("marketduel server listening",
			"addr", cfg.Server.Addr,
			"max_rounds", cfg.Game.MaxRounds,
			"turn_timeout", cfg.Game.TurnTimeout.Duration,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return srv.PruneRooms(gctx, cfg.Server.IdleRoomTTL.Duration, 0)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.Duration)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
