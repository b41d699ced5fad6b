package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"marketduel/internal/bus"
	"marketduel/internal/game"
)

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [ROOM|*]",
		Short: "Stream room events mirrored to Redis",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled() {
				return fmt.Errorf("watch needs redis.addr (or MARKETDUEL_REDIS_ADDR)")
			}

			room := bus.AllRooms
			if len(args) == 1 && args[0] != bus.AllRooms {
				room = game.NormalizeCode(args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			events, err := rb.Subscribe(ctx, room)
			if err != nil {
				return err
			}
			accent.Printf("watching %s\n", bus.Channel(cfg.Redis.Prefix, room))
			for payload := range events {
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			}
			return nil
		},
	}
}
