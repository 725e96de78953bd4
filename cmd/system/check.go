package system

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/Alijeyrad/wellness_intake/config"
	redispkg "github.com/Alijeyrad/wellness_intake/pkg/redis"
)

func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate config and check connectivity to Redis and NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			fmt.Println("Config OK.")

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer rdb.Close()
			if err := redispkg.Ping(ctx, rdb); err != nil {
				return err
			}
			fmt.Printf("Redis OK (%s).\n", cfg.Redis.Addr)

			if cfg.Nats.URL == "" {
				fmt.Println("NATS not configured, skipping.")
				return nil
			}
			nc, err := nats.Connect(cfg.Nats.URL, nats.Timeout(timeout))
			if err != nil {
				return fmt.Errorf("nats: %w", err)
			}
			defer nc.Close()
			if err := nc.FlushWithContext(ctx); err != nil {
				return fmt.Errorf("nats flush: %w", err)
			}
			fmt.Printf("NATS OK (%s).\n", nc.ConnectedUrl())
			return nil
		},
	}

	return cmd
}
