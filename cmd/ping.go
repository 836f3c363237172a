package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/resy"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify the configured API credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			env, err := config.EnvFromOS()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			client := resy.New(resy.Credentials{APIKey: env.APIKey, AuthToken: env.AuthToken})
			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("credential check failed: %w", err)
			}
			fmt.Println("credentials ok")
			return nil
		},
	}
}
