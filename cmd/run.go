package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/discovery"
	"github.com/example/resy-sniper/internal/notify"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/scheduler"
	"github.com/example/resy-sniper/internal/trigger"
	"github.com/example/resy-sniper/internal/web"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sniper against the configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Optional; real deployments export the variables directly.
			_ = godotenv.Load()

			log := newLogger(debug)

			env, err := config.EnvFromOS()
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log.Info().Int("targets", len(cfg.Targets)).
				Bool("stop_on_first_success", cfg.StopOnFirstSuccess).Msg("config loaded")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client := resy.New(resy.Credentials{APIKey: env.APIKey, AuthToken: env.AuthToken})
			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("credential check: %w", err)
			}

			var notifier scheduler.Notifier = notify.LogOnly{Log: log}
			if email := cfg.Notifications.Email; email != nil {
				if env.SMTPPassword == "" {
					return fmt.Errorf("notifications.email configured but SMTP_PASSWORD is not set")
				}
				notifier = notify.NewEmailer(*email, env.SMTPPassword, log)
			}

			resolver := discovery.NewResolver(client, log)
			registry := trigger.NewRegistry(log)
			s := scheduler.New(client, resolver, notifier, registry, cfg, env.PaymentMethodID, log)
			s.Start(ctx)

			if listenAddr != "" {
				srv := web.NewServer(s, log)
				go func() {
					if err := web.Start(ctx, listenAddr, srv.Routes(), log); err != nil {
						log.Error().Err(err).Msg("status server failed")
					}
				}()
			}

			<-ctx.Done()
			log.Info().Msg("shutting down")
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			s.Stop(stopCtx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the targets config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "optional address for the status/metrics server, e.g. :8080")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}
