package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/binarykitchen/noodlenotify/internal/api"
	"github.com/binarykitchen/noodlenotify/internal/config"
	"github.com/binarykitchen/noodlenotify/internal/models"
	"github.com/binarykitchen/noodlenotify/internal/notify"
	"github.com/binarykitchen/noodlenotify/internal/publish"
	"github.com/binarykitchen/noodlenotify/internal/stream"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "noodlenotify",
		Short: "noodlenotify — Noodle Hub push notifications",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	listen := listenCmd(&configPath)
	// Without a subcommand the binary listens.
	rootCmd.RunE = listen.RunE

	rootCmd.AddCommand(listen)
	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(publishCmd(&configPath))
	rootCmd.AddCommand(secretCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Greet, then show every message pushed by the hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidateListen(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			notifier, err := notify.New(cfg.Listen.Notifier, os.Stdin, os.Stdout, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sub := stream.NewSubscriber(cfg.Listen, notifier, log)
			if err := sub.Run(ctx); err != nil {
				return err
			}

			log.Info().Msg("listener stopped")
			return nil
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a local push hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			server := api.NewServer(cfg.Hub, log)
			errc := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					errc <- err
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Hub.Port).
				Bool("signed", cfg.Hub.Secret != "").
				Msg("noodle hub is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errc:
				return fmt.Errorf("server error: %w", err)
			}

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			log.Info().Msg("noodle hub stopped")
			return nil
		},
	}
}

func publishCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <data>",
		Short: "Publish a message to a hub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidatePublish(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			event, _ := cmd.Flags().GetString("event")

			msg, err := publish.NewPublisher(cfg.Publish).Publish(cmd.Context(), args[0], event)
			if err != nil {
				return fmt.Errorf("failed to publish: %w", err)
			}

			out, _ := json.MarshalIndent(msg, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("event", "", "event type; empty publishes a default message")
	return cmd
}

func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a shared secret for signed publishing",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(models.NewSecret())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("noodlenotify v%s\n", version)
		},
	}
}

// setupLogger writes to stderr so alerts on stdout stay readable.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
