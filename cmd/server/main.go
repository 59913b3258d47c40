package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestroprog/wschatserver/internal/app"
	"github.com/maestroprog/wschatserver/internal/auth"
	"github.com/maestroprog/wschatserver/internal/config"
	"github.com/maestroprog/wschatserver/internal/log"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "wschatserver",
		Short:        "Room-based websocket chat server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := log.New("info")
			cfg, path, err := config.Load(bootstrap, configPath)
			if err != nil {
				return err
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Msg("configuration loaded")

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	var (
		tokenName string
		tokenTTL  time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := log.New("warn")
			cfg, _, err := config.Load(bootstrap, configPath)
			if err != nil {
				return err
			}
			if cfg.AdminJWTSecret == "" {
				return fmt.Errorf("admin_jwt_secret is not configured")
			}

			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret: []byte(cfg.AdminJWTSecret),
				Issuer: cfg.AdminJWTIssuer,
				TTL:    tokenTTL,
			}, tokenName)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenName, "name", "admin", "operator name embedded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(serveCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
