// Command dipbot runs the mean-reversion spot trading bot.
//
// Usage:
//
//	dipbot --config config.yaml
//	dipbot setup --config config.yaml
//
// Required environment variables (a .env file is loaded if present):
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/dipbot/config"
	"github.com/vadiminshakov/dipbot/internal"
	"github.com/vadiminshakov/dipbot/internal/setup"
	"github.com/vadiminshakov/dipbot/internal/web"
)

var cfgFile string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "dipbot",
		Short:         "Mean-reversion spot trading bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config (defaults are used when empty)")
	config.RegisterFlags(rootCmd.Flags())

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = "config.yaml"
			}
			return setup.RunTUI(path)
		},
	}
	rootCmd.AddCommand(setupCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	creds, err := config.LoadCredentials(cfg.Platform)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := internal.NewBotForPlatform(logger, cfg, creds)
	if err != nil {
		return err
	}
	if err := bot.Initialize(ctx); err != nil {
		return err
	}

	logger.Info("bot initialized",
		zap.String("platform", cfg.Platform),
		zap.Strings("symbols", cfg.SymbolStrings()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := bot.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.StatusAddr != "" {
		server := web.NewServer(logger.Named("web"), cfg.StatusAddr, bot)
		g.Go(func() error {
			if cfg.TLSDomain != "" {
				return server.StartWithAutoTLS(ctx, cfg.TLSDomain, cfg.TLSCacheDir)
			}
			return server.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
