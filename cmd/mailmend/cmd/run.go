package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailmend/mailmend"
	"github.com/mailmend/mailmend/service/gateway/telegram"
)

func newRunCmd() *cobra.Command {
	var configURL string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the correction agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configURL, verbose)
		},
	}
	cmd.Flags().StringVarP(&configURL, "config", "c", "mailmend.yaml", "config file URL")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, configURL string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	config, err := mailmend.LoadConfig(ctx, configURL)
	if err != nil {
		return err
	}

	options := []mailmend.Option{
		mailmend.WithConfig(config),
		mailmend.WithLogger(logger),
	}
	if config.Telegram.Token != "" || config.Telegram.TokenURL != "" {
		token, err := config.Telegram.ResolveToken(ctx)
		if err != nil {
			return err
		}
		client, err := telegram.New(token, config.Telegram.ChatID, telegram.WithLogger(logger))
		if err != nil {
			return err
		}
		options = append(options,
			mailmend.WithMessenger(client),
			mailmend.WithDecisionSource(client))
	}

	service, err := mailmend.New(ctx, options...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	service.Start(ctx)
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "shutting down")
	service.Shutdown()
	return nil
}
