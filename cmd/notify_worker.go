/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/mq"
	"github.com/spf13/cobra"
)

// notifyWorkerCmd represents the notify-worker command
var notifyWorkerCmd = &cobra.Command{
	Use:   "notify-worker",
	Short: "Consume lead notifications",
	Long: `Subscribes to the lead channel and logs every new contact message and
consultation request. Requires MQ_BACKEND to be rabbitmq or pubsub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.LogLevel)

		if cfg.Messaging.Backend == "" || cfg.Messaging.Backend == "none" {
			return errors.New("MQ_BACKEND must be rabbitmq or pubsub")
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.Messaging)
		if err != nil {
			return fmt.Errorf("open messaging: %w", err)
		}
		defer backend.Close()

		logger.Info("notify worker started", "backend", cfg.Messaging.Backend, "channel", cfg.Messaging.LeadChannel)
		err = backend.Subscribe(ctx, cfg.Messaging.LeadChannel, mq.LogLeadEvents(logger))
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		logger.Info("notify worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyWorkerCmd)
}
