// Command consumer runs the Queue Consumer process of spec.md §4.6: it
// drains the broker queue, seeds the shared broadcast slot, and
// durably persists every consumed message.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/consumerrole"
	"github.com/ngee044/realtimechat/internal/logging"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "consumer",
		Short: "Queue Consumer: drains the broker and seeds the broadcast slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, cmd)
		},
	}

	root.Flags().StringVar(&configPath, "config", "main_server_consumer_configurations.json", "path to the consumer JSON configuration file")
	config.RegisterFlags(root)

	if err := root.Execute(); err != nil {
		logging.Errorf("consumer exited with error: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath, cmd)
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Options{
		Level:        cfg.Logging.Level,
		RootPath:     cfg.Logging.RootPath,
		ClientTitle:  cfg.ClientTitle,
		WriteConsole: cfg.Logging.WriteConsole,
		WriteFile:    cfg.Logging.WriteFile,
	}); err != nil {
		return err
	}

	c, err := consumerrole.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logging.Infof("consumer shutting down")
		cancel()
		return nil
	}
}
