// Command client runs the User Client role of spec.md §4.7: it connects
// to the gateway, sends a status-update heartbeat, and presents
// broadcast messages as they arrive.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ngee044/realtimechat/internal/client"
	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/logging"
)

func main() {
	var configPath string
	var id string
	var subID string

	root := &cobra.Command{
		Use:   "client",
		Short: "User Client: connects to the gateway and receives broadcasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, id, subID, cmd)
		},
	}

	root.Flags().StringVar(&configPath, "config", "user_client_configurations.json", "path to the client JSON configuration file")
	root.Flags().StringVar(&id, "id", "", "client id (generated if empty)")
	root.Flags().StringVar(&subID, "sub_id", "", "client sub-id (generated if empty)")
	config.RegisterFlags(root)

	if err := root.Execute(); err != nil {
		logging.Errorf("client exited with error: %v", err)
		os.Exit(1)
	}
}

func run(configPath, id, subID string, cmd *cobra.Command) error {
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

	if id == "" {
		id = uuid.NewString()
	}
	if subID == "" {
		subID = uuid.NewString()
	}

	c, err := client.New(cfg, id, subID)
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}

	waitForShutdown()

	logging.Infof("client [%s,%s] shutting down", id, subID)
	c.Stop()
	return nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
