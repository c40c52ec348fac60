// Command gateway runs the Gateway Server role of spec.md §4.5: it
// accepts client connections, dispatches their commands, fans broadcast
// messages out, and exports Prometheus metrics.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/gateway"
	"github.com/ngee044/realtimechat/internal/logging"
)

func main() {
	var configPath string
	var metricsAddr string
	var drainOnStop bool

	root := &cobra.Command{
		Use:   "gateway",
		Short: "Gateway Server: accepts client sessions and fans out broadcasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, metricsAddr, drainOnStop, cmd)
		},
	}

	root.Flags().StringVar(&configPath, "config", "main_server_configurations.json", "path to the gateway JSON configuration file")
	root.Flags().StringVar(&metricsAddr, "metrics_addr", ":9100", "address the /metrics endpoint listens on")
	root.Flags().BoolVar(&drainOnStop, "drain", true, "finish queued jobs before exiting on shutdown")
	config.RegisterFlags(root)

	if err := root.Execute(); err != nil {
		logging.Errorf("gateway exited with error: %v", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string, drainOnStop bool, cmd *cobra.Command) error {
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

	gw, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	if err := gw.Start(); err != nil {
		return err
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logging.Infof("metrics listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logging.Errorf("metrics server stopped: %v", err)
		}
	}()

	waitForShutdown()

	logging.Infof("gateway shutting down (drain=%v)", drainOnStop)
	gw.Stop(drainOnStop)
	return nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
