// Package main is the netctl entrypoint: network diagnostics and management
// from one binary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"netctl/internal/config"
	"netctl/pkg/logx"
)

var (
	cfgPath  string
	jsonOut  bool
	logLevel string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "netctl",
		Short:         "Network monitoring and management CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "path to config file")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "machine-readable JSON output")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")

	root.AddCommand(
		newSpeedCmd(),
		newConnectionsCmd(),
		newBandwidthCmd(),
		newPingCmd(),
		newBlockCmd(),
		newVPNCmd(),
		newDNSCmd(),
	)
	return root
}

// app bundles what every command handler needs.
type app struct {
	cfg config.Config
	log logx.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	explicit := cmd.Root().PersistentFlags().Changed("config")
	cfg, err := config.Load(cfgPath, explicit)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

// buildLogger maps the flat config onto the logger's sink config; a non-empty
// file path enables the JSON file sink.
func buildLogger(cfg config.Config) (logx.Logger, error) {
	return logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File != "",
			Path:    cfg.Logging.File,
		},
	})
}

func (a *app) Close() { _ = a.log.Close() }

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// clearScreen resets the terminal between watch-mode refreshes.
func clearScreen() { fmt.Print("\x1b[2J\x1b[H") }
