package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/toolclient"
)

var toolsConfigPath string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools advertised by the credit tool server",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsConfigPath, "config", config.DefaultConfigPath(), "path to config file")
}

// runTools opens a tool server session and prints its tool descriptors.
func runTools(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(toolsConfigPath)
	if err != nil {
		return err
	}
	tcCfg, err := toolClientConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := toolclient.Open(ctx, tcCfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	descriptors, err := session.ListTools(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(descriptors)
}
