package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mikopo/internal/agent"
	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/fleet"
	"github.com/jkaninda/mikopo/internal/gateway/agentapi"
)

var (
	agentConfigPath string
	agentRole       string
	agentPort       int
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start a single agent worker",
	Long: `Start one agent worker serving its role over HTTP. The fleet launches
one of these per role; running one by hand is useful for debugging.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	agentCmd.Flags().StringVar(&agentRole, "role", "", "agent role: document, credit-risk, compliance, or routing")
	agentCmd.Flags().IntVar(&agentPort, "port", 0, "HTTP listen port (default: the role's port)")
	_ = agentCmd.MarkFlagRequired("role")
}

// runAgent starts one agent worker.
func runAgent(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(agentConfigPath)
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	executor, err := buildExecutor(agentRole, sc)
	if err != nil {
		return err
	}

	port := agentPort
	if port == 0 {
		if w, ok := defaultWorkerPort(agentRole, cfg); ok {
			port = w
		} else {
			return fmt.Errorf("no port configured for role %q", agentRole)
		}
	}

	logger.Info("starting agent worker",
		slog.String("role", agentRole),
		slog.String("port", strconv.Itoa(port)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := agentapi.NewServer(agentapi.Config{Port: port, EnableDocs: cfg.Gateway.EnableDocs}, executor, logger)
	return serveGateway(ctx, server, logger)
}

// buildExecutor maps a fleet role to its executor.
func buildExecutor(role string, sc *SharedComponents) (agent.Executor, error) {
	switch role {
	case fleet.RoleDocument:
		return agent.NewDocumentExecutor(version, sc.Logger), nil
	case fleet.RoleCreditRisk:
		return agent.NewUnderwritingExecutor(sc.Broker, version, sc.Logger), nil
	case fleet.RoleCompliance:
		return agent.NewComplianceExecutor(version, sc.Logger), nil
	case fleet.RoleRouting:
		return agent.NewRoutingExecutor(sc.Broker, version, sc.Logger), nil
	default:
		return nil, fmt.Errorf("unknown agent role: %q", role)
	}
}

// defaultWorkerPort resolves the role's port from fleet config or defaults.
func defaultWorkerPort(role string, cfg *config.Config) (int, bool) {
	if w, ok := cfg.Fleet.Workers[role]; ok && w.Port != 0 {
		return w.Port, true
	}
	return fleet.DefaultPort(role)
}
