package main

import (
	"context"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/fleet"
	"github.com/jkaninda/mikopo/internal/gateway/httpapi"
	"github.com/jkaninda/mikopo/internal/ratelimit"
	"github.com/jkaninda/mikopo/internal/supervisor"
)

var (
	gatewayConfigPath string
	gatewayAddr       string
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the coordinator HTTP gateway",
	RunE:  runGateway,
}

func init() {
	// Register flags on both root and gateway so that
	// `mikopo --config path` and `mikopo gateway --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, gatewayCmd} {
		cmd.Flags().StringVar(&gatewayConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&gatewayAddr, "addr", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runGateway starts the coordinator HTTP gateway.
func runGateway(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(gatewayConfigPath)
	if err != nil {
		return err
	}
	if gatewayAddr != "" {
		cfg.Gateway.ListenAddr = gatewayAddr
	}

	logger.Info("starting in gateway mode", slog.String("addr", cfg.Gateway.Addr()))

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fleet view for GET /v1/fleet. The gateway only reports worker state;
	// starting and stopping goes through the fleet subcommands.
	sup := supervisor.New(sc.Workspace, supervisor.Config{
		StartupTimeout: cfg.Fleet.StartupTimeout(),
		GracePeriod:    cfg.Fleet.GracePeriod(),
	}, logger, sc.Obs.MetricsOrNil())
	fl, err := fleet.New(sup, cfg.Fleet, logger)
	if err != nil {
		return err
	}

	// Readiness degrades when an agent worker's port stops answering.
	if sc.Obs != nil && sc.Obs.Health != nil {
		for _, w := range fl.Workers() {
			addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(w.Port))
			sc.Obs.Health.AddCheck(w.Name, func(ctx context.Context) error {
				var d net.Dialer
				conn, err := d.DialContext(ctx, "tcp", addr)
				if err != nil {
					return err
				}
				return conn.Close()
			})
		}
	}

	httpCfg := httpapi.Config{
		ListenAddr:     cfg.Gateway.Addr(),
		EnableDocs:     cfg.Gateway.EnableDocs,
		Version:        version,
		MaxRequestSize: cfg.Gateway.MaxRequestSizeBytes,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.Gateway.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.Gateway.RateLimit.BurstSize,
		},
	}
	if sc.Obs != nil {
		httpCfg.Metrics = sc.Obs.Metrics
		httpCfg.HealthChecker = sc.Obs.Health
		if sc.Obs.Metrics != nil {
			httpCfg.MetricsRegistry = sc.Obs.Metrics.Registry
		}
		if sc.Obs.Tracer != nil {
			httpCfg.Tracer = sc.Obs.Tracer.Tracer()
		}
		if cfg.Observability != nil && cfg.Observability.Metrics != nil {
			httpCfg.MetricsPath = cfg.Observability.Metrics.MetricsPath()
		}
	}

	return serveGateway(ctx, httpapi.NewGateway(httpCfg, sc.Broker, fl, logger), logger)
}
