package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/jkaninda/mikopo/internal/broker"
	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/gateway"
	"github.com/jkaninda/mikopo/internal/observability"
	"github.com/jkaninda/mikopo/internal/toolclient"
	"github.com/jkaninda/mikopo/internal/workspace"
)

// SharedComponents holds the subsystems every mode needs. Built once by
// initShared, torn down by Cleanup.
type SharedComponents struct {
	Config    *config.Config
	Logger    *slog.Logger
	Workspace *workspace.Workspace
	Obs       *observability.Observability
	Broker    *broker.Broker

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadConfig resolves the config path from the MIKOPO_CONFIG env var or the
// given flag value. A missing file falls back to built-in defaults.
func loadConfig(flagPath string) (*config.Config, error) {
	return config.LoadOrDefault(goutils.Env("MIKOPO_CONFIG", flagPath))
}

// initShared performs the common initialization shared by all modes.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Workspace.
	ws, err := initWorkspace(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing workspace: %w", err)
	}
	sc.Workspace = ws
	logger.Debug("workspace initialized", slog.String("root", ws.Root))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// Assessment broker. Dials the MCP credit tool server per call and falls
	// back to the in-process engine when the server is unreachable.
	dial, err := newToolDialer(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("configuring credit tool client: %w", err)
	}
	var metrics *observability.MetricsCollector
	if obs != nil {
		metrics = obs.Metrics
	}
	sc.Broker = broker.New(dial, logger, metrics).WithJournal(ws)
	logger.Debug("assessment broker initialized")

	return sc, nil
}

// initWorkspace creates the workspace, resolving the root from config or defaults.
func initWorkspace(cfg *config.Config) (*workspace.Workspace, error) {
	root := cfg.Workspace
	if root == "" {
		return workspace.Default()
	}
	return workspace.New(root)
}

// serveGateway runs one gateway until a shutdown signal or a server error,
// then shuts it down with a bounded grace period.
func serveGateway(ctx context.Context, gw gateway.Gateway, logger *slog.Logger) error {
	errs := make(chan error, 1)
	go func() {
		errs <- gw.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return gw.Stop(shutdownCtx)
}

// toolClientConfig resolves the credit tool client settings. When no tool
// server command is configured, it falls back to launching this same
// executable in serve mode.
func toolClientConfig(cfg *config.Config) (toolclient.Config, error) {
	tcCfg := toolclient.Config{
		Command:     cfg.Tools.Credit.Command,
		Args:        cfg.Tools.Credit.Args,
		Env:         cfg.Tools.Credit.EnvSlice(),
		CallTimeout: cfg.Tools.Credit.CallTimeout(),
	}
	if tcCfg.Command == "" {
		executable, err := os.Executable()
		if err != nil {
			return toolclient.Config{}, fmt.Errorf("resolving own executable: %w", err)
		}
		tcCfg.Command = executable
		tcCfg.Args = []string{"serve"}
	}
	return tcCfg, nil
}

// newToolDialer builds the broker's dial function from config.
func newToolDialer(cfg *config.Config, logger *slog.Logger) (broker.DialFunc, error) {
	tcCfg, err := toolClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (broker.Remote, error) {
		session, err := toolclient.Open(ctx, tcCfg, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}, nil
}
