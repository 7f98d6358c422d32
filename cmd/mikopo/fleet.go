package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/fleet"
	"github.com/jkaninda/mikopo/internal/supervisor"
)

var fleetConfigPath string

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Manage the agent worker fleet",
}

var fleetStartCmd = &cobra.Command{
	Use:   "start [role...]",
	Short: "Start agent workers (all roles when none named)",
	RunE:  runFleetStart,
}

var fleetStopCmd = &cobra.Command{
	Use:   "stop [role...]",
	Short: "Stop agent workers (all roles when none named)",
	RunE:  runFleetStop,
}

var fleetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every agent worker",
	RunE:  runFleetStatus,
}

func init() {
	fleetCmd.PersistentFlags().StringVar(&fleetConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	fleetCmd.AddCommand(fleetStartCmd, fleetStopCmd, fleetStatusCmd)
}

// initFleet builds the fleet and its supervisor from config.
func initFleet() (*fleet.Fleet, *SharedComponents, error) {
	logger := newLogger()

	cfg, err := loadConfig(fleetConfigPath)
	if err != nil {
		return nil, nil, err
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sup := supervisor.New(sc.Workspace, supervisor.Config{
		StartupTimeout: cfg.Fleet.StartupTimeout(),
		GracePeriod:    cfg.Fleet.GracePeriod(),
	}, logger, sc.Obs.MetricsOrNil())

	fl, err := fleet.New(sup, cfg.Fleet, logger)
	if err != nil {
		sc.Cleanup()
		return nil, nil, err
	}
	return fl, sc, nil
}

func runFleetStart(_ *cobra.Command, roles []string) error {
	fl, sc, err := initFleet()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var records []domain.ProcessRecord
	if len(roles) == 0 {
		records, err = fl.StartAll(ctx)
	} else {
		for _, role := range roles {
			record, startErr := fl.Start(ctx, role)
			if startErr != nil {
				err = startErr
				break
			}
			records = append(records, record)
		}
	}
	for _, r := range records {
		fmt.Printf("%-12s pid=%d port=%d %s\n", r.Name, r.PID, r.Port, r.State)
	}
	return err
}

func runFleetStop(_ *cobra.Command, roles []string) error {
	fl, sc, err := initFleet()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(roles) == 0 {
		return fl.StopAll(ctx)
	}
	for _, role := range roles {
		if err := fl.Stop(ctx, role); err != nil {
			return err
		}
	}
	return nil
}

func runFleetStatus(_ *cobra.Command, _ []string) error {
	fl, sc, err := initFleet()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fl.Status(ctx))
}
