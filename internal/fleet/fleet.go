// Package fleet defines the fixed set of agent worker roles and drives their
// lifecycle through the supervisor. Each role runs as a separate process of
// this same executable, launched with the agent subcommand.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/supervisor"
)

// Role names and their default ports.
const (
	RoleDocument   = "document"
	RoleCreditRisk = "credit-risk"
	RoleCompliance = "compliance"
	RoleRouting    = "routing"
)

var defaultPorts = map[string]int{
	RoleDocument:   10001,
	RoleCreditRisk: 10002,
	RoleCompliance: 10003,
	RoleRouting:    10004,
}

// Roles returns the fleet's role names in startup order.
func Roles() []string {
	return []string{RoleDocument, RoleCreditRisk, RoleCompliance, RoleRouting}
}

// DefaultPort returns the role's default port.
func DefaultPort(role string) (int, bool) {
	port, ok := defaultPorts[role]
	return port, ok
}

// Fleet manages the full set of agent workers.
type Fleet struct {
	sup     *supervisor.Supervisor
	workers []supervisor.Worker
	logger  *slog.Logger
}

// New builds the fleet from config overrides. Roles without an override run
// this executable with the agent subcommand on their default port.
func New(sup *supervisor.Supervisor, cfg config.FleetConfig, logger *slog.Logger) (*Fleet, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving own executable: %w", err)
	}

	workers := make([]supervisor.Worker, 0, len(defaultPorts))
	for _, role := range Roles() {
		port := defaultPorts[role]
		var command []string
		if override, ok := cfg.Workers[role]; ok {
			if override.Port != 0 {
				port = override.Port
			}
			command = override.Command
		}
		if len(command) == 0 {
			command = []string{executable, "agent", "--role", role, "--port", strconv.Itoa(port)}
		}
		workers = append(workers, supervisor.Worker{Name: role, Command: command, Port: port})
	}

	return &Fleet{sup: sup, workers: workers, logger: logger}, nil
}

// Workers returns the configured worker definitions.
func (f *Fleet) Workers() []supervisor.Worker {
	return f.workers
}

// Worker returns the definition for one role.
func (f *Fleet) Worker(role string) (supervisor.Worker, bool) {
	for _, w := range f.workers {
		if w.Name == role {
			return w, true
		}
	}
	return supervisor.Worker{}, false
}

// Start launches one worker by role.
func (f *Fleet) Start(ctx context.Context, role string) (domain.ProcessRecord, error) {
	w, ok := f.Worker(role)
	if !ok {
		return domain.ProcessRecord{}, fmt.Errorf("unknown role: %q", role)
	}
	return f.sup.Start(ctx, w)
}

// Stop stops one worker by role.
func (f *Fleet) Stop(ctx context.Context, role string) error {
	if _, ok := f.Worker(role); !ok {
		return fmt.Errorf("unknown role: %q", role)
	}
	return f.sup.Stop(ctx, role)
}

// StartAll launches every worker. Workers already running are left alone;
// any other failure aborts the startup and reports which role broke.
func (f *Fleet) StartAll(ctx context.Context) ([]domain.ProcessRecord, error) {
	records := make([]domain.ProcessRecord, 0, len(f.workers))
	for _, w := range f.workers {
		record, err := f.sup.Start(ctx, w)
		if err != nil {
			if errors.Is(err, supervisor.ErrAlreadyRunning) {
				f.logger.Info("worker already running", slog.String("worker", w.Name))
				records = append(records, f.sup.Status(ctx, w))
				continue
			}
			return records, fmt.Errorf("starting %s: %w", w.Name, err)
		}
		records = append(records, record)
	}
	f.logger.Info("fleet started", slog.Int("workers", len(records)))
	return records, nil
}

// StopAll stops every worker. Workers that are not running are skipped; the
// first real failure is returned after attempting the rest.
func (f *Fleet) StopAll(ctx context.Context) error {
	var firstErr error
	for _, w := range f.workers {
		if err := f.sup.Stop(ctx, w.Name); err != nil {
			if errors.Is(err, supervisor.ErrNotRunning) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("stopping %s: %w", w.Name, err)
			}
			f.logger.Error("stopping worker failed",
				slog.String("worker", w.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	if firstErr == nil {
		f.logger.Info("fleet stopped")
	}
	return firstErr
}

// Status reports each worker's state, sorted by role name.
func (f *Fleet) Status(ctx context.Context) []domain.ProcessRecord {
	records := make([]domain.ProcessRecord, 0, len(f.workers))
	for _, w := range f.workers {
		records = append(records, f.sup.Status(ctx, w))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}
