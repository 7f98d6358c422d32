package fleet

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jkaninda/mikopo/internal/config"
	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/supervisor"
	"github.com/jkaninda/mikopo/internal/workspace"
)

func testFleet(t *testing.T, cfg config.FleetConfig) *Fleet {
	t.Helper()
	ws, err := workspace.New(filepath.Join(t.TempDir(), "ws"))
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sup := supervisor.New(ws, supervisor.Config{
		StartupTimeout: 2 * time.Second,
		GracePeriod:    2 * time.Second,
		PollInterval:   20 * time.Millisecond,
		Probe:          func(ctx context.Context, port int) error { return nil },
	}, logger, nil)

	f, err := New(sup, cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestDefaultWorkers(t *testing.T) {
	f := testFleet(t, config.FleetConfig{})

	workers := f.Workers()
	if len(workers) != 4 {
		t.Fatalf("workers = %d, want 4", len(workers))
	}

	wantPorts := map[string]int{
		RoleDocument:   10001,
		RoleCreditRisk: 10002,
		RoleCompliance: 10003,
		RoleRouting:    10004,
	}
	for _, w := range workers {
		if wantPorts[w.Name] != w.Port {
			t.Errorf("%s port = %d, want %d", w.Name, w.Port, wantPorts[w.Name])
		}
		if len(w.Command) == 0 {
			t.Errorf("%s has no command", w.Name)
		}
	}
}

func TestConfigOverrides(t *testing.T) {
	f := testFleet(t, config.FleetConfig{
		Workers: map[string]config.WorkerConfig{
			RoleDocument: {Port: 12345, Command: []string{"custom-worker", "--mode", "document"}},
		},
	})

	w, ok := f.Worker(RoleDocument)
	if !ok {
		t.Fatal("document role missing")
	}
	if w.Port != 12345 {
		t.Errorf("port = %d, want 12345", w.Port)
	}
	if w.Command[0] != "custom-worker" {
		t.Errorf("command = %v", w.Command)
	}

	// Other roles keep their defaults.
	routing, _ := f.Worker(RoleRouting)
	if routing.Port != 10004 {
		t.Errorf("routing port = %d, want default 10004", routing.Port)
	}
}

func TestWorkerUnknownRole(t *testing.T) {
	f := testFleet(t, config.FleetConfig{})
	if _, ok := f.Worker("nonsense"); ok {
		t.Error("unknown role reported as present")
	}
}

func TestStartStopStatus(t *testing.T) {
	// Replace every worker command with a plain sleep so the test does not
	// depend on the built binary.
	overrides := map[string]config.WorkerConfig{}
	for _, role := range Roles() {
		overrides[role] = config.WorkerConfig{Command: []string{"sleep", "60"}}
	}
	f := testFleet(t, config.FleetConfig{Workers: overrides})
	ctx := context.Background()

	records, err := f.StartAll(ctx)
	if err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("started %d workers, want 4", len(records))
	}

	status := f.Status(ctx)
	for _, r := range status {
		if r.State != domain.StateRunning {
			t.Errorf("%s state = %q, want running", r.Name, r.State)
		}
	}

	if err := f.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	status = f.Status(ctx)
	for _, r := range status {
		if r.State != domain.StateStopped {
			t.Errorf("%s state after stop = %q, want stopped", r.Name, r.State)
		}
	}
}

func TestStopAllSkipsStoppedWorkers(t *testing.T) {
	f := testFleet(t, config.FleetConfig{})
	// Nothing started: StopAll must not report an error.
	if err := f.StopAll(context.Background()); err != nil {
		t.Errorf("StopAll on idle fleet: %v", err)
	}
}

func TestStatusSorted(t *testing.T) {
	f := testFleet(t, config.FleetConfig{})
	records := f.Status(context.Background())
	for i := 1; i < len(records); i++ {
		if records[i-1].Name > records[i].Name {
			t.Errorf("status not sorted: %s before %s", records[i-1].Name, records[i].Name)
		}
	}
}

func TestStartStopSingleRole(t *testing.T) {
	f := testFleet(t, config.FleetConfig{
		Workers: map[string]config.WorkerConfig{
			RoleDocument: {Command: []string{"sleep", "60"}},
		},
	})
	ctx := context.Background()

	record, err := f.Start(ctx, RoleDocument)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if record.State != domain.StateRunning && record.State != domain.StateStarting {
		t.Errorf("state = %q", record.State)
	}

	if err := f.Stop(ctx, RoleDocument); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	w, _ := f.Worker(RoleDocument)
	if got := f.sup.Status(ctx, w); got.State != domain.StateStopped {
		t.Errorf("state after stop = %q, want stopped", got.State)
	}
}

func TestStartStopUnknownRole(t *testing.T) {
	f := testFleet(t, config.FleetConfig{})
	ctx := context.Background()

	if _, err := f.Start(ctx, "nonsense"); err == nil {
		t.Error("Start accepted an unknown role")
	}
	if err := f.Stop(ctx, "nonsense"); err == nil {
		t.Error("Stop accepted an unknown role")
	}
}
