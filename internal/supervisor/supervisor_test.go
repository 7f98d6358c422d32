package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/workspace"
)

func testSupervisor(t *testing.T, probe ProbeFunc) (*Supervisor, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.New(filepath.Join(t.TempDir(), "ws"))
	if err != nil {
		t.Fatal(err)
	}
	return newSupervisor(ws, probe), ws
}

func newSupervisor(ws *workspace.Workspace, probe ProbeFunc) *Supervisor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(ws, Config{
		StartupTimeout: 2 * time.Second,
		GracePeriod:    2 * time.Second,
		PollInterval:   20 * time.Millisecond,
		Probe:          probe,
	}, logger, nil)
}

func okProbe(ctx context.Context, port int) error   { return nil }
func downProbe(ctx context.Context, port int) error { return errors.New("connection refused") }

func sleepWorker(name string) Worker {
	return Worker{Name: name, Command: []string{"sleep", "60"}, Port: 19999}
}

func TestStartAndStop(t *testing.T) {
	s, ws := testSupervisor(t, okProbe)
	ctx := context.Background()

	record, err := s.Start(ctx, sleepWorker("document"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if record.State != domain.StateRunning {
		t.Errorf("state = %q, want running", record.State)
	}
	if record.PID <= 0 {
		t.Errorf("pid = %d, want positive", record.PID)
	}

	// Pid file must exist and contain the pid.
	data, err := os.ReadFile(ws.PidFile("document"))
	if err != nil {
		t.Fatalf("pid file missing: %v", err)
	}
	if pid, _ := strconv.Atoi(string(data)); pid != record.PID {
		t.Errorf("pid file contains %q, want %d", data, record.PID)
	}

	if err := s.Stop(ctx, "document"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, err := os.Stat(ws.PidFile("document")); !os.IsNotExist(err) {
		t.Error("pid file not removed after stop")
	}
}

func TestStartRejectsRunningWorker(t *testing.T) {
	s, _ := testSupervisor(t, okProbe)
	ctx := context.Background()

	if _, err := s.Start(ctx, sleepWorker("document")); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer s.Stop(ctx, "document")

	_, err := s.Start(ctx, sleepWorker("document"))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartCleansStalePidFile(t *testing.T) {
	s, ws := testSupervisor(t, okProbe)
	ctx := context.Background()

	// A short-lived process leaves a pid behind that no longer exists.
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	stale := cmd.Process.Pid
	if err := os.WriteFile(ws.PidFile("document"), []byte(strconv.Itoa(stale)), 0640); err != nil {
		t.Fatal(err)
	}

	record, err := s.Start(ctx, sleepWorker("document"))
	if err != nil {
		t.Fatalf("Start over stale pid file: %v", err)
	}
	defer s.Stop(ctx, "document")

	if record.PID == stale {
		t.Error("new worker reused stale pid")
	}
}

func TestStartTimeoutLeavesWorkerStarting(t *testing.T) {
	s, ws := testSupervisor(t, downProbe)
	s.cfg.StartupTimeout = 200 * time.Millisecond
	ctx := context.Background()

	record, err := s.Start(ctx, sleepWorker("document"))
	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("Start = %v, want ErrStartupTimeout", err)
	}
	defer s.Stop(ctx, "document")

	// The worker is left alive in the starting state for inspection.
	if record.State != domain.StateStarting {
		t.Errorf("returned state = %q, want starting", record.State)
	}
	if !processAlive(record.PID) {
		t.Error("worker was killed after startup timeout")
	}
	if _, err := os.Stat(ws.PidFile("document")); err != nil {
		t.Errorf("pid file missing after startup timeout: %v", err)
	}

	status := s.Status(ctx, sleepWorker("document"))
	if status.State != domain.StateStarting {
		t.Errorf("Status state = %q, want starting", status.State)
	}

	// The operator can still stop it.
	if err := s.Stop(ctx, "document"); err != nil {
		t.Fatalf("Stop after startup timeout: %v", err)
	}
	if processAlive(record.PID) {
		t.Error("worker still alive after Stop")
	}
}

func TestStatusPromotesStartingWorker(t *testing.T) {
	s, _ := testSupervisor(t, downProbe)
	s.cfg.StartupTimeout = 200 * time.Millisecond
	ctx := context.Background()

	if _, err := s.Start(ctx, sleepWorker("document")); !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("Start = %v, want ErrStartupTimeout", err)
	}
	defer s.Stop(ctx, "document")

	// The port comes up late; Status promotes the record to running.
	s.cfg.Probe = okProbe
	record := s.Status(ctx, sleepWorker("document"))
	if record.State != domain.StateRunning {
		t.Errorf("state = %q, want running", record.State)
	}
}

func TestRecoversWorkerFromPidFile(t *testing.T) {
	s1, ws := testSupervisor(t, okProbe)
	ctx := context.Background()

	record, err := s1.Start(ctx, sleepWorker("document"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A fresh supervisor over the same workspace has no in-memory record and
	// adopts the worker from its pid file.
	s2 := newSupervisor(ws, okProbe)
	status := s2.Status(ctx, sleepWorker("document"))
	if status.State != domain.StateRunning {
		t.Errorf("state = %q, want running", status.State)
	}
	if status.PID != record.PID {
		t.Errorf("pid = %d, want %d", status.PID, record.PID)
	}

	if err := s2.Stop(ctx, "document"); err != nil {
		t.Fatalf("Stop via recovered record: %v", err)
	}
	if _, err := os.Stat(ws.PidFile("document")); !os.IsNotExist(err) {
		t.Error("pid file not removed after stop")
	}
}

func TestStartWithoutPortSkipsProbe(t *testing.T) {
	s, _ := testSupervisor(t, downProbe)
	ctx := context.Background()

	record, err := s.Start(ctx, Worker{Name: "document", Command: []string{"sleep", "60"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(ctx, "document")

	if record.State != domain.StateRunning {
		t.Errorf("state = %q, want running", record.State)
	}
}

func TestStopNotRunning(t *testing.T) {
	s, _ := testSupervisor(t, okProbe)

	err := s.Stop(context.Background(), "document")
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop = %v, want ErrNotRunning", err)
	}
}

func TestStatusStopped(t *testing.T) {
	s, _ := testSupervisor(t, okProbe)

	record := s.Status(context.Background(), sleepWorker("document"))
	if record.State != domain.StateStopped {
		t.Errorf("state = %q, want stopped", record.State)
	}
}

func TestStatusRunning(t *testing.T) {
	s, _ := testSupervisor(t, okProbe)
	ctx := context.Background()

	if _, err := s.Start(ctx, sleepWorker("document")); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(ctx, "document")

	record := s.Status(ctx, sleepWorker("document"))
	if record.State != domain.StateRunning {
		t.Errorf("state = %q, want running", record.State)
	}
	if record.PID <= 0 {
		t.Errorf("pid = %d, want positive", record.PID)
	}
}

func TestStatusDegradedWhenProbeFails(t *testing.T) {
	s, _ := testSupervisor(t, okProbe)
	ctx := context.Background()

	if _, err := s.Start(ctx, sleepWorker("document")); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(ctx, "document")

	// Process is alive but its port stops answering.
	s.cfg.Probe = downProbe
	record := s.Status(ctx, sleepWorker("document"))
	if record.State != domain.StateDegraded {
		t.Errorf("state = %q, want degraded", record.State)
	}
}

func TestStartEmptyCommand(t *testing.T) {
	s, _ := testSupervisor(t, okProbe)

	_, err := s.Start(context.Background(), Worker{Name: "document"})
	if err == nil {
		t.Error("expected error for empty command")
	}
}
