// Package supervisor manages long-running agent worker processes. Each worker
// is launched in its own process group and probed on its TCP port to confirm
// it actually came up. The authoritative state is an in-memory record table;
// pid files in the workspace are written only as a crash-recovery hint and
// consulted when no in-memory record exists (a fresh supervisor adopting
// workers left behind by a previous one).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/observability"
	"github.com/jkaninda/mikopo/internal/workspace"
)

const (
	defaultStartupTimeout = 10 * time.Second
	defaultGracePeriod    = 10 * time.Second
	defaultPollInterval   = 100 * time.Millisecond
	probeDialTimeout      = 500 * time.Millisecond
)

var (
	// ErrAlreadyRunning is returned when starting a worker whose record
	// points at a live process.
	ErrAlreadyRunning = errors.New("worker already running")
	// ErrNotRunning is returned when stopping a worker with no live process.
	ErrNotRunning = errors.New("worker not running")
	// ErrStartupTimeout is returned when a started worker never answers its
	// port probe within the startup window. The worker is left alive with a
	// starting record so the operator can inspect its log or stop it.
	ErrStartupTimeout = errors.New("worker startup timed out")
)

// Worker describes one supervised process.
type Worker struct {
	Name    string
	Command []string
	Port    int
}

// ProbeFunc reports whether a worker's port is accepting connections.
type ProbeFunc func(ctx context.Context, port int) error

// Config tunes supervisor timing. Zero values take the defaults.
type Config struct {
	StartupTimeout time.Duration
	GracePeriod    time.Duration
	PollInterval   time.Duration
	Probe          ProbeFunc
}

// Supervisor starts, stops, and inspects worker processes.
type Supervisor struct {
	ws      *workspace.Workspace
	cfg     Config
	logger  *slog.Logger
	metrics *observability.MetricsCollector // nil when metrics are disabled

	mu      sync.Mutex
	records map[string]domain.ProcessRecord
}

// New creates a Supervisor over the given workspace.
func New(ws *workspace.Workspace, cfg Config, logger *slog.Logger, metrics *observability.MetricsCollector) *Supervisor {
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = defaultGracePeriod
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Probe == nil {
		cfg.Probe = tcpProbe
	}
	return &Supervisor{
		ws:      ws,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		records: make(map[string]domain.ProcessRecord),
	}
}

// Start launches a worker and waits for its port to come up. A stale record
// or pid file from a dead process is discarded first. On a startup timeout
// the worker stays alive and its record stays in the starting state.
func (s *Supervisor) Start(ctx context.Context, w Worker) (domain.ProcessRecord, error) {
	if len(w.Command) == 0 {
		return domain.ProcessRecord{}, fmt.Errorf("worker %s: empty command", w.Name)
	}

	if rec, ok := s.liveRecord(w.Name); ok {
		return rec, fmt.Errorf("worker %s (pid %d): %w", w.Name, rec.PID, ErrAlreadyRunning)
	}

	logPath := s.ws.WorkerLogPath(w.Name)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return domain.ProcessRecord{}, fmt.Errorf("opening worker log %s: %w", logPath, err)
	}

	cmd := exec.Command(w.Command[0], w.Command[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	// Own process group, so Stop can kill the worker and anything it spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return domain.ProcessRecord{}, fmt.Errorf("starting worker %s: %w", w.Name, err)
	}
	_ = logFile.Close()

	pid := cmd.Process.Pid
	record := domain.ProcessRecord{
		Name:      w.Name,
		PID:       pid,
		Port:      w.Port,
		State:     domain.StateStarting,
		LogPath:   logPath,
		StartedAt: time.Now().UTC(),
	}
	s.setRecord(record)
	s.recordTransition(w.Name, domain.StateStarting)

	if err := s.writePidFile(w.Name, pid); err != nil {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		s.setState(w.Name, domain.StateStopped)
		return domain.ProcessRecord{}, err
	}

	// Reap the child when it exits so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	s.logger.Info("worker started",
		slog.String("worker", w.Name),
		slog.Int("pid", pid),
		slog.Int("port", w.Port),
		slog.String("log", logPath),
	)

	if w.Port > 0 {
		if err := s.awaitPort(ctx, w.Port); err != nil {
			s.logger.Error("worker did not become ready",
				slog.String("worker", w.Name),
				slog.Int("pid", pid),
				slog.String("error", err.Error()),
			)
			return record, fmt.Errorf("worker %s: %w", w.Name, err)
		}
	}

	record.State = domain.StateRunning
	s.setRecord(record)
	s.recordTransition(w.Name, domain.StateRunning)
	return record, nil
}

// Stop sends SIGTERM to the worker's process group, waits up to the grace
// period, and escalates to SIGKILL if it does not exit. Workers stuck in the
// starting state can be stopped the same way.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	rec, ok := s.liveRecord(name)
	if !ok {
		return fmt.Errorf("worker %s: %w", name, ErrNotRunning)
	}
	pid := rec.PID

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling worker %s (pid %d): %w", name, pid, err)
	}

	deadline := time.Now().Add(s.cfg.GracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			s.markStopped(name)
			s.logger.Info("worker stopped", slog.String("worker", name), slog.Int("pid", pid))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}

	s.logger.Warn("worker ignored SIGTERM, escalating to SIGKILL",
		slog.String("worker", name),
		slog.Int("pid", pid),
	)
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	s.markStopped(name)
	return nil
}

// Status inspects a worker without changing it. A worker that answers its
// port probe is promoted from starting to running; a running worker whose
// port stops answering is reported as degraded.
func (s *Supervisor) Status(ctx context.Context, w Worker) domain.ProcessRecord {
	rec, ok := s.liveRecord(w.Name)
	if !ok {
		return domain.ProcessRecord{
			Name:    w.Name,
			Port:    w.Port,
			State:   domain.StateStopped,
			LogPath: s.ws.WorkerLogPath(w.Name),
		}
	}
	if rec.Port == 0 {
		rec.Port = w.Port
	}

	if rec.Port > 0 {
		probeErr := s.cfg.Probe(ctx, rec.Port)
		switch {
		case probeErr == nil && rec.State == domain.StateStarting:
			rec.State = domain.StateRunning
			s.setRecord(rec)
		case probeErr == nil:
			rec.State = domain.StateRunning
		case rec.State == domain.StateStarting:
			// Still not bound; the record keeps saying so.
		default:
			rec.State = domain.StateDegraded
		}
	} else {
		rec.State = domain.StateRunning
	}
	return rec
}

// awaitPort polls the worker's port until it accepts a connection or the
// startup window elapses.
func (s *Supervisor) awaitPort(ctx context.Context, port int) error {
	deadline := time.Now().Add(s.cfg.StartupTimeout)
	for time.Now().Before(deadline) {
		if err := s.cfg.Probe(ctx, port); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
	return ErrStartupTimeout
}

// liveRecord returns the worker's record when its process is alive. The
// in-memory table is authoritative; the pid file is consulted only when no
// record exists, adopting a worker left behind by a previous supervisor.
// Records and pid files pointing at dead processes are discarded.
func (s *Supervisor) liveRecord(name string) (domain.ProcessRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[name]; ok && rec.State != domain.StateStopped {
		if processAlive(rec.PID) {
			return rec, true
		}
		rec.State = domain.StateStopped
		s.records[name] = rec
		_ = os.Remove(s.ws.PidFile(name))
		return domain.ProcessRecord{}, false
	}

	pid, ok := s.pidFromFile(name)
	if !ok {
		return domain.ProcessRecord{}, false
	}
	if !processAlive(pid) {
		_ = os.Remove(s.ws.PidFile(name))
		return domain.ProcessRecord{}, false
	}
	rec := domain.ProcessRecord{
		Name:    name,
		PID:     pid,
		State:   domain.StateRunning,
		LogPath: s.ws.WorkerLogPath(name),
	}
	s.records[name] = rec
	return rec, true
}

// pidFromFile reads the crash-recovery hint. Callers hold s.mu.
func (s *Supervisor) pidFromFile(name string) (int, bool) {
	data, err := os.ReadFile(s.ws.PidFile(name))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (s *Supervisor) setRecord(rec domain.ProcessRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Name] = rec
}

func (s *Supervisor) setState(name string, state domain.ProcessState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[name]; ok {
		rec.State = state
		s.records[name] = rec
	}
}

// markStopped records the stop and removes the pid file hint.
func (s *Supervisor) markStopped(name string) {
	s.setState(name, domain.StateStopped)
	_ = os.Remove(s.ws.PidFile(name))
	s.recordTransition(name, domain.StateStopped)
}

func (s *Supervisor) writePidFile(name string, pid int) error {
	path := s.ws.PidFile(name)
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0640); err != nil {
		return fmt.Errorf("writing pid file %s: %w", path, err)
	}
	return nil
}

func (s *Supervisor) recordTransition(name string, state domain.ProcessState) {
	if s.metrics != nil {
		s.metrics.SupervisorTransitionsTotal.WithLabelValues(name, string(state)).Inc()
	}
}

// processAlive reports whether a pid refers to a live process.
// Signal 0 performs the existence check without delivering anything.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// tcpProbe dials the worker's port on loopback.
func tcpProbe(ctx context.Context, port int) error {
	d := net.Dialer{Timeout: probeDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}
