package llamacpp

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

const (
	healthPollAttempts = 30
	healthPollInterval = time.Second
)

// RunnerConfig describes how to launch llama-server. Binary and ModelPath are
// required; the rest have sensible defaults in NewRunner.
type RunnerConfig struct {
	Binary    string
	ModelPath string
	Port      int
	CtxSize   int
	Threads   int
}

// Runner owns a llama-server child process: it starts the binary, waits for
// its health endpoint to come up and terminates it on shutdown. When the
// server is managed externally, skip the Runner and point the Client at it
// directly.
type Runner struct {
	cfg    RunnerConfig
	client *Client
	logger *slog.Logger
	cmd    *exec.Cmd
}

func NewRunner(cfg RunnerConfig, client *Client, logger *slog.Logger) *Runner {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.CtxSize == 0 {
		cfg.CtxSize = 4096
	}
	if cfg.Threads == 0 {
		cfg.Threads = 4
	}
	return &Runner{cfg: cfg, client: client, logger: logger}
}

// Start launches the server process and blocks until its health endpoint
// responds or the poll budget is exhausted. On failure the process is killed
// before returning.
func (r *Runner) Start(ctx context.Context) error {
	if r.cmd != nil {
		return fmt.Errorf("llama-server already started")
	}

	cmd := exec.Command(r.cfg.Binary,
		"-m", r.cfg.ModelPath,
		"--port", strconv.Itoa(r.cfg.Port),
		"-c", strconv.Itoa(r.cfg.CtxSize),
		"--threads", strconv.Itoa(r.cfg.Threads),
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting llama-server: %w", err)
	}
	r.cmd = cmd
	r.logger.Info("llama-server started",
		"pid", cmd.Process.Pid,
		"model", r.cfg.ModelPath,
		"port", r.cfg.Port)

	if err := r.waitHealthy(ctx); err != nil {
		r.Stop()
		return err
	}
	return nil
}

func (r *Runner) waitHealthy(ctx context.Context) error {
	for i := 0; i < healthPollAttempts; i++ {
		if err := r.client.Healthy(ctx); err == nil {
			r.logger.Info("llama-server healthy", "attempts", i+1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(healthPollInterval):
		}
	}
	return fmt.Errorf("llama-server did not become healthy after %d attempts", healthPollAttempts)
}

// Stop sends SIGTERM and waits for the process to exit. Safe to call when the
// process was never started.
func (r *Runner) Stop() {
	if r.cmd == nil || r.cmd.Process == nil {
		return
	}
	if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		r.logger.Warn("failed to signal llama-server, killing", "error", err)
		_ = r.cmd.Process.Kill()
	}
	if err := r.cmd.Wait(); err != nil {
		r.logger.Warn("llama-server exited with error", "error", err)
	} else {
		r.logger.Info("llama-server stopped")
	}
	r.cmd = nil
}
