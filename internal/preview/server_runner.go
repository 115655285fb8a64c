// Package preview runs the generated backend as a local server process.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"agentforge/internal/logging"
	"agentforge/internal/metrics"

	"go.uber.org/zap"
)

// ServerRunner starts the backend run command in the project directory
type ServerRunner struct {
	Dir       string
	Command   []string
	Addr      string // host:port the backend is expected to listen on
	StopGrace time.Duration
	Stdout    io.Writer
	Stderr    io.Writer
}

// NewServerRunner creates a runner for a whitespace separated command line
func NewServerRunner(dir, commandLine, addr string, stopGrace time.Duration) *ServerRunner {
	return &ServerRunner{
		Dir:       dir,
		Command:   strings.Fields(commandLine),
		Addr:      addr,
		StopGrace: stopGrace,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// ServerProcess is a running backend server
type ServerProcess struct {
	Cmd       *exec.Cmd
	Pid       int
	URL       string
	StartedAt time.Time

	grace       time.Duration
	stoppedChan chan struct{}
	waitErr     error
	stopOnce    sync.Once
	stopErr     error
}

// Start spawns the server in its own process group. It does not wait for
// the server to listen; callers decide how long to let it warm up.
func (sr *ServerRunner) Start(ctx context.Context) (*ServerProcess, error) {
	if len(sr.Command) == 0 {
		return nil, errors.New("run command is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(sr.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", sr.Addr, err)
	}

	// The process outlives ctx-scoped calls; Stop ends it.
	cmd := exec.Command(sr.Command[0], sr.Command[1:]...)
	cmd.Dir = sr.Dir
	cmd.Stdout = sr.Stdout
	cmd.Stderr = sr.Stderr

	// Set up process group for proper cleanup
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	env := os.Environ()
	env = append(env, fmt.Sprintf("PORT=%s", port))
	env = append(env, fmt.Sprintf("HOST=%s", host))
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	proc := &ServerProcess{
		Cmd:         cmd,
		Pid:         cmd.Process.Pid,
		URL:         "http://" + sr.Addr,
		StartedAt:   time.Now(),
		grace:       sr.StopGrace,
		stoppedChan: make(chan struct{}),
	}

	// Wait for process completion in background
	go func() {
		defer close(proc.stoppedChan)
		proc.waitErr = cmd.Wait()
	}()

	metrics.Get().BackendServersRunning.Inc()
	logging.L().Info("backend server started",
		zap.Int("pid", proc.Pid),
		zap.Strings("command", sr.Command),
		zap.String("url", proc.URL),
	)
	return proc, nil
}

// Endpoint returns the absolute URL of route on this server
func (p *ServerProcess) Endpoint(route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return p.URL + route
}

// Exited reports whether the process has terminated
func (p *ServerProcess) Exited() bool {
	select {
	case <-p.stoppedChan:
		return true
	default:
		return false
	}
}

// Done is closed once the process has terminated
func (p *ServerProcess) Done() <-chan struct{} {
	return p.stoppedChan
}

// Stop terminates the process group: SIGTERM first, SIGKILL once the grace
// period is over. The group is signalled even when the leader already
// exited, since the run command may have forked the real server. Safe to
// call any number of times; only the first call signals.
func (p *ServerProcess) Stop() error {
	p.stopOnce.Do(func() {
		defer metrics.Get().BackendServersRunning.Dec()

		leaderExited := p.Exited()
		if !groupAlive(p.Pid) {
			logging.L().Debug("backend server already exited", zap.Int("pid", p.Pid), zap.Error(p.waitErr))
			return
		}

		if err := syscall.Kill(-p.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			p.stopErr = fmt.Errorf("signal server %d: %w", p.Pid, err)
			return
		}

		deadline := time.Now().Add(p.grace)
		if !leaderExited {
			timer := time.NewTimer(p.grace)
			select {
			case <-p.stoppedChan:
			case <-timer.C:
			}
			timer.Stop()
		}
		for groupAlive(p.Pid) && time.Now().Before(deadline) {
			time.Sleep(groupPollInterval)
		}

		if groupAlive(p.Pid) {
			// Force kill (SIGKILL)
			if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				p.stopErr = fmt.Errorf("kill server %d: %w", p.Pid, err)
				return
			}
		}
		<-p.stoppedChan

		logging.L().Info("backend server stopped", zap.Int("pid", p.Pid), zap.Duration("uptime", time.Since(p.StartedAt)))
	})
	return p.stopErr
}

const groupPollInterval = 25 * time.Millisecond

// groupAlive reports whether any process of the group led by pid remains
func groupAlive(pid int) bool {
	err := syscall.Kill(-pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
