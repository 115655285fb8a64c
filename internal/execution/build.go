// Package execution runs the build command of the generated backend project.
package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"agentforge/internal/logging"
	"agentforge/internal/metrics"

	"go.uber.org/zap"
)

// cancelWaitDelay bounds how long Build waits for output pipes after a cancel
const cancelWaitDelay = 2 * time.Second

// BuildError is returned when the build command ran and exited non-zero.
// Diagnostics holds the command's standard error verbatim.
type BuildError struct {
	ExitCode    int
	Diagnostics string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed with exit code %d", e.ExitCode)
}

// BuildRunner runs a fixed build command inside the project directory.
// Output is streamed to Stdout/Stderr while it runs.
type BuildRunner struct {
	Dir     string
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewBuildRunner creates a runner for a whitespace separated command line
func NewBuildRunner(dir, commandLine string) *BuildRunner {
	return &BuildRunner{
		Dir:     dir,
		Command: strings.Fields(commandLine),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Build runs the command. It returns nil on a zero exit status, a
// *BuildError on a non-zero one and any other error when the command could
// not be run at all.
func (b *BuildRunner) Build(ctx context.Context) error {
	if len(b.Command) == 0 {
		return errors.New("build command is empty")
	}

	var diagnostics bytes.Buffer
	cmd := exec.CommandContext(ctx, b.Command[0], b.Command[1:]...)
	cmd.Dir = b.Dir
	cmd.Stdin = nil
	cmd.Stdout = writerOrDiscard(b.Stdout)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(b.Stderr), &diagnostics)

	// Cancellation kills the whole group so compiler children go with it
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = cancelWaitDelay

	log := logging.L().With(zap.Strings("command", b.Command), zap.String("dir", b.Dir))
	log.Info("running build command")

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		metrics.Get().RecordBuild(true, duration)
		log.Info("build succeeded", zap.Duration("duration", duration))
		return nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		metrics.Get().RecordBuild(false, duration)
		log.Warn("build failed", zap.Int("exit_code", exitErr.ExitCode()), zap.Duration("duration", duration))
		return &BuildError{ExitCode: exitErr.ExitCode(), Diagnostics: diagnostics.String()}
	default:
		return fmt.Errorf("run build command %q: %w", strings.Join(b.Command, " "), err)
	}
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
