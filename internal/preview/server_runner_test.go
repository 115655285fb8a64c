package preview

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellServer(t *testing.T, script string, grace time.Duration) *ServerRunner {
	t.Helper()
	return &ServerRunner{
		Dir:       t.TempDir(),
		Command:   []string{"sh", "-c", script},
		Addr:      "127.0.0.1:18080",
		StopGrace: grace,
	}
}

func waitExited(t *testing.T, p *ServerProcess) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestServerRunnerStartAndStop(t *testing.T) {
	proc, err := shellServer(t, "sleep 30", 2*time.Second).Start(context.Background())
	require.NoError(t, err)

	assert.Greater(t, proc.Pid, 0)
	assert.Equal(t, "http://127.0.0.1:18080", proc.URL)
	assert.False(t, proc.Exited())

	require.NoError(t, proc.Stop())
	waitExited(t, proc)

	// A second stop on the dead process is a no-op.
	assert.NoError(t, proc.Stop())
}

func TestServerRunnerStopForcesKill(t *testing.T) {
	proc, err := shellServer(t, "trap '' TERM; sleep 30", 100*time.Millisecond).Start(context.Background())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, proc.Stop())
	assert.True(t, proc.Exited())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestServerRunnerStopAfterExit(t *testing.T) {
	proc, err := shellServer(t, "exit 3", time.Second).Start(context.Background())
	require.NoError(t, err)

	waitExited(t, proc)
	assert.NoError(t, proc.Stop())
	assert.NoError(t, proc.Stop())
}

// processRunning reports whether pid is alive and not a zombie
func processRunning(t *testing.T, pid int) bool {
	t.Helper()
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	// The state follows the parenthesised command name.
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z"
}

func readPid(t *testing.T, path string) int {
	t.Helper()
	var raw []byte
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil || !strings.HasSuffix(string(data), "\n") {
			return false
		}
		raw = data
		return true
	}, 5*time.Second, 10*time.Millisecond)

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	return pid
}

func TestServerRunnerStopKillsForkedServerAfterLeaderExit(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}
	pidFile := filepath.Join(t.TempDir(), "server.pid")
	proc, err := shellServer(t, "sleep 30 & echo $! > "+pidFile+"; exit 0", 2*time.Second).Start(context.Background())
	require.NoError(t, err)

	child := readPid(t, pidFile)
	waitExited(t, proc)
	require.True(t, processRunning(t, child), "forked server should outlive the leader")

	require.NoError(t, proc.Stop())
	assert.Eventually(t, func() bool { return !processRunning(t, child) }, 5*time.Second, 20*time.Millisecond)
}

func TestServerRunnerStopKillsChildrenIgnoringTerm(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}
	pidFile := filepath.Join(t.TempDir(), "server.pid")
	proc, err := shellServer(t, "sh -c \"trap '' TERM; sleep 30\" & echo $! > "+pidFile+"; wait", 200*time.Millisecond).Start(context.Background())
	require.NoError(t, err)

	child := readPid(t, pidFile)
	require.NoError(t, proc.Stop())
	assert.True(t, proc.Exited())
	assert.Eventually(t, func() bool { return !processRunning(t, child) }, 5*time.Second, 20*time.Millisecond)
}

func TestServerRunnerPassesAddressToEnv(t *testing.T) {
	dir := t.TempDir()
	r := &ServerRunner{
		Dir:       dir,
		Command:   []string{"sh", "-c", `test "$PORT" = 18080 && test "$HOST" = 127.0.0.1`},
		Addr:      "127.0.0.1:18080",
		StopGrace: time.Second,
	}

	proc, err := r.Start(context.Background())
	require.NoError(t, err)
	waitExited(t, proc)
	assert.NoError(t, proc.waitErr)
}

func TestServerRunnerStartErrors(t *testing.T) {
	ctx := context.Background()

	_, err := (&ServerRunner{Addr: "127.0.0.1:8080"}).Start(ctx)
	assert.Error(t, err, "empty command")

	_, err = (&ServerRunner{Command: []string{"true"}, Addr: "no-port"}).Start(ctx)
	assert.Error(t, err, "invalid address")

	_, err = (&ServerRunner{Command: []string{"agentforge-no-such-server"}, Addr: "127.0.0.1:8080"}).Start(ctx)
	assert.Error(t, err, "missing binary")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = (&ServerRunner{Command: []string{"true"}, Addr: "127.0.0.1:8080"}).Start(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServerProcessEndpoint(t *testing.T) {
	p := &ServerProcess{URL: "http://127.0.0.1:8080"}
	assert.Equal(t, "http://127.0.0.1:8080/item", p.Endpoint("/item"))
	assert.Equal(t, "http://127.0.0.1:8080/health", p.Endpoint("health"))
}
