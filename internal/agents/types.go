// Package agents provides the multi-agent pipeline that turns a project
// description into a compiled, running and probed backend.
//
// A Manager owns the shared TaskContext and runs its agents one after the
// other. Each agent drives its own core.Lifecycle; collaborators that touch
// the outside world (generation, builds, subprocesses, HTTP, files) are
// injected through Deps so the pipeline can be exercised without them.
package agents

import (
	"context"
	"time"

	"agentforge/internal/agents/core"
	"agentforge/internal/ai"
	"agentforge/internal/config"
	"agentforge/internal/console"
	"agentforge/pkg/models"
)

// Agent positions as shown on the console
const (
	PositionManager          = "Manager"
	PositionProjectManager   = "Project Manager"
	PositionBackendDeveloper = "Backend Developer"
)

// Agent is one pipeline stage
type Agent interface {
	Position() string
	Objective() string
	Lifecycle() *core.Lifecycle
	Execute(ctx context.Context, task *models.TaskContext) error
}

// Builder compiles the persisted source tree. A failed compilation is
// reported as *execution.BuildError; any other error is fatal.
type Builder interface {
	Build(ctx context.Context) error
}

// Server is a running backend subprocess
type Server interface {
	Endpoint(route string) string
	Stop() error
}

// ServerLauncher spawns the backend
type ServerLauncher interface {
	Start(ctx context.Context) (Server, error)
}

// Prober issues a single GET and returns the status code
type Prober interface {
	Status(ctx context.Context, url string) (int, error)
}

// ArtifactStore reads the code template and persists generated artifacts
type ArtifactStore interface {
	LoadTemplate() (string, error)
	ReadSource() (string, error)
	WriteSource(ctx context.Context, code string) error
	WriteSchema(ctx context.Context, schema string) error
}

// Recorder keeps a durable record of pipeline runs
type Recorder interface {
	StartRun(ctx context.Context, description string) (string, error)
	RecordTransitions(ctx context.Context, runID string, transitions []core.StateTransition) error
	FinishRun(ctx context.Context, runID, status, errMsg string) error
}

// Settings tunes the pipeline timing and retry ceiling
type Settings struct {
	AgentPause  time.Duration
	WarmUp      time.Duration
	MaxBugs     int
	ImproveCode bool
	RepairJSON  bool
}

// SettingsFromConfig extracts pipeline settings from the loaded config
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		AgentPause:  cfg.Pipeline.AgentPause,
		WarmUp:      cfg.Pipeline.WarmUp,
		MaxBugs:     cfg.Pipeline.MaxBugs,
		ImproveCode: cfg.Pipeline.ImproveCode,
		RepairJSON:  cfg.Generation.RepairJSON,
	}
}

// Deps bundles the collaborators shared by the manager and its agents.
// Journal is optional.
type Deps struct {
	Completer      ai.Completer
	Reporter       console.Reporter
	Confirmer      console.Confirmer
	Store          ArtifactStore
	Builder        Builder
	Launcher       ServerLauncher
	URLProber      Prober
	EndpointProber Prober
	Journal        Recorder
	Settings       Settings
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
