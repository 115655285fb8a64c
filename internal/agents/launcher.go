package agents

import (
	"context"

	"agentforge/internal/preview"
)

// PreviewLauncher starts the backend through a preview.ServerRunner
type PreviewLauncher struct {
	Runner *preview.ServerRunner
}

// NewPreviewLauncher wraps runner as a ServerLauncher
func NewPreviewLauncher(runner *preview.ServerRunner) *PreviewLauncher {
	return &PreviewLauncher{Runner: runner}
}

// Start spawns the backend subprocess
func (l *PreviewLauncher) Start(ctx context.Context) (Server, error) {
	proc, err := l.Runner.Start(ctx)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
