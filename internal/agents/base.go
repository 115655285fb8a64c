package agents

import (
	"go.uber.org/zap"

	"agentforge/internal/agents/core"
	"agentforge/internal/console"
	"agentforge/internal/logging"
)

// base carries what every agent shares: identity, lifecycle and deps
type base struct {
	position  string
	objective string
	lifecycle *core.Lifecycle
	deps      Deps
}

func newBase(position, objective string, deps Deps) base {
	return base{
		position:  position,
		objective: objective,
		lifecycle: core.NewLifecycle(position),
		deps:      deps,
	}
}

func (b *base) Position() string           { return b.position }
func (b *base) Objective() string          { return b.objective }
func (b *base) Lifecycle() *core.Lifecycle { return b.lifecycle }

func (b *base) report(kind console.Kind, message string) {
	if b.deps.Reporter != nil {
		b.deps.Reporter.Report(kind, b.position, message)
	}
}

func (b *base) log() *zap.Logger {
	return logging.WithContext(zap.String("agent", b.position), zap.String("agent_id", b.lifecycle.AgentID))
}
