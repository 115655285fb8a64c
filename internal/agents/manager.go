package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"agentforge/internal/agents/core"
	"agentforge/internal/ai"
	"agentforge/internal/console"
	"agentforge/internal/logging"
	"agentforge/internal/metrics"
	"agentforge/pkg/models"
)

// Run statuses stored in the journal and exported as metrics
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusDeclined  = "declined"
	RunStatusCancelled = "cancelled"
)

// Manager owns the TaskContext and runs agents in the order they were
// added. Only one agent touches the context at a time.
type Manager struct {
	deps   Deps
	task   *models.TaskContext
	agents []Agent
	runID  string
}

// NewManager turns the raw user input into a goal description and creates
// the TaskContext around it.
func NewManager(ctx context.Context, userInput string, deps Deps) (*Manager, error) {
	if deps.Reporter != nil {
		deps.Reporter.Report(console.KindInfo, PositionManager, "Manage agents who are working for the user")
	}

	goal, err := ai.Request(ctx, deps.Completer, ai.ConvertUserInputToGoal, userInput)
	if err != nil {
		return nil, err
	}
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, malformed("goal", errors.New("empty response"))
	}
	logging.L().Info("goal defined", zap.String("goal", goal))

	return &Manager{
		deps: deps,
		task: models.NewTaskContext(goal),
	}, nil
}

// Task returns the shared context
func (m *Manager) Task() *models.TaskContext { return m.task }

// Agents returns the agents added so far
func (m *Manager) Agents() []Agent { return m.agents }

// RunID returns the journal id of the last Execute, empty without a journal
func (m *Manager) RunID() string { return m.runID }

// AddAgent appends an agent to the pipeline
func (m *Manager) AddAgent(agent Agent) {
	agent.Lifecycle().Observe(func(t core.StateTransition) {
		metrics.Get().RecordTransition(t.Position, string(t.FromState), string(t.ToState))
		logging.L().Debug(fmt.Sprintf("%s --> %s", t.FromState, t.ToState),
			zap.String("agent", t.Position),
			zap.Int64("duration_ms", t.DurationMs),
			zap.String("error", t.ErrorMessage))
	})
	m.agents = append(m.agents, agent)
}

// CreateAgents adds the default pipeline: scoping, then backend
func (m *Manager) CreateAgents() {
	m.AddAgent(NewScopingAgent(m.deps))
	m.AddAgent(NewBuildAgent(m.deps))
}

// Execute runs every agent to completion, pausing between agents. The first
// agent error aborts the pipeline and is returned wrapped with the agent
// position. With no agents added, the default pipeline is created.
func (m *Manager) Execute(ctx context.Context) (err error) {
	if len(m.agents) == 0 {
		m.CreateAgents()
	}

	start := time.Now()
	m.startRun(ctx)
	defer func() {
		status := runStatus(err)
		metrics.Get().RecordPipelineRun(status, time.Since(start))
		m.finishRun(status, err)
	}()

	for i, agent := range m.agents {
		if i > 0 {
			if err := sleep(ctx, m.deps.Settings.AgentPause); err != nil {
				return err
			}
		}

		agentErr := agent.Execute(ctx, m.task)
		m.recordTransitions(ctx, agent)
		if agentErr != nil {
			logging.L().Error("agent failed", zap.String("agent", agent.Position()), zap.Error(agentErr))
			return fmt.Errorf("%s: %w", agent.Position(), agentErr)
		}
	}

	if m.deps.Reporter != nil {
		m.deps.Reporter.Report(console.KindInfo, PositionManager, "All agents finished")
	}
	return nil
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return RunStatusCompleted
	case errors.Is(err, ErrUserDeclined):
		return RunStatusDeclined
	case errors.Is(err, context.Canceled):
		return RunStatusCancelled
	default:
		return RunStatusFailed
	}
}

// --- Journal ---

func (m *Manager) startRun(ctx context.Context) {
	m.runID = ""
	if m.deps.Journal == nil {
		return
	}
	id, err := m.deps.Journal.StartRun(ctx, m.task.Description)
	if err != nil {
		logging.L().Warn("failed to start journal run", zap.Error(err))
		return
	}
	m.runID = id
}

func (m *Manager) recordTransitions(ctx context.Context, agent Agent) {
	if m.deps.Journal == nil || m.runID == "" {
		return
	}
	// Recorded even when ctx was cancelled so the journal shows where it stopped
	if err := m.deps.Journal.RecordTransitions(context.WithoutCancel(ctx), m.runID, agent.Lifecycle().History()); err != nil {
		logging.L().Warn("failed to record transitions", zap.String("agent", agent.Position()), zap.Error(err))
	}
}

func (m *Manager) finishRun(status string, runErr error) {
	if m.deps.Journal == nil || m.runID == "" {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := m.deps.Journal.FinishRun(context.Background(), m.runID, status, msg); err != nil {
		logging.L().Warn("failed to finish journal run", zap.Error(err))
	}
}
