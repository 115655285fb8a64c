package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentforge/internal/agents/core"
	"agentforge/internal/ai"
	"agentforge/internal/console"
	"agentforge/pkg/models"
)

func TestNewManagerRefinesGoal(t *testing.T) {
	d := newTestDeps()
	d.completer.on(ai.ConvertUserInputToGoal, "  build a website that tracks fitness progress\n")

	m, err := NewManager(context.Background(), "need an app for my workouts", d.deps())
	require.NoError(t, err)

	assert.Equal(t, "build a website that tracks fitness progress", m.Task().Description)
	assert.Contains(t, d.completer.inputs[ai.ConvertUserInputToGoal.Name][0], "need an app for my workouts")
	require.NotEmpty(t, d.reporter.lines)
	assert.Equal(t, PositionManager, d.reporter.lines[0].position)
	assert.Equal(t, "Manage agents who are working for the user", d.reporter.lines[0].message)
}

func TestNewManagerGenerationError(t *testing.T) {
	d := newTestDeps()
	d.completer.err = errors.New("quota exceeded")

	_, err := NewManager(context.Background(), "x", d.deps())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestManagerExecuteFullPipeline(t *testing.T) {
	d := newTestDeps()
	d.completer.
		on(ai.ConvertUserInputToGoal, "build a website that lists items").
		on(ai.DecideProjectScope, scopeWithoutURLs)
	scriptBackend(d)
	journal := &fakeJournal{}
	deps := d.deps()
	deps.Journal = journal

	m, err := NewManager(context.Background(), "items app", deps)
	require.NoError(t, err)
	require.NoError(t, m.Execute(context.Background()))

	require.Len(t, m.Agents(), 2)
	assert.Equal(t, PositionProjectManager, m.Agents()[0].Position())
	assert.Equal(t, PositionBackendDeveloper, m.Agents()[1].Position())
	for _, a := range m.Agents() {
		assert.True(t, a.Lifecycle().IsTerminal())
	}

	task := m.Task()
	assert.NotNil(t, task.ProjectScope)
	assert.NotEmpty(t, task.BackendCode)
	assert.Len(t, task.EndpointSchema, 2)

	assert.Equal(t, "run-1", m.RunID())
	assert.Equal(t, "build a website that lists items", journal.description)
	assert.Equal(t, RunStatusCompleted, journal.status)
	assert.Len(t, journal.transitions, 1+3)
	assert.True(t, d.reporter.contains(console.KindInfo, "All agents finished"))
}

// scriptedAgent finishes immediately and records when it ran
type scriptedAgent struct {
	base
	err   error
	order *[]string
}

func newScriptedAgent(position string, err error, order *[]string) *scriptedAgent {
	return &scriptedAgent{base: newBase(position, "test", Deps{}), err: err, order: order}
}

func (a *scriptedAgent) Execute(ctx context.Context, _ *models.TaskContext) error {
	return a.lifecycle.Run(ctx, map[core.AgentState]core.Handler{
		core.StatePlanning: func(context.Context) (core.AgentState, error) {
			*a.order = append(*a.order, a.position)
			if a.err != nil {
				return "", a.err
			}
			return core.StateDone, nil
		},
	})
}

func newBareManager(d *testDeps) *Manager {
	return &Manager{deps: d.deps(), task: models.NewTaskContext("x")}
}

func TestManagerRunsAgentsInOrder(t *testing.T) {
	var order []string
	m := newBareManager(newTestDeps())
	m.AddAgent(newScriptedAgent("first", nil, &order))
	m.AddAgent(newScriptedAgent("second", nil, &order))
	m.AddAgent(newScriptedAgent("third", nil, &order))

	require.NoError(t, m.Execute(context.Background()))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestManagerStopsAtFirstAgentError(t *testing.T) {
	var order []string
	d := newTestDeps()
	journal := &fakeJournal{}
	m := newBareManager(d)
	m.deps.Journal = journal
	m.AddAgent(newScriptedAgent("first", ErrTooManyBugs, &order))
	m.AddAgent(newScriptedAgent("second", nil, &order))

	err := m.Execute(context.Background())

	require.ErrorIs(t, err, ErrTooManyBugs)
	assert.Contains(t, err.Error(), "first")
	assert.Equal(t, []string{"first"}, order)
	assert.Equal(t, RunStatusFailed, journal.status)
	assert.Contains(t, journal.errMsg, "too many bugs")
	require.Len(t, journal.transitions, 1)
	assert.Equal(t, "too many bugs in generated code", journal.transitions[0].ErrorMessage)
}

func TestManagerDeclineStatus(t *testing.T) {
	var order []string
	journal := &fakeJournal{}
	m := newBareManager(newTestDeps())
	m.deps.Journal = journal
	m.AddAgent(newScriptedAgent("first", ErrUserDeclined, &order))

	require.ErrorIs(t, m.Execute(context.Background()), ErrUserDeclined)
	assert.Equal(t, RunStatusDeclined, journal.status)
}

func TestManagerPauseHonoursCancellation(t *testing.T) {
	var order []string
	m := newBareManager(newTestDeps())
	m.deps.Settings.AgentPause = time.Hour
	m.AddAgent(newScriptedAgent("first", nil, &order))
	m.AddAgent(newScriptedAgent("second", nil, &order))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Execute(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"first"}, order)
}

func TestManagerJournalFailureIsNotFatal(t *testing.T) {
	var order []string
	m := newBareManager(newTestDeps())
	m.deps.Journal = &fakeJournal{startErr: errors.New("database is locked")}
	m.AddAgent(newScriptedAgent("first", nil, &order))

	require.NoError(t, m.Execute(context.Background()))
	assert.Empty(t, m.RunID())
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, RunStatusCompleted, runStatus(nil))
	assert.Equal(t, RunStatusDeclined, runStatus(ErrUserDeclined))
	assert.Equal(t, RunStatusCancelled, runStatus(context.Canceled))
	assert.Equal(t, RunStatusFailed, runStatus(ErrTooManyBugs))
}
