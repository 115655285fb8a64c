package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"agentforge/internal/agents/core"
	"agentforge/internal/ai"
	"agentforge/internal/console"
	"agentforge/internal/execution"
	"agentforge/pkg/models"
)

const confirmQuestion = "WARNING: generated code is about to be built and run on this machine. Review it first. Continue?"

// BuildAgent writes the backend, keeps it compiling with a bounded number
// of fix rounds, then serves it and probes its static GET routes.
type BuildAgent struct {
	base

	bugCount       int
	lastBuildError string
}

// NewBuildAgent creates a build agent in the planning state
func NewBuildAgent(deps Deps) *BuildAgent {
	return &BuildAgent{
		base: newBase(PositionBackendDeveloper, "Develop backend code for webserver and json database", deps),
	}
}

// BugCount returns the number of consecutive failed builds
func (a *BuildAgent) BugCount() int { return a.bugCount }

// LastBuildError returns the diagnostics of the most recent failed build
func (a *BuildAgent) LastBuildError() string { return a.lastBuildError }

// Execute runs the agent to completion against task
func (a *BuildAgent) Execute(ctx context.Context, task *models.TaskContext) error {
	return a.lifecycle.Run(ctx, map[core.AgentState]core.Handler{
		core.StatePlanning: func(ctx context.Context) (core.AgentState, error) {
			return a.plan(ctx, task)
		},
		core.StateWorking: func(ctx context.Context) (core.AgentState, error) {
			return a.work(ctx, task)
		},
		core.StateTesting: func(ctx context.Context) (core.AgentState, error) {
			return a.test(ctx, task)
		},
	})
}

func (a *BuildAgent) plan(ctx context.Context, task *models.TaskContext) (core.AgentState, error) {
	a.report(console.KindInfo, "Writing backend code...")

	template, err := a.deps.Store.LoadTemplate()
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("CODE_TEMPLATE: %s\nPROJECT_DESCRIPTION: %s", template, task.Description)
	if err := a.generate(ctx, task, ai.WriteBackendCode, input); err != nil {
		return "", err
	}
	return core.StateWorking, nil
}

// work fixes the last failed build. Without a failure it optionally runs
// an improvement round, otherwise it passes straight through to testing.
func (a *BuildAgent) work(ctx context.Context, task *models.TaskContext) (core.AgentState, error) {
	switch {
	case a.bugCount > 0:
		a.report(console.KindInfo, fmt.Sprintf("Fixing code bugs (attempt %d)...", a.bugCount))
		source, err := a.deps.Store.ReadSource()
		if err != nil {
			return "", err
		}
		input := fmt.Sprintf("BROKEN_CODE: %s\nERROR_BUGS: %s\nTHIS FUNCTION ONLY OUTPUTS CODE. JUST OUTPUT THE CODE.", source, a.lastBuildError)
		if err := a.generate(ctx, task, ai.FixBackendCode, input); err != nil {
			return "", err
		}
	case a.deps.Settings.ImproveCode:
		a.report(console.KindInfo, "Improving backend code...")
		input := fmt.Sprintf("CODE_TEMPLATE: %s\nPROJECT_DESCRIPTION: %s", task.BackendCode, task.Description)
		if err := a.generate(ctx, task, ai.ImproveBackendCode, input); err != nil {
			return "", err
		}
	}
	return core.StateTesting, nil
}

// generate runs one code generation step and persists its output
func (a *BuildAgent) generate(ctx context.Context, task *models.TaskContext, fn ai.Function, input string) error {
	raw, err := ai.Request(ctx, a.deps.Completer, fn, input)
	if err != nil {
		return err
	}
	code := ai.StripCodeFence(raw)
	if err := a.deps.Store.WriteSource(ctx, code); err != nil {
		return err
	}
	task.BackendCode = code
	return nil
}

func (a *BuildAgent) test(ctx context.Context, task *models.TaskContext) (core.AgentState, error) {
	ok, err := a.deps.Confirmer.Confirm(ctx, confirmQuestion)
	if err != nil {
		return "", fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		a.report(console.KindIssue, "It's time to come back and review the code")
		return "", ErrUserDeclined
	}

	a.report(console.KindTest, "Building backend code...")
	if err := a.deps.Builder.Build(ctx); err != nil {
		var buildErr *execution.BuildError
		if !errors.As(err, &buildErr) {
			return "", fmt.Errorf("build: %w", err)
		}
		return a.recordBuildFailure(buildErr)
	}

	a.bugCount = 0
	a.report(console.KindTest, "Backend code build successful...")

	routes, schema, err := a.extractRoutes(ctx, task.BackendCode)
	if err != nil {
		return "", err
	}
	task.EndpointSchema = models.FilterProbeEligible(routes)

	if err := a.serveAndProbe(ctx, task.EndpointSchema, schema); err != nil {
		return "", err
	}

	a.report(console.KindTest, "Backend testing complete...")
	return core.StateDone, nil
}

func (a *BuildAgent) recordBuildFailure(buildErr *execution.BuildError) (core.AgentState, error) {
	a.lastBuildError = buildErr.Diagnostics
	a.bugCount++
	a.log().Warn("build failed", zap.Int("bug_count", a.bugCount), zap.Int("exit_code", buildErr.ExitCode))

	if a.bugCount > a.deps.Settings.MaxBugs {
		a.report(console.KindIssue, "Too many bugs found in code")
		return "", fmt.Errorf("%w: %d failed builds", ErrTooManyBugs, a.bugCount)
	}
	a.report(console.KindIssue, fmt.Sprintf("Backend code build failed, requesting a fix (%d of %d)", a.bugCount, a.deps.Settings.MaxBugs))
	return core.StateWorking, nil
}

// extractRoutes returns the decoded routes and the schema text they were
// decoded from
func (a *BuildAgent) extractRoutes(ctx context.Context, code string) ([]models.RouteDescriptor, string, error) {
	a.report(console.KindInfo, "Extracting API endpoints...")

	raw, err := ai.Request(ctx, a.deps.Completer, ai.ExtractRESTEndpoints, code)
	if err != nil {
		return nil, "", err
	}
	body, err := ai.ExtractJSON(raw, a.deps.Settings.RepairJSON)
	if err != nil {
		return nil, "", malformed("endpoint schema", err)
	}
	routes, err := models.ParseRouteSchema(body)
	if err != nil {
		return nil, "", malformed("endpoint schema", err)
	}
	return routes, body, nil
}

// serveAndProbe starts the backend, waits for it to warm up, GETs every
// route and persists schema. The server is stopped on every return path,
// after the schema is written. A transport error stops the server at once
// and skips the remaining routes.
func (a *BuildAgent) serveAndProbe(ctx context.Context, routes []models.RouteDescriptor, schema string) error {
	a.report(console.KindTest, "Starting web server...")
	server, err := a.deps.Launcher.Start(ctx)
	if err != nil {
		return fmt.Errorf("start backend: %w", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			a.log().Warn("failed to stop backend", zap.Error(err))
		}
	}()

	a.report(console.KindTest, fmt.Sprintf("Launching tests on server in %s...", a.deps.Settings.WarmUp))
	if err := sleep(ctx, a.deps.Settings.WarmUp); err != nil {
		return err
	}

	for _, route := range routes {
		url := server.Endpoint(route.Route)
		a.report(console.KindTest, fmt.Sprintf("Testing endpoint '%s'...", route.Route))

		status, err := a.deps.EndpointProber.Status(ctx, url)
		if err != nil {
			if stopErr := server.Stop(); stopErr != nil {
				a.log().Warn("failed to stop backend", zap.Error(stopErr))
			}
			a.log().Warn("endpoint probe failed", zap.String("url", url), zap.Error(err))
			a.report(console.KindIssue, fmt.Sprintf("Error checking backend %s: %v", url, err))
			break
		}
		if status != http.StatusOK {
			a.report(console.KindIssue, fmt.Sprintf("WARNING: failed to call backend url endpoint %s: status %d", route.Route, status))
		}
	}

	return a.deps.Store.WriteSchema(ctx, schema)
}
