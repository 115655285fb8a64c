package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"agentforge/internal/agents/core"
	"agentforge/internal/ai"
	"agentforge/internal/console"
	"agentforge/pkg/models"
)

// ScopingAgent decides what the backend needs and which public data
// sources it may call, then drops the sources that do not answer.
type ScopingAgent struct {
	base
}

// NewScopingAgent creates a scoping agent in the planning state
func NewScopingAgent(deps Deps) *ScopingAgent {
	return &ScopingAgent{
		base: newBase(PositionProjectManager, "Gather information and design solution for website development", deps),
	}
}

// Execute runs the agent to completion against task
func (a *ScopingAgent) Execute(ctx context.Context, task *models.TaskContext) error {
	return a.lifecycle.Run(ctx, map[core.AgentState]core.Handler{
		core.StatePlanning: func(ctx context.Context) (core.AgentState, error) {
			return a.plan(ctx, task)
		},
		core.StateTesting: func(ctx context.Context) (core.AgentState, error) {
			return a.test(ctx, task)
		},
	})
}

func (a *ScopingAgent) plan(ctx context.Context, task *models.TaskContext) (core.AgentState, error) {
	a.report(console.KindInfo, "Defining project scope...")

	raw, err := ai.Request(ctx, a.deps.Completer, ai.DecideProjectScope, task.Description)
	if err != nil {
		return "", err
	}
	body, err := ai.ExtractJSON(raw, a.deps.Settings.RepairJSON)
	if err != nil {
		return "", malformed("project scope", err)
	}
	scope, err := models.ParseProjectScope(body)
	if err != nil {
		return "", malformed("project scope", err)
	}
	task.ProjectScope = scope
	a.log().Info("project scope decided",
		zap.Bool("crud", scope.IsCRUDRequired),
		zap.Bool("auth", scope.IsUserLoginAndLogout),
		zap.Bool("external_urls", scope.IsExternalURLsRequired))

	if !scope.IsExternalURLsRequired {
		return core.StateDone, nil
	}

	a.report(console.KindInfo, "Listing external data sources...")
	urls, err := a.listURLs(ctx, task.Description)
	if err != nil {
		return "", err
	}
	task.ExternalURLs = urls
	return core.StateTesting, nil
}

func (a *ScopingAgent) listURLs(ctx context.Context, description string) ([]string, error) {
	raw, err := ai.Request(ctx, a.deps.Completer, ai.ListExternalURLs, description)
	if err != nil {
		return nil, err
	}
	body, err := ai.ExtractJSON(raw, a.deps.Settings.RepairJSON)
	if err != nil {
		return nil, malformed("external urls", err)
	}
	var urls []string
	if err := json.Unmarshal([]byte(body), &urls); err != nil {
		return nil, malformed("external urls", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// test probes every URL once and keeps the ones answering 200, in order
func (a *ScopingAgent) test(ctx context.Context, task *models.TaskContext) (core.AgentState, error) {
	survivors := make([]string, 0, len(task.ExternalURLs))

	for _, url := range task.ExternalURLs {
		a.report(console.KindTest, fmt.Sprintf("Testing URL endpoint: %s", url))

		status, err := a.deps.URLProber.Status(ctx, url)
		if err != nil {
			a.log().Warn("external url probe failed", zap.String("url", url), zap.Error(err))
			a.report(console.KindIssue, fmt.Sprintf("Error checking %s: %v", url, err))
			continue
		}
		if status != http.StatusOK {
			a.report(console.KindIssue, fmt.Sprintf("Excluding %s: status %d", url, status))
			continue
		}
		survivors = append(survivors, url)
	}

	if excluded := len(task.ExternalURLs) - len(survivors); excluded > 0 {
		a.log().Info("pruned external urls", zap.Int("excluded", excluded), zap.Int("kept", len(survivors)))
	}
	task.ExternalURLs = survivors
	return core.StateDone, nil
}
