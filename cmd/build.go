package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentforge/internal/agents"
	"agentforge/internal/ai"
	"agentforge/internal/artifacts"
	"agentforge/internal/console"
	"agentforge/internal/execution"
	"agentforge/internal/httpprobe"
	"agentforge/internal/journal"
	"agentforge/internal/logging"
	"agentforge/internal/metrics"
	"agentforge/internal/preview"
	"agentforge/pkg/models"
)

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		asked, err := console.AskDescription(ctx)
		if err != nil {
			return err
		}
		description = strings.TrimSpace(asked)
	}
	if description == "" {
		return errors.New("a project description is required")
	}

	completer, err := ai.NewOpenAIClient(cfg.Generation)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logging.L().Warn("metrics listener stopped", zap.String("addr", cfg.Metrics.Addr), zap.Error(err))
			}
		}()
	}

	deps := agents.Deps{
		Completer:      completer,
		Reporter:       console.NewColorReporter(cmd.OutOrStdout()),
		Confirmer:      confirmer(),
		Store:          newArtifactStore(ctx),
		Builder:        execution.NewBuildRunner(cfg.Project.Dir, cfg.Project.BuildCommand),
		Launcher:       agents.NewPreviewLauncher(preview.NewServerRunner(cfg.Project.Dir, cfg.Project.RunCommand, cfg.Project.ServerAddr, cfg.Pipeline.StopGrace)),
		URLProber:      httpprobe.New(httpprobe.TargetExternalURL, cfg.Pipeline.ProbeTimeout),
		EndpointProber: httpprobe.New(httpprobe.TargetEndpoint, cfg.Pipeline.ProbeTimeout),
		Settings:       agents.SettingsFromConfig(cfg),
	}
	if improveCode {
		deps.Settings.ImproveCode = true
	}

	if cfg.Journal.DSN != "" {
		j, err := journal.Open(cfg.Journal.DSN)
		if err != nil {
			logging.L().Warn("run journal disabled", zap.Error(err))
		} else {
			defer j.Close()
			deps.Journal = j
		}
	}

	manager, err := agents.NewManager(ctx, description, deps)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), manager.Task().Description)

	if err := manager.Execute(ctx); err != nil {
		return err
	}
	printSummary(cmd, manager.Task())
	return nil
}

func confirmer() console.Confirmer {
	if autoConfirm || cfg.Pipeline.AutoConfirm {
		return console.AutoConfirmer{}
	}
	return console.PromptConfirmer{}
}

func newArtifactStore(ctx context.Context) *artifacts.Store {
	var mirror artifacts.Mirror
	if cfg.Artifacts.S3Bucket != "" {
		m, err := artifacts.NewS3Mirror(ctx, cfg.Artifacts)
		if err != nil {
			logging.L().Warn("artifact mirror disabled", zap.Error(err))
		} else {
			mirror = m
		}
	}

	return artifacts.NewStore(
		cfg.Project.Path(cfg.Project.TemplatePath),
		cfg.Project.Path(cfg.Project.SourcePath),
		cfg.Project.Path(cfg.Project.SchemaPath),
		mirror,
	)
}

func printSummary(cmd *cobra.Command, task *models.TaskContext) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nGoal: %s\n", task.Description)
	if task.ProjectScope != nil {
		fmt.Fprintf(out, "Scope: crud=%t auth=%t external_urls=%t\n",
			task.ProjectScope.IsCRUDRequired,
			task.ProjectScope.IsUserLoginAndLogout,
			task.ProjectScope.IsExternalURLsRequired)
	}
	for _, u := range task.ExternalURLs {
		fmt.Fprintf(out, "External URL: %s\n", u)
	}
	fmt.Fprintf(out, "Source: %s\n", cfg.Project.Path(cfg.Project.SourcePath))
	fmt.Fprintf(out, "Schema: %s\n", cfg.Project.Path(cfg.Project.SchemaPath))
	for _, r := range task.EndpointSchema {
		fmt.Fprintf(out, "Probed: %s %s\n", strings.ToUpper(r.Method), r.Route)
	}
}
