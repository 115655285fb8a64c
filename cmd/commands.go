package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentforge/internal/config"
	"agentforge/internal/logging"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	envFile    string
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:   "agentforge",
		Short: "Generate, build and probe a backend from a project description",
		Long: `agentforge runs a pipeline of agents: a project manager decides the
scope and checks external data sources, then a backend developer writes the
server, fixes it until it compiles, starts it and probes its GET routes.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	buildCmd = &cobra.Command{
		Use:   "build [description]",
		Short: "Run the agent pipeline for a project description",
		Long:  `Runs the full pipeline. Without a description argument the description is asked for interactively.`,
		RunE:  runBuild,
	}
	autoConfirm bool
	improveCode bool

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		Args:  cobra.NoArgs,
		RunE:  runListRuns,
	}
	runsLimit int

	runShowCmd = &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the state transitions of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowRun,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the agentforge version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentforge %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file loaded before the config")

	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "run generated code without asking for confirmation")
	buildCmd.Flags().BoolVar(&improveCode, "improve", false, "run an extra improvement round before the first build")

	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list, 0 for all")
	runsCmd.AddCommand(runShowCmd)

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env, the YAML file and the environment, then starts the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	envLoaded := godotenv.Load(envFile) == nil

	loaded, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	logging.Init(cfg.Logging.Level)
	logging.L().Debug("configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.String("config", configPath),
		zap.Bool("env_file", envLoaded))
	return nil
}
