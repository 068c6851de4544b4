// Package cmd provides the root command and CLI setup for grafter.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gooze.dev/pkg/grafter/internal/adapter"
	"gooze.dev/pkg/grafter/internal/controller"
	"gooze.dev/pkg/grafter/internal/domain"
)

var fsAdapter adapter.SourceFSAdapter
var goFileAdapter adapter.GoFileAdapter
var testAdapter adapter.TestRunnerAdapter
var problemAdapter adapter.ProblemAdapter
var orchestrator domain.Orchestrator
var registry *prometheus.Registry
var metrics *domain.Metrics

// workflow overrides the per-command workflow when set.
var workflow domain.Workflow

var verboseFlag bool
var logFileFlag string
var storePathFlag string

func init() {
	configureRootFlags(rootCmd)

	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		configureLogger(logFileFlag, verboseFlag)
	}

	// Initialize shared dependencies. The report store is opened per command
	// because its path comes from flags.
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	testAdapter = adapter.NewLocalTestRunnerAdapter()
	problemAdapter = adapter.NewLocalProblemAdapter(fsAdapter)
	orchestrator = domain.NewOrchestrator(fsAdapter, goFileAdapter, testAdapter)
	registry = prometheus.NewRegistry()
	metrics = domain.NewMetrics(registry)
}

const problemLayoutHelp = `A problem directory holds the test suite and the programs to repair:
  <problem>/tests.yaml    stdin/stdout test cases
  <problem>/buggy/*.go    one single-file main program per file`

const rootLongDescription = `Grafter repairs small Go programs by evolving a population of buggy
solutions: statements executed by one program are grafted onto another
along the lines that fault localization marks suspicious, and children
that pass more tests survive.

` + problemLayoutHelp

const repairLongDescription = `Evolve the programs of a problem directory until they pass the test suite
or the generation budget runs out. Every step is stored with the run.

` + problemLayoutHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grafter",
		Short: "Genetic program repair for Go",
		Long:  rootLongDescription,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
}

// newRootCmd returns a root command with the persistent flags but without
// the logger hook.
func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, viper.GetString(logFilenameKey), "log file path")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(logFileFlagName), logFilenameKey)

	cmd.PersistentFlags().StringVar(&storePathFlag, storePathFlagName, viper.GetString(storePathConfigKey), "sqlite database holding the run history")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(storePathFlagName), storePathConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// commandWorkflow returns the workflow for cmd and a function releasing the
// report store it opened.
func commandWorkflow(ctx context.Context, cmd *cobra.Command) (domain.Workflow, func(), error) {
	if workflow != nil {
		return workflow, func() {}, nil
	}

	store, err := adapter.OpenSQLiteReportStore(ctx, viper.GetString(storePathConfigKey))
	if err != nil {
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}

	ui := controller.NewUI(cmd, controller.IsTTY(cmd.OutOrStdout()))
	wf := domain.NewWorkflow(problemAdapter, store, ui, orchestrator, metrics)

	release := func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close run history", "error", err)
		}
	}

	return wf, release, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
