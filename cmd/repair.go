package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gooze.dev/pkg/grafter/internal/domain"
	m "gooze.dev/pkg/grafter/internal/model"
)

var generationsFlag int
var populationFlag int
var seedFlag int64
var formulaFlag string
var runParallelFlag int
var timeoutFlag int64
var buildTimeoutFlag int64
var metricsAddrFlag string

func newRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair <problem-dir>",
		Short: "Repair the programs of a problem directory",
		Long:  repairLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, stopMetrics, err := serveMetrics(viper.GetString(metricsAddrConfigKey))
			if err != nil {
				return err
			}
			defer stopMetrics()

			wf, release, err := commandWorkflow(ctx, cmd)
			if err != nil {
				return err
			}
			defer release()

			_, err = wf.Repair(ctx, repairArgs(m.Path(args[0])))

			return err
		},
	}

	configureRepairFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(newRepairCmd())
}

func repairArgs(problem m.Path) domain.RepairArgs {
	return domain.RepairArgs{
		Problem:     problem,
		Generations: viper.GetInt(generationsConfigKey),
		Population:  viper.GetInt(populationConfigKey),
		Seed:        viper.GetInt64(seedConfigKey),
		Formula:     viper.GetString(formulaConfigKey),
		Limits: domain.Limits{
			Parallel:     viper.GetInt(runParallelConfigKey),
			TestTimeout:  seconds(timeoutConfigKey),
			BuildTimeout: seconds(buildTimeoutConfigKey),
		},
		JournalDir: viper.GetString(journalDirConfigKey),
	}
}

func configureRepairFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&generationsFlag, generationsFlagName, "g", viper.GetInt(generationsConfigKey), "number of generations to evolve")
	bindFlagToConfig(cmd.Flags().Lookup(generationsFlagName), generationsConfigKey)

	cmd.Flags().IntVarP(&populationFlag, populationFlagName, "n", viper.GetInt(populationConfigKey), "population size (0 evolves every program)")
	bindFlagToConfig(cmd.Flags().Lookup(populationFlagName), populationConfigKey)

	cmd.Flags().Int64Var(&seedFlag, seedFlagName, viper.GetInt64(seedConfigKey), "random seed (negative seeds from the clock)")
	bindFlagToConfig(cmd.Flags().Lookup(seedFlagName), seedConfigKey)

	cmd.Flags().StringVar(&formulaFlag, formulaFlagName, viper.GetString(formulaConfigKey), "suspiciousness formula (jaccard or tarantula)")
	bindFlagToConfig(cmd.Flags().Lookup(formulaFlagName), formulaConfigKey)

	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of test cases run concurrently per candidate")
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.Flags().Int64Var(&timeoutFlag, timeoutFlagName, viper.GetInt64(timeoutConfigKey), "per-test timeout in seconds")
	bindFlagToConfig(cmd.Flags().Lookup(timeoutFlagName), timeoutConfigKey)

	cmd.Flags().Int64Var(&buildTimeoutFlag, buildTimeoutFlagName, viper.GetInt64(buildTimeoutConfigKey), "candidate build timeout in seconds")
	bindFlagToConfig(cmd.Flags().Lookup(buildTimeoutFlagName), buildTimeoutConfigKey)

	cmd.Flags().StringVar(&metricsAddrFlag, metricsAddrFlagName, viper.GetString(metricsAddrConfigKey), "serve Prometheus metrics on this address")
	bindFlagToConfig(cmd.Flags().Lookup(metricsAddrFlagName), metricsAddrConfigKey)
}
