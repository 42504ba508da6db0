package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
	"neon-loadtest/scenarios"
)

var runArgs = core.RunArgs{
	ResultDir: "results",
	Ceiling:   nethereum.DefaultReceiptCeiling,
}

var prepareArgs = core.PrepareArgs{
	Concurrency: 10,
}

var rootCmd = &cobra.Command{
	Use:          "loadtest",
	Short:        "EVM transfer load tester",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Run a load test scenario",
	Long: fmt.Sprintf("Run a load test scenario, one of: %v",
		scenarios.Names()),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runArgs.Scenario = args[0]

		err := runArgs.CheckArgs()
		if err != nil {
			return err
		}

		prepareLogger(runArgs.Verbose, runArgs.Trace)
		defer zap.L().Sync()

		return runScenario(cmd.Context(), &runArgs)
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare-accounts",
	Short: "Create and fund the accounts pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := prepareArgs.CheckArgs()
		if err != nil {
			return err
		}

		prepareLogger(prepareArgs.Verbose, prepareArgs.Trace)
		defer zap.L().Sync()

		return prepareAccounts(cmd.Context(), &prepareArgs)
	},
}

func prepareLogger(verbose, trace bool) {
	var level zapcore.Level = zapcore.InfoLevel

	if verbose || trace {
		level = zapcore.DebugLevel
	}

	logger, err := core.NewDevelopmentLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to produce a logger: %s\n",
			err.Error())
		os.Exit(1)
	}

	zap.ReplaceGlobals(logger)
	core.SetLogger(core.NewZapLogger(logger, trace))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd, prepareCmd)

	runCmd.Flags().StringVarP(&runArgs.OptionsPath, "options", "o", "",
		"options file (json or yaml), default profile if not given")
	runCmd.Flags().StringVarP(&runArgs.EnvsPath, "envs", "e", "envs.json",
		"network endpoints file")
	runCmd.Flags().StringVar(&runArgs.DotenvPath, "dotenv", ".env",
		"environment file loaded before reading the environment")
	runCmd.Flags().StringVarP(&runArgs.Network, "network", "n", "",
		"network name in the envs file, overrides NETWORK")
	runCmd.Flags().IntVarP(&runArgs.Users, "users", "u", 0,
		"number of users of the default profile, overrides USERS_NUMBER")
	runCmd.Flags().StringVar(&runArgs.AccountsFile, "accounts", "",
		"accounts pool file, overrides ACCOUNTS_FILE")
	runCmd.Flags().StringVarP(&runArgs.ResultDir, "results", "r",
		runArgs.ResultDir, "directory the results are written to")
	runCmd.Flags().StringVar(&runArgs.MetricsAddr, "metrics-addr", "",
		"serve prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().DurationVar(&runArgs.Ceiling, "receipt-timeout",
		runArgs.Ceiling, "maximum wait for a transaction receipt")
	runCmd.Flags().BoolVarP(&runArgs.Verbose, "verbose", "v", false,
		"debug logs")
	runCmd.Flags().BoolVar(&runArgs.Trace, "trace", false, "trace logs")

	prepareCmd.Flags().StringVarP(&prepareArgs.EnvsPath, "envs", "e",
		"envs.json", "network endpoints file")
	prepareCmd.Flags().StringVar(&prepareArgs.DotenvPath, "dotenv", ".env",
		"environment file loaded before reading the environment")
	prepareCmd.Flags().StringVarP(&prepareArgs.Network, "network", "n", "",
		"network name in the envs file, overrides NETWORK")
	prepareCmd.Flags().IntVarP(&prepareArgs.Users, "users", "u", 0,
		"number of users, twice as many accounts are created, overrides "+
			"USERS_NUMBER")
	prepareCmd.Flags().Uint64VarP(&prepareArgs.Balance, "balance", "b", 0,
		"tokens given to every sender, overrides INITIAL_BALANCE")
	prepareCmd.Flags().StringVar(&prepareArgs.Out, "out", "",
		"accounts file to write, overrides ACCOUNTS_FILE")
	prepareCmd.Flags().IntVarP(&prepareArgs.Concurrency, "concurrency", "c",
		prepareArgs.Concurrency, "accounts funded at the same time")
	prepareCmd.Flags().BoolVarP(&prepareArgs.Verbose, "verbose", "v", false,
		"debug logs")
	prepareCmd.Flags().BoolVar(&prepareArgs.Trace, "trace", false,
		"trace logs")
}
