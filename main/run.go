package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
	"neon-loadtest/core/configs"
	"neon-loadtest/core/configs/parsers"
	"neon-loadtest/core/results"
	"neon-loadtest/scenarios"
)

// loadSettings reads the environment and the envs file and applies the
// command line overrides.
func loadSettings(dotenv, envsPath, network string) (*configs.Settings, error) {
	var settings *configs.Settings
	var envs configs.EnvsConfig
	var err error

	if dotenv != "" {
		settings, err = parsers.LoadSettings(dotenv)
	} else {
		settings, err = parsers.LoadSettings()
	}
	if err != nil {
		return nil, err
	}

	if network != "" {
		settings.Network = network
	}

	if envsPath != "" {
		envs, err = parsers.ParseEnvsConfig(envsPath)
		if err != nil && !(errors.Is(err, os.ErrNotExist) &&
			settings.ProxyURL != "") {
			return nil, err
		}
	}

	err = settings.Resolve(envs)
	if err != nil {
		return nil, err
	}

	zap.L().Info("settings loaded",
		zap.String("network", settings.Network),
		zap.String("proxy", settings.ProxyURL),
		zap.String("faucet", settings.FaucetURL),
		zap.Int64("chain id", settings.NetworkID),
	)

	return settings, nil
}

// newEnvironment builds what the scenarios share: RPC dialer, funder and
// accounts pool.
func newEnvironment(ctx context.Context, settings *configs.Settings, metrics core.Metrics, ceiling time.Duration) (*scenarios.Environment, error) {
	var env scenarios.Environment
	var bankClient nethereum.Client
	var bank *nethereum.Account
	var entries []*configs.AccountEntry
	var proxyURL string = settings.ProxyURL
	var err error

	env.Settings = settings
	env.Metrics = metrics
	env.Logger = core.ExtendLogger("scenario")
	env.FundingPolicy = nethereum.DefaultFundingPolicy()
	env.ReceiptCeiling = ceiling
	env.ReceiptInterval = nethereum.DefaultReceiptInterval

	if settings.NetworkID != 0 {
		env.ChainID = big.NewInt(settings.NetworkID)
	}

	env.Dial = func(ctx context.Context) (nethereum.Client, error) {
		client, err := nethereum.Dial(ctx, proxyURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	if settings.BankAccount != "" {
		bank, err = nethereum.AccountFromHex(settings.BankAccount)
		if err != nil {
			return nil, fmt.Errorf("invalid bank account key: %w", err)
		}

		// Only the nonce tracker uses this connection, the transfers go
		// through the connection of the funded user.
		bankClient, err = env.Dial(ctx)
		if err != nil {
			return nil, err
		}

		env.Bank = bank
		env.BankNonces = nethereum.NewNonceTracker(bankClient,
			core.ExtendLogger("bank"))

		core.Infof("fund accounts from bank '%s'", bank.Address.Hex())
	} else if settings.FaucetURL != "" {
		env.Funder = nethereum.NewFaucetFunder(settings.FaucetURL,
			core.ExtendLogger("faucet"))

		core.Infof("fund accounts from faucet '%s'", settings.FaucetURL)
	} else {
		core.Warnf("no faucet or bank account, accounts are not funded")
	}

	if settings.AccountsFile != "" {
		entries, err = parsers.ParseAccountsFile(settings.AccountsFile)
		if errors.Is(err, os.ErrNotExist) {
			core.Debugf("no accounts pool at '%s'",
				settings.AccountsFile)
		} else if err != nil {
			return nil, err
		} else {
			env.Pool, err = nethereum.NewPool(entries)
			if err != nil {
				return nil, err
			}
			core.Infof("loaded %d accounts from '%s'", env.Pool.Len(),
				settings.AccountsFile)
		}
	}

	return &env, nil
}

// selectScenarios returns the option entries executing `name`, sorted by
// entry name.
func selectScenarios(options *configs.Options, name string) ([]string, error) {
	var selected []string
	var key string
	var entry *configs.ScenarioOptions

	for key, entry = range options.Scenarios {
		if entry.Exec == name {
			selected = append(selected, key)
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no scenario executes '%s' in the options",
			name)
	}

	sort.Strings(selected)

	return selected, nil
}

// undersizedPools returns the selected entries running more users than there
// are accounts in `pool`. Users beyond the pool size share accounts.
func undersizedPools(options *configs.Options, selected []string, pool *nethereum.Pool) []string {
	var undersized []string
	var name string

	if pool == nil {
		return nil
	}

	for _, name = range selected {
		if options.Scenarios[name].MaxVUs() > pool.Len() {
			undersized = append(undersized, name)
		}
	}

	return undersized
}

func serveMetrics(addr string, registry *core.Registry) {
	var mux *http.ServeMux = http.NewServeMux()

	mux.Handle("/metrics", registry.Handler())

	go func() {
		core.Infof("serve metrics on '%s'", addr)
		err := http.ListenAndServe(addr, mux)
		if err != nil {
			core.Errorf("metrics server: %s", err.Error())
		}
	}()
}

func runScenario(ctx context.Context, args *core.RunArgs) error {
	var registry *core.Registry = core.NewRegistry()
	var settings *configs.Settings
	var options *configs.Options
	var env *scenarios.Environment
	var scenario core.Scenario
	var summary results.Results
	var executor *core.Executor
	var selected []string
	var path string
	var start time.Time
	var err error

	settings, err = loadSettings(args.DotenvPath, args.EnvsPath,
		args.Network)
	if err != nil {
		return err
	}

	if args.Users > 0 {
		settings.UsersNumber = args.Users
	}

	if args.AccountsFile != "" {
		settings.AccountsFile = args.AccountsFile
	}

	if args.OptionsPath != "" {
		options, err = parsers.ParseOptions(args.OptionsPath)
		if err != nil {
			return err
		}
	} else {
		if settings.UsersNumber <= 0 {
			return fmt.Errorf("no options file and no users, set %s "+
				"or --users", configs.EnvUsersNumber)
		}
		options = configs.DefaultOptions(args.Scenario,
			settings.UsersNumber)
	}

	selected, err = selectScenarios(options, args.Scenario)
	if err != nil {
		return err
	}

	env, err = newEnvironment(ctx, settings, registry, args.Ceiling)
	if err != nil {
		return err
	}

	scenario, err = scenarios.New(args.Scenario, env)
	if err != nil {
		return err
	}

	for _, name := range undersizedPools(options, selected, env.Pool) {
		core.Warnf("scenario '%s' runs up to %d users for %d pool "+
			"accounts, users will share accounts", name,
			options.Scenarios[name].MaxVUs(), env.Pool.Len())
	}

	if args.MetricsAddr != "" {
		serveMetrics(args.MetricsAddr, registry)
	}

	start = time.Now()

	for _, name := range selected {
		executor = core.NewExecutor(name, options.Scenarios[name],
			scenario, registry, core.ExtendLogger(name))

		err = executor.Run(ctx)
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			break
		}
	}

	summary = results.Summarize(args.Scenario, registry.Snapshot(),
		time.Since(start))
	summary.Log(core.ExtendLogger("results"))

	if args.ResultDir == "" {
		return nil
	}

	path, err = results.WriteResultsToFile(args.ResultDir, &summary,
		args.OptionsPath, args.EnvsPath)
	if err != nil {
		return err
	}

	core.Infof("results written to '%s'", path)

	return nil
}

func prepareAccounts(ctx context.Context, args *core.PrepareArgs) error {
	var entries []*configs.AccountEntry
	var settings *configs.Settings
	var env *scenarios.Environment
	var users int
	var out string
	var err error

	settings, err = loadSettings(args.DotenvPath, args.EnvsPath,
		args.Network)
	if err != nil {
		return err
	}

	users = settings.UsersNumber
	if args.Users > 0 {
		users = args.Users
	}
	if users <= 0 {
		return fmt.Errorf("no users, set %s or --users",
			configs.EnvUsersNumber)
	}

	if args.Balance > 0 {
		settings.InitialBalance = args.Balance
	}

	out = settings.AccountsFile
	if args.Out != "" {
		out = args.Out
	}

	// The pool is being written, do not read it.
	settings.AccountsFile = ""
	env, err = newEnvironment(ctx, settings, core.NopMetrics(),
		nethereum.DefaultReceiptCeiling)
	if err != nil {
		return err
	}

	core.Infof("create %d accounts with %d tokens each", 2*users,
		settings.InitialBalance)

	entries, err = scenarios.PrepareAccounts(ctx, env, 2*users,
		settings.InitialBalance, args.Concurrency)
	if err != nil {
		return err
	}

	err = parsers.WriteAccountsFile(out, entries)
	if err != nil {
		return err
	}

	core.Infof("accounts written to '%s'", out)

	return nil
}
