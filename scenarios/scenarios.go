// Package scenarios contains the bodies of the load tests. A scenario is
// registered under the name given to the command line and used in options
// files.
package scenarios

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
	"neon-loadtest/core/configs"
)

// Dialer opens a new RPC connection. Every virtual user gets its own.
type Dialer func(ctx context.Context) (nethereum.Client, error)

// Environment is what every scenario shares. It is read only once the run
// has started.
type Environment struct {
	Settings *configs.Settings
	Metrics  core.Metrics
	Logger   core.Logger
	Dial     Dialer

	// Funds accounts created during the run from a faucet. Ignored when
	// `Bank` is set.
	Funder        nethereum.Funder
	FundingPolicy nethereum.FundingPolicy

	// Funded account paying for the accounts created during the run. Its
	// nonce is tracked in `BankNonces`, shared by every caller.
	Bank       *nethereum.Account
	BankNonces *nethereum.NonceTracker

	// Pre-generated accounts, nil if none were loaded.
	Pool *nethereum.Pool

	// Chain id used to sign, fetched from the node if nil.
	ChainID *big.Int

	ReceiptCeiling  time.Duration
	ReceiptInterval time.Duration
}

func (this *Environment) logger() core.Logger {
	if this.Logger == nil {
		return core.NopLogger()
	}
	return this.Logger
}

func (this *Environment) metrics() core.Metrics {
	if this.Metrics == nil {
		return core.NopMetrics()
	}
	return this.Metrics
}

// newSubmitter builds the submitter of one virtual user.
func (this *Environment) newSubmitter(client nethereum.Client, logger core.Logger) *nethereum.Submitter {
	return nethereum.NewSubmitter(client,
		nethereum.WithLogger(logger),
		nethereum.WithMetrics(this.metrics()),
		nethereum.WithChainID(this.ChainID),
		nethereum.WithConfirmer(nethereum.NewConfirmer(client, logger,
			this.ReceiptCeiling, this.ReceiptInterval)))
}

// hasFunder tells if accounts created during the run can be funded.
func (this *Environment) hasFunder() bool {
	return (this.Funder != nil) || (this.Bank != nil)
}

// funder returns the funder of the caller owning `client`. Bank transfers are
// sent through that client so no connection is used by two callers at once.
func (this *Environment) funder(client nethereum.Client, logger core.Logger) nethereum.Funder {
	var submitter *nethereum.Submitter

	if this.Bank == nil {
		return this.Funder
	}

	logger = logger.Extend("bank")

	submitter = nethereum.NewSubmitter(client,
		nethereum.WithLogger(logger),
		nethereum.WithMetrics(core.NopMetrics()),
		nethereum.WithChainID(this.ChainID),
		nethereum.WithConfirmer(nethereum.NewConfirmer(client, logger,
			this.ReceiptCeiling, this.ReceiptInterval)))

	return nethereum.NewBankFunder(submitter, this.Bank, this.BankNonces)
}

// recordCheck counts a receipt status check as passed or failed.
func recordCheck(metrics core.Metrics, result *nethereum.Result) bool {
	if (result != nil) && (result.Outcome == nethereum.OutcomeSuccess) {
		metrics.Add("checks_receipt_status_pass", 1)
		return true
	}

	metrics.Add("checks_receipt_status_fail", 1)
	return false
}

// closeClient closes the connection if the client supports it.
func closeClient(client nethereum.Client) {
	if closer, ok := client.(interface{ Close() }); ok {
		closer.Close()
	}
}

type factory func(*Environment) (core.Scenario, error)

var registry = map[string]factory{
	SendNeonName:       newSendNeon,
	SendNeonNoWaitName: newSendNeonNoWait,
	SendERC20Name:      newSendERC20,
}

// New builds the named scenario.
func New(name string, env *Environment) (core.Scenario, error) {
	var build factory
	var ok bool

	build, ok = registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario '%s'", name)
	}

	return build(env)
}

// Names returns the registered scenarios, sorted.
func Names() []string {
	var names []string = make([]string, 0, len(registry))
	var name string

	for name = range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
