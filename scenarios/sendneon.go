package scenarios

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
)

const (
	SendNeonName = "send-neon"

	// Tokens given to every sender created during the run.
	sendNeonFunding = 20

	sendNeonAmount = "0.01"
)

// sendNeon sends a small native transfer per iteration, from a fresh funded
// account or from the user's pool account. Before sending, it makes the
// requests a wallet does: nonce, gas price and block number.
type sendNeon struct {
	env    *Environment
	amount *big.Int
}

func newSendNeon(env *Environment) (core.Scenario, error) {
	var amount *big.Int
	var err error

	amount, err = nethereum.ToBaseUnits(sendNeonAmount,
		nethereum.NativeDecimals)
	if err != nil {
		return nil, err
	}

	return &sendNeon{
		env:    env,
		amount: amount,
	}, nil
}

func (this *sendNeon) Setup(ctx context.Context) error {
	if (this.env.Pool == nil) && !this.env.hasFunder() {
		return fmt.Errorf("%s needs an accounts pool or a funder",
			SendNeonName)
	}

	this.env.logger().Infof("setup %s", SendNeonName)

	return nil
}

func (this *sendNeon) Teardown(ctx context.Context) error {
	this.env.logger().Infof("tearing down %s", SendNeonName)
	return nil
}

func (this *sendNeon) NewUser(ctx context.Context, id int) (core.User, error) {
	var logger core.Logger
	var client nethereum.Client
	var err error

	logger = this.env.logger().Extend(fmt.Sprintf("vu[%d]", id))

	client, err = this.env.Dial(ctx)
	if err != nil {
		return nil, err
	}

	return &sendNeonUser{
		scenario:  this,
		id:        id,
		logger:    logger,
		metrics:   this.env.metrics(),
		client:    client,
		submitter: this.env.newSubmitter(client, logger),
	}, nil
}

type sendNeonUser struct {
	scenario  *sendNeon
	id        int
	logger    core.Logger
	metrics   core.Metrics
	client    nethereum.Client
	submitter *nethereum.Submitter
}

func (this *sendNeonUser) Close() {
	closeClient(this.client)
}

// accounts returns the sender and receiver of the next transfer.
func (this *sendNeonUser) accounts(ctx context.Context) (*nethereum.Account, common.Address, error) {
	var sender, receiver *nethereum.Account
	var entry nethereum.PoolEntry
	var funder *nethereum.AccountFunder
	var err error

	if this.scenario.env.Pool != nil {
		entry = this.scenario.env.Pool.ForUser(this.id)
		return entry.Sender, entry.Receiver, nil
	}

	sender, err = nethereum.GenerateAccount()
	if err != nil {
		return nil, common.Address{}, err
	}

	receiver, err = nethereum.GenerateAccount()
	if err != nil {
		return nil, common.Address{}, err
	}

	funder = nethereum.NewAccountFunder(this.client,
		this.scenario.env.funder(this.client, this.logger),
		this.scenario.env.FundingPolicy, this.logger)
	funder.FundAccount(ctx, sender.Address, sendNeonFunding)

	return sender, receiver.Address, nil
}

func (this *sendNeonUser) Iterate(ctx context.Context) error {
	var sender *nethereum.Account
	var result *nethereum.Result
	var receiver common.Address
	var opts nethereum.TxOpts
	var gasPrice *big.Int
	var start time.Time
	var nonce uint64
	var err error

	sender, receiver, err = this.accounts(ctx)
	if err != nil {
		return err
	}

	err = core.Timed(this.metrics, nethereum.ParamNonce, func() error {
		var err error
		nonce, err = this.client.PendingNonceAt(ctx, sender.Address)
		return err
	})
	if err == nil {
		opts.Nonce = nethereum.PinNonce(nonce)
	} else {
		this.logger.Warnf("nonce: %s", err.Error())
	}

	err = core.Timed(this.metrics, nethereum.ParamGasPrice, func() error {
		var err error
		gasPrice, err = this.client.SuggestGasPrice(ctx)
		return err
	})
	if err == nil {
		opts.GasPrice = gasPrice
	} else {
		this.logger.Warnf("gas price: %s", err.Error())
	}

	this.walletRequests(ctx, sender.Address)

	start = time.Now()

	result, err = this.submitter.SubmitTransfer(ctx, sender, receiver,
		this.scenario.amount, opts)

	this.metrics.Observe("send_neon_request_time", time.Since(start))
	this.metrics.Add("send_neon_requests", 1)

	if err != nil {
		this.logger.Warnf("send neon: %s", err.Error())
		this.metrics.Add("send_neon_errors", 1)
		return err
	}

	if !recordCheck(this.metrics, result) {
		this.logger.Debugf("transfer '%s' %s", result.Hash.Hex(),
			result.Outcome)
	}

	return nil
}

// walletRequests makes the requests a wallet does before asking the user to
// sign. Failures are only recorded.
func (this *sendNeonUser) walletRequests(ctx context.Context, address common.Address) {
	var err error

	err = core.Timed(this.metrics, "block_number", func() error {
		_, err := this.client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		this.logger.Debugf("block number: %s", err.Error())
	}

	err = core.Timed(this.metrics, nethereum.ParamNonce, func() error {
		_, err := this.client.PendingNonceAt(ctx, address)
		return err
	})
	if err != nil {
		this.logger.Debugf("nonce: %s", err.Error())
	}

	err = core.Timed(this.metrics, nethereum.ParamGasPrice, func() error {
		_, err := this.client.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		this.logger.Debugf("gas price: %s", err.Error())
	}
}
