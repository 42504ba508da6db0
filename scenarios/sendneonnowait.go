package scenarios

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
)

const (
	SendNeonNoWaitName = "send-neon-nowait"

	sendNeonNoWaitAmount = "0.0000001"

	// Fixed parameters, nothing is asked to the node but the first nonce.
	sendNeonNoWaitGas      = 21000
	sendNeonNoWaitGasPrice = 200000000000

	// The sender balance is checked once every this many transfers and
	// topped up below one token.
	sendNeonNoWaitCheckEvery = 20
	sendNeonNoWaitMinBalance = 1
)

// sendNeonNoWait sends native transfers as fast as the node accepts them.
// Every user counts its nonces locally, uses fixed gas parameters and never
// waits for a receipt.
type sendNeonNoWait struct {
	env      *Environment
	amount   *big.Int
	gasPrice *big.Int
	minimum  *big.Int
}

func newSendNeonNoWait(env *Environment) (core.Scenario, error) {
	var amount *big.Int
	var err error

	amount, err = nethereum.ToBaseUnits(sendNeonNoWaitAmount,
		nethereum.NativeDecimals)
	if err != nil {
		return nil, err
	}

	return &sendNeonNoWait{
		env:      env,
		amount:   amount,
		gasPrice: big.NewInt(sendNeonNoWaitGasPrice),
		minimum: nethereum.TokensToBaseUnits(sendNeonNoWaitMinBalance,
			nethereum.NativeDecimals),
	}, nil
}

func (this *sendNeonNoWait) Setup(ctx context.Context) error {
	if (this.env.Pool == nil) && !this.env.hasFunder() {
		return fmt.Errorf("%s needs an accounts pool or a funder",
			SendNeonNoWaitName)
	}

	this.env.logger().Infof("setup %s", SendNeonNoWaitName)

	return nil
}

func (this *sendNeonNoWait) Teardown(ctx context.Context) error {
	this.env.logger().Infof("tearing down %s", SendNeonNoWaitName)
	return nil
}

func (this *sendNeonNoWait) NewUser(ctx context.Context, id int) (core.User, error) {
	var user sendNeonNoWaitUser
	var err error

	user.scenario = this
	user.logger = this.env.logger().Extend(fmt.Sprintf("vu[%d]", id))
	user.metrics = this.env.metrics()
	user.random = rand.New(rand.NewSource(time.Now().UnixNano() +
		int64(id)))

	if this.env.Pool != nil {
		user.sender = this.env.Pool.ForUser(id).Sender
	} else {
		user.sender, err = nethereum.GenerateAccount()
		if err != nil {
			return nil, err
		}
	}

	user.client, err = this.env.Dial(ctx)
	if err != nil {
		return nil, err
	}

	user.submitter = this.env.newSubmitter(user.client, user.logger)
	user.nonces = nethereum.NewNonceTracker(user.client, user.logger)
	user.funder = nethereum.NewAccountFunder(user.client,
		this.env.funder(user.client, user.logger), this.env.FundingPolicy,
		user.logger)

	return &user, nil
}

type sendNeonNoWaitUser struct {
	scenario  *sendNeonNoWait
	logger    core.Logger
	metrics   core.Metrics
	random    *rand.Rand
	client    nethereum.Client
	submitter *nethereum.Submitter
	nonces    *nethereum.NonceTracker
	funder    *nethereum.AccountFunder
	sender    *nethereum.Account
	sent      uint64
}

func (this *sendNeonNoWaitUser) Close() {
	closeClient(this.client)
}

// receiver picks a random pool account, or a fresh address without pool.
func (this *sendNeonNoWaitUser) receiver() (common.Address, error) {
	var pool *nethereum.Pool = this.scenario.env.Pool
	var account *nethereum.Account
	var err error

	if pool != nil {
		return pool.ForUser(this.random.Intn(pool.Len())).Sender.Address,
			nil
	}

	account, err = nethereum.GenerateAccount()
	if err != nil {
		return common.Address{}, err
	}

	return account.Address, nil
}

// checkBalance tops up the sender when its balance is too low. Failures are
// only logged.
func (this *sendNeonNoWaitUser) checkBalance(ctx context.Context) {
	var balance *big.Int
	var err error

	err = core.Timed(this.metrics, "balance", func() error {
		var err error
		balance, err = this.client.PendingBalanceAt(ctx,
			this.sender.Address)
		return err
	})
	if err != nil {
		this.logger.Debugf("balance: %s", err.Error())
		return
	}

	if balance.Cmp(this.scenario.minimum) >= 0 {
		return
	}

	if !this.scenario.env.hasFunder() {
		this.logger.Warnf("balance of '%s' is %s and nothing can fund it",
			this.sender.Address.Hex(), balance.String())
		return
	}

	this.logger.Debugf("top up '%s' (balance %s)",
		this.sender.Address.Hex(), balance.String())
	this.funder.FundAccount(ctx, this.sender.Address, sendNeonFunding)
}

func (this *sendNeonNoWaitUser) Iterate(ctx context.Context) error {
	var receiver common.Address
	var result *nethereum.Result
	var start time.Time
	var nonce uint64
	var err error

	if this.sent%sendNeonNoWaitCheckEvery == 0 {
		this.checkBalance(ctx)
	}

	receiver, err = this.receiver()
	if err != nil {
		return err
	}

	nonce, err = this.nonces.Next(ctx, this.sender.Address)
	if err != nil {
		this.metrics.Add("send_neon_nowait_errors", 1)
		return err
	}

	start = time.Now()

	result, err = this.submitter.SendTransfer(ctx, this.sender, receiver,
		this.scenario.amount, nethereum.TxOpts{
			Nonce:    nethereum.PinNonce(nonce),
			GasPrice: this.scenario.gasPrice,
			GasLimit: sendNeonNoWaitGas,
		})

	this.metrics.Observe("send_neon_nowait_request_time", time.Since(start))
	this.metrics.Add("send_neon_nowait_requests", 1)

	if err != nil {
		var submission *nethereum.SubmissionError

		if errors.As(err, &submission) {
			this.nonces.Reset(this.sender.Address)
		}

		this.logger.Warnf("send neon: %s", err.Error())
		this.metrics.Add("send_neon_nowait_errors", 1)
		return err
	}

	this.sent += 1

	this.logger.Tracef("sent '%s' to '%s' (nonce %d)", result.Hash.Hex(),
		receiver.Hex(), nonce)

	return nil
}
