package scenarios

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
)

const (
	SendERC20Name = "send-erc20"

	// The token owner gets this many times the initial balance.
	sendERC20OwnerFunding = 10
)

// sendERC20 transfers one base unit of a deployed token per iteration, from
// the token owner to the pool account of the user. Every user signs with the
// owner key so the owner nonce is tracked locally.
type sendERC20 struct {
	env    *Environment
	token  *nethereum.ERC20
	owner  *nethereum.Account
	amount *big.Int
	setup  nethereum.Client
	nonces *nethereum.NonceTracker
}

func newSendERC20(env *Environment) (core.Scenario, error) {
	var address common.Address
	var owner *nethereum.Account
	var token *nethereum.ERC20
	var err error

	if env.Settings == nil {
		return nil, errors.New("missing settings")
	}

	address, err = nethereum.ParseAddress(env.Settings.ERC20Address)
	if err != nil {
		return nil, fmt.Errorf("invalid token address: %w", err)
	}

	owner, err = nethereum.AccountFromHex(env.Settings.ERC20OwnerKey)
	if err != nil {
		return nil, fmt.Errorf("invalid token owner key: %w", err)
	}

	if env.Settings.ERC20Owner != "" {
		var expected common.Address

		expected, err = nethereum.ParseAddress(env.Settings.ERC20Owner)
		if err != nil {
			return nil, fmt.Errorf("invalid token owner: %w", err)
		}

		if expected != owner.Address {
			return nil, fmt.Errorf("token owner key controls %s, "+
				"not %s", owner.Address.Hex(), expected.Hex())
		}
	}

	token, err = nethereum.NewERC20(address)
	if err != nil {
		return nil, err
	}

	return &sendERC20{
		env:    env,
		token:  token,
		owner:  owner,
		amount: big.NewInt(1),
	}, nil
}

func (this *sendERC20) Setup(ctx context.Context) error {
	var funder *nethereum.AccountFunder
	var balance *big.Int
	var err error

	this.setup, err = this.env.Dial(ctx)
	if err != nil {
		return err
	}

	this.nonces = nethereum.NewNonceTracker(this.setup,
		this.env.logger().Extend("nonces"))

	if this.env.hasFunder() {
		funder = nethereum.NewAccountFunder(this.setup,
			this.env.funder(this.setup, this.env.logger()),
			this.env.FundingPolicy, this.env.logger())
		balance = funder.FundAccount(ctx, this.owner.Address,
			this.env.Settings.InitialBalance*sendERC20OwnerFunding)
		this.env.logger().Infof("token owner '%s' balance: %s",
			this.owner.Address.Hex(), balance.String())
	}

	return nil
}

func (this *sendERC20) Teardown(ctx context.Context) error {
	if this.setup != nil {
		closeClient(this.setup)
	}
	return nil
}

func (this *sendERC20) NewUser(ctx context.Context, id int) (core.User, error) {
	var receiver common.Address
	var logger core.Logger
	var client nethereum.Client
	var account *nethereum.Account
	var err error

	logger = this.env.logger().Extend(fmt.Sprintf("vu[%d]", id))

	if this.env.Pool != nil {
		receiver = this.env.Pool.ForUser(id).Sender.Address
	} else {
		account, err = nethereum.GenerateAccount()
		if err != nil {
			return nil, err
		}
		receiver = account.Address
	}

	client, err = this.env.Dial(ctx)
	if err != nil {
		return nil, err
	}

	return &sendERC20User{
		scenario:  this,
		logger:    logger,
		metrics:   this.env.metrics(),
		client:    client,
		submitter: this.env.newSubmitter(client, logger),
		receiver:  receiver,
	}, nil
}

type sendERC20User struct {
	scenario  *sendERC20
	logger    core.Logger
	metrics   core.Metrics
	client    nethereum.Client
	submitter *nethereum.Submitter
	receiver  common.Address
}

func (this *sendERC20User) Close() {
	closeClient(this.client)
}

func (this *sendERC20User) Iterate(ctx context.Context) error {
	var owner *nethereum.Account = this.scenario.owner
	var result *nethereum.Result
	var start time.Time
	var nonce uint64
	var err error

	start = time.Now()

	nonce, err = this.scenario.nonces.Next(ctx, owner.Address)
	if err == nil {
		result, err = this.scenario.token.Transfer(ctx, this.submitter,
			owner, this.receiver, this.scenario.amount,
			nethereum.TxOpts{Nonce: nethereum.PinNonce(nonce)})

		// The nonce was not consumed, or the node disagrees with it.
		if (err != nil) && !errors.Is(err, nethereum.ErrConfirmationTimeout) {
			this.scenario.nonces.Reset(owner.Address)
		}
	}

	this.metrics.Observe("send_erc20_request_time", time.Since(start))
	this.metrics.Add("send_erc20_requests", 1)

	if err != nil {
		this.logger.Warnf("send erc20: %s", err.Error())
		this.metrics.Add("send_erc20_errors", 1)
		return err
	}

	if !recordCheck(this.metrics, result) {
		this.logger.Debugf("token transfer '%s' %s", result.Hash.Hex(),
			result.Outcome)
	}

	return nil
}
