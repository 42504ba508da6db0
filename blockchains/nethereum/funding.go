package nethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"neon-loadtest/core"
)

const (
	DefaultFundingAttempts = 60
	DefaultFundingInterval = 200 * time.Millisecond
)

// BalanceReader is the part of `Client` funding needs.
type BalanceReader interface {
	PendingBalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// FundingPolicy bounds how long funding waits for the balance to move.
type FundingPolicy struct {
	Attempts int
	Interval time.Duration
	Decimals uint
}

func DefaultFundingPolicy() FundingPolicy {
	return FundingPolicy{
		Attempts: DefaultFundingAttempts,
		Interval: DefaultFundingInterval,
		Decimals: NativeDecimals,
	}
}

// AccountFunder funds accounts and waits for the credit to be visible.
type AccountFunder struct {
	client BalanceReader
	funder Funder
	policy FundingPolicy
	logger core.Logger
}

func NewAccountFunder(client BalanceReader, funder Funder, policy FundingPolicy, logger core.Logger) *AccountFunder {
	if logger == nil {
		logger = core.NopLogger()
	}

	if policy.Attempts <= 0 {
		policy.Attempts = DefaultFundingAttempts
	}

	if policy.Interval <= 0 {
		policy.Interval = DefaultFundingInterval
	}

	return &AccountFunder{
		client: client,
		funder: funder,
		policy: policy,
		logger: logger,
	}
}

// FundAccount funds `address` with the default policy.
func FundAccount(ctx context.Context, client BalanceReader, funder Funder, address common.Address, amount uint64) *big.Int {
	return NewAccountFunder(client, funder, DefaultFundingPolicy(),
		core.ExtendLogger("funding")).FundAccount(ctx, address, amount)
}

func (this *AccountFunder) balance(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance *big.Int
	var err error

	balance, err = this.client.PendingBalanceAt(ctx, address)
	if err != nil {
		return nil, err
	}

	if balance == nil {
		balance = new(big.Int)
	}

	return balance, nil
}

// FundAccount asks for `amount` whole tokens to be sent to `address` and
// polls the balance until it reaches the initial balance plus the funded
// amount or the attempts run out.
//
// Funding is best effort: failures are logged and the last balance observed
// is returned. If the initial balance cannot be read, zero is assumed.
func (this *AccountFunder) FundAccount(ctx context.Context, address common.Address, amount uint64) *big.Int {
	var initial, expected, balance, current *big.Int
	var timer *time.Timer
	var attempt int
	var err error

	initial, err = this.balance(ctx, address)
	if err != nil {
		this.logger.Warnf("fail to read balance of '%s': %s",
			address.Hex(), err.Error())
		initial = new(big.Int)
	}

	balance = initial

	err = this.funder.Fund(ctx, address, amount)
	if err != nil {
		this.logger.Warnf("fail to fund '%s' with %d tokens: %s",
			address.Hex(), amount, err.Error())
		return balance
	}

	expected = new(big.Int).Add(initial,
		TokensToBaseUnits(amount, this.policy.Decimals))

	for attempt = 0; attempt < this.policy.Attempts; attempt++ {
		current, err = this.balance(ctx, address)
		if err != nil {
			this.logger.Debugf("fail to read balance of '%s': %s",
				address.Hex(), err.Error())
		} else {
			balance = current
			if balance.Cmp(expected) >= 0 {
				this.logger.Tracef("funded '%s' after %d "+
					"attempts", address.Hex(), attempt+1)
				return balance
			}
		}

		if attempt == this.policy.Attempts-1 {
			break
		}

		timer = time.NewTimer(this.policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			this.logger.Warnf("funding of '%s' interrupted: %s",
				address.Hex(), ctx.Err().Error())
			return balance
		case <-timer.C:
		}
	}

	this.logger.Warnf("balance of '%s' is %s after %d attempts, expected "+
		"%s", address.Hex(), balance.String(), this.policy.Attempts,
		expected.String())

	return balance
}

// BankFunder funds accounts with transfers from a funded bank account.
type BankFunder struct {
	submitter *Submitter
	bank      *Account
	nonces    *NonceTracker
	decimals  uint
}

// NewBankFunder builds a funder sending from `bank`. When `nonces` is not nil
// the bank nonce is tracked locally so that several users may share the bank.
func NewBankFunder(submitter *Submitter, bank *Account, nonces *NonceTracker) *BankFunder {
	return &BankFunder{
		submitter: submitter,
		bank:      bank,
		nonces:    nonces,
		decimals:  NativeDecimals,
	}
}

func (this *BankFunder) Fund(ctx context.Context, address common.Address, amount uint64) error {
	var result *Result
	var opts TxOpts
	var nonce uint64
	var err error

	if this.nonces != nil {
		nonce, err = this.nonces.Next(ctx, this.bank.Address)
		if err != nil {
			return err
		}
		opts.Nonce = PinNonce(nonce)
	}

	result, err = this.submitter.SubmitTransfer(ctx, this.bank, address,
		TokensToBaseUnits(amount, this.decimals), opts)
	if err != nil {
		if (this.nonces != nil) && !errors.Is(err, ErrConfirmationTimeout) {
			this.nonces.Reset(this.bank.Address)
		}
		return err
	}

	if result.Outcome != OutcomeSuccess {
		return fmt.Errorf("bank transfer '%s' %s", result.Hash.Hex(),
			result.Outcome)
	}

	return nil
}
