package scenarios

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"neon-loadtest/blockchains/nethereum"
	"neon-loadtest/core"
	"neon-loadtest/core/configs"
)

// PrepareAccounts creates `count` sender and receiver pairs and funds every
// sender with `balance` tokens. At most `concurrency` workers fund accounts,
// each through its own connection. Entries whose sender balance did not move
// are still returned, funding being best effort.
func PrepareAccounts(ctx context.Context, env *Environment, count int, balance uint64, concurrency int) ([]*configs.AccountEntry, error) {
	var entries []*configs.AccountEntry = make([]*configs.AccountEntry, count)
	var senders []*nethereum.Account = make([]*nethereum.Account, count)
	var expected *big.Int
	var jobs chan int
	var group *errgroup.Group
	var gctx context.Context
	var lock sync.Mutex
	var funded int
	var err error
	var i, w int

	if !env.hasFunder() {
		return nil, fmt.Errorf("no faucet or bank account to fund " +
			"accounts")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	if concurrency > count {
		concurrency = count
	}

	for i = range entries {
		var sender, receiver *nethereum.Account

		sender, err = nethereum.GenerateAccount()
		if err != nil {
			return nil, err
		}

		receiver, err = nethereum.GenerateAccount()
		if err != nil {
			return nil, err
		}

		senders[i] = sender
		entries[i] = &configs.AccountEntry{
			SenderAddress:   sender.Address.Hex(),
			SenderKey:       configs.HexKey(crypto.FromECDSA(sender.PrivateKey)),
			ReceiverAddress: receiver.Address.Hex(),
		}
	}

	expected = nethereum.TokensToBaseUnits(balance, env.FundingPolicy.Decimals)
	jobs = make(chan int)
	group, gctx = errgroup.WithContext(ctx)

	for w = 0; w < concurrency; w++ {
		var logger core.Logger = env.logger().Extend(fmt.Sprintf("worker[%d]", w))

		group.Go(func() error {
			var funder *nethereum.AccountFunder
			var client nethereum.Client
			var got *big.Int
			var index int
			var err error

			client, err = env.Dial(gctx)
			if err != nil {
				return err
			}

			defer closeClient(client)

			funder = nethereum.NewAccountFunder(client,
				env.funder(client, logger), env.FundingPolicy, logger)

			for index = range jobs {
				got = funder.FundAccount(gctx, senders[index].Address,
					balance)

				lock.Lock()
				if got.Cmp(expected) >= 0 {
					funded += 1
				}
				lock.Unlock()

				logger.Debugf("account %d '%s' balance: %s", index,
					senders[index].Address.Hex(), got.String())
			}

			return nil
		})
	}

loop:
	for i = range entries {
		select {
		case jobs <- i:
		case <-gctx.Done():
			break loop
		}
	}

	close(jobs)

	err = group.Wait()
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	env.logger().Infof("%d/%d accounts funded", funded, count)

	return entries, nil
}
