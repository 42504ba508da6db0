package nethereum

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"neon-loadtest/core"
)

const (
	DefaultReceiptCeiling  = 120 * time.Second
	DefaultReceiptInterval = time.Second
)

// Confirmer polls the node for the receipt of a sent transaction. It never
// makes more than `Attempts()` calls.
type Confirmer struct {
	client   Client
	logger   core.Logger
	ceiling  time.Duration
	interval time.Duration
}

func NewConfirmer(client Client, logger core.Logger, ceiling, interval time.Duration) *Confirmer {
	if logger == nil {
		logger = core.NopLogger()
	}

	if ceiling <= 0 {
		ceiling = DefaultReceiptCeiling
	}

	if interval <= 0 {
		interval = DefaultReceiptInterval
	}

	return &Confirmer{
		client:   client,
		logger:   logger,
		ceiling:  ceiling,
		interval: interval,
	}
}

// Attempts returns the maximum number of receipt requests for one
// transaction.
func (this *Confirmer) Attempts() int {
	var attempts int = int(this.ceiling / this.interval)

	if attempts < 1 {
		return 1
	}

	return attempts
}

// Wait returns the receipt of `hash` as soon as the node knows it. Unknown
// transactions and failed requests are retried after the polling interval
// until the attempts run out, in which case the error matches
// `ErrConfirmationTimeout`.
func (this *Confirmer) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	var timer *time.Timer
	var attempts, i int
	var last error
	var err error

	attempts = this.Attempts()

	for i = 0; i < attempts; i++ {
		if i > 0 {
			timer = time.NewTimer(this.interval)

			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		receipt, err = this.client.TransactionReceipt(ctx, hash)

		if err == nil {
			if receipt == nil || receipt.TxHash != hash {
				this.logger.Tracef("ignore stale receipt for "+
					"'%s'", hash.Hex())
				continue
			}

			return receipt, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !errors.Is(err, ethereum.NotFound) {
			this.logger.Debugf("fail to fetch receipt for '%s': %s",
				hash.Hex(), err.Error())
			last = err
		}
	}

	return nil, &TimeoutError{
		Hash:     hash,
		Attempts: attempts,
		Ceiling:  this.ceiling,
		Last:     last,
	}
}
