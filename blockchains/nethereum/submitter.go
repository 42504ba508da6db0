package nethereum

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"neon-loadtest/core"
)

// Outcome is how a submitted transaction ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeReverted
	OutcomeTimeout
)

func (this Outcome) String() string {
	switch this {
	case OutcomeSuccess:
		return "success"
	case OutcomeReverted:
		return "reverted"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Classify maps a receipt status to an outcome.
func Classify(receipt *types.Receipt) Outcome {
	if receipt == nil {
		return OutcomeTimeout
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return OutcomeSuccess
	}

	return OutcomeReverted
}

// Result describes one submission, whatever its outcome. `Hash` and `Tx` are
// set as soon as the transaction is signed.
type Result struct {
	Hash    common.Hash
	Tx      *types.Transaction
	Receipt *types.Receipt
	Outcome Outcome

	// Number of parameter requests made to the node.
	NonceCalls    int
	GasPriceCalls int
	EstimateCalls int
}

// Submitter resolves, signs and sends transfers and then waits for them to be
// executed. A Submitter is meant to be used by a single virtual user.
type Submitter struct {
	client    Client
	logger    core.Logger
	metrics   core.Metrics
	confirmer *Confirmer
	chainId   chainIdProvider
}

type SubmitterOption func(*Submitter)

func WithLogger(logger core.Logger) SubmitterOption {
	return func(this *Submitter) {
		this.logger = logger
	}
}

func WithMetrics(metrics core.Metrics) SubmitterOption {
	return func(this *Submitter) {
		if metrics != nil {
			this.metrics = metrics
		}
	}
}

// WithConfirmer replaces the default receipt polling policy.
func WithConfirmer(confirmer *Confirmer) SubmitterOption {
	return func(this *Submitter) {
		this.confirmer = confirmer
	}
}

// WithChainID sets the chain id used to sign instead of asking the node.
func WithChainID(chainId *big.Int) SubmitterOption {
	return func(this *Submitter) {
		if chainId != nil {
			this.chainId = newStaticChainIdProvider(chainId)
		}
	}
}

func NewSubmitter(client Client, options ...SubmitterOption) *Submitter {
	var this *Submitter = &Submitter{
		client:  client,
		logger:  core.NopLogger(),
		metrics: core.NopMetrics(),
		chainId: newLazyChainIdProvider(client),
	}
	var option SubmitterOption

	for _, option = range options {
		option(this)
	}

	if this.confirmer == nil {
		this.confirmer = NewConfirmer(client, this.logger,
			DefaultReceiptCeiling, DefaultReceiptInterval)
	}

	return this
}

func (this *Submitter) Client() Client {
	return this.client
}

func (this *Submitter) Metrics() core.Metrics {
	return this.metrics
}

// SendTransfer resolves, signs and sends `value` base units from `from` to
// `to` without waiting for the receipt. The result outcome stays
// OutcomeNone. The returned result is never nil.
func (this *Submitter) SendTransfer(ctx context.Context, from *Account, to common.Address, value *big.Int, opts TxOpts) (*Result, error) {
	var request *transferRequest
	var chainId *big.Int
	var tx *types.Transaction
	var result Result
	var err error

	request = newTransferRequest(from, to, value, opts)

	err = request.resolve(ctx, this.client, this.metrics)
	result.NonceCalls = request.nonceCalls
	result.GasPriceCalls = request.gasPriceCalls
	result.EstimateCalls = request.estimateCalls
	if err != nil {
		this.logger.Debugf("resolution failed for '%s': %s",
			from.Address.Hex(), err.Error())
		return &result, err
	}

	chainId, err = this.chainId.getChainId(ctx)
	if err != nil {
		return &result, &ResolutionError{Param: ParamChainID, Err: err}
	}

	tx, err = request.sign(chainId)
	if err != nil {
		return &result, &SubmissionError{Err: err}
	}

	result.Tx = tx
	result.Hash = tx.Hash()

	this.logger.Tracef("send transaction '%s' from '%s' (nonce %d)",
		result.Hash.Hex(), from.Address.Hex(), tx.Nonce())

	err = core.Timed(this.metrics, "send_transaction", func() error {
		return this.client.SendTransaction(ctx, tx)
	})
	if err != nil {
		return &result, &SubmissionError{Hash: result.Hash, Err: err}
	}

	return &result, nil
}

// SubmitTransfer sends `value` base units from `from` to `to` and waits for
// the receipt.
//
// A reverted transaction is not an error: it is reported by the result
// outcome. The returned result is never nil once the transaction has been
// signed, even along with an error, so the caller always gets the hash of
// what may have reached the node.
func (this *Submitter) SubmitTransfer(ctx context.Context, from *Account, to common.Address, value *big.Int, opts TxOpts) (*Result, error) {
	var receipt *types.Receipt
	var result *Result
	var start time.Time
	var err error

	result, err = this.SendTransfer(ctx, from, to, value, opts)
	if err != nil {
		return result, err
	}

	start = time.Now()

	receipt, err = this.confirmer.Wait(ctx, result.Hash)
	if err != nil {
		if errors.Is(err, ErrConfirmationTimeout) {
			result.Outcome = OutcomeTimeout
		}
		return result, err
	}

	this.metrics.Observe("receipt_wait_time", time.Since(start))

	result.Receipt = receipt
	result.Outcome = Classify(receipt)

	if result.Outcome == OutcomeReverted {
		this.logger.Debugf("transaction '%s' reverted in block %v",
			result.Hash.Hex(), receipt.BlockNumber)
	}

	return result, nil
}
