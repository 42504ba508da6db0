package nethereum

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"neon-loadtest/core"
)

// TxOpts are the optional fields of a transfer. A nil or zero field is
// resolved from the node before the transaction is built.
type TxOpts struct {
	Nonce    *uint64
	GasPrice *big.Int
	GasLimit uint64
	Input    []byte
}

// PinNonce returns a pointer suitable for `TxOpts.Nonce`.
func PinNonce(nonce uint64) *uint64 {
	return &nonce
}

// transferRequest is a transfer whose wire fields are resolved one by one.
type transferRequest struct {
	from  *Account
	to    common.Address
	value *big.Int
	opts  TxOpts

	nonce    uint64
	gasPrice *big.Int
	gasLimit uint64

	nonceCalls    int
	gasPriceCalls int
	estimateCalls int
}

func newTransferRequest(from *Account, to common.Address, value *big.Int, opts TxOpts) *transferRequest {
	if value == nil {
		value = new(big.Int)
	}

	return &transferRequest{
		from:  from,
		to:    to,
		value: value,
		opts:  opts,
	}
}

// resolve fills every missing parameter in order: nonce, gas price and then
// gas limit, the estimation being made on the otherwise complete call.
func (this *transferRequest) resolve(ctx context.Context, client Client, metrics core.Metrics) error {
	var err error

	if this.opts.Nonce != nil {
		this.nonce = *this.opts.Nonce
	} else {
		this.nonceCalls += 1
		err = core.Timed(metrics, ParamNonce, func() error {
			var err error
			this.nonce, err = client.PendingNonceAt(ctx,
				this.from.Address)
			return err
		})
		if err != nil {
			return &ResolutionError{Param: ParamNonce, Err: err}
		}
	}

	if (this.opts.GasPrice != nil) && (this.opts.GasPrice.Sign() > 0) {
		this.gasPrice = this.opts.GasPrice
	} else {
		this.gasPriceCalls += 1
		err = core.Timed(metrics, ParamGasPrice, func() error {
			var err error
			this.gasPrice, err = client.SuggestGasPrice(ctx)
			return err
		})
		if err != nil {
			return &ResolutionError{Param: ParamGasPrice, Err: err}
		}
	}

	if this.opts.GasLimit > 0 {
		this.gasLimit = this.opts.GasLimit
	} else {
		this.estimateCalls += 1
		err = core.Timed(metrics, ParamGasLimit, func() error {
			var err error
			this.gasLimit, err = client.EstimateGas(ctx,
				this.callMsg())
			return err
		})
		if err != nil {
			return &ResolutionError{Param: ParamGasLimit, Err: err}
		}
	}

	return nil
}

func (this *transferRequest) callMsg() ethereum.CallMsg {
	var to common.Address = this.to

	return ethereum.CallMsg{
		From:     this.from.Address,
		To:       &to,
		Gas:      0,
		GasPrice: this.gasPrice,
		Value:    this.value,
		Data:     this.opts.Input,
	}
}

func (this *transferRequest) build() *types.Transaction {
	var to common.Address = this.to

	return types.NewTx(&types.LegacyTx{
		Nonce:    this.nonce,
		GasPrice: this.gasPrice,
		Gas:      this.gasLimit,
		To:       &to,
		Value:    this.value,
		Data:     this.opts.Input,
	})
}

func (this *transferRequest) sign(chainId *big.Int) (*types.Transaction, error) {
	return types.SignTx(this.build(), types.NewEIP155Signer(chainId),
		this.from.PrivateKey)
}

type chainIdProvider interface {
	getChainId(context.Context) (*big.Int, error)
}

type staticChainIdProvider struct {
	chainId *big.Int
}

func newStaticChainIdProvider(chainId *big.Int) *staticChainIdProvider {
	return &staticChainIdProvider{
		chainId: chainId,
	}
}

func (this *staticChainIdProvider) getChainId(context.Context) (*big.Int, error) {
	return this.chainId, nil
}

// lazyChainIdProvider asks the node once and remembers the answer. A failed
// fetch is retried on the next call.
type lazyChainIdProvider struct {
	lock   sync.Mutex
	client Client
	inner  *staticChainIdProvider
}

func newLazyChainIdProvider(client Client) *lazyChainIdProvider {
	return &lazyChainIdProvider{
		client: client,
		inner:  nil,
	}
}

func (this *lazyChainIdProvider) getChainId(ctx context.Context) (*big.Int, error) {
	var chainId *big.Int
	var err error

	this.lock.Lock()
	defer this.lock.Unlock()

	if this.inner == nil {
		chainId, err = this.client.ChainID(ctx)
		if err != nil {
			return nil, err
		}

		this.inner = newStaticChainIdProvider(chainId)
	}

	return this.inner.getChainId(ctx)
}
