package nethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errFakeRpc = errors.New("rpc unavailable")

// fakeClient is a scripted node. Every method counts its calls.
type fakeClient struct {
	lock sync.Mutex

	chainId  *big.Int
	nonce    uint64
	gasPrice *big.Int
	gas      uint64

	nonceErr    error
	gasPriceErr error
	estimateErr error
	sendErr     error

	// Called on every receipt request with the 1-based attempt number.
	receipt func(hash common.Hash, attempt int) (*types.Receipt, error)

	// Successive pending balances, the last one repeats.
	balances   []*big.Int
	balanceErr error

	chainIdCalls  int
	nonceCalls    int
	gasPriceCalls int
	estimateCalls int
	receiptCalls  int
	balanceCalls  int
	blockCalls    int

	estimated []ethereum.CallMsg
	sent      []*types.Transaction

	// Time a nonce request takes, and the most requests seen in flight.
	nonceDelay time.Duration
	inFlight   int32
	overlap    int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chainId:  big.NewInt(245022926),
		nonce:    7,
		gasPrice: big.NewInt(1000000000),
		gas:      21000,
		receipt:  minedReceipt(types.ReceiptStatusSuccessful),
	}
}

func minedReceipt(status uint64) func(common.Hash, int) (*types.Receipt, error) {
	return func(hash common.Hash, attempt int) (*types.Receipt, error) {
		return &types.Receipt{
			TxHash:      hash,
			Status:      status,
			BlockNumber: big.NewInt(100),
		}, nil
	}
}

func (this *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.chainIdCalls += 1
	return this.chainId, nil
}

func (this *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.blockCalls += 1
	return 100, nil
}

func (this *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var n int32 = atomic.AddInt32(&this.inFlight, 1)

	defer atomic.AddInt32(&this.inFlight, -1)

	for {
		var seen int32 = atomic.LoadInt32(&this.overlap)
		if (n <= seen) || atomic.CompareAndSwapInt32(&this.overlap, seen, n) {
			break
		}
	}

	time.Sleep(this.nonceDelay)

	this.lock.Lock()
	defer this.lock.Unlock()
	this.nonceCalls += 1
	return this.nonce, this.nonceErr
}

func (this *fakeClient) PendingBalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var index int

	this.lock.Lock()
	defer this.lock.Unlock()

	index = this.balanceCalls
	this.balanceCalls += 1

	if this.balanceErr != nil {
		return nil, this.balanceErr
	}

	if len(this.balances) == 0 {
		return new(big.Int), nil
	}

	if index >= len(this.balances) {
		index = len(this.balances) - 1
	}

	return new(big.Int).Set(this.balances[index]), nil
}

func (this *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.gasPriceCalls += 1
	if this.gasPriceErr != nil {
		return nil, this.gasPriceErr
	}
	return this.gasPrice, nil
}

func (this *fakeClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.estimateCalls += 1
	this.estimated = append(this.estimated, call)
	return this.gas, this.estimateErr
}

func (this *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.sent = append(this.sent, tx)
	return this.sendErr
}

func (this *fakeClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var attempt int

	this.lock.Lock()
	this.receiptCalls += 1
	attempt = this.receiptCalls
	this.lock.Unlock()

	return this.receipt(hash, attempt)
}

// fakeFunder records funding requests.
type fakeFunder struct {
	err      error
	requests []uint64
	onFund   func()
}

func (this *fakeFunder) Fund(ctx context.Context, address common.Address, amount uint64) error {
	this.requests = append(this.requests, amount)
	if this.onFund != nil {
		this.onFund()
	}
	return this.err
}
