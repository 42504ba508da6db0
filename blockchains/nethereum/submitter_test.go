package nethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neon-loadtest/core"
)

func newTestSubmitter(t *testing.T, client *fakeClient, metrics core.Metrics) *Submitter {
	return NewSubmitter(client,
		WithMetrics(metrics),
		WithConfirmer(NewConfirmer(client, nil, 5*time.Millisecond,
			time.Millisecond)))
}

func newTestAccount(t *testing.T) *Account {
	account, err := GenerateAccount()
	require.NoError(t, err)
	return account
}

func TestSubmitTransferResolvesEverything(t *testing.T) {
	asrt := assert.New(t)
	client := newFakeClient()
	registry := core.NewRegistry()
	from := newTestAccount(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")

	result, err := newTestSubmitter(t, client, registry).
		SubmitTransfer(context.Background(), from, to, big.NewInt(5), TxOpts{})
	require.NoError(t, err)

	asrt.Equal(1, result.NonceCalls)
	asrt.Equal(1, result.GasPriceCalls)
	asrt.Equal(1, result.EstimateCalls)
	asrt.Equal(OutcomeSuccess, result.Outcome)
	asrt.Equal(1, client.nonceCalls)
	asrt.Equal(1, client.gasPriceCalls)
	asrt.Equal(1, client.estimateCalls)

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	asrt.Equal(result.Hash, tx.Hash())
	asrt.Equal(uint64(7), tx.Nonce())
	asrt.Equal(uint64(21000), tx.Gas())
	asrt.Equal(0, tx.GasPrice().Cmp(client.gasPrice))
	asrt.Equal(0, tx.Value().Cmp(big.NewInt(5)))
	asrt.Equal(0, tx.ChainId().Cmp(client.chainId))
	asrt.Equal(to, *tx.To())

	sender, err := types.Sender(types.NewEIP155Signer(client.chainId), tx)
	require.NoError(t, err)
	asrt.Equal(from.Address, sender)

	// Estimation runs on the otherwise complete call.
	require.Len(t, client.estimated, 1)
	call := client.estimated[0]
	asrt.Equal(from.Address, call.From)
	asrt.Equal(to, *call.To)
	asrt.Equal(uint64(0), call.Gas)
	asrt.Equal(0, call.GasPrice.Cmp(client.gasPrice))
	asrt.Equal(0, call.Value.Cmp(big.NewInt(5)))

	asrt.Equal(float64(1), registry.Counter("nonce_requests"))
	asrt.Equal(float64(1), registry.Counter("gas_price_requests"))
	asrt.Equal(float64(1), registry.Counter("estimate_gas_requests"))
	asrt.Equal(float64(1), registry.Counter("send_transaction_requests"))
	asrt.Len(registry.Snapshot().Trends["nonce_request_time"], 1)
}

func TestSubmitTransferSkipsProvidedParameters(t *testing.T) {
	asrt := assert.New(t)
	client := newFakeClient()
	from := newTestAccount(t)
	to := newTestAccount(t).Address

	result, err := newTestSubmitter(t, client, core.NopMetrics()).
		SubmitTransfer(context.Background(), from, to, big.NewInt(1), TxOpts{
			Nonce:    PinNonce(42),
			GasPrice: big.NewInt(3),
			GasLimit: 30000,
		})
	require.NoError(t, err)

	asrt.Equal(0, result.NonceCalls)
	asrt.Equal(0, result.GasPriceCalls)
	asrt.Equal(0, result.EstimateCalls)
	asrt.Equal(0, client.nonceCalls)
	asrt.Equal(0, client.gasPriceCalls)
	asrt.Equal(0, client.estimateCalls)

	require.Len(t, client.sent, 1)
	asrt.Equal(uint64(42), client.sent[0].Nonce())
	asrt.Equal(uint64(30000), client.sent[0].Gas())
	asrt.Equal(int64(3), client.sent[0].GasPrice().Int64())
}

func TestSubmitTransferZeroGasPriceIsResolved(t *testing.T) {
	client := newFakeClient()

	result, err := newTestSubmitter(t, client, core.NopMetrics()).
		SubmitTransfer(context.Background(), newTestAccount(t),
			newTestAccount(t).Address, big.NewInt(1),
			TxOpts{GasPrice: new(big.Int), GasLimit: 21000})
	require.NoError(t, err)

	assert.Equal(t, 1, result.GasPriceCalls)
	assert.Equal(t, 0, result.EstimateCalls)
}

func TestSubmitTransferNonceRefetchedUnlessPinned(t *testing.T) {
	client := newFakeClient()
	submitter := newTestSubmitter(t, client, core.NopMetrics())
	from := newTestAccount(t)
	to := newTestAccount(t).Address

	for i := 0; i < 3; i++ {
		_, err := submitter.SubmitTransfer(context.Background(), from, to,
			big.NewInt(1), TxOpts{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, client.nonceCalls)
	assert.Equal(t, 1, client.chainIdCalls)
}

func TestSubmitTransferStaticChainId(t *testing.T) {
	client := newFakeClient()
	submitter := NewSubmitter(client, WithChainID(big.NewInt(111)),
		WithConfirmer(NewConfirmer(client, nil, time.Millisecond,
			time.Millisecond)))

	_, err := submitter.SubmitTransfer(context.Background(),
		newTestAccount(t), newTestAccount(t).Address, big.NewInt(1),
		TxOpts{})
	require.NoError(t, err)

	assert.Equal(t, 0, client.chainIdCalls)
	assert.Equal(t, int64(111), client.sent[0].ChainId().Int64())
}

func TestSubmitTransferReverted(t *testing.T) {
	client := newFakeClient()
	client.receipt = minedReceipt(types.ReceiptStatusFailed)

	result, err := newTestSubmitter(t, client, core.NopMetrics()).
		SubmitTransfer(context.Background(), newTestAccount(t),
			newTestAccount(t).Address, big.NewInt(1), TxOpts{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeReverted, result.Outcome)
	assert.Equal(t, "reverted", result.Outcome.String())
	require.NotNil(t, result.Receipt)
	assert.Equal(t, result.Hash, result.Receipt.TxHash)
}

func TestSubmitTransferTimeout(t *testing.T) {
	asrt := assert.New(t)
	client := newFakeClient()
	client.receipt = func(common.Hash, int) (*types.Receipt, error) {
		return nil, ethereum.NotFound
	}

	result, err := newTestSubmitter(t, client, core.NopMetrics()).
		SubmitTransfer(context.Background(), newTestAccount(t),
			newTestAccount(t).Address, big.NewInt(1), TxOpts{})
	require.Error(t, err)

	asrt.True(errors.Is(err, ErrConfirmationTimeout))
	asrt.Equal(5, client.receiptCalls)
	require.NotNil(t, result)
	asrt.Equal(OutcomeTimeout, result.Outcome)
	asrt.Equal(client.sent[0].Hash(), result.Hash)

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout))
	asrt.Equal(result.Hash, timeout.Hash)
	asrt.Equal(5, timeout.Attempts)
	asrt.Nil(timeout.Last)
}

func TestSubmitTransferResolutionError(t *testing.T) {
	asrt := assert.New(t)
	client := newFakeClient()
	client.gasPriceErr = errFakeRpc
	registry := core.NewRegistry()

	result, err := newTestSubmitter(t, client, registry).
		SubmitTransfer(context.Background(), newTestAccount(t),
			newTestAccount(t).Address, big.NewInt(1), TxOpts{})

	var resolution *ResolutionError
	require.True(t, errors.As(err, &resolution))
	asrt.Equal(ParamGasPrice, resolution.Param)
	asrt.True(errors.Is(err, errFakeRpc))
	asrt.Empty(client.sent)
	asrt.Equal(0, client.estimateCalls)
	asrt.Equal(1, result.GasPriceCalls)
	asrt.Equal(float64(1), registry.Counter("gas_price_errors"))
	asrt.Equal(float64(0), registry.Counter("gas_price_requests"))
}

func TestSubmitTransferEstimateError(t *testing.T) {
	client := newFakeClient()
	client.estimateErr = errFakeRpc

	_, err := newTestSubmitter(t, client, core.NopMetrics()).
		SubmitTransfer(context.Background(), newTestAccount(t),
			newTestAccount(t).Address, big.NewInt(1), TxOpts{})

	var resolution *ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, ParamGasLimit, resolution.Param)
	assert.Empty(t, client.sent)
}

func TestSubmitTransferRejected(t *testing.T) {
	client := newFakeClient()
	client.sendErr = errors.New("nonce too low")

	result, err := newTestSubmitter(t, client, core.NopMetrics()).
		SubmitTransfer(context.Background(), newTestAccount(t),
			newTestAccount(t).Address, big.NewInt(1), TxOpts{})

	var submission *SubmissionError
	require.True(t, errors.As(err, &submission))
	assert.Equal(t, result.Hash, submission.Hash)
	assert.Equal(t, 0, client.receiptCalls)
	assert.False(t, errors.Is(err, ErrConfirmationTimeout))
}

func TestSendTransferDoesNotWait(t *testing.T) {
	asrt := assert.New(t)
	client := newFakeClient()
	from := newTestAccount(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")

	result, err := newTestSubmitter(t, client, nil).SendTransfer(
		context.Background(), from, to, big.NewInt(1), TxOpts{
			Nonce:    PinNonce(3),
			GasPrice: big.NewInt(200000000000),
			GasLimit: 21000,
		})
	require.NoError(t, err)

	asrt.Equal(OutcomeNone, result.Outcome)
	asrt.Nil(result.Receipt)
	asrt.Equal(0, client.receiptCalls)
	asrt.Equal(0, client.nonceCalls)
	asrt.Equal(0, client.gasPriceCalls)
	asrt.Equal(0, client.estimateCalls)

	require.Len(t, client.sent, 1)
	asrt.Equal(result.Hash, client.sent[0].Hash())
	asrt.Equal(uint64(3), client.sent[0].Nonce())
	asrt.Equal(uint64(21000), client.sent[0].Gas())
}

func TestSendTransferRejected(t *testing.T) {
	client := newFakeClient()
	client.sendErr = errors.New("nonce too low")

	result, err := newTestSubmitter(t, client, nil).SendTransfer(
		context.Background(), newTestAccount(t), common.Address{},
		big.NewInt(1), TxOpts{})

	var submission *SubmissionError
	require.True(t, errors.As(err, &submission))
	assert.Equal(t, result.Hash, submission.Hash)
	assert.Equal(t, 0, client.receiptCalls)
}

func TestConfirmerAttempts(t *testing.T) {
	assert.Equal(t, 120, NewConfirmer(nil, nil, 0, 0).Attempts())
	assert.Equal(t, 1, NewConfirmer(nil, nil, time.Millisecond,
		time.Second).Attempts())
	assert.Equal(t, 10, NewConfirmer(nil, nil, time.Second,
		100*time.Millisecond).Attempts())
}

func TestConfirmerIgnoresStaleReceipt(t *testing.T) {
	client := newFakeClient()
	hash := common.HexToHash("0x01")
	client.receipt = func(polled common.Hash, attempt int) (*types.Receipt, error) {
		if attempt == 1 {
			return &types.Receipt{TxHash: common.HexToHash("0x02"),
				Status: 1}, nil
		}
		return &types.Receipt{TxHash: polled, Status: 1}, nil
	}

	receipt, err := NewConfirmer(client, nil, 10*time.Millisecond,
		time.Millisecond).Wait(context.Background(), hash)
	require.NoError(t, err)

	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, 2, client.receiptCalls)
}

func TestConfirmerRetriesTransientErrors(t *testing.T) {
	client := newFakeClient()
	client.receipt = func(hash common.Hash, attempt int) (*types.Receipt, error) {
		if attempt < 3 {
			return nil, errFakeRpc
		}
		return &types.Receipt{TxHash: hash, Status: 0}, nil
	}

	receipt, err := NewConfirmer(client, nil, 10*time.Millisecond,
		time.Millisecond).Wait(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeReverted, Classify(receipt))
	assert.Equal(t, 3, client.receiptCalls)
}

func TestConfirmerKeepsLastError(t *testing.T) {
	client := newFakeClient()
	client.receipt = func(common.Hash, int) (*types.Receipt, error) {
		return nil, errFakeRpc
	}

	_, err := NewConfirmer(client, nil, 3*time.Millisecond,
		time.Millisecond).Wait(context.Background(), common.HexToHash("0x01"))

	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
	assert.True(t, errors.Is(err, errFakeRpc))
	assert.Equal(t, 3, client.receiptCalls)
}

func TestConfirmerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient()
	client.receipt = func(common.Hash, int) (*types.Receipt, error) {
		cancel()
		return nil, ethereum.NotFound
	}

	_, err := NewConfirmer(client, nil, time.Minute, time.Second).
		Wait(ctx, common.HexToHash("0x01"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.receiptCalls)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeTimeout, Classify(nil))
	assert.Equal(t, OutcomeSuccess, Classify(&types.Receipt{Status: 1}))
	assert.Equal(t, OutcomeReverted, Classify(&types.Receipt{Status: 0}))
}
