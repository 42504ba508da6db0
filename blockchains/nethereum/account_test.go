package nethereum

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neon-loadtest/core/configs"
)

func TestAccountFromHex(t *testing.T) {
	account := newTestAccount(t)

	for _, key := range []string{account.KeyHex(), "0x" + account.KeyHex()} {
		loaded, err := AccountFromHex(key)
		require.NoError(t, err)
		assert.Equal(t, account.Address, loaded.Address)
	}

	_, err := AccountFromHex("0x1234")
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	address, err := ParseAddress("0x27c40e0fc653679a205754ca76f3371ec127baba")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x27c40e0fc653679a205754ca76f3371ec127baba"), address)

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)

	_, err = ParseAddress("0xzz")
	assert.Error(t, err)
}

func newPoolEntry(t *testing.T) (*configs.AccountEntry, *Account, *Account) {
	sender := newTestAccount(t)
	receiver := newTestAccount(t)
	key, err := configs.DecodeHex(sender.KeyHex())
	require.NoError(t, err)

	return &configs.AccountEntry{
		SenderAddress:   sender.Address.Hex(),
		SenderKey:       configs.HexKey(key),
		ReceiverAddress: receiver.Address.Hex(),
	}, sender, receiver
}

func TestPoolForUser(t *testing.T) {
	asrt := assert.New(t)
	entries := make([]*configs.AccountEntry, 0, 3)
	senders := make([]*Account, 0, 3)
	receivers := make([]*Account, 0, 3)

	for i := 0; i < 3; i++ {
		entry, sender, receiver := newPoolEntry(t)
		entries = append(entries, entry)
		senders = append(senders, sender)
		receivers = append(receivers, receiver)
	}

	pool, err := NewPool(entries)
	require.NoError(t, err)
	asrt.Equal(3, pool.Len())

	for id := 0; id < 7; id++ {
		entry := pool.ForUser(id)
		asrt.Equal(senders[id%3].Address, entry.Sender.Address)
		asrt.Equal(receivers[id%3].Address, entry.Receiver)
	}
}

func TestPoolRejectsMismatchedAddress(t *testing.T) {
	entry, _, _ := newPoolEntry(t)
	entry.SenderAddress = newTestAccount(t).Address.Hex()

	_, err := NewPool([]*configs.AccountEntry{entry})
	assert.Error(t, err)

	_, err = NewPool(nil)
	assert.Error(t, err)
}
