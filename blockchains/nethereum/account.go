package nethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"neon-loadtest/core/configs"
)

// Account is a signing key and the address it controls.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// GenerateAccount creates a fresh random account.
func GenerateAccount() (*Account, error) {
	private, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	return newAccount(private), nil
}

// AccountFromKey builds the account controlled by a raw private key.
func AccountFromKey(key []byte) (*Account, error) {
	private, err := crypto.ToECDSA(key)
	if err != nil {
		return nil, err
	}

	return newAccount(private), nil
}

// AccountFromHex builds the account controlled by a hex private key, with or
// without "0x".
func AccountFromHex(key string) (*Account, error) {
	private, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X"))
	if err != nil {
		return nil, err
	}

	return newAccount(private), nil
}

func newAccount(private *ecdsa.PrivateKey) *Account {
	return &Account{
		Address:    crypto.PubkeyToAddress(private.PublicKey),
		PrivateKey: private,
	}
}

// KeyHex returns the private key as hex without prefix.
func (this *Account) KeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(this.PrivateKey))
}

// ParseAddress decodes a hex address and checks its length.
func ParseAddress(value string) (common.Address, error) {
	var bytes []byte
	var err error

	bytes, err = configs.DecodeHex(value)
	if err != nil {
		return common.Address{}, err
	}

	if len(bytes) != common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address length (%d bytes)",
			len(bytes))
	}

	return common.BytesToAddress(bytes), nil
}

// PoolEntry is one pre-funded sender and the receiver paired with it.
type PoolEntry struct {
	Sender   *Account
	Receiver common.Address
}

// Pool is a pre-generated set of accounts shared read-only by every virtual
// user. Each user takes the entry at its own index so that no two users sign
// with the same key at the same time.
type Pool struct {
	entries []PoolEntry
}

// NewPool builds the pool from the entries of an accounts file. A sender
// address that does not match its key is an error.
func NewPool(entries []*configs.AccountEntry) (*Pool, error) {
	var pool Pool

	if len(entries) == 0 {
		return nil, errors.New("empty accounts pool")
	}

	pool.entries = make([]PoolEntry, 0, len(entries))

	for i, entry := range entries {
		sender, err := AccountFromKey(entry.SenderKey)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}

		if entry.SenderAddress != "" {
			address, err := ParseAddress(entry.SenderAddress)
			if err != nil {
				return nil, fmt.Errorf("account %d: %w", i, err)
			}
			if address != sender.Address {
				return nil, fmt.Errorf("account %d: key controls %s, not %s",
					i, sender.Address.Hex(), address.Hex())
			}
		}

		receiver, err := ParseAddress(entry.ReceiverAddress)
		if err != nil {
			return nil, fmt.Errorf("account %d receiver: %w", i, err)
		}

		pool.entries = append(pool.entries, PoolEntry{
			Sender:   sender,
			Receiver: receiver,
		})
	}

	return &pool, nil
}

func (this *Pool) Len() int {
	return len(this.entries)
}

// ForUser returns the entry assigned to the virtual user `id`.
func (this *Pool) ForUser(id int) PoolEntry {
	if id < 0 {
		id = -id
	}
	return this.entries[id%len(this.entries)]
}
