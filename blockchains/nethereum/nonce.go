package nethereum

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"neon-loadtest/core"
)

// NonceTracker hands out sequential nonces for accounts shared by several
// virtual users. The pending nonce of an account is fetched once, then every
// call to `Next` returns the following value. Calls on the client are
// serialised so it can be a single connection.
type NonceTracker struct {
	logger core.Logger
	client Client
	fetch  sync.Mutex
	lock   sync.Mutex
	bases  map[common.Address]*trackedNonce
}

type trackedNonce struct {
	lock   sync.Mutex
	synced bool
	next   uint64
}

func NewNonceTracker(client Client, logger core.Logger) *NonceTracker {
	if logger == nil {
		logger = core.NopLogger()
	}

	return &NonceTracker{
		logger: logger,
		client: client,
		bases:  make(map[common.Address]*trackedNonce),
	}
}

// Return the slot of `from`, locked.
func (this *NonceTracker) getSlot(from common.Address) *trackedNonce {
	var ret *trackedNonce
	var ok bool

	this.lock.Lock()

	ret, ok = this.bases[from]

	if !ok {
		ret = &trackedNonce{
			synced: false,
		}
		this.bases[from] = ret
	}

	this.lock.Unlock()

	ret.lock.Lock()

	return ret
}

// Next returns the nonce to use for the next transaction of `from`.
func (this *NonceTracker) Next(ctx context.Context, from common.Address) (uint64, error) {
	var slot *trackedNonce
	var nonce uint64
	var err error

	slot = this.getSlot(from)
	defer slot.lock.Unlock()

	if !slot.synced {
		this.fetch.Lock()
		slot.next, err = this.client.PendingNonceAt(ctx, from)
		this.fetch.Unlock()
		if err != nil {
			this.logger.Errorf("fail to fetch pending nonce "+
				"for '%s': %s", from.Hex(), err.Error())
			return 0, &ResolutionError{Param: ParamNonce, Err: err}
		}

		this.logger.Tracef("pending nonce for '%s' = %d", from.Hex(),
			slot.next)
		slot.synced = true
	}

	nonce = slot.next
	slot.next += 1

	return nonce, nil
}

// Reset forgets the nonce of `from` so the next call asks the node again.
// Call it after a rejected transaction.
func (this *NonceTracker) Reset(from common.Address) {
	var slot *trackedNonce = this.getSlot(from)

	slot.synced = false
	slot.lock.Unlock()
}
