package nethereum

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Parameters resolved from the node before a transaction is built. They are
// also the metric series of the corresponding RPC calls.
const (
	ParamNonce    = "nonce"
	ParamGasPrice = "gas_price"
	ParamGasLimit = "estimate_gas"
	ParamChainID  = "chain_id"
)

// ErrConfirmationTimeout is matched by every error returned when no receipt
// shows up before the polling ceiling.
var ErrConfirmationTimeout = errors.New("confirmation timeout")

// ResolutionError is returned when a missing transaction parameter could not
// be fetched from the node. Nothing has been sent.
type ResolutionError struct {
	Param string
	Err   error
}

func (this *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %s", this.Param, this.Err.Error())
}

func (this *ResolutionError) Unwrap() error {
	return this.Err
}

// SubmissionError is returned when the transaction could not be signed or
// the node rejected it (bad nonce, insufficient funds, malformed input).
type SubmissionError struct {
	Hash common.Hash // Zero if signing failed
	Err  error
}

func (this *SubmissionError) Error() string {
	if this.Hash == (common.Hash{}) {
		return fmt.Sprintf("cannot submit transaction: %s", this.Err.Error())
	}
	return fmt.Sprintf("transaction %s rejected: %s", this.Hash.Hex(),
		this.Err.Error())
}

func (this *SubmissionError) Unwrap() error {
	return this.Err
}

// TimeoutError reports a transaction with no receipt after `Attempts` polls.
// `Last` is the last RPC error seen while polling, if any.
type TimeoutError struct {
	Hash     common.Hash
	Attempts int
	Ceiling  time.Duration
	Last     error
}

func (this *TimeoutError) Error() string {
	var msg string = fmt.Sprintf("no receipt for %s after %d attempts (%s)",
		this.Hash.Hex(), this.Attempts, this.Ceiling)

	if this.Last != nil {
		msg += ": " + this.Last.Error()
	}

	return msg
}

func (this *TimeoutError) Is(target error) bool {
	return target == ErrConfirmationTimeout
}

func (this *TimeoutError) Unwrap() error {
	return this.Last
}
