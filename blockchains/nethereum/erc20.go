package nethereum

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20TransferAbi = `[{
	"type": "function",
	"name": "transfer",
	"stateMutability": "nonpayable",
	"inputs": [
		{ "name": "to", "type": "address" },
		{ "name": "amount", "type": "uint256" }
	],
	"outputs": [
		{ "name": "", "type": "bool" }
	]
}]`

// ERC20 is a deployed token contract.
type ERC20 struct {
	Address common.Address
	abi     abi.ABI
}

func NewERC20(address common.Address) (*ERC20, error) {
	var parsed abi.ABI
	var err error

	parsed, err = abi.JSON(strings.NewReader(erc20TransferAbi))
	if err != nil {
		return nil, err
	}

	return &ERC20{
		Address: address,
		abi:     parsed,
	}, nil
}

// TransferInput returns the call data of `transfer(to, amount)`.
func (this *ERC20) TransferInput(to common.Address, amount *big.Int) ([]byte, error) {
	return this.abi.Pack("transfer", to, amount)
}

// Transfer sends `amount` base units of the token from `owner` to `to`. The
// transaction carries no native value. `opts.Input` is overwritten.
func (this *ERC20) Transfer(ctx context.Context, submitter *Submitter, owner *Account, to common.Address, amount *big.Int, opts TxOpts) (*Result, error) {
	var input []byte
	var err error

	input, err = this.TransferInput(to, amount)
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}

	opts.Input = input

	return submitter.SubmitTransfer(ctx, owner, this.Address,
		new(big.Int), opts)
}
