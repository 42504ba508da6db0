package nethereum

import (
	"fmt"
	"math/big"
	"strings"
)

// NativeDecimals is the number of decimals of the native token.
const NativeDecimals = 18

func pow10(decimals uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// ToBaseUnits converts a decimal amount of tokens such as "0.01" to base
// units. Digits beyond `decimals` are an error.
func ToBaseUnits(amount string, decimals uint) (*big.Int, error) {
	var value *big.Rat
	var scaled *big.Rat
	var ok bool

	amount = strings.TrimSpace(amount)

	value, ok = new(big.Rat).SetString(amount)
	if !ok || strings.ContainsAny(amount, "/eE") {
		return nil, fmt.Errorf("invalid amount '%s'", amount)
	}

	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount '%s'", amount)
	}

	scaled = new(big.Rat).Mul(value, new(big.Rat).SetInt(pow10(decimals)))
	if !scaled.IsInt() {
		return nil, fmt.Errorf("amount '%s' has more than %d decimals",
			amount, decimals)
	}

	return new(big.Int).Set(scaled.Num()), nil
}

// TokensToBaseUnits converts a whole number of tokens to base units.
func TokensToBaseUnits(tokens uint64, decimals uint) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(tokens), pow10(decimals))
}
