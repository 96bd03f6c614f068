package entity

import "math/big"

// BalanceResult is the balance of one address for one token.
type BalanceResult struct {
	Address          string   `json:"address"`
	TokenSymbol      string   `json:"tokenSymbol"`
	TokenAddress     string   `json:"tokenAddress,omitempty"`
	Decimals         uint8    `json:"decimals"`
	Amount           *big.Int `json:"-"`
	FormattedBalance string   `json:"balance"`
	Error            string   `json:"error,omitempty"`
}
