package entity

import "math/big"

// BalanceRequestType defines the type of balance request.
type BalanceRequestType int

const (
	// NativeBalanceRequest requests the native balance of a wallet.
	NativeBalanceRequest BalanceRequestType = iota
	// TokenBalanceRequest requests the balance of a specific token for a wallet.
	TokenBalanceRequest
)

// BalanceRequestItem is one element of a JSON-RPC batch balance query.
type BalanceRequestItem struct {
	Type          BalanceRequestType
	WalletAddress string
	TokenAddress  string
}

// BalanceResultItem is the raw answer for one BalanceRequestItem.
type BalanceResultItem struct {
	WalletAddress string
	TokenAddress  string
	Balance       *big.Int
	Error         error
}
