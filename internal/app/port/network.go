package port

import (
	"context"
	"math/big"

	"parcel/internal/domain/entity"
)

// ChainAdapter wraps one network connection. A single adapter is opened per
// orchestration call and shared by every wallet handle of that call.
type ChainAdapter interface {
	// Prepare resolves the connected network identity and snapshots the fee
	// environment used by every transfer of the call.
	Prepare(ctx context.Context) (entity.NetworkIdentity, error)

	// Identity returns what Prepare resolved.
	Identity() entity.NetworkIdentity

	// NativeBalance returns the native balance of address as a decimal string.
	NativeBalance(ctx context.Context, address string) (string, error)

	// TokenBalance returns the token balance of address as a decimal string.
	TokenBalance(ctx context.Context, tokenAddress string, address string) (string, error)

	// TokenMetadata returns name, symbol and decimals of a token contract.
	TokenMetadata(ctx context.Context, tokenAddress string) (entity.TokenMetadata, error)

	// Balances queries token (or native) balances for many addresses.
	Balances(ctx context.Context, token entity.Token, addresses []string) ([]entity.BalanceResult, error)

	// OpenWallet binds a credential to the adapter. Keys are derived lazily.
	OpenWallet(ctx context.Context, credential entity.Wallet) (WalletHandle, error)

	Close()
}

// WalletHandle signs and submits transfers for one credential. Each handle owns
// its sequence counter exclusively.
type WalletHandle interface {
	Address() string

	// InitSequence reads the next nonce/seqno from the chain once. On TON it
	// deploys the wallet contract first if needed.
	InitSequence(ctx context.Context) error

	// NextSequence allocates the next local sequence number without network access.
	NextSequence() (uint64, error)

	// PlanSweep computes how much of token the wallet can send to `to` when no amount is given.
	PlanSweep(ctx context.Context, token entity.Token, to string) (entity.SendPlan, error)

	// Transfer signs, submits and waits for the confirmation of one order.
	Transfer(ctx context.Context, order entity.TransferOrder) (entity.TransferReceipt, error)
}

// FundsChecker is implemented by wallet handles that can verify the balance
// of a whole batch before InitSequence broadcasts anything.
type FundsChecker interface {
	CheckFunds(ctx context.Context, token entity.Token, total *big.Int) error
}

// NetworkRegistry resolves network identifiers and chain ids.
type NetworkRegistry interface {
	All() []entity.NetworkDefinition
	Resolve(identifier string) (entity.NetworkDefinition, error)
	ResolveChainID(chainID uint64) entity.NetworkIdentity
	FindToken(network string, tokenID string) (entity.Token, bool)
}

// ChainAdapterProvider opens adapters for a selected network.
type ChainAdapterProvider interface {
	Open(ctx context.Context, def entity.NetworkDefinition, selection entity.NetworkSelection) (ChainAdapter, error)
}
