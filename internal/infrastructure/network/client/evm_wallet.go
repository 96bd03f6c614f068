package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"parcel/internal/domain/entity"
	"parcel/internal/metrics"
	"parcel/internal/pkg/utils"
)

// evmWallet is a per-call wallet session with its own nonce counter.
type evmWallet struct {
	client  *EVMClient
	key     *ecdsa.PrivateKey
	address common.Address

	nextNonce   uint64
	initialized bool
}

func newEVMWallet(c *EVMClient, credential entity.Wallet) (*evmWallet, error) {
	if credential.HasMnemonic() && credential.PrivateKey == "" {
		return nil, errors.New("mnemonic credentials are not supported on EVM networks, use a private key")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(credential.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key for %s: %w", credential.Address, err)
	}
	return &evmWallet{
		client:  c,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (w *evmWallet) Address() string {
	return w.address.Hex()
}

// InitSequence reads the pending nonce once.
func (w *evmWallet) InitSequence(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, w.client.rpcCallTimeout)
	defer cancel()
	nonce, err := w.client.backend.PendingNonceAt(cctx, w.address)
	if err != nil {
		return fmt.Errorf("failed to read pending nonce of %s: %w", w.address.Hex(), err)
	}
	w.nextNonce = nonce
	w.initialized = true
	return nil
}

// NextSequence returns the next local nonce.
func (w *evmWallet) NextSequence() (uint64, error) {
	if !w.initialized {
		return 0, errors.New("nonce not initialized")
	}
	n := w.nextNonce
	w.nextNonce++
	metrics.SequenceAllocations.WithLabelValues(w.client.identity.Name()).Inc()
	return n, nil
}

// PlanSweep returns the whole token balance, or for the native coin the
// balance minus gas price times the buffered gas limit of a small proxy
// transfer. The proxy gas limit is pinned on the plan so the reserve covers
// the actual transaction.
func (w *evmWallet) PlanSweep(ctx context.Context, token entity.Token, to string) (entity.SendPlan, error) {
	if !token.IsNative() {
		bal, err := w.client.tokenBalance(ctx, common.HexToAddress(token.ContractAddress), w.address)
		if err != nil {
			return entity.SendPlan{}, err
		}
		return entity.SendPlan{Amount: bal}, nil
	}

	toAddr, err := parseAddress(to)
	if err != nil {
		return entity.SendPlan{}, err
	}
	bal, err := w.client.nativeBalance(ctx, w.address)
	if err != nil {
		return entity.SendPlan{}, err
	}
	proxy, err := utils.ToBaseUnits(w.client.cfg.Fees.MergeReserveProxyAmount, w.client.nativeDecimals())
	if err != nil {
		return entity.SendPlan{}, err
	}
	quote := w.client.EstimateFee(ctx, w.address, toAddr, proxy, token)
	return entity.SendPlan{
		Amount:   new(big.Int).Sub(bal, quote.Cost()),
		GasLimit: quote.GasLimit,
	}, nil
}

// Transfer signs and submits one order with the nonce it carries.
func (w *evmWallet) Transfer(ctx context.Context, order entity.TransferOrder) (entity.TransferReceipt, error) {
	to, err := parseAddress(order.To)
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("invalid recipient", err)
	}
	if !order.Token.IsNative() && !common.IsHexAddress(order.Token.ContractAddress) {
		return entity.TransferReceipt{}, entity.Rejected("invalid token contract", fmt.Errorf("%q", order.Token.ContractAddress))
	}
	if order.Amount == nil || order.Amount.Sign() <= 0 {
		return entity.TransferReceipt{}, entity.Rejected("amount must be positive", nil)
	}

	gasLimit := order.GasLimit
	gasPrice := w.client.GasPrice()
	if gasLimit == 0 {
		quote := w.client.EstimateFee(ctx, w.address, to, order.Amount, order.Token)
		gasLimit, gasPrice = quote.GasLimit, quote.GasPrice
	}
	return w.client.SignAndSubmit(ctx, w.key, to, order.Amount, order.Token, order.Sequence, gasLimit, gasPrice)
}
