package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/network/confirm"
)

// SignAndSubmit builds a legacy transaction for a native or ERC-20 transfer,
// signs it for the connected chain, broadcasts it and waits for one
// confirmation. Transfers are never retried.
func (c *EVMClient) SignAndSubmit(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	to common.Address,
	amount *big.Int,
	token entity.Token,
	nonce uint64,
	gasLimit uint64,
	gasPrice *big.Int,
) (entity.TransferReceipt, error) {
	if c.chainID == nil {
		return entity.TransferReceipt{}, entity.Rejected("fee environment not prepared", nil)
	}

	txData := &types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      gasLimit,
		GasPrice: gasPrice,
	}
	if !token.IsNative() {
		data, err := erc20().Pack("transfer", to, amount)
		if err != nil {
			return entity.TransferReceipt{}, entity.Rejected("encode token transfer", err)
		}
		tokenAddr := common.HexToAddress(token.ContractAddress)
		txData.To = &tokenAddr
		txData.Value = big.NewInt(0)
		txData.Data = data
	}

	signed, err := types.SignTx(types.NewTx(txData), types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("sign transaction", err)
	}
	txHash := signed.Hash()

	sctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	err = c.backend.SendTransaction(sctx, signed)
	cancel()
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("broadcast", err)
	}
	c.logger.Debug("Transaction broadcast", "network", c.identity.Name(), "tx", txHash.Hex(), "nonce", nonce)

	var receipt *types.Receipt
	status, err := confirm.Poll(ctx, c.cfg.Confirmation.PollInterval(), c.cfg.Confirmation.Timeout(), func(ctx context.Context) (confirm.Status, error) {
		rctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
		defer cancel()
		r, err := c.backend.TransactionReceipt(rctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return confirm.Pending, nil
		}
		if err != nil {
			return confirm.Pending, err
		}
		receipt = r
		if r.Status == types.ReceiptStatusFailed {
			return confirm.FailedOnChain, nil
		}
		return confirm.Confirmed, nil
	})

	switch status {
	case confirm.Confirmed:
		return entity.TransferReceipt{TxHash: txHash.Hex(), GasUsed: receipt.GasUsed, GasPrice: gasPrice}, nil
	case confirm.FailedOnChain:
		return entity.TransferReceipt{TxHash: txHash.Hex()}, entity.Reverted(txHash.Hex(), fmt.Sprintf("receipt status 0 in block %v", receipt.BlockNumber))
	default:
		return entity.TransferReceipt{TxHash: txHash.Hex()}, entity.TimedOut(txHash.Hex(), err)
	}
}
