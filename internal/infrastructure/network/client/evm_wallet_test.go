package client

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/domain/entity"
)

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestOpenWalletRejectsMnemonic(t *testing.T) {
	t.Parallel()

	c := newTestEVMClient(t, newFakeChain(56))
	_, err := c.OpenWallet(context.Background(), entity.Wallet{Mnemonic: "test test test"})
	assert.Error(t, err)

	_, err = c.OpenWallet(context.Background(), entity.Wallet{PrivateKey: "zz"})
	assert.Error(t, err)
}

func TestNextSequenceIsLocalAndConsecutive(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	chain.nonce = 7
	c := newTestEVMClient(t, chain)

	h, err := c.OpenWallet(context.Background(), entity.Wallet{PrivateKey: testKeyHex})
	require.NoError(t, err)
	_, err = h.NextSequence()
	assert.Error(t, err)

	require.NoError(t, h.InitSequence(context.Background()))
	chain.nonce = 100
	for want := uint64(7); want < 10; want++ {
		got, err := h.NextSequence()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, testWalletAddress(t).Hex(), h.Address())
}

func TestTransferNativeSignsForChain(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	chain.nonce = 3
	c := newTestEVMClient(t, chain)
	w := openEVMWallet(t, c)

	seq, err := w.NextSequence()
	require.NoError(t, err)
	receipt, err := w.Transfer(context.Background(), entity.TransferOrder{
		To: recipient.Hex(), Amount: big.NewInt(12345), Sequence: seq,
	})
	require.NoError(t, err)

	sent := chain.sentTxs()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, receipt.TxHash, tx.Hash().Hex())
	assert.Equal(t, uint64(21_000), receipt.GasUsed)
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, recipient, *tx.To())
	assert.Equal(t, big.NewInt(12345), tx.Value())
	assert.Equal(t, uint64(25_200), tx.Gas())
	assert.Equal(t, big.NewInt(1_100_000_000), tx.GasPrice())
	assert.Equal(t, big.NewInt(56), tx.ChainId())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(56)), tx)
	require.NoError(t, err)
	assert.Equal(t, testWalletAddress(t), from)
}

func TestTransferTokenCallsContract(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	chain.estimateErr = errors.New("no estimate")
	c := newTestEVMClient(t, chain)
	w := openEVMWallet(t, c)

	seq, _ := w.NextSequence()
	_, err := w.Transfer(context.Background(), entity.TransferOrder{
		To: recipient.Hex(), Token: entity.Token{ContractAddress: testToken.Hex()}, Amount: big.NewInt(5_000_000), Sequence: seq,
	})
	require.NoError(t, err)

	tx := chain.sentTxs()[0]
	assert.Equal(t, testToken, *tx.To())
	assert.Equal(t, 0, tx.Value().Sign())
	assert.Equal(t, uint64(72_000), tx.Gas())

	method := erc20().Methods["transfer"]
	require.True(t, bytes.HasPrefix(tx.Data(), method.ID))
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, recipient, args[0])
	assert.Equal(t, big.NewInt(5_000_000), args[1])
}

func TestTransferFailureStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(*fakeChain)
		order  func(seq uint64) entity.TransferOrder
		stage  entity.TransferStage
		hashed bool
	}{
		{
			name:  "bad recipient",
			setup: func(*fakeChain) {},
			order: func(seq uint64) entity.TransferOrder {
				return entity.TransferOrder{To: "nope", Amount: big.NewInt(1), Sequence: seq}
			},
			stage: entity.StageRejected,
		},
		{
			name:  "zero amount",
			setup: func(*fakeChain) {},
			order: func(seq uint64) entity.TransferOrder {
				return entity.TransferOrder{To: recipient.Hex(), Amount: big.NewInt(0), Sequence: seq}
			},
			stage: entity.StageRejected,
		},
		{
			name:  "node refuses",
			setup: func(f *fakeChain) { f.sendErr = errors.New("nonce too low") },
			order: func(seq uint64) entity.TransferOrder {
				return entity.TransferOrder{To: recipient.Hex(), Amount: big.NewInt(1), Sequence: seq}
			},
			stage: entity.StageRejected,
		},
		{
			name:  "reverted",
			setup: func(f *fakeChain) { f.revert = true },
			order: func(seq uint64) entity.TransferOrder {
				return entity.TransferOrder{To: recipient.Hex(), Amount: big.NewInt(1), Sequence: seq}
			},
			stage:  entity.StageReverted,
			hashed: true,
		},
		{
			name:  "never mined",
			setup: func(f *fakeChain) { f.withholdReceipts = true },
			order: func(seq uint64) entity.TransferOrder {
				return entity.TransferOrder{To: recipient.Hex(), Amount: big.NewInt(1), Sequence: seq}
			},
			stage:  entity.StageTimeout,
			hashed: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain := newFakeChain(56)
			tt.setup(chain)
			w := openEVMWallet(t, newTestEVMClient(t, chain))
			seq, _ := w.NextSequence()

			receipt, err := w.Transfer(context.Background(), tt.order(seq))
			var failed *entity.TransferFailedError
			require.True(t, errors.As(err, &failed), "got %v", err)
			assert.Equal(t, tt.stage, failed.Stage)
			if tt.hashed {
				sent := chain.sentTxs()
				require.Len(t, sent, 1)
				assert.Equal(t, sent[0].Hash().Hex(), failed.TxHash)
				assert.Equal(t, sent[0].Hash().Hex(), receipt.TxHash)
			} else {
				assert.Empty(t, failed.TxHash)
				assert.Empty(t, receipt.TxHash)
			}
		})
	}
}

func TestPlanSweepNativeReservesPinnedGas(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	owner := testWalletAddress(t)
	chain.balances[owner] = big.NewInt(1_000_000_000_000_000_000)
	c := newTestEVMClient(t, chain)
	w := openEVMWallet(t, c)

	plan, err := w.PlanSweep(context.Background(), entity.Token{}, recipient.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint64(25_200), plan.GasLimit)
	assert.False(t, plan.SweepAll)

	fee := new(big.Int).Mul(big.NewInt(25_200), big.NewInt(1_100_000_000))
	assert.Equal(t, new(big.Int).Sub(big.NewInt(1_000_000_000_000_000_000), fee), plan.Amount)

	seq, _ := w.NextSequence()
	_, err = w.Transfer(context.Background(), entity.TransferOrder{
		To: recipient.Hex(), Amount: plan.Amount, Sequence: seq, GasLimit: plan.GasLimit,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.GasLimit, chain.sentTxs()[0].Gas())
}

func TestPlanSweepTokenUsesWholeBalance(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	chain.tokenBal = big.NewInt(777)
	w := openEVMWallet(t, newTestEVMClient(t, chain))

	plan, err := w.PlanSweep(context.Background(), entity.Token{ContractAddress: testToken.Hex()}, recipient.Hex())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(777), plan.Amount)
	assert.Zero(t, plan.GasLimit)
}
