package client

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/domain/entity"
)

// fakeBatch answers eth_getBalance with 5 wei and eth_call with a balanceOf of 9.
type fakeBatch struct {
	calls int
	fail  error
}

func (f *fakeBatch) BatchCallContext(_ context.Context, b []rpc.BatchElem) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	for i := range b {
		switch b[i].Method {
		case "eth_getBalance":
			*(b[i].Result.(**hexutil.Big)) = (*hexutil.Big)(big.NewInt(5))
		case "eth_call":
			out, err := erc20().Methods["balanceOf"].Outputs.Pack(big.NewInt(9))
			if err != nil {
				return err
			}
			*(b[i].Result.(*hexutil.Bytes)) = out
		}
	}
	return nil
}

func TestRateLimitedClientPassesThrough(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(97)
	limited := newRateLimitedClient(chain, &fakeBatch{}, 1000, 10, "bsc")

	id, err := limited.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(97), id.Int64())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.BalanceAt(ctx, common.Address{}, nil)
	assert.Error(t, err)
}

func TestBalancesUseRPCBatches(t *testing.T) {
	t.Parallel()

	c := newTestEVMClient(t, newFakeChain(56))
	batch := &fakeBatch{}
	c.batch = batch
	owner := testWalletAddress(t)

	addresses := make([]string, balanceBatchSize+1)
	for i := range addresses {
		addresses[i] = owner.Hex()
	}
	addresses[3] = "bad"

	results, err := c.Balances(context.Background(), entity.Token{}, addresses)
	require.NoError(t, err)
	require.Len(t, results, len(addresses))
	assert.Equal(t, 2, batch.calls)
	assert.Equal(t, big.NewInt(5), results[0].Amount)
	assert.NotEmpty(t, results[3].Error)
	assert.Empty(t, results[balanceBatchSize].Error)

	tokenResults, err := c.Balances(context.Background(), entity.Token{ContractAddress: testToken.Hex()}, []string{owner.Hex()})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9), tokenResults[0].Amount)
	assert.Equal(t, "0.000009", tokenResults[0].FormattedBalance)

	batch.fail = errors.New("batch too large")
	_, err = c.Balances(context.Background(), entity.Token{}, []string{owner.Hex()})
	assert.Error(t, err)
}
