package client

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	"parcel/internal/pkg/logger"
)

func TestPrepareResolvesIdentityAndRaisesGasPrice(t *testing.T) {
	t.Parallel()

	c := newTestEVMClient(t, newFakeChain(56))
	id := c.Identity()
	require.True(t, id.Known())
	assert.Equal(t, "bsc", id.Name())
	assert.True(t, id.Mainnet)
	assert.Equal(t, "BNB", id.NativeSymbol)
	assert.Equal(t, big.NewInt(1_100_000_000), c.GasPrice())
}

func TestPrepareUnknownChainID(t *testing.T) {
	t.Parallel()

	c := newTestEVMClient(t, newFakeChain(1337))
	id := c.Identity()
	assert.False(t, id.Known())
	assert.Equal(t, entity.UnknownNativeSymbol, id.NativeSymbol)
	assert.Equal(t, uint64(1337), id.ChainID)
}

func TestGasPriceFallback(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	chain.gasPriceErr = errors.New("method not found")
	c := newTestEVMClient(t, chain)
	assert.Equal(t, big.NewInt(130_000_000), c.GasPrice())
}

func TestEstimateFeeFallbackLimits(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	chain.estimateErr = errors.New("execution reverted")
	c := newTestEVMClient(t, chain)
	from, to := testWalletAddress(t), common.HexToAddress("0x0000000000000000000000000000000000000001")

	native := c.EstimateFee(context.Background(), from, to, big.NewInt(1), entity.Token{})
	assert.Equal(t, uint64(25_200), native.GasLimit)

	token := c.EstimateFee(context.Background(), from, to, big.NewInt(1), entity.Token{ContractAddress: testToken.Hex()})
	assert.Equal(t, uint64(72_000), token.GasLimit)

	chain.estimateErr = nil
	chain.estimate = 50_000
	estimated := c.EstimateFee(context.Background(), from, to, big.NewInt(1), entity.Token{})
	assert.Equal(t, uint64(60_000), estimated.GasLimit)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(60_000), big.NewInt(1_100_000_000)), estimated.Cost())
}

func TestTokenMetadataIsCached(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	c := newTestEVMClient(t, chain)
	for i := 0; i < 3; i++ {
		meta, err := c.TokenMetadata(context.Background(), testToken.Hex())
		require.NoError(t, err)
		assert.Equal(t, uint8(6), meta.Decimals)
		assert.Equal(t, "USDT", meta.Symbol)
		assert.Equal(t, "Tether USD", meta.Name)
	}
	assert.Equal(t, 1, chain.metadataCalls)

	_, err := c.TokenMetadata(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestBalancesSequential(t *testing.T) {
	t.Parallel()

	chain := newFakeChain(56)
	owner := testWalletAddress(t)
	chain.balances[owner] = big.NewInt(1_500_000_000_000_000_000)
	chain.tokenBal = big.NewInt(2_500_000)
	c := newTestEVMClient(t, chain)

	results, err := c.Balances(context.Background(), entity.Token{}, []string{owner.Hex(), "bogus"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1.5", results[0].FormattedBalance)
	assert.Equal(t, "BNB", results[0].TokenSymbol)
	assert.NotEmpty(t, results[1].Error)

	tokenResults, err := c.Balances(context.Background(), entity.Token{ContractAddress: testToken.Hex(), Symbol: "USDT"}, []string{owner.Hex()})
	require.NoError(t, err)
	assert.Equal(t, "2.5", tokenResults[0].FormattedBalance)
	assert.Equal(t, uint8(6), tokenResults[0].Decimals)

	formatted, err := c.TokenBalance(context.Background(), testToken.Hex(), owner.Hex())
	require.NoError(t, err)
	assert.Equal(t, "2.5", formatted)
}

func TestSignAndSubmitRequiresPrepare(t *testing.T) {
	t.Parallel()

	c, err := NewEVMClientFromBackend(newFakeChain(56), entity.NetworkDefinition{Identifier: "bsc"}, "", nil, testConfig(), nil, logger.Nop{})
	require.NoError(t, err)
	_, err = c.SignAndSubmit(context.Background(), nil, common.Address{}, big.NewInt(1), entity.Token{}, 0, 21_000, big.NewInt(1))

	var failed *entity.TransferFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, entity.StageRejected, failed.Stage)
}

func TestAdapterProviderRejectsUnknownFamily(t *testing.T) {
	t.Parallel()

	p := NewAdapterProvider(configloader.Default(), nil, nil, logger.Nop{})
	_, err := p.Open(context.Background(), entity.NetworkDefinition{Identifier: "solana", Family: "svm"}, entity.NetworkSelection{})
	assert.ErrorIs(t, err, entity.ErrUnsupportedNetwork)
}

