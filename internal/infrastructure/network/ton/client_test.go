package ton

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/domain/entity"
)

func TestPrepareIdentity(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, newFakeLite(&fakeSigner{addr: testAddress(1)}), nil)
	id := c.Identity()
	require.True(t, id.Known())
	assert.Equal(t, "ton", id.Name())
	assert.Equal(t, "TON", id.NativeSymbol)
	assert.Equal(t, uint8(9), id.Decimals)
	assert.True(t, id.Mainnet)
}

func TestTokenMetadataFallsBackToDefaultDecimals(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, newFakeLite(&fakeSigner{addr: testAddress(1)}), fakeMetadata{err: errLookup})
	meta, err := c.TokenMetadata(context.Background(), testAddress(7).String())
	require.NoError(t, err)
	assert.Equal(t, uint8(9), meta.Decimals)
}

func TestTokenMetadataFromService(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, newFakeLite(&fakeSigner{addr: testAddress(1)}),
		fakeMetadata{meta: entity.TokenMetadata{Name: "Tether USD", Symbol: "USDT", Decimals: 6}})
	meta, err := c.TokenMetadata(context.Background(), testAddress(7).String())
	require.NoError(t, err)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, "USDT", meta.Symbol)

	bal, err := c.TokenBalance(context.Background(), testAddress(7).String(), testAddress(1).String())
	require.NoError(t, err)
	assert.Equal(t, "0", bal)
}

func TestBalancesNativeAndInvalidAddress(t *testing.T) {
	t.Parallel()

	api := newFakeLite(&fakeSigner{addr: testAddress(1)})
	api.balance = big.NewInt(1_500_000_000)
	c := newTestClient(t, api, nil)

	results, err := c.Balances(context.Background(), entity.Token{ID: "ton"}, []string{testAddress(1).String(), "not-an-address"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1.5", results[0].FormattedBalance)
	assert.Equal(t, "TON", results[0].TokenSymbol)
	assert.NotEmpty(t, results[1].Error)
}

func TestOpenWalletRequiresSecret(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, newFakeLite(&fakeSigner{addr: testAddress(1)}), nil)
	_, err := c.OpenWallet(context.Background(), entity.Wallet{Address: "x"})
	assert.Error(t, err)
}

func TestSigningKeyAndVersion(t *testing.T) {
	t.Parallel()

	key, err := signingKey(entity.Wallet{PrivateKey: "0x" + "11111111111111111111111111111111" + "11111111111111111111111111111111"})
	require.NoError(t, err)
	assert.Len(t, key, 64)

	_, err = signingKey(entity.Wallet{PrivateKey: "abcd"})
	assert.Error(t, err)

	_, err = walletVersion(3, true)
	assert.Error(t, err)
	_, err = walletVersion(0, true)
	assert.NoError(t, err)
	_, err = walletVersion(5, false)
	assert.NoError(t, err)
}

func TestParseAddressForms(t *testing.T) {
	t.Parallel()

	friendly := testAddress(3)
	a, err := parseAddress(friendly.String())
	require.NoError(t, err)
	assert.Equal(t, friendly.Data(), a.Data())

	raw, err := parseAddress("0:" + "0303030303030303030303030303030303030303030303030303030303030303")
	require.NoError(t, err)
	assert.Equal(t, friendly.Data(), raw.Data())

	_, err = parseAddress("")
	assert.Error(t, err)
}
