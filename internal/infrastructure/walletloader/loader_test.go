package walletloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWallets(t *testing.T) {
	t.Parallel()

	in := `
# evm key
0x71C7656EC7ab88b098defB751B7401B5f6d8976F;0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318

UQB...abc; word1  word2 word3 ; 5
`
	wallets, err := ParseWallets(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	assert.Equal(t, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", wallets[0].Address)
	assert.NotEmpty(t, wallets[0].PrivateKey)
	assert.False(t, wallets[0].HasMnemonic())

	assert.Equal(t, "word1 word2 word3", wallets[1].Mnemonic)
	assert.Equal(t, 5, wallets[1].Version)
	assert.Empty(t, wallets[1].PrivateKey)
}

func TestParseWalletsErrors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"0xabc", "0xabc;", "a;b;c;d", "a;key;v4"} {
		_, err := ParseWallets(strings.NewReader(in))
		require.Error(t, err, in)
	}
}

func TestFileLoaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	walletsPath := filepath.Join(dir, "wallets.txt")
	require.NoError(t, os.WriteFile(walletsPath, []byte("0x01;deadbeef\n"), 0o600))
	recipientsPath := filepath.Join(dir, "recipients.txt")
	require.NoError(t, os.WriteFile(recipientsPath, []byte("0x02\n\n# skip\n0x03\n"), 0o600))

	var logged int
	wallets, err := NewWalletFileLoader(walletsPath, func(string, ...any) { logged++ }).GetWallets()
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, 1, logged)

	addrs, err := NewAddressFileLoader(recipientsPath).GetAddresses()
	require.NoError(t, err)
	assert.Equal(t, []string{"0x02", "0x03"}, addrs)

	_, err = NewWalletFileLoader(filepath.Join(dir, "missing"), nil).GetWallets()
	require.Error(t, err)
}
