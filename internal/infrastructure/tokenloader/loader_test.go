package tokenloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel/internal/domain/entity"
)

func TestGetTokensByNetwork(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bsc.json"), []byte(`[
		{"id":"cake","symbol":"CAKE","decimals":18,"address":"0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"},
		{"symbol":"NOID","address":"0x01"}
	]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solana.json"), []byte(`[{"id":"sol"}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ton.json"), []byte(`not json`), 0o600))

	defs := []entity.NetworkDefinition{
		{Identifier: "bsc", Family: entity.FamilyEVM, Decimals: 18},
		{Identifier: "ton", Family: entity.FamilyTON, Decimals: 9},
	}
	got, err := NewTokenLoader(dir, nil, nil).GetTokensByNetwork(defs)
	require.NoError(t, err)

	require.Len(t, got["bsc"], 1)
	assert.Equal(t, "cake", got["bsc"][0].ID)
	assert.NotContains(t, got, "solana")
	assert.NotContains(t, got, "ton")
}

func TestMissingDirectory(t *testing.T) {
	t.Parallel()

	got, err := NewTokenLoader(filepath.Join(t.TempDir(), "nope"), nil, nil).GetTokensByNetwork(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
