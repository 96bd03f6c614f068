package configloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
parcel:
  network: bsc
  mode: batch
  maxConcurrentTransfers: 4
confirmation:
  timeoutSeconds: 90
networks:
  bsc:
    testnetRpcUrl: https://bsc-testnet.example.org
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bsc", cfg.Parcel.Network)
	assert.Equal(t, "batch", cfg.Parcel.Mode)
	assert.Equal(t, 4, cfg.Parcel.MaxConcurrentTransfers)
	assert.Equal(t, 90*time.Second, cfg.Confirmation.Timeout())
	assert.Equal(t, 2*time.Second, cfg.Confirmation.PollInterval())
	assert.Equal(t, uint64(120), cfg.Fees.GasLimitBufferPercent)
	assert.Equal(t, uint64(21_000), cfg.Fees.FallbackNativeGasLimit)
	assert.Equal(t, "0.13", cfg.Fees.FallbackGasPriceGwei)
	assert.Equal(t, "0.05", cfg.TON.JettonAttachedAmount)
	assert.Equal(t, uint8(9), cfg.TON.DefaultJettonDecimals)
	assert.Equal(t, "https://bsc-testnet.example.org", cfg.Networks["bsc"].TestnetRPCURL)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "single", cfg.Parcel.Mode)
	assert.Equal(t, 60*time.Second, cfg.Confirmation.Timeout())
}
