package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFlagsResolve(t *testing.T) {
	tests := []struct {
		name     string
		flags    tokenFlags
		id       string
		contract string
		decimals *uint8
	}{
		{name: "native", flags: tokenFlags{decimals: -1}},
		{name: "registry id", flags: tokenFlags{token: "USDT", decimals: -1}, id: "usdt"},
		{name: "evm contract", flags: tokenFlags{token: "0x55d398326f99059fF775485246999027B3197955", decimals: -1}, contract: "0x55d398326f99059fF775485246999027B3197955"},
		{name: "jetton master", flags: tokenFlags{token: "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs", decimals: 6}, contract: "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs", decimals: ptr(6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := tt.flags.resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.id, tok.ID)
			assert.Equal(t, tt.contract, tok.ContractAddress)
			assert.Equal(t, tt.decimals, tok.Decimals)
		})
	}

	_, err := (&tokenFlags{decimals: 300}).resolve()
	assert.Error(t, err)
}

func ptr(v uint8) *uint8 { return &v }

func TestNetworksCommand(t *testing.T) {
	root := (&app{}).rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"networks", "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"bsc"`)
	assert.Contains(t, out.String(), `"ton"`)
}

func TestSplitRequiresCredential(t *testing.T) {
	root := (&app{}).rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"split", "--amount", "1", "--recipient", "0x1", "--log-level", "error"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--wallet-file")
}
