package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const usdtMaster = "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs"

func TestJettonMetadata(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mintable":true,"total_supply":"100","metadata":{"address":"0:b113","name":"Tether USD","symbol":"USDT","decimals":"6"},"verification":"whitelist","holders_count":10}`))
	}))
	defer srv.Close()

	c := NewTonAPIClient(srv.URL+"/v2", "http://unused.invalid", time.Second, zap.NewNop())
	meta, err := c.JettonMetadata(context.Background(), usdtMaster, true, "secret")
	require.NoError(t, err)
	assert.Equal(t, "/v2/jettons/"+usdtMaster, gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, "USDT", meta.Symbol)
	assert.Equal(t, "Tether USD", meta.Name)
}

func TestJettonMetadataNumericDecimalsOnTestnet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"metadata":{"name":"Test","symbol":"TST","decimals":9}}`))
	}))
	defer srv.Close()

	c := NewTonAPIClient("http://unused.invalid", srv.URL, time.Second, zap.NewNop())
	meta, err := c.JettonMetadata(context.Background(), usdtMaster, false, "")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), meta.Decimals)
}

func TestJettonMetadataErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"error":"entity not found"}`},
		{name: "missing decimals", status: http.StatusOK, body: `{"metadata":{"name":"x"}}`},
		{name: "malformed", status: http.StatusOK, body: `{"metadata":`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewTonAPIClient(srv.URL, srv.URL, time.Second, zap.NewNop())
			_, err := c.JettonMetadata(context.Background(), usdtMaster, true, "")
			assert.Error(t, err)
		})
	}
}
