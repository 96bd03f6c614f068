// Package ton implements the chain adapter for The Open Network on top of a
// lite-server connection pool.
package ton

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/patrickmn/go-cache"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	"parcel/internal/pkg/utils"
)

const nativeDecimals = 9

// Client implements port.ChainAdapter for TON.
type Client struct {
	api       liteAPI
	netDef    entity.NetworkDefinition
	selection entity.NetworkSelection
	cfg       *configloader.Config
	logger    port.Logger
	metadata  port.TokenMetadataService
	cache     *cache.Cache

	identity entity.NetworkIdentity

	deployAmount   *big.Int
	forwardAmount  *big.Int
	attachedAmount *big.Int
	sweepReserve   *big.Int
}

// NewClient connects to the lite servers listed in the global config of the
// selected environment. A custom RPC URL replaces that config URL.
func NewClient(
	ctx context.Context,
	netDef entity.NetworkDefinition,
	selection entity.NetworkSelection,
	cfg *configloader.Config,
	metadata port.TokenMetadataService,
	metadataCache *cache.Cache,
	logger port.Logger,
) (*Client, error) {
	configURL := selection.RPCURL
	if configURL == "" {
		configURL = netDef.RPCURL(selection.Mainnet)
	}

	dialTimeout := time.Duration(cfg.RPCClient.DialTimeoutSeconds) * time.Second
	var backend *liteBackend
	err := retry.Do(
		func() error {
			dctx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			b, err := dialLiteBackend(dctx, configURL)
			if err != nil {
				logger.Warn("TON lite servers unavailable", "config", configURL, "error", err)
				return err
			}
			backend = b
			return nil
		},
		retry.Attempts(cfg.RPCClient.DialAttempts),
		retry.Delay(time.Duration(cfg.RPCClient.DialRetryDelayMillis)*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TON lite servers from %s: %w", configURL, err)
	}

	selection.RPCURL = configURL
	c, err := newClient(backend, netDef, selection, cfg, metadata, metadataCache, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

func newClient(
	api liteAPI,
	netDef entity.NetworkDefinition,
	selection entity.NetworkSelection,
	cfg *configloader.Config,
	metadata port.TokenMetadataService,
	metadataCache *cache.Cache,
	logger port.Logger,
) (*Client, error) {
	c := &Client{
		api:       api,
		netDef:    netDef,
		selection: selection,
		cfg:       cfg,
		logger:    logger,
		metadata:  metadata,
		cache:     metadataCache,
	}
	if c.cache == nil {
		c.cache = cache.New(time.Duration(cfg.Cache.TTLMinutes)*time.Minute, time.Duration(cfg.Cache.CleanupIntervalMinutes)*time.Minute)
	}

	amounts := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"ton.deployAmount", cfg.TON.DeployAmount, &c.deployAmount},
		{"ton.jettonForwardAmount", cfg.TON.JettonForwardAmount, &c.forwardAmount},
		{"ton.jettonAttachedAmount", cfg.TON.JettonAttachedAmount, &c.attachedAmount},
		{"ton.sweepFeeReserve", cfg.TON.SweepFeeReserve, &c.sweepReserve},
	}
	for _, a := range amounts {
		v, err := utils.ToBaseUnits(a.value, nativeDecimals)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", a.name, err)
		}
		*a.dst = v
	}
	return c, nil
}

// Prepare checks that a lite server answers and fixes the identity of the call.
func (c *Client) Prepare(ctx context.Context) (entity.NetworkIdentity, error) {
	cctx, cancel := context.WithTimeout(ctx, c.callTimeout())
	defer cancel()
	if err := c.api.Ping(cctx); err != nil {
		return entity.NetworkIdentity{}, fmt.Errorf("TON lite server unavailable: %w", err)
	}

	name := c.netDef.Identifier
	if name == "" {
		name = "ton"
	}
	symbol := c.netDef.NativeSymbol
	if symbol == "" {
		symbol = "TON"
	}
	c.identity = entity.NetworkIdentity{
		Network:      &name,
		Mainnet:      c.selection.Mainnet,
		NativeSymbol: symbol,
		Decimals:     nativeDecimals,
		RPCURL:       c.selection.RPCURL,
	}
	return c.identity, nil
}

// Identity returns what Prepare resolved.
func (c *Client) Identity() entity.NetworkIdentity {
	return c.identity
}

func (c *Client) callTimeout() time.Duration {
	return time.Duration(c.cfg.RPCClient.CallTimeoutSeconds) * time.Second
}

func (c *Client) accountState(ctx context.Context, addr string) (accountState, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return accountState{}, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.callTimeout())
	defer cancel()
	return c.api.AccountState(cctx, a)
}

func (c *Client) jettonBalance(ctx context.Context, master, owner string) (*big.Int, error) {
	m, err := parseAddress(master)
	if err != nil {
		return nil, err
	}
	o, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, c.callTimeout())
	defer cancel()
	jw, err := c.api.JettonWallet(cctx, m, o)
	if err != nil {
		return nil, err
	}
	return jw.Balance, nil
}

// NativeBalance returns the TON balance of address.
func (c *Client) NativeBalance(ctx context.Context, address string) (string, error) {
	st, err := c.accountState(ctx, address)
	if err != nil {
		return "", err
	}
	return utils.FormatBaseUnits(st.Balance, nativeDecimals), nil
}

// TokenBalance returns the jetton balance of address.
func (c *Client) TokenBalance(ctx context.Context, tokenAddress string, address string) (string, error) {
	meta, err := c.TokenMetadata(ctx, tokenAddress)
	if err != nil {
		return "", err
	}
	bal, err := c.jettonBalance(ctx, tokenAddress, address)
	if err != nil {
		return "", err
	}
	return utils.FormatBaseUnits(bal, meta.Decimals), nil
}

// TokenMetadata asks the metadata service for a jetton's name, symbol and
// decimals. A failed lookup degrades to the default decimals.
func (c *Client) TokenMetadata(ctx context.Context, tokenAddress string) (entity.TokenMetadata, error) {
	master, err := parseAddress(tokenAddress)
	if err != nil {
		return entity.TokenMetadata{}, err
	}
	cacheKey := "ton:" + master.String()
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(entity.TokenMetadata), nil
	}

	fallback := entity.TokenMetadata{Address: tokenAddress, Decimals: c.cfg.TON.DefaultJettonDecimals}
	if c.metadata == nil {
		return fallback, nil
	}
	meta, err := c.metadata.JettonMetadata(ctx, tokenAddress, c.selection.Mainnet, c.selection.APIKey)
	if err != nil {
		c.logger.Warn("Jetton metadata lookup failed, using default decimals",
			"jetton", tokenAddress, "decimals", fallback.Decimals, "error", err)
		return fallback, nil
	}
	if meta.Address == "" {
		meta.Address = tokenAddress
	}
	c.cache.Set(cacheKey, meta, cache.DefaultExpiration)
	return meta, nil
}

// Balances queries every address one by one. Lite servers have no batch call.
func (c *Client) Balances(ctx context.Context, token entity.Token, addresses []string) ([]entity.BalanceResult, error) {
	dec := uint8(nativeDecimals)
	symbol := c.identity.NativeSymbol
	if symbol == "" {
		symbol = "TON"
	}
	if !token.IsNative() {
		if token.Decimals != nil {
			dec = *token.Decimals
		} else {
			meta, err := c.TokenMetadata(ctx, token.ContractAddress)
			if err != nil {
				return nil, err
			}
			dec = meta.Decimals
		}
		symbol = token.Label()
	}

	results := make([]entity.BalanceResult, len(addresses))
	for i, a := range addresses {
		results[i] = entity.BalanceResult{Address: a, TokenSymbol: symbol, TokenAddress: token.ContractAddress, Decimals: dec}

		var (
			bal *big.Int
			err error
		)
		if token.IsNative() {
			var st accountState
			st, err = c.accountState(ctx, a)
			bal = st.Balance
		} else {
			bal, err = c.jettonBalance(ctx, token.ContractAddress, a)
		}
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Amount = bal
		results[i].FormattedBalance = utils.FormatBaseUnits(bal, dec)
	}
	return results, nil
}

// OpenWallet derives the wallet contract of credential.
func (c *Client) OpenWallet(_ context.Context, credential entity.Wallet) (port.WalletHandle, error) {
	if !credential.HasMnemonic() && strings.TrimSpace(credential.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet %s has neither mnemonic nor private key", credential.Address)
	}
	signer, err := c.api.NewSigner(credential, c.selection.Mainnet)
	if err != nil {
		return nil, err
	}
	return &Wallet{client: c, signer: signer, address: signer.Address()}, nil
}

// Close stops the connection pool.
func (c *Client) Close() {
	c.api.Close()
}
