package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/patrickmn/go-cache"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	"parcel/internal/pkg/utils"
)

// balanceBatchSize caps the number of elements in one JSON-RPC batch.
const balanceBatchSize = 100

// Minimal ERC20 ABI: transfer, balanceOf and the metadata getters.
const erc20ABI = `[
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func erc20() abi.ABI {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
	return parsedERC20ABI
}

// FeeQuote is the gas limit and price a transfer will be sent with.
type FeeQuote struct {
	GasLimit uint64
	GasPrice *big.Int
}

// Cost returns GasLimit * GasPrice.
func (q FeeQuote) Cost() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(q.GasLimit), q.GasPrice)
}

// EVMClient implements port.ChainAdapter for EVM-compatible chains.
type EVMClient struct {
	backend  OnchainClient
	batch    batchCaller
	closer   func()
	netDef   entity.NetworkDefinition
	rpcURL   string
	registry port.NetworkRegistry
	cfg      *configloader.Config
	logger   port.Logger
	metadata *cache.Cache

	rpcCallTimeout time.Duration
	fallbackPrice  *big.Int

	chainID  *big.Int
	identity entity.NetworkIdentity
	gasPrice *big.Int
}

// NewEVMClient dials the selected endpoint, trying the fallback URLs of the
// network when no custom endpoint is set, and verifies the connection by
// reading the chain id.
func NewEVMClient(
	ctx context.Context,
	netDef entity.NetworkDefinition,
	selection entity.NetworkSelection,
	registry port.NetworkRegistry,
	cfg *configloader.Config,
	metadata *cache.Cache,
	logger port.Logger,
) (*EVMClient, error) {
	rpcURLs := []string{selection.RPCURL}
	if selection.RPCURL == "" {
		rpcURLs = []string{netDef.RPCURL(selection.Mainnet)}
		if selection.Mainnet {
			rpcURLs = append(rpcURLs, netDef.FallbackRPCURLs...)
		}
	}

	dialTimeout := time.Duration(cfg.RPCClient.DialTimeoutSeconds) * time.Second
	var (
		dialed  *ethclient.Client
		chainID *big.Int
		usedURL string
	)
	err := retry.Do(
		func() error {
			var lastErr error
			for _, rpcURL := range rpcURLs {
				if rpcURL == "" {
					continue
				}
				dctx, cancel := context.WithTimeout(ctx, dialTimeout)
				c, err := ethclient.DialContext(dctx, rpcURL)
				if err == nil {
					chainID, err = c.ChainID(dctx)
					if err != nil {
						c.Close()
					}
				}
				cancel()
				if err == nil {
					dialed, usedURL = c, rpcURL
					return nil
				}
				lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
				logger.Warn("RPC endpoint unavailable", "network", netDef.Identifier, "rpc", rpcURL, "error", err)
			}
			if lastErr == nil {
				lastErr = errors.New("no RPC endpoint configured")
			}
			return lastErr
		},
		retry.Attempts(cfg.RPCClient.DialAttempts),
		retry.Delay(time.Duration(cfg.RPCClient.DialRetryDelayMillis)*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Identifier, err)
	}

	var (
		backend OnchainClient = dialed
		batch   batchCaller   = dialed.Client()
	)
	if cfg.RPCClient.RateLimit > 0 {
		limited := newRateLimitedClient(dialed, dialed.Client(), cfg.RPCClient.RateLimit, cfg.RPCClient.BurstLimit, netDef.Identifier)
		backend, batch = limited, limited
	}

	c, err := NewEVMClientFromBackend(backend, netDef, usedURL, registry, cfg, metadata, logger)
	if err != nil {
		dialed.Close()
		return nil, err
	}
	c.batch = batch
	c.closer = dialed.Close
	c.chainID = chainID
	return c, nil
}

// NewEVMClientFromBackend wraps an existing client, used for simulated chains.
func NewEVMClientFromBackend(
	backend OnchainClient,
	netDef entity.NetworkDefinition,
	rpcURL string,
	registry port.NetworkRegistry,
	cfg *configloader.Config,
	metadata *cache.Cache,
	logger port.Logger,
) (*EVMClient, error) {
	erc20()
	fallbackPrice, err := utils.ToBaseUnits(cfg.Fees.FallbackGasPriceGwei, 9)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback gas price: %w", err)
	}
	if metadata == nil {
		metadata = cache.New(time.Duration(cfg.Cache.TTLMinutes)*time.Minute, time.Duration(cfg.Cache.CleanupIntervalMinutes)*time.Minute)
	}
	return &EVMClient{
		backend:        backend,
		netDef:         netDef,
		rpcURL:         rpcURL,
		registry:       registry,
		cfg:            cfg,
		logger:         logger,
		metadata:       metadata,
		rpcCallTimeout: time.Duration(cfg.RPCClient.CallTimeoutSeconds) * time.Second,
		fallbackPrice:  fallbackPrice,
	}, nil
}

// Prepare resolves the chain id and snapshots the gas price for the call.
func (c *EVMClient) Prepare(ctx context.Context) (entity.NetworkIdentity, error) {
	if c.chainID == nil {
		cctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
		chainID, err := c.backend.ChainID(cctx)
		cancel()
		if err != nil {
			return entity.NetworkIdentity{}, fmt.Errorf("failed to read chain id: %w", err)
		}
		c.chainID = chainID
	}

	c.identity = c.registry.ResolveChainID(c.chainID.Uint64())
	c.identity.RPCURL = c.rpcURL
	if c.netDef.Identifier != "" && c.identity.Known() && *c.identity.Network != c.netDef.Identifier {
		c.logger.Warn("Endpoint chain id belongs to another network",
			"selected", c.netDef.Identifier, "detected", *c.identity.Network, "chain_id", c.chainID.Uint64())
	}

	c.gasPrice = c.optimizedGasPrice(ctx)
	c.logger.Debug("Fee environment ready", "network", c.identity.Name(), "chain_id", c.chainID.Uint64(), "gas_price", c.gasPrice.String())
	return c.identity, nil
}

// optimizedGasPrice returns the node suggestion raised by the configured
// multiplier, or the fallback price when the node cannot answer.
func (c *EVMClient) optimizedGasPrice(ctx context.Context) *big.Int {
	cctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	price, err := c.backend.SuggestGasPrice(cctx)
	if err != nil || price == nil || price.Sign() <= 0 {
		c.logger.Warn("Gas price unavailable, using fallback", "network", c.netDef.Identifier, "fallback_wei", c.fallbackPrice.String(), "error", err)
		return new(big.Int).Set(c.fallbackPrice)
	}
	return utils.PercentOf(price, c.cfg.Fees.GasPriceMultiplierPercent)
}

// Identity returns the network resolved by Prepare.
func (c *EVMClient) Identity() entity.NetworkIdentity {
	return c.identity
}

// GasPrice returns the gas price snapshot taken by Prepare.
func (c *EVMClient) GasPrice() *big.Int {
	if c.gasPrice == nil {
		return new(big.Int).Set(c.fallbackPrice)
	}
	return new(big.Int).Set(c.gasPrice)
}

func (c *EVMClient) nativeDecimals() uint8 {
	if c.identity.Decimals != 0 {
		return c.identity.Decimals
	}
	if c.netDef.Decimals != 0 {
		return c.netDef.Decimals
	}
	return 18
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid EVM address %q", s)
	}
	return common.HexToAddress(s), nil
}

func (c *EVMClient) nativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	cctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	bal, err := c.backend.BalanceAt(cctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance of %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

func (c *EVMClient) call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := erc20().Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	cctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	out, err := c.backend.CallContract(cctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call on %s failed: %w", method, contract.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s call on %s returned no data", method, contract.Hex())
	}
	values, err := erc20().Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result from %s: %w", method, contract.Hex(), err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s unpack returned no data", method)
	}
	return values, nil
}

func (c *EVMClient) tokenBalance(ctx context.Context, token common.Address, owner common.Address) (*big.Int, error) {
	values, err := c.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return bal, nil
}

// NativeBalance returns the native balance of address as a decimal string.
func (c *EVMClient) NativeBalance(ctx context.Context, address string) (string, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return "", err
	}
	bal, err := c.nativeBalance(ctx, addr)
	if err != nil {
		return "", err
	}
	return utils.FormatBaseUnits(bal, c.nativeDecimals()), nil
}

// TokenBalance returns the token balance of address using the token's on-chain decimals.
func (c *EVMClient) TokenBalance(ctx context.Context, tokenAddress string, address string) (string, error) {
	tokenAddr, err := parseAddress(tokenAddress)
	if err != nil {
		return "", err
	}
	owner, err := parseAddress(address)
	if err != nil {
		return "", err
	}
	meta, err := c.TokenMetadata(ctx, tokenAddress)
	if err != nil {
		return "", err
	}
	bal, err := c.tokenBalance(ctx, tokenAddr, owner)
	if err != nil {
		return "", err
	}
	return utils.FormatBaseUnits(bal, meta.Decimals), nil
}

// TokenMetadata reads name, symbol and decimals from the token contract.
// Name and symbol are optional in ERC-20 and are left empty when the call fails.
func (c *EVMClient) TokenMetadata(ctx context.Context, tokenAddress string) (entity.TokenMetadata, error) {
	tokenAddr, err := parseAddress(tokenAddress)
	if err != nil {
		return entity.TokenMetadata{}, err
	}
	chainKey := "unknown"
	if c.chainID != nil {
		chainKey = c.chainID.String()
	}
	cacheKey := chainKey + ":" + strings.ToLower(tokenAddr.Hex())
	if cached, ok := c.metadata.Get(cacheKey); ok {
		return cached.(entity.TokenMetadata), nil
	}

	values, err := c.call(ctx, tokenAddr, "decimals")
	if err != nil {
		return entity.TokenMetadata{}, err
	}
	dec, ok := values[0].(uint8)
	if !ok {
		return entity.TokenMetadata{}, fmt.Errorf("unexpected decimals result type %T", values[0])
	}
	meta := entity.TokenMetadata{Address: tokenAddr.Hex(), Decimals: dec}
	if v, err := c.call(ctx, tokenAddr, "symbol"); err == nil {
		meta.Symbol, _ = v[0].(string)
	}
	if v, err := c.call(ctx, tokenAddr, "name"); err == nil {
		meta.Name, _ = v[0].(string)
	}

	c.metadata.Set(cacheKey, meta, cache.DefaultExpiration)
	return meta, nil
}

// EstimateFee estimates the gas of a transfer and applies the configured
// buffer. RPC failures fall back to fixed limits so a quote is always returned.
func (c *EVMClient) EstimateFee(ctx context.Context, from common.Address, to common.Address, amount *big.Int, token entity.Token) FeeQuote {
	msg := ethereum.CallMsg{From: from, To: &to, Value: amount}
	fallback := c.cfg.Fees.FallbackNativeGasLimit
	if !token.IsNative() {
		fallback = c.cfg.Fees.FallbackTokenGasLimit
		tokenAddr := common.HexToAddress(token.ContractAddress)
		data, err := erc20().Pack("transfer", to, amount)
		if err != nil {
			return FeeQuote{GasLimit: utils.PercentOf(new(big.Int).SetUint64(fallback), c.cfg.Fees.GasLimitBufferPercent).Uint64(), GasPrice: c.GasPrice()}
		}
		msg = ethereum.CallMsg{From: from, To: &tokenAddr, Data: data}
	}

	cctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	gas, err := c.backend.EstimateGas(cctx, msg)
	if err != nil || gas == 0 {
		c.logger.Warn("Gas estimation failed, using fallback limit", "network", c.netDef.Identifier, "fallback", fallback, "error", err)
		gas = fallback
	}
	buffered := utils.PercentOf(new(big.Int).SetUint64(gas), c.cfg.Fees.GasLimitBufferPercent)
	return FeeQuote{GasLimit: buffered.Uint64(), GasPrice: c.GasPrice()}
}

// Balances returns balances of token for every address. Transports that support
// JSON-RPC batches are queried in batches, others one call at a time.
func (c *EVMClient) Balances(ctx context.Context, token entity.Token, addresses []string) ([]entity.BalanceResult, error) {
	dec := c.nativeDecimals()
	symbol := c.identity.NativeSymbol
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
	}

	var raw []entity.BalanceResultItem
	if c.batch != nil {
		for _, chunk := range utils.BatchStrings(addresses, balanceBatchSize) {
			items, err := c.GetBalances(ctx, balanceRequests(chunk, token))
			if err != nil {
				return nil, err
			}
			raw = append(raw, items...)
		}
	} else {
		raw = c.sequentialBalances(ctx, balanceRequests(addresses, token))
	}

	for i, item := range raw {
		if item.Error != nil {
			results[i].Error = item.Error.Error()
			continue
		}
		results[i].Amount = item.Balance
		results[i].FormattedBalance = utils.FormatBaseUnits(item.Balance, dec)
	}
	return results, nil
}

func balanceRequests(addresses []string, token entity.Token) []entity.BalanceRequestItem {
	requests := make([]entity.BalanceRequestItem, len(addresses))
	for i, a := range addresses {
		requests[i] = entity.BalanceRequestItem{Type: entity.NativeBalanceRequest, WalletAddress: a}
		if !token.IsNative() {
			requests[i] = entity.BalanceRequestItem{Type: entity.TokenBalanceRequest, WalletAddress: a, TokenAddress: token.ContractAddress}
		}
	}
	return requests
}

func (c *EVMClient) sequentialBalances(ctx context.Context, requests []entity.BalanceRequestItem) []entity.BalanceResultItem {
	out := make([]entity.BalanceResultItem, len(requests))
	for i, req := range requests {
		out[i] = entity.BalanceResultItem{WalletAddress: req.WalletAddress, TokenAddress: req.TokenAddress}
		owner, err := parseAddress(req.WalletAddress)
		if err != nil {
			out[i].Error = err
			continue
		}
		if req.Type == entity.NativeBalanceRequest {
			out[i].Balance, out[i].Error = c.nativeBalance(ctx, owner)
		} else {
			out[i].Balance, out[i].Error = c.tokenBalance(ctx, common.HexToAddress(req.TokenAddress), owner)
		}
	}
	return out
}

// GetBalances fetches multiple balances using one JSON-RPC batch request.
func (c *EVMClient) GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error) {
	if len(requests) == 0 {
		return []entity.BalanceResultItem{}, nil
	}
	if c.batch == nil {
		return nil, errors.New("transport does not support batch calls")
	}

	batchElems := make([]rpc.BatchElem, len(requests))
	results := make([]entity.BalanceResultItem, len(requests))
	balanceOfID := erc20().Methods["balanceOf"].ID

	for i, reqItem := range requests {
		results[i] = entity.BalanceResultItem{WalletAddress: reqItem.WalletAddress, TokenAddress: reqItem.TokenAddress}
		owner, err := parseAddress(reqItem.WalletAddress)
		if err != nil {
			results[i].Error = err
			// keep the batch well formed, the result is discarded
			owner = common.Address{}
		}

		switch reqItem.Type {
		case entity.NativeBalanceRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{owner, "latest"},
				Result: new(*hexutil.Big),
			}
		case entity.TokenBalanceRequest:
			callData := append(append([]byte{}, balanceOfID...), common.LeftPadBytes(owner.Bytes(), 32)...)
			callArgs := map[string]interface{}{
				"to":   common.HexToAddress(reqItem.TokenAddress),
				"data": hexutil.Bytes(callData),
			}
			batchElems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args:   []interface{}{callArgs, "latest"},
				Result: new(hexutil.Bytes),
			}
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()
	if err := c.batch.BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return results, fmt.Errorf("RPC batch call failed: %w", err)
	}

	for i, elem := range batchElems {
		if results[i].Error != nil {
			continue
		}
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("failed to fetch balance of %s: %w", requests[i].WalletAddress, elem.Error)
			continue
		}

		switch requests[i].Type {
		case entity.NativeBalanceRequest:
			if result, ok := elem.Result.(**hexutil.Big); ok && result != nil && *result != nil {
				results[i].Balance = (*big.Int)(*result)
			} else {
				results[i].Error = fmt.Errorf("failed to decode native balance of %s", requests[i].WalletAddress)
			}
		case entity.TokenBalanceRequest:
			result, ok := elem.Result.(*hexutil.Bytes)
			if !ok || result == nil {
				results[i].Error = fmt.Errorf("failed to decode token balance of %s", requests[i].WalletAddress)
				continue
			}
			if len(*result) == 0 {
				results[i].Balance = big.NewInt(0)
				continue
			}
			unpacked, err := erc20().Unpack("balanceOf", *result)
			if err != nil || len(unpacked) == 0 {
				results[i].Error = fmt.Errorf("failed to unpack balanceOf result for %s: %v", requests[i].WalletAddress, err)
				continue
			}
			bal, ok := unpacked[0].(*big.Int)
			if !ok {
				results[i].Error = fmt.Errorf("unexpected balanceOf result type %T", unpacked[0])
				continue
			}
			results[i].Balance = bal
		}
	}
	return results, nil
}

// OpenWallet derives the signing key of credential and binds it to this client.
func (c *EVMClient) OpenWallet(_ context.Context, credential entity.Wallet) (port.WalletHandle, error) {
	return newEVMWallet(c, credential)
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close releases the underlying connection.
func (c *EVMClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}
