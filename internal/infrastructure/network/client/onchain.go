package client

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"parcel/internal/metrics"
)

// OnchainClient is the subset of the go-ethereum client API the adapter needs.
// *ethclient.Client and the simulated backend client both satisfy it.
type OnchainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// batchCaller is implemented by *rpc.Client.
type batchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// rateLimitedClient throttles every RPC call through a shared token bucket.
type rateLimitedClient struct {
	next    OnchainClient
	batch   batchCaller
	limiter *rate.Limiter
	network string
}

func newRateLimitedClient(next OnchainClient, batch batchCaller, rps float64, burst int, network string) *rateLimitedClient {
	return &rateLimitedClient{
		next:    next,
		batch:   batch,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		network: network,
	}
}

func (c *rateLimitedClient) wait(ctx context.Context) error {
	started := time.Now()
	err := c.limiter.Wait(ctx)
	metrics.RPCThrottleWait.WithLabelValues(c.network).Observe(time.Since(started).Seconds())
	return err
}

func (c *rateLimitedClient) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.next.ChainID(ctx)
}

func (c *rateLimitedClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.next.BalanceAt(ctx, account, blockNumber)
}

func (c *rateLimitedClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.next.PendingNonceAt(ctx, account)
}

func (c *rateLimitedClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.next.SuggestGasPrice(ctx)
}

func (c *rateLimitedClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.next.EstimateGas(ctx, msg)
}

func (c *rateLimitedClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.next.CallContract(ctx, msg, blockNumber)
}

func (c *rateLimitedClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.next.SendTransaction(ctx, tx)
}

func (c *rateLimitedClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.next.TransactionReceipt(ctx, txHash)
}

func (c *rateLimitedClient) BatchCallContext(ctx context.Context, b []rpc.BatchElem) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.batch.BatchCallContext(ctx, b)
}
