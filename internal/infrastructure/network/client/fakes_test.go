package client

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	"parcel/internal/infrastructure/network/definition"
	"parcel/internal/pkg/logger"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var testToken = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")

// fakeChain is an in-memory OnchainClient. Sent transactions are mined
// immediately unless receipts are withheld.
type fakeChain struct {
	mu sync.Mutex

	chainID     *big.Int
	gasPrice    *big.Int
	gasPriceErr error
	estimate    uint64
	estimateErr error
	nonce       uint64
	balances    map[common.Address]*big.Int
	tokenBal    *big.Int
	decimals    uint8

	withholdReceipts bool
	revert           bool
	sendErr          error

	sent          []*types.Transaction
	metadataCalls int
}

func newFakeChain(chainID int64) *fakeChain {
	return &fakeChain{
		chainID:  big.NewInt(chainID),
		gasPrice: big.NewInt(1_000_000_000),
		estimate: 21_000,
		balances: map[common.Address]*big.Int{},
		tokenBal: big.NewInt(0),
		decimals: 6,
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeChain) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := erc20().Methods
	switch {
	case bytes.HasPrefix(msg.Data, methods["decimals"].ID):
		f.metadataCalls++
		return methods["decimals"].Outputs.Pack(f.decimals)
	case bytes.HasPrefix(msg.Data, methods["symbol"].ID):
		return methods["symbol"].Outputs.Pack("USDT")
	case bytes.HasPrefix(msg.Data, methods["name"].ID):
		return methods["name"].Outputs.Pack("Tether USD")
	case bytes.HasPrefix(msg.Data, methods["balanceOf"].ID):
		return methods["balanceOf"].Outputs.Pack(new(big.Int).Set(f.tokenBal))
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.withholdReceipts {
		return nil, ethereum.NotFound
	}
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			status := types.ReceiptStatusSuccessful
			if f.revert {
				status = types.ReceiptStatusFailed
			}
			return &types.Receipt{Status: status, TxHash: hash, GasUsed: 21_000, BlockNumber: big.NewInt(100)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func testConfig() *configloader.Config {
	cfg := configloader.Default()
	cfg.Confirmation.PollIntervalMillis = 5
	cfg.Confirmation.TimeoutSeconds = 1
	return cfg
}

func newTestEVMClient(t *testing.T, chain *fakeChain) *EVMClient {
	t.Helper()
	registry := networkdefinition.NewNetworkDefinitionProvider(logger.Nop{}, nil, nil)
	def, err := registry.Resolve("bsc")
	require.NoError(t, err)
	c, err := NewEVMClientFromBackend(chain, def, "http://fake", registry, testConfig(), nil, logger.Nop{})
	require.NoError(t, err)
	_, err = c.Prepare(context.Background())
	require.NoError(t, err)
	return c
}

func testWalletAddress(t *testing.T) common.Address {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey)
}

func openEVMWallet(t *testing.T, c *EVMClient) *evmWallet {
	t.Helper()
	h, err := c.OpenWallet(context.Background(), entity.Wallet{PrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	w := h.(*evmWallet)
	require.NoError(t, w.InitSequence(context.Background()))
	return w
}
