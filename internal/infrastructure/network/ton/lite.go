package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/jetton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"parcel/internal/domain/entity"
)

// Global ids used by V5 wallets to bind signatures to a network.
const (
	mainnetGlobalID = -239
	testnetGlobalID = -3
)

// accountState is the part of an account the adapter needs.
type accountState struct {
	Active  bool
	Balance *big.Int
}

// jettonWallet is the sender's jetton sub-wallet for one master.
type jettonWallet struct {
	Address *address.Address
	Balance *big.Int
}

// txOutcome is a wallet transaction located by its inbound message hash.
type txOutcome struct {
	Hash    []byte
	Success bool
}

// liteAPI is the narrow view of the lite server used by the adapter.
type liteAPI interface {
	Ping(ctx context.Context) error
	AccountState(ctx context.Context, addr *address.Address) (accountState, error)
	Seqno(ctx context.Context, addr *address.Address) (uint64, error)
	JettonWallet(ctx context.Context, master, owner *address.Address) (jettonWallet, error)
	SendExternal(ctx context.Context, msg *tlb.ExternalMessage) error
	FindTransaction(ctx context.Context, addr *address.Address, inMsgHash []byte) (txOutcome, error)
	NewSigner(credential entity.Wallet, mainnet bool) (messageSigner, error)
	Close()
}

// messageSigner builds signed external messages for one wallet contract
// with an explicit seqno.
type messageSigner interface {
	Address() *address.Address
	Build(ctx context.Context, seqno uint64, withStateInit bool, msgs []*wallet.Message) (*tlb.ExternalMessage, error)
}

// liteBackend implements liteAPI with a tonutils-go connection pool.
type liteBackend struct {
	pool *liteclient.ConnectionPool
	api  ton.APIClientWrapped
}

func dialLiteBackend(ctx context.Context, configURL string) (*liteBackend, error) {
	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
		pool.Stop()
		return nil, err
	}
	api := ton.NewAPIClient(pool, ton.ProofCheckPolicyFast).WithRetry()
	return &liteBackend{pool: pool, api: api}, nil
}

func (b *liteBackend) Ping(ctx context.Context) error {
	_, err := b.api.CurrentMasterchainInfo(ctx)
	return err
}

func (b *liteBackend) AccountState(ctx context.Context, addr *address.Address) (accountState, error) {
	block, err := b.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return accountState{}, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	acc, err := b.api.GetAccount(ctx, block, addr)
	if err != nil {
		return accountState{}, fmt.Errorf("failed to get account %s: %w", addr.String(), err)
	}
	st := accountState{Active: acc.IsActive, Balance: big.NewInt(0)}
	if acc.State != nil {
		st.Balance = acc.State.Balance.Nano()
	}
	return st, nil
}

func (b *liteBackend) Seqno(ctx context.Context, addr *address.Address) (uint64, error) {
	block, err := b.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	res, err := b.api.RunGetMethod(ctx, block, addr, "seqno")
	if err != nil {
		return 0, fmt.Errorf("seqno get method on %s failed: %w", addr.String(), err)
	}
	v, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("failed to decode seqno of %s: %w", addr.String(), err)
	}
	return v.Uint64(), nil
}

func (b *liteBackend) JettonWallet(ctx context.Context, master, owner *address.Address) (jettonWallet, error) {
	jw, err := jetton.NewJettonMasterClient(b.api, master).GetJettonWallet(ctx, owner)
	if err != nil {
		return jettonWallet{}, fmt.Errorf("failed to resolve jetton wallet of %s for master %s: %w", owner.String(), master.String(), err)
	}
	bal, err := jw.GetBalance(ctx)
	if err != nil {
		// an undeployed jetton wallet holds nothing
		bal = big.NewInt(0)
	}
	return jettonWallet{Address: jw.Address(), Balance: bal}, nil
}

func (b *liteBackend) SendExternal(ctx context.Context, msg *tlb.ExternalMessage) error {
	return b.api.SendExternalMessage(ctx, msg)
}

func (b *liteBackend) FindTransaction(ctx context.Context, addr *address.Address, inMsgHash []byte) (txOutcome, error) {
	tx, err := b.api.FindLastTransactionByInMsgHash(ctx, addr, inMsgHash, 15)
	if err != nil {
		return txOutcome{}, err
	}
	return txOutcome{Hash: tx.Hash, Success: transactionSucceeded(tx)}, nil
}

// transactionSucceeded reads the compute and action phases of an ordinary
// transaction. Other descriptions are taken as successful.
func transactionSucceeded(tx *tlb.Transaction) bool {
	desc, ok := tx.Description.(tlb.TransactionDescriptionOrdinary)
	if !ok {
		return true
	}
	if desc.Aborted {
		return false
	}
	if vm, ok := desc.ComputePhase.Phase.(tlb.ComputePhaseVM); ok && !vm.Success {
		return false
	}
	if desc.ActionPhase != nil && !desc.ActionPhase.Success {
		return false
	}
	return true
}

func (b *liteBackend) NewSigner(credential entity.Wallet, mainnet bool) (messageSigner, error) {
	key, err := signingKey(credential)
	if err != nil {
		return nil, err
	}
	version, err := walletVersion(credential.Version, mainnet)
	if err != nil {
		return nil, err
	}
	w, err := wallet.FromPrivateKeyWithOptions(b.api, key, version, wallet.WithWorkchain(0))
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet: %w", err)
	}
	return &walletSigner{w: w}, nil
}

func (b *liteBackend) Close() {
	b.pool.Stop()
}

// signingKey derives the ed25519 key from a mnemonic or a hex encoded seed or key.
func signingKey(credential entity.Wallet) (ed25519.PrivateKey, error) {
	if credential.HasMnemonic() {
		key, err := wallet.SeedToPrivateKey(strings.Fields(credential.Mnemonic), "", false)
		if err != nil {
			return nil, fmt.Errorf("invalid mnemonic for %s: %w", credential.Address, err)
		}
		return key, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(credential.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key for %s: %w", credential.Address, err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("invalid private key for %s: expected %d or %d bytes, got %d",
		credential.Address, ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
}

// walletVersion maps the credential version to a wallet contract. Zero means v4.
func walletVersion(version int, mainnet bool) (wallet.VersionConfig, error) {
	switch version {
	case 0, 4:
		return wallet.V4R2, nil
	case 5:
		globalID := int32(testnetGlobalID)
		if mainnet {
			globalID = mainnetGlobalID
		}
		return wallet.ConfigV5R1Final{NetworkGlobalID: globalID, Workchain: 0}, nil
	}
	return nil, fmt.Errorf("unsupported TON wallet version %d", version)
}

type seqnoOverrider interface {
	SetSeqnoFetcher(fetcher func(ctx context.Context, subWallet uint32) (uint32, error))
}

// walletSigner wraps a tonutils wallet. The seqno fetcher is swapped per
// message, so building is serialized.
type walletSigner struct {
	mu sync.Mutex
	w  *wallet.Wallet
}

func (s *walletSigner) Address() *address.Address {
	return s.w.WalletAddress()
}

func (s *walletSigner) Build(ctx context.Context, seqno uint64, withStateInit bool, msgs []*wallet.Message) (*tlb.ExternalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, ok := s.w.GetSpec().(seqnoOverrider)
	if !ok {
		return nil, errors.New("wallet contract does not accept an explicit seqno")
	}
	spec.SetSeqnoFetcher(func(context.Context, uint32) (uint32, error) {
		return uint32(seqno), nil
	})
	defer spec.SetSeqnoFetcher(nil)

	return s.w.PrepareExternalMessageForMany(ctx, withStateInit, msgs)
}
