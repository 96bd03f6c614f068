package ton

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	"parcel/internal/pkg/logger"
)

func testAddress(b byte) *address.Address {
	return address.NewAddress(0, 0, bytes.Repeat([]byte{b}, 32))
}

func tons(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

type build struct {
	seqno         uint64
	withStateInit bool
	msgs          []*wallet.Message
}

type fakeSigner struct {
	mu     sync.Mutex
	addr   *address.Address
	builds []build
}

func (s *fakeSigner) Address() *address.Address { return s.addr }

func (s *fakeSigner) Build(_ context.Context, seqno uint64, withStateInit bool, msgs []*wallet.Message) (*tlb.ExternalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds = append(s.builds, build{seqno: seqno, withStateInit: withStateInit, msgs: msgs})
	ext := &tlb.ExternalMessage{
		DstAddr: s.addr,
		Body:    cell.BeginCell().MustStoreUInt(seqno, 32).EndCell(),
	}
	if withStateInit {
		ext.StateInit = &tlb.StateInit{}
	}
	return ext, nil
}

func (s *fakeSigner) lastBuild(t *testing.T) build {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.builds)
	return s.builds[len(s.builds)-1]
}

// fakeLite simulates one wallet contract: it accepts an external message only
// when the message seqno equals the current one.
type fakeLite struct {
	mu sync.Mutex

	signer *fakeSigner

	active        bool
	balance       *big.Int
	activateAfter int
	deploySent    bool
	polls         int

	seqno uint64
	// stall keeps the seqno in place after a send.
	stall bool
	// advanceDelay postpones the seqno increment of an accepted send.
	advanceDelay time.Duration
	txSuccess    bool

	jettonWallet  *address.Address
	jettonBalance *big.Int

	sent []uint64
}

func newFakeLite(signer *fakeSigner) *fakeLite {
	return &fakeLite{
		signer:        signer,
		active:        true,
		balance:       tons("5000000000"),
		txSuccess:     true,
		jettonWallet:  testAddress(9),
		jettonBalance: big.NewInt(0),
	}
}

func (f *fakeLite) Ping(context.Context) error { return nil }

func (f *fakeLite) AccountState(context.Context, *address.Address) (accountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active && f.deploySent {
		f.polls++
		if f.activateAfter > 0 && f.polls >= f.activateAfter {
			f.active = true
		}
	}
	return accountState{Active: f.active, Balance: new(big.Int).Set(f.balance)}, nil
}

func (f *fakeLite) Seqno(context.Context, *address.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seqno, nil
}

func (f *fakeLite) JettonWallet(_ context.Context, _, _ *address.Address) (jettonWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return jettonWallet{Address: f.jettonWallet, Balance: new(big.Int).Set(f.jettonBalance)}, nil
}

func (f *fakeLite) SendExternal(_ context.Context, msg *tlb.ExternalMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.StateInit != nil {
		f.deploySent = true
		return nil
	}
	seqno := msg.Body.BeginParse().MustLoadUInt(32)
	if seqno != f.seqno {
		return fmt.Errorf("seqno mismatch: got %d, wallet at %d", seqno, f.seqno)
	}
	f.sent = append(f.sent, seqno)
	switch {
	case f.stall:
	case f.advanceDelay > 0:
		time.AfterFunc(f.advanceDelay, func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.seqno++
		})
	default:
		f.seqno++
	}
	return nil
}

func (f *fakeLite) FindTransaction(context.Context, *address.Address, []byte) (txOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return txOutcome{Hash: []byte{0xab, 0xcd}, Success: f.txSuccess}, nil
}

func (f *fakeLite) NewSigner(entity.Wallet, bool) (messageSigner, error) {
	return f.signer, nil
}

func (f *fakeLite) Close() {}

func (f *fakeLite) sentSeqnos() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.sent...)
}

type fakeMetadata struct {
	meta entity.TokenMetadata
	err  error
}

func (m fakeMetadata) JettonMetadata(context.Context, string, bool, string) (entity.TokenMetadata, error) {
	return m.meta, m.err
}

var errLookup = errors.New("lookup failed")

func testConfig() *configloader.Config {
	cfg := configloader.Default()
	cfg.Confirmation.PollIntervalMillis = 5
	cfg.Confirmation.TimeoutSeconds = 1
	cfg.TON.DeployPollIntervalMillis = 1
	cfg.TON.DeployMaxAttempts = 3
	return cfg
}

func newTestClient(t *testing.T, api *fakeLite, meta port.TokenMetadataService) *Client {
	t.Helper()
	c, err := newClient(api, entity.NetworkDefinition{Identifier: "ton", NativeSymbol: "TON", Decimals: 9},
		entity.NetworkSelection{Network: "ton", Mainnet: true}, testConfig(), meta, nil, logger.Nop{})
	require.NoError(t, err)
	_, err = c.Prepare(context.Background())
	require.NoError(t, err)
	return c
}

func openTestWallet(t *testing.T, c *Client) *Wallet {
	t.Helper()
	h, err := c.OpenWallet(context.Background(), entity.Wallet{Mnemonic: "word word"})
	require.NoError(t, err)
	return h.(*Wallet)
}
