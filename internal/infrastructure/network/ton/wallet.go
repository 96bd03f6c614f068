package ton

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/network/confirm"
	"parcel/internal/metrics"
	"parcel/internal/pkg/utils"
)

const (
	explicitAmountMode = wallet.PayGasSeparately + wallet.IgnoreErrors
	sweepMode          = wallet.CarryAllRemainingBalance
)

// Wallet is a per-call session of one TON wallet contract.
type Wallet struct {
	client  *Client
	signer  messageSigner
	address *address.Address

	nextSeqno   uint64
	initialized bool

	mu        sync.Mutex
	abandoned map[uint64]struct{}
}

// Address returns the user friendly wallet address.
func (w *Wallet) Address() string {
	return w.address.String()
}

// CheckFunds verifies that the wallet holds total of a jetton before
// InitSequence can deploy the contract. Native totals are checked per transfer.
func (w *Wallet) CheckFunds(ctx context.Context, token entity.Token, total *big.Int) error {
	if token.IsNative() {
		return nil
	}
	master, err := parseAddress(token.ContractAddress)
	if err != nil {
		return entity.Rejected("invalid jetton master", err)
	}
	_, err = w.jettonWalletHolding(ctx, master, total)
	return err
}

// InitSequence deploys the wallet contract if needed and reads its seqno once.
func (w *Wallet) InitSequence(ctx context.Context) error {
	if err := w.EnsureDeployed(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, w.client.callTimeout())
	defer cancel()
	seqno, err := w.client.api.Seqno(cctx, w.address)
	if err != nil {
		return fmt.Errorf("failed to read seqno of %s: %w", w.Address(), err)
	}
	w.nextSeqno = seqno
	w.initialized = true
	return nil
}

// EnsureDeployed sends a self-transfer carrying the state init when the
// account is not active, then polls until it is.
func (w *Wallet) EnsureDeployed(ctx context.Context) error {
	st, err := w.client.accountState(ctx, w.Address())
	if err != nil {
		return err
	}
	if st.Active {
		return nil
	}
	if st.Balance == nil || st.Balance.Cmp(w.client.deployAmount) <= 0 {
		return fmt.Errorf("%w: wallet %s holds %s TON, cannot deploy", entity.ErrInsufficientBalance,
			w.Address(), utils.FormatBaseUnits(st.Balance, nativeDecimals))
	}

	w.client.logger.Info("Deploying wallet contract", "wallet", w.Address())
	deploy := &wallet.Message{
		Mode: explicitAmountMode,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      false,
			DstAddr:     w.address,
			Amount:      tlb.FromNanoTON(w.client.deployAmount),
			Body:        cell.BeginCell().EndCell(),
		},
	}
	ext, err := w.signer.Build(ctx, 0, true, []*wallet.Message{deploy})
	if err != nil {
		return fmt.Errorf("failed to build deployment message for %s: %w", w.Address(), err)
	}
	if err := w.client.api.SendExternal(ctx, ext); err != nil {
		return fmt.Errorf("failed to send deployment message for %s: %w", w.Address(), err)
	}

	interval := time.Duration(w.client.cfg.TON.DeployPollIntervalMillis) * time.Millisecond
	for attempt := 1; attempt <= w.client.cfg.TON.DeployMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		st, err := w.client.accountState(ctx, w.Address())
		if err != nil {
			w.client.logger.Debug("Deployment poll failed", "wallet", w.Address(), "attempt", attempt, "error", err)
			continue
		}
		if st.Active {
			w.client.logger.Info("Wallet contract deployed", "wallet", w.Address(), "attempts", attempt)
			return nil
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", entity.ErrWalletDeploymentTimeout, w.Address(), w.client.cfg.TON.DeployMaxAttempts)
}

// NextSequence returns the next local seqno.
func (w *Wallet) NextSequence() (uint64, error) {
	if !w.initialized {
		return 0, errors.New("seqno not initialized")
	}
	n := w.nextSeqno
	w.nextSeqno++
	metrics.SequenceAllocations.WithLabelValues(w.client.identity.Name()).Inc()
	return n, nil
}

// PlanSweep returns the whole jetton balance, or for TON the balance minus
// the fee reserve sent with mode 128.
func (w *Wallet) PlanSweep(ctx context.Context, token entity.Token, _ string) (entity.SendPlan, error) {
	if !token.IsNative() {
		bal, err := w.client.jettonBalance(ctx, token.ContractAddress, w.Address())
		if err != nil {
			return entity.SendPlan{}, err
		}
		return entity.SendPlan{Amount: bal}, nil
	}
	st, err := w.client.accountState(ctx, w.Address())
	if err != nil {
		return entity.SendPlan{}, err
	}
	return entity.SendPlan{
		Amount:   new(big.Int).Sub(st.Balance, w.client.sweepReserve),
		SweepAll: true,
	}, nil
}

// Transfer waits until the chain reaches the order's seqno, then sends it.
// A seqno whose order never left the process is remembered so later orders
// of the wallet fail fast instead of waiting for a seqno that cannot arrive.
func (w *Wallet) Transfer(ctx context.Context, order entity.TransferOrder) (entity.TransferReceipt, error) {
	receipt, err := w.transfer(ctx, order)
	var failed *entity.TransferFailedError
	if errors.As(err, &failed) && failed.Stage == entity.StageRejected {
		w.abandon(order.Sequence)
	}
	return receipt, err
}

func (w *Wallet) transfer(ctx context.Context, order entity.TransferOrder) (entity.TransferReceipt, error) {
	to, err := parseAddress(order.To)
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("invalid recipient", err)
	}
	if order.Amount == nil || order.Amount.Sign() <= 0 {
		return entity.TransferReceipt{}, entity.Rejected("amount must be positive", nil)
	}
	if err := w.waitTurn(ctx, order.Sequence); err != nil {
		return entity.TransferReceipt{}, err
	}
	if order.Token.IsNative() {
		return w.TransferNative(ctx, to, order.Amount, order.SweepAll, order.Sequence)
	}
	master, err := parseAddress(order.Token.ContractAddress)
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("invalid jetton master", err)
	}
	return w.TransferJetton(ctx, master, to, order.Amount, order.Sequence)
}

// waitTurn blocks until the on-chain seqno equals seqno. Wallet contracts
// reject any other value, so orders of one wallet reach the chain in
// allocation order even when they are scheduled concurrently. The
// confirmation timeout restarts each time the chain seqno moves, so a long
// queue only fails when an earlier transfer stops making progress.
func (w *Wallet) waitTurn(ctx context.Context, seqno uint64) error {
	cfg := w.client.cfg.Confirmation
	var (
		current  uint64
		observed bool
		gap      bool
		turn     bool
	)
	for {
		status, err := confirm.Poll(ctx, cfg.PollInterval(), cfg.Timeout(), func(ctx context.Context) (confirm.Status, error) {
			cur, err := w.client.api.Seqno(ctx, w.address)
			if err != nil {
				return confirm.Pending, err
			}
			moved := observed && cur > current
			if !observed || cur > current {
				current = cur
			}
			observed = true
			switch {
			case cur == seqno:
				turn = true
				return confirm.Confirmed, nil
			case cur > seqno:
				return confirm.FailedOnChain, nil
			case w.abandonedBetween(cur, seqno):
				gap = true
				return confirm.FailedOnChain, nil
			case moved:
				return confirm.Confirmed, nil
			}
			return confirm.Pending, nil
		})
		switch {
		case status == confirm.Confirmed && turn:
			return nil
		case status == confirm.Confirmed:
			continue
		case status == confirm.FailedOnChain && gap:
			return entity.Rejected(fmt.Sprintf("seqno %d is unreachable, an earlier transfer of this wallet was not sent", seqno), nil)
		case status == confirm.FailedOnChain:
			return entity.Rejected(fmt.Sprintf("seqno %d already consumed, chain is at %d", seqno, current), nil)
		}
		return entity.Rejected(fmt.Sprintf("earlier transfer of this wallet did not settle before seqno %d", seqno), err)
	}
}

func (w *Wallet) abandon(seqno uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abandoned == nil {
		w.abandoned = make(map[uint64]struct{})
	}
	w.abandoned[seqno] = struct{}{}
}

// abandonedBetween reports whether a seqno in [from, to) was given up.
func (w *Wallet) abandonedBetween(from, to uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for s := range w.abandoned {
		if s >= from && s < to {
			return true
		}
	}
	return false
}

// TransferNative sends TON. A sweep carries the whole remaining balance.
func (w *Wallet) TransferNative(ctx context.Context, to *address.Address, amount *big.Int, sweep bool, seqno uint64) (entity.TransferReceipt, error) {
	mode := uint8(explicitAmountMode)
	if sweep {
		mode = sweepMode
	} else {
		st, err := w.client.accountState(ctx, w.Address())
		if err != nil {
			return entity.TransferReceipt{}, entity.Rejected("failed to read balance", err)
		}
		if st.Balance.Cmp(amount) < 0 {
			return entity.TransferReceipt{}, entity.Rejected(
				fmt.Sprintf("TON balance %s is below %s", utils.FormatBaseUnits(st.Balance, nativeDecimals), utils.FormatBaseUnits(amount, nativeDecimals)),
				entity.ErrInsufficientBalance)
		}
	}
	msg := &wallet.Message{
		Mode: mode,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      to.IsBounceable(),
			DstAddr:     to,
			Amount:      tlb.FromNanoTON(amount),
			Body:        cell.BeginCell().EndCell(),
		},
	}
	return w.submit(ctx, seqno, msg)
}

// TransferJetton sends jettons through the sender's jetton wallet. Both the
// jetton balance and the TON needed for fees are checked before anything is signed.
func (w *Wallet) TransferJetton(ctx context.Context, master, to *address.Address, amount *big.Int, seqno uint64) (entity.TransferReceipt, error) {
	jw, err := w.jettonWalletHolding(ctx, master, amount)
	if err != nil {
		return entity.TransferReceipt{}, err
	}
	st, err := w.client.accountState(ctx, w.Address())
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("failed to read balance", err)
	}
	if st.Balance.Cmp(w.client.attachedAmount) < 0 {
		return entity.TransferReceipt{}, entity.Rejected(
			fmt.Sprintf("TON balance %s does not cover the %s TON jetton fee",
				utils.FormatBaseUnits(st.Balance, nativeDecimals), utils.FormatBaseUnits(w.client.attachedAmount, nativeDecimals)),
			entity.ErrInsufficientBalance)
	}

	body := jettonTransferBody(seqno, amount, to, w.address, w.client.forwardAmount)
	msg := &wallet.Message{
		Mode: explicitAmountMode,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      true,
			DstAddr:     jw.Address,
			Amount:      tlb.FromNanoTON(w.client.attachedAmount),
			Body:        body,
		},
	}
	return w.submit(ctx, seqno, msg)
}

// jettonWalletHolding resolves the sender's jetton wallet of master and fails
// when it holds less than amount.
func (w *Wallet) jettonWalletHolding(ctx context.Context, master *address.Address, amount *big.Int) (jettonWallet, error) {
	cctx, cancel := context.WithTimeout(ctx, w.client.callTimeout())
	jw, err := w.client.api.JettonWallet(cctx, master, w.address)
	cancel()
	if err != nil {
		return jettonWallet{}, entity.Rejected("failed to resolve jetton wallet", err)
	}
	if jw.Balance.Cmp(amount) < 0 {
		return jettonWallet{}, entity.Rejected(
			fmt.Sprintf("jetton balance %s is below requested %s", jw.Balance.String(), amount.String()),
			entity.ErrInsufficientBalance)
	}
	return jw, nil
}

// submit signs msg with seqno, broadcasts it and waits for the seqno to move.
func (w *Wallet) submit(ctx context.Context, seqno uint64, msg *wallet.Message) (entity.TransferReceipt, error) {
	ext, err := w.signer.Build(ctx, seqno, false, []*wallet.Message{msg})
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("failed to sign message", err)
	}
	extCell, err := tlb.ToCell(ext)
	if err != nil {
		return entity.TransferReceipt{}, entity.Rejected("failed to serialize message", err)
	}
	inMsgHash := extCell.Hash()
	txHash := hex.EncodeToString(inMsgHash)

	if err := w.client.api.SendExternal(ctx, ext); err != nil {
		return entity.TransferReceipt{}, entity.Rejected("lite server refused message", err)
	}
	w.client.logger.Debug("Message sent", "wallet", w.Address(), "seqno", seqno, "msg_hash", txHash)

	cfg := w.client.cfg.Confirmation
	status, err := confirm.Poll(ctx, cfg.PollInterval(), cfg.Timeout(), func(ctx context.Context) (confirm.Status, error) {
		cur, err := w.client.api.Seqno(ctx, w.address)
		if err != nil {
			return confirm.Pending, err
		}
		if cur <= seqno {
			return confirm.Pending, nil
		}
		tx, err := w.client.api.FindTransaction(ctx, w.address, inMsgHash)
		if err != nil {
			return confirm.Pending, fmt.Errorf("seqno advanced but transaction not found yet: %w", err)
		}
		if len(tx.Hash) > 0 {
			txHash = hex.EncodeToString(tx.Hash)
		}
		if !tx.Success {
			return confirm.FailedOnChain, nil
		}
		return confirm.Confirmed, nil
	})

	switch status {
	case confirm.Confirmed:
		return entity.TransferReceipt{TxHash: txHash}, nil
	case confirm.FailedOnChain:
		return entity.TransferReceipt{TxHash: txHash}, entity.Reverted(txHash, "wallet transaction failed")
	}
	return entity.TransferReceipt{TxHash: txHash}, entity.TimedOut(txHash, err)
}
