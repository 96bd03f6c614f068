package entity

import (
	"fmt"
	"math/big"
	"strings"
)

// Mode selects how participants of one call are processed.
type Mode string

const (
	// ModeSingle processes participants one after another.
	ModeSingle Mode = "single"
	// ModeBatch processes participants concurrently.
	ModeBatch Mode = "batch"
)

// ParseMode accepts "single" and "batch", empty means single.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeBatch:
		return ModeBatch, nil
	}
	return "", fmt.Errorf("unknown mode %q, expected %q or %q", s, ModeSingle, ModeBatch)
}

// Operation names the orchestrator entry point, used in logs and metrics.
type Operation string

const (
	OperationSplit Operation = "split"
	OperationMerge Operation = "merge"
)

// SplitRequest distributes Amount evenly from Wallet to every recipient.
type SplitRequest struct {
	Wallet     Wallet   `json:"wallet"`
	Recipients []string `json:"recipients"`
	Token      Token    `json:"token"`
	Amount     string   `json:"amount"`
}

// MergeRequest collects funds from every sender into Receiver.
// A nil Amount sends each sender's whole balance minus fees.
type MergeRequest struct {
	Senders  []Wallet `json:"senders"`
	Receiver string   `json:"receiver"`
	Token    Token    `json:"token"`
	Amount   *string  `json:"amount,omitempty"`
}

// BalanceRequest asks for the balance of Token on every address.
type BalanceRequest struct {
	Addresses []string `json:"addresses"`
	Token     Token    `json:"token"`
}

// SendPlan is the amount a sender can merge. SweepAll asks the chain to carry
// the whole remaining balance, GasLimit pins the gas limit the reserve was computed with.
type SendPlan struct {
	Amount   *big.Int
	SweepAll bool
	GasLimit uint64
}

// TransferOrder is one transfer handed to a wallet handle.
// Sequence is the nonce or seqno allocated before any network call.
type TransferOrder struct {
	To       string
	Token    Token
	Amount   *big.Int
	Sequence uint64
	SweepAll bool
	GasLimit uint64
}

// TransferReceipt is returned by a wallet handle for a confirmed transfer.
type TransferReceipt struct {
	TxHash   string
	GasUsed  uint64
	GasPrice *big.Int
}

// TransactionResult is reported for every participant of a split or merge, in input order.
type TransactionResult struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Amount    string `json:"amount,omitempty"`
	TxHash    string `json:"txHash"`
	Succeeded bool   `json:"status"`
	GasUsed   uint64 `json:"gasUsed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult wraps the results of one orchestration call.
type BatchResult struct {
	BatchID   string              `json:"batchId"`
	Operation Operation           `json:"operation"`
	Network   NetworkIdentity     `json:"network"`
	Results   []TransactionResult `json:"results"`
}

// Succeeded counts successful results.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Succeeded {
			n++
		}
	}
	return n
}
