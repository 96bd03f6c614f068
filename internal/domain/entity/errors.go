package entity

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedNetwork      = errors.New("unsupported network")
	ErrNoRecipients            = errors.New("no recipients provided")
	ErrNoSenders               = errors.New("no senders provided")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrWalletDeploymentTimeout = errors.New("wallet deployment timed out")
	ErrInvalidAmount           = errors.New("invalid amount")
)

// MergeInsufficientMessage is the result error for a sender with nothing to merge.
const MergeInsufficientMessage = "Insufficient balance to merge"

// TransferStage tells how far a failed transfer got.
type TransferStage string

const (
	StageRejected TransferStage = "rejected before broadcast"
	StageReverted TransferStage = "reverted on-chain"
	StageTimeout  TransferStage = "timed out awaiting confirmation"
)

// TransferFailedError is returned by wallet handles for a transfer that did not confirm.
type TransferFailedError struct {
	Stage  TransferStage
	TxHash string
	Reason string
	Err    error
}

func (e *TransferFailedError) Error() string {
	msg := fmt.Sprintf("transfer failed (%s)", e.Stage)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}

// Rejected builds a failure that happened before the transaction left the process or was refused by the node.
func Rejected(reason string, err error) *TransferFailedError {
	return &TransferFailedError{Stage: StageRejected, Reason: reason, Err: err}
}

// Reverted builds a failure for a transaction that was mined but did not succeed.
func Reverted(txHash, reason string) *TransferFailedError {
	return &TransferFailedError{Stage: StageReverted, TxHash: txHash, Reason: reason}
}

// TimedOut builds a failure for a broadcast transaction whose outcome is unknown.
func TimedOut(txHash string, err error) *TransferFailedError {
	return &TransferFailedError{Stage: StageTimeout, TxHash: txHash, Err: err}
}

// IsValidationError reports errors that reject a call before any participant is processed.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnsupportedNetwork) ||
		errors.Is(err, ErrNoRecipients) ||
		errors.Is(err, ErrNoSenders) ||
		errors.Is(err, ErrInvalidAmount)
}
