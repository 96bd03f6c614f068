// Package confirm polls a chain until a submitted transfer settles.
package confirm

import (
	"context"
	"time"
)

// Status is the tagged outcome of a confirmation poll.
type Status int

const (
	Pending Status = iota
	Confirmed
	FailedOnChain
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case FailedOnChain:
		return "failed-on-chain"
	case TimedOut:
		return "timed-out"
	}
	return "unknown"
}

// CheckFunc reports Pending until the transfer settles. Errors are treated as
// transient and polling continues.
type CheckFunc func(ctx context.Context) (Status, error)

// Poll runs check immediately and then every interval until it returns
// Confirmed or FailedOnChain, or until timeout elapses. On timeout the last
// transient error, if any, is returned alongside TimedOut.
func Poll(ctx context.Context, interval, timeout time.Duration, check CheckFunc) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := check(ctx)
		if err != nil {
			lastErr = err
		} else if status == Confirmed || status == FailedOnChain {
			return status, nil
		}

		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return TimedOut, lastErr
		case <-ticker.C:
		}
	}
}
