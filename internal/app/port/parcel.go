package port

import (
	"context"

	"parcel/internal/domain/entity"
)

// Parcel runs split and merge operations on one selected network.
// Validation errors are returned, participant failures are reported in the results.
type Parcel interface {
	Split(ctx context.Context, req entity.SplitRequest) (entity.BatchResult, error)
	Merge(ctx context.Context, req entity.MergeRequest) (entity.BatchResult, error)
	Balances(ctx context.Context, req entity.BalanceRequest) ([]entity.BalanceResult, error)
}

// ParcelFactory builds a Parcel for a network selection and mode.
type ParcelFactory func(selection entity.NetworkSelection, mode entity.Mode) (Parcel, error)

// ProgressFunc is called after every processed participant.
type ProgressFunc func(done, total int)
