package port

import (
	"context"

	"parcel/internal/domain/entity"
)

// TokenProvider supplies static token lists per network.
type TokenProvider interface {
	// GetTokensByNetwork returns tokens keyed by network identifier.
	GetTokensByNetwork(defs []entity.NetworkDefinition) (map[string][]entity.Token, error)
}

// TokenMetadataService looks up metadata of tokens that are not in a static list.
type TokenMetadataService interface {
	JettonMetadata(ctx context.Context, master string, mainnet bool, apiKey string) (entity.TokenMetadata, error)
}
