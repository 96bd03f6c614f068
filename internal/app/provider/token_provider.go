package provider

import (
	"sync"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
)

type tokenProviderImpl struct {
	next   port.TokenProvider
	logger port.Logger

	mu          sync.Mutex
	tokensCache map[string][]entity.Token
}

// NewTokenProvider wraps a token source and caches its first successful load.
func NewTokenProvider(next port.TokenProvider, logger port.Logger) port.TokenProvider {
	return &tokenProviderImpl{next: next, logger: logger}
}

// GetTokensByNetwork loads token lists for the given networks.
// It caches the results after the first successful load.
func (p *tokenProviderImpl) GetTokensByNetwork(defs []entity.NetworkDefinition) (map[string][]entity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokensCache != nil {
		p.logger.Debug("Returning cached tokens by network")
		return p.tokensCache, nil
	}

	tokens, err := p.next.GetTokensByNetwork(defs)
	if err != nil {
		p.logger.Error("Failed to load tokens", "error", err)
		return nil, err
	}

	p.tokensCache = tokens
	p.logger.Info("Tokens loaded and cached successfully", "total_networks_with_tokens", len(tokens))
	return tokens, nil
}
