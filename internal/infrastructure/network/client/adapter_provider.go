package client

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	"parcel/internal/infrastructure/network/ton"
)

// adapterProvider implements port.ChainAdapterProvider. It opens a fresh
// adapter per call and shares the token metadata caches between them.
type adapterProvider struct {
	cfg         *configloader.Config
	registry    port.NetworkRegistry
	metadata    port.TokenMetadataService
	evmCache    *cache.Cache
	tonCache    *cache.Cache
	logger      port.Logger
	loggerInfo  func(msg string, args ...any)
	loggerError func(msg string, args ...any)
}

// NewAdapterProvider creates the provider used by the orchestrator.
func NewAdapterProvider(
	cfg *configloader.Config,
	registry port.NetworkRegistry,
	metadata port.TokenMetadataService,
	logger port.Logger,
) port.ChainAdapterProvider {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	cleanup := time.Duration(cfg.Cache.CleanupIntervalMinutes) * time.Minute
	return &adapterProvider{
		cfg:         cfg,
		registry:    registry,
		metadata:    metadata,
		evmCache:    cache.New(ttl, cleanup),
		tonCache:    cache.New(ttl, cleanup),
		logger:      logger,
		loggerInfo:  logger.Info,
		loggerError: logger.Error,
	}
}

// Open dials the network selected by def and selection. The adapter family is
// picked from the definition.
func (p *adapterProvider) Open(ctx context.Context, def entity.NetworkDefinition, selection entity.NetworkSelection) (port.ChainAdapter, error) {
	p.loggerInfo("Opening chain adapter", "network", def.Identifier, "family", def.Family, "mainnet", selection.Mainnet, "custom_rpc", selection.RPCURL != "")

	switch def.Family {
	case entity.FamilyEVM:
		c, err := NewEVMClient(ctx, def, selection, p.registry, p.cfg, p.evmCache, p.logger)
		if err != nil {
			p.loggerError("Failed to create EVM client", "network", def.Identifier, "error", err)
			return nil, err
		}
		return c, nil
	case entity.FamilyTON:
		c, err := ton.NewClient(ctx, def, selection, p.cfg, p.metadata, p.tonCache, p.logger)
		if err != nil {
			p.loggerError("Failed to create TON client", "network", def.Identifier, "error", err)
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q has unknown chain family %q", entity.ErrUnsupportedNetwork, def.Identifier, def.Family)
}
