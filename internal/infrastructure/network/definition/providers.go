package networkdefinition

import (
	"fmt"
	"sort"
	"strings"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
)

func decimals(d uint8) *uint8 { return &d }

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	BSC = entity.NetworkDefinition{
		Identifier:       "bsc",
		Name:             "BNB Smart Chain",
		Family:           entity.FamilyEVM,
		MainnetChainID:   56,
		TestnetChainID:   97,
		NativeSymbol:     "BNB",
		Decimals:         18,
		MainnetRPCURL:    "https://bsc-dataseed1.binance.org/",
		TestnetRPCURL:    "https://data-seed-prebsc-1-s1.binance.org:8545/",
		FallbackRPCURLs:  []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL: "https://bscscan.com",
		Tokens: []entity.Token{
			{ID: "bnb", Name: "BNB", Symbol: "BNB", Decimals: decimals(18)},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(18), ContractAddress: "0x55d398326f99059ff775485246999027b3197955"},
		},
	}
	Ethereum = entity.NetworkDefinition{
		Identifier:       "ethereum",
		Name:             "Ethereum",
		Family:           entity.FamilyEVM,
		MainnetChainID:   1,
		TestnetChainID:   11155111,
		NativeSymbol:     "ETH",
		Decimals:         18,
		MainnetRPCURL:    "https://ethereum-rpc.publicnode.com",
		TestnetRPCURL:    "https://ethereum-sepolia-rpc.publicnode.com",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL: "https://etherscan.io",
		Tokens: []entity.Token{
			{ID: "eth", Name: "Ether", Symbol: "ETH", Decimals: decimals(18)},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(6), ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		},
	}
	Polygon = entity.NetworkDefinition{
		Identifier:       "polygon",
		Name:             "Polygon PoS",
		Family:           entity.FamilyEVM,
		MainnetChainID:   137,
		TestnetChainID:   80001,
		NativeSymbol:     "POL",
		Decimals:         18,
		MainnetRPCURL:    "https://polygon-rpc.com/",
		TestnetRPCURL:    "https://rpc-mumbai.maticvigil.com/",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL: "https://polygonscan.com",
		Tokens: []entity.Token{
			{ID: "pol", Name: "Polygon", Symbol: "POL", Decimals: decimals(18)},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(6), ContractAddress: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f"},
		},
	}
	Avalanche = entity.NetworkDefinition{
		Identifier:       "avalanche",
		Name:             "Avalanche C-Chain",
		Family:           entity.FamilyEVM,
		MainnetChainID:   43114,
		TestnetChainID:   43113,
		NativeSymbol:     "AVAX",
		Decimals:         18,
		MainnetRPCURL:    "https://api.avax.network/ext/bc/C/rpc",
		TestnetRPCURL:    "https://api.avax-test.network/ext/bc/C/rpc",
		FallbackRPCURLs:  []string{"https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
		BlockExplorerURL: "https://snowtrace.io",
		Tokens: []entity.Token{
			{ID: "avax", Name: "Avalanche", Symbol: "AVAX", Decimals: decimals(18)},
		},
	}
	Arbitrum = entity.NetworkDefinition{
		Identifier:       "arbitrum",
		Name:             "Arbitrum One",
		Family:           entity.FamilyEVM,
		MainnetChainID:   42161,
		TestnetChainID:   421611,
		NativeSymbol:     "ETH",
		Decimals:         18,
		MainnetRPCURL:    "https://arb1.arbitrum.io/rpc",
		TestnetRPCURL:    "https://rinkeby.arbitrum.io/rpc",
		FallbackRPCURLs:  []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
		BlockExplorerURL: "https://arbiscan.io",
		Tokens: []entity.Token{
			{ID: "eth", Name: "Ether", Symbol: "ETH", Decimals: decimals(18)},
			{ID: "arb", Name: "Arbitrum", Symbol: "ARB", Decimals: decimals(18), ContractAddress: "0x912CE59144191C1204E64559FE8253a0e49E6548"},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(6), ContractAddress: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9"},
		},
	}
	Optimism = entity.NetworkDefinition{
		Identifier:       "optimism",
		Name:             "OP Mainnet",
		Family:           entity.FamilyEVM,
		MainnetChainID:   10,
		TestnetChainID:   69,
		NativeSymbol:     "ETH",
		Decimals:         18,
		MainnetRPCURL:    "https://mainnet.optimism.io",
		TestnetRPCURL:    "https://kovan.optimism.io",
		FallbackRPCURLs:  []string{"https://optimism.publicnode.com"},
		BlockExplorerURL: "https://optimistic.etherscan.io",
		Tokens: []entity.Token{
			{ID: "eth", Name: "Ether", Symbol: "ETH", Decimals: decimals(18)},
			{ID: "op", Name: "Optimism", Symbol: "OP", Decimals: decimals(18), ContractAddress: "0x4200000000000000000000000000000000000042"},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(6), ContractAddress: "0x94b008aa00579c1307b0ef2c499ad98a8ce58e58"},
		},
	}
	Fantom = entity.NetworkDefinition{
		Identifier:       "fantom",
		Name:             "Fantom Opera",
		Family:           entity.FamilyEVM,
		MainnetChainID:   250,
		TestnetChainID:   4002,
		NativeSymbol:     "FTM",
		Decimals:         18,
		MainnetRPCURL:    "https://rpc.ftm.tools/",
		TestnetRPCURL:    "https://rpc.testnet.fantom.network/",
		BlockExplorerURL: "https://ftmscan.com",
		Tokens: []entity.Token{
			{ID: "ftm", Name: "Fantom", Symbol: "FTM", Decimals: decimals(18)},
		},
	}
	Base = entity.NetworkDefinition{
		Identifier:       "base",
		Name:             "Base",
		Family:           entity.FamilyEVM,
		MainnetChainID:   8453,
		TestnetChainID:   84532,
		NativeSymbol:     "ETH",
		Decimals:         18,
		MainnetRPCURL:    "https://mainnet.base.org",
		TestnetRPCURL:    "https://sepolia.base.org",
		FallbackRPCURLs:  []string{"https://1rpc.io/base", "https://base.publicnode.com"},
		BlockExplorerURL: "https://basescan.org",
		Tokens: []entity.Token{
			{ID: "eth", Name: "Ether", Symbol: "ETH", Decimals: decimals(18)},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(6), ContractAddress: "0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2"},
		},
	}
	// TON endpoints are lite-server global config files.
	TON = entity.NetworkDefinition{
		Identifier:       "ton",
		Name:             "The Open Network",
		Family:           entity.FamilyTON,
		NativeSymbol:     "TON",
		Decimals:         9,
		MainnetRPCURL:    "https://ton.org/global.config.json",
		TestnetRPCURL:    "https://ton.org/testnet-global.config.json",
		BlockExplorerURL: "https://tonviewer.com",
		Tokens: []entity.Token{
			{ID: "ton", Name: "Toncoin", Symbol: "TON", Decimals: decimals(9)},
			{ID: "usdt", Name: "Tether USD", Symbol: "USDT", Decimals: decimals(6), ContractAddress: "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs"},
		},
	}
)

var allKnownDefinitions = []entity.NetworkDefinition{ //nolint:gochecknoglobals
	BSC, Ethereum, Polygon, Avalanche, Arbitrum, Optimism, Fantom, Base, TON,
}

// NetworkDefinitionProvider implements port.NetworkRegistry.
type NetworkDefinitionProvider struct {
	logger       port.Logger
	byIdentifier map[string]entity.NetworkDefinition
	byChainID    map[uint64]chainEntry
	order        []string
}

type chainEntry struct {
	def     entity.NetworkDefinition
	mainnet bool
}

// NewNetworkDefinitionProvider builds the registry from the predefined definitions,
// endpoint overrides and any tokens the token provider returns.
func NewNetworkDefinitionProvider(
	log port.Logger,
	overrides map[string]configloader.NetworkOverride,
	tokenProvider port.TokenProvider,
) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:       log,
		byIdentifier: make(map[string]entity.NetworkDefinition, len(allKnownDefinitions)),
		byChainID:    make(map[uint64]chainEntry),
	}

	for _, def := range allKnownDefinitions {
		def.Tokens = append([]entity.Token(nil), def.Tokens...)
		def.FallbackRPCURLs = append([]string(nil), def.FallbackRPCURLs...)
		if o, ok := overrides[def.Identifier]; ok {
			if o.MainnetRPCURL != "" {
				def.MainnetRPCURL = o.MainnetRPCURL
			}
			if o.TestnetRPCURL != "" {
				def.TestnetRPCURL = o.TestnetRPCURL
			}
			if len(o.FallbackRPCURLs) > 0 {
				def.FallbackRPCURLs = o.FallbackRPCURLs
			}
			p.logger.Debug("Network endpoints overridden from config", "network", def.Identifier)
		}
		p.add(def)
	}
	for id := range overrides {
		if _, ok := p.byIdentifier[strings.ToLower(id)]; !ok {
			p.logger.Warn("Config overrides endpoints of an unknown network, ignoring", "network", id)
		}
	}

	if tokenProvider != nil {
		extra, err := tokenProvider.GetTokensByNetwork(p.All())
		if err != nil {
			p.logger.Warn("Failed to load token files, using built-in token lists only", "error", err)
		}
		for id, tokens := range extra {
			def := p.byIdentifier[id]
			def.Tokens = mergeTokens(def.Tokens, tokens)
			p.byIdentifier[id] = def
		}
	}

	p.logger.Info(fmt.Sprintf("NetworkDefinitionProvider initialized with %d networks", len(p.order)))
	return p
}

func (p *NetworkDefinitionProvider) add(def entity.NetworkDefinition) {
	p.byIdentifier[def.Identifier] = def
	p.order = append(p.order, def.Identifier)
	if def.Family != entity.FamilyEVM {
		return
	}
	if def.MainnetChainID != 0 {
		p.byChainID[def.MainnetChainID] = chainEntry{def: def, mainnet: true}
	}
	if def.TestnetChainID != 0 {
		p.byChainID[def.TestnetChainID] = chainEntry{def: def, mainnet: false}
	}
}

func mergeTokens(base, extra []entity.Token) []entity.Token {
	seen := make(map[string]struct{}, len(base))
	for _, t := range base {
		seen[strings.ToLower(t.ID)] = struct{}{}
	}
	for _, t := range extra {
		if _, dup := seen[strings.ToLower(t.ID)]; dup {
			continue
		}
		seen[strings.ToLower(t.ID)] = struct{}{}
		base = append(base, t)
	}
	return base
}

// All returns every definition in registration order.
func (p *NetworkDefinitionProvider) All() []entity.NetworkDefinition {
	defs := make([]entity.NetworkDefinition, 0, len(p.order))
	for _, id := range p.order {
		defs = append(defs, p.byIdentifier[id])
	}
	return defs
}

// Resolve returns the definition for identifier or ErrUnsupportedNetwork.
func (p *NetworkDefinitionProvider) Resolve(identifier string) (entity.NetworkDefinition, error) {
	def, ok := p.byIdentifier[strings.ToLower(strings.TrimSpace(identifier))]
	if !ok {
		return entity.NetworkDefinition{}, fmt.Errorf("%w: %q", entity.ErrUnsupportedNetwork, identifier)
	}
	return def, nil
}

// ResolveChainID maps an EVM chain id to a network identity. Unknown ids yield a nil
// network and the "UNKNOWN" native symbol, and are treated as mainnet.
func (p *NetworkDefinitionProvider) ResolveChainID(chainID uint64) entity.NetworkIdentity {
	entry, ok := p.byChainID[chainID]
	if !ok {
		return entity.NetworkIdentity{
			Mainnet:      true,
			ChainID:      chainID,
			NativeSymbol: entity.UnknownNativeSymbol,
			Decimals:     18,
		}
	}
	id := entry.def.Identifier
	return entity.NetworkIdentity{
		Network:      &id,
		Mainnet:      entry.mainnet,
		ChainID:      chainID,
		NativeSymbol: entry.def.NativeSymbol,
		Decimals:     entry.def.Decimals,
	}
}

// FindToken looks a token up by id, symbol or contract address.
func (p *NetworkDefinitionProvider) FindToken(network string, tokenID string) (entity.Token, bool) {
	def, err := p.Resolve(network)
	if err != nil {
		return entity.Token{}, false
	}
	needle := strings.ToLower(strings.TrimSpace(tokenID))
	for _, t := range def.Tokens {
		if strings.ToLower(t.ID) == needle || strings.ToLower(t.Symbol) == needle ||
			(t.ContractAddress != "" && strings.ToLower(t.ContractAddress) == needle) {
			return t, true
		}
	}
	return entity.Token{}, false
}

// Identifiers lists the supported network identifiers, sorted.
func (p *NetworkDefinitionProvider) Identifiers() []string {
	ids := append([]string(nil), p.order...)
	sort.Strings(ids)
	return ids
}
