package entity

// ChainFamily groups networks that share one adapter implementation.
type ChainFamily string

const (
	FamilyEVM ChainFamily = "evm"
	FamilyTON ChainFamily = "ton"
)

// UnknownNativeSymbol is reported for EVM endpoints whose chain id is not in the registry.
const UnknownNativeSymbol = "UNKNOWN"

// NetworkDefinition holds the static configuration for a supported network.
type NetworkDefinition struct {
	Identifier       string      `json:"identifier" yaml:"identifier"` // "bsc", "ethereum", "ton", ...
	Name             string      `json:"name" yaml:"name"`
	Family           ChainFamily `json:"family" yaml:"family"`
	MainnetChainID   uint64      `json:"mainnetChainId,omitempty" yaml:"mainnetChainId,omitempty"`
	TestnetChainID   uint64      `json:"testnetChainId,omitempty" yaml:"testnetChainId,omitempty"`
	NativeSymbol     string      `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals         uint8       `json:"decimals" yaml:"decimals"`
	MainnetRPCURL    string      `json:"mainnetRpcUrl" yaml:"mainnetRpcUrl"`
	TestnetRPCURL    string      `json:"testnetRpcUrl" yaml:"testnetRpcUrl"`
	FallbackRPCURLs  []string    `json:"fallbackRpcUrls,omitempty" yaml:"fallbackRpcUrls,omitempty"`
	BlockExplorerURL string      `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	Tokens           []Token     `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// ChainID returns the chain id of the selected environment.
func (d NetworkDefinition) ChainID(mainnet bool) uint64 {
	if mainnet {
		return d.MainnetChainID
	}
	return d.TestnetChainID
}

// RPCURL returns the default endpoint of the selected environment.
func (d NetworkDefinition) RPCURL(mainnet bool) string {
	if mainnet {
		return d.MainnetRPCURL
	}
	return d.TestnetRPCURL
}

// NetworkSelection is what a caller picks before running a split or merge.
// RPCURL overrides the registry endpoint, APIKey is passed to services that accept one.
type NetworkSelection struct {
	Network string `json:"network"`
	Mainnet bool   `json:"mainnet"`
	RPCURL  string `json:"rpcUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
}

// NetworkIdentity describes the network an adapter is actually connected to.
// Network is nil when an EVM chain id is not known to the registry.
type NetworkIdentity struct {
	Network      *string `json:"network"`
	Mainnet      bool    `json:"mainnet"`
	ChainID      uint64  `json:"chainId,omitempty"`
	NativeSymbol string  `json:"nativeCurrency"`
	Decimals     uint8   `json:"decimals"`
	RPCURL       string  `json:"rpc,omitempty"`
}

// Known reports whether the identity was resolved against the registry.
func (i NetworkIdentity) Known() bool {
	return i.Network != nil
}

// Name returns the network identifier or "unknown".
func (i NetworkIdentity) Name() string {
	if i.Network == nil {
		return "unknown"
	}
	return *i.Network
}
