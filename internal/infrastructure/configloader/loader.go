package configloader

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                string   `yaml:"port"`
	ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds"`
	AllowedOrigins      []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

// ParcelConfig holds the defaults for a split or merge call.
type ParcelConfig struct {
	Network                string `yaml:"network"`
	Mainnet                bool   `yaml:"mainnet"`
	RPCURL                 string `yaml:"rpcURL"`
	APIKey                 string `yaml:"apiKey"`
	Mode                   string `yaml:"mode"`
	MaxConcurrentTransfers int    `yaml:"maxConcurrentTransfers"`
}

// FeeConfig tunes EVM fee estimation.
type FeeConfig struct {
	GasLimitBufferPercent     uint64 `yaml:"gasLimitBufferPercent"`
	GasPriceMultiplierPercent uint64 `yaml:"gasPriceMultiplierPercent"`
	FallbackNativeGasLimit    uint64 `yaml:"fallbackNativeGasLimit"`
	FallbackTokenGasLimit     uint64 `yaml:"fallbackTokenGasLimit"`
	FallbackGasPriceGwei      string `yaml:"fallbackGasPriceGwei"`
	MergeReserveProxyAmount   string `yaml:"mergeReserveProxyAmount"`
}

// ConfirmationConfig applies to both EVM receipts and TON seqno polling.
type ConfirmationConfig struct {
	PollIntervalMillis int `yaml:"pollIntervalMillis"`
	TimeoutSeconds     int `yaml:"timeoutSeconds"`
}

// TONConfig holds TON specific amounts and endpoints.
type TONConfig struct {
	DeployPollIntervalMillis int    `yaml:"deployPollIntervalMillis"`
	DeployMaxAttempts        int    `yaml:"deployMaxAttempts"`
	DeployAmount             string `yaml:"deployAmount"`
	JettonForwardAmount      string `yaml:"jettonForwardAmount"`
	JettonAttachedAmount     string `yaml:"jettonAttachedAmount"`
	SweepFeeReserve          string `yaml:"sweepFeeReserve"`
	MetadataBaseURL          string `yaml:"metadataBaseURL"`
	TestnetMetadataBaseURL   string `yaml:"testnetMetadataBaseURL"`
	MetadataTimeoutMillis    int    `yaml:"metadataTimeoutMillis"`
	DefaultJettonDecimals    uint8  `yaml:"defaultJettonDecimals"`
}

// RPCClientConfig tunes EVM RPC connections.
type RPCClientConfig struct {
	RateLimit            float64 `yaml:"rateLimit"`
	BurstLimit           int     `yaml:"burstLimit"`
	DialAttempts         uint    `yaml:"dialAttempts"`
	DialRetryDelayMillis int     `yaml:"dialRetryDelayMillis"`
	DialTimeoutSeconds   int     `yaml:"dialTimeoutSeconds"`
	CallTimeoutSeconds   int     `yaml:"callTimeoutSeconds"`
}

// CacheConfig holds metadata cache settings.
type CacheConfig struct {
	TTLMinutes             int `yaml:"ttlMinutes"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes"`
}

// NetworkOverride replaces the registry endpoints of one network.
type NetworkOverride struct {
	MainnetRPCURL   string   `yaml:"mainnetRpcUrl"`
	TestnetRPCURL   string   `yaml:"testnetRpcUrl"`
	FallbackRPCURLs []string `yaml:"fallbackRpcUrls"`
}

// PathsConfig holds file locations.
type PathsConfig struct {
	TokensDir string `yaml:"tokensDir"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig               `yaml:"server"`
	Logging      LoggingConfig              `yaml:"logging"`
	Parcel       ParcelConfig               `yaml:"parcel"`
	Fees         FeeConfig                  `yaml:"fees"`
	Confirmation ConfirmationConfig         `yaml:"confirmation"`
	TON          TONConfig                  `yaml:"ton"`
	RPCClient    RPCClientConfig            `yaml:"rpcClient"`
	Cache        CacheConfig                `yaml:"cache"`
	Networks     map[string]NetworkOverride `yaml:"networks"`
	Paths        PathsConfig                `yaml:"paths"`
}

// PollInterval returns the confirmation poll interval.
func (c ConfirmationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// Timeout returns the confirmation timeout.
func (c ConfirmationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads the YAML configuration file at path and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration made only of defaults.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 30
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		// a batch call waits for every confirmation before answering
		cfg.Server.WriteTimeoutSeconds = 600
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Parcel.Mode == "" {
		cfg.Parcel.Mode = "single"
	}
	if cfg.Parcel.MaxConcurrentTransfers < 0 {
		logrus.Warnf("parcel.maxConcurrentTransfers %d is negative, using unlimited", cfg.Parcel.MaxConcurrentTransfers)
		cfg.Parcel.MaxConcurrentTransfers = 0
	}

	if cfg.Fees.GasLimitBufferPercent == 0 {
		cfg.Fees.GasLimitBufferPercent = 120
	}
	if cfg.Fees.GasPriceMultiplierPercent == 0 {
		cfg.Fees.GasPriceMultiplierPercent = 110
	}
	if cfg.Fees.FallbackNativeGasLimit == 0 {
		cfg.Fees.FallbackNativeGasLimit = 21_000
	}
	if cfg.Fees.FallbackTokenGasLimit == 0 {
		cfg.Fees.FallbackTokenGasLimit = 60_000
	}
	if cfg.Fees.FallbackGasPriceGwei == "" {
		cfg.Fees.FallbackGasPriceGwei = "0.13"
	}
	if cfg.Fees.MergeReserveProxyAmount == "" {
		cfg.Fees.MergeReserveProxyAmount = "0.1"
	}

	if cfg.Confirmation.PollIntervalMillis <= 0 {
		cfg.Confirmation.PollIntervalMillis = 2000
	}
	if cfg.Confirmation.TimeoutSeconds <= 0 {
		cfg.Confirmation.TimeoutSeconds = 60
	}

	if cfg.TON.DeployPollIntervalMillis <= 0 {
		cfg.TON.DeployPollIntervalMillis = 2000
	}
	if cfg.TON.DeployMaxAttempts <= 0 {
		cfg.TON.DeployMaxAttempts = 30
	}
	if cfg.TON.DeployAmount == "" {
		cfg.TON.DeployAmount = "0.001"
	}
	if cfg.TON.JettonForwardAmount == "" {
		cfg.TON.JettonForwardAmount = "0.01"
	}
	if cfg.TON.JettonAttachedAmount == "" {
		cfg.TON.JettonAttachedAmount = "0.05"
	}
	if cfg.TON.SweepFeeReserve == "" {
		cfg.TON.SweepFeeReserve = "0.01"
	}
	if cfg.TON.MetadataBaseURL == "" {
		cfg.TON.MetadataBaseURL = "https://tonapi.io/v2"
	}
	if cfg.TON.TestnetMetadataBaseURL == "" {
		cfg.TON.TestnetMetadataBaseURL = "https://testnet.tonapi.io/v2"
	}
	if cfg.TON.MetadataTimeoutMillis <= 0 {
		cfg.TON.MetadataTimeoutMillis = 10000
	}
	if cfg.TON.DefaultJettonDecimals == 0 {
		cfg.TON.DefaultJettonDecimals = 9
	}

	if cfg.RPCClient.BurstLimit <= 0 {
		cfg.RPCClient.BurstLimit = 1
	}
	if cfg.RPCClient.DialAttempts == 0 {
		cfg.RPCClient.DialAttempts = 3
	}
	if cfg.RPCClient.DialRetryDelayMillis <= 0 {
		cfg.RPCClient.DialRetryDelayMillis = 500
	}
	if cfg.RPCClient.DialTimeoutSeconds <= 0 {
		cfg.RPCClient.DialTimeoutSeconds = 10
	}
	if cfg.RPCClient.CallTimeoutSeconds <= 0 {
		cfg.RPCClient.CallTimeoutSeconds = 15
	}

	if cfg.Cache.TTLMinutes <= 0 {
		cfg.Cache.TTLMinutes = 60
	}
	if cfg.Cache.CleanupIntervalMinutes <= 0 {
		cfg.Cache.CleanupIntervalMinutes = 10
	}
	if cfg.Paths.TokensDir == "" {
		cfg.Paths.TokensDir = "data/tokens"
	}

	logrus.WithFields(logrus.Fields{
		"mode":                 cfg.Parcel.Mode,
		"confirmation_timeout": cfg.Confirmation.Timeout().String(),
		"rate_limit":           cfg.RPCClient.RateLimit,
	}).Debug("configuration defaults applied")
}
