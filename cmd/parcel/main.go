package main

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parcel/internal/app/port"
	"parcel/internal/app/provider"
	"parcel/internal/app/service"
	"parcel/internal/client"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"
	clientprovider "parcel/internal/infrastructure/network/client"
	networkdefinition "parcel/internal/infrastructure/network/definition"
	"parcel/internal/infrastructure/tokenloader"
	"parcel/internal/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app holds the flags shared by every command and the dependencies built from them.
type app struct {
	configPath string
	network    string
	mainnet    bool
	rpcURL     string
	apiKey     string
	mode       string
	logLevel   string

	cfg       *configloader.Config
	zapLogger *zap.Logger
	log       port.Logger
	registry  *networkdefinition.NetworkDefinitionProvider
	adapters  port.ChainAdapterProvider
}

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Sync()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parcel",
		Short:         "Split and merge token transfers on EVM networks and TON",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", envOr("PARCEL_CONFIG", "config/config.yml"), "Path to the YAML configuration file")
	flags.StringVarP(&a.network, "network", "n", "", "Network identifier (bsc, ethereum, ton, ...)")
	flags.BoolVar(&a.mainnet, "mainnet", false, "Use mainnet endpoints instead of testnet")
	flags.StringVar(&a.rpcURL, "rpc", "", "Custom RPC endpoint, overrides the network default")
	flags.StringVar(&a.apiKey, "api-key", "", "API key for the TON metadata service")
	flags.StringVarP(&a.mode, "mode", "m", "", "Processing mode: single or batch")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.splitCmd(),
		a.mergeCmd(),
		a.balancesCmd(),
		a.networksCmd(),
		a.serveCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// init loads the configuration, applies flag overrides and wires the dependencies.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := configloader.Load(a.configPath)
	if err != nil {
		if cmd.Flags().Changed("config") {
			return err
		}
		cfg = configloader.Default()
	}

	flags := cmd.Flags()
	if a.network != "" {
		cfg.Parcel.Network = a.network
	}
	if flags.Changed("mainnet") {
		cfg.Parcel.Mainnet = a.mainnet
	}
	if a.rpcURL != "" {
		cfg.Parcel.RPCURL = a.rpcURL
		if !flags.Changed("network") {
			cfg.Parcel.Network = ""
		}
	}
	if a.apiKey != "" {
		cfg.Parcel.APIKey = a.apiKey
	}
	if a.mode != "" {
		cfg.Parcel.Mode = a.mode
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	zl, err := logger.InitZap(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Development)
	if err != nil {
		return err
	}
	a.zapLogger = zl
	a.log = logger.NewSlogAdapter()
	logger.Debug("Configuration loaded", "path", a.configPath, "network", cfg.Parcel.Network, "mainnet", cfg.Parcel.Mainnet)

	tokens := provider.NewTokenProvider(
		tokenloader.NewTokenLoader(cfg.Paths.TokensDir, a.log.Debug, a.log.Warn),
		a.log,
	)
	a.registry = networkdefinition.NewNetworkDefinitionProvider(a.log, cfg.Networks, tokens)

	metadata := client.NewTonAPIClient(
		cfg.TON.MetadataBaseURL,
		cfg.TON.TestnetMetadataBaseURL,
		time.Duration(cfg.TON.MetadataTimeoutMillis)*time.Millisecond,
		zl.Named("TonAPIClient"),
	)
	a.adapters = clientprovider.NewAdapterProvider(cfg, a.registry, metadata, a.log)
	return nil
}

func (a *app) selection() entity.NetworkSelection {
	return entity.NetworkSelection{
		Network: a.cfg.Parcel.Network,
		Mainnet: a.cfg.Parcel.Mainnet,
		RPCURL:  a.cfg.Parcel.RPCURL,
		APIKey:  a.cfg.Parcel.APIKey,
	}
}

// factory builds one Parcel per call. progress may be nil.
func (a *app) factory(progress port.ProgressFunc) port.ParcelFactory {
	return func(selection entity.NetworkSelection, mode entity.Mode) (port.Parcel, error) {
		return service.NewParcelService(
			selection,
			mode,
			a.registry,
			a.adapters,
			a.log,
			a.cfg.Parcel.MaxConcurrentTransfers,
			progress,
		)
	}
}

func (a *app) parcel() (port.Parcel, error) {
	mode, err := entity.ParseMode(a.cfg.Parcel.Mode)
	if err != nil {
		return nil, err
	}
	return a.factory(func(done, total int) {
		logger.Info("Progress", "done", done, "total", total)
	})(a.selection(), mode)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
