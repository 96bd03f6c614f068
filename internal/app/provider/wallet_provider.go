package provider

import (
	"fmt"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/walletloader"
	"parcel/internal/pkg/utils"
)

type walletProviderImpl struct {
	walletFilePath string
	next           port.WalletProvider
	logger         port.Logger
}

// NewWalletProvider creates a WalletProvider reading credentials from filePath.
func NewWalletProvider(filePath string, logger port.Logger) port.WalletProvider {
	return &walletProviderImpl{
		walletFilePath: filePath,
		next:           walletloader.NewWalletFileLoader(filePath, logger.Debug),
		logger:         logger,
	}
}

// GetWallets loads credentials and fails on an empty file.
func (p *walletProviderImpl) GetWallets() ([]entity.Wallet, error) {
	p.logger.Debug("Loading wallets from file", "path", p.walletFilePath)
	wallets, err := p.next.GetWallets()
	if err != nil {
		p.logger.Error("Failed to load wallets", "path", p.walletFilePath, "error", err)
		return nil, err
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("wallet file %s: %w", p.walletFilePath, entity.ErrNoSenders)
	}
	p.logger.Info("Wallets loaded successfully", "count", len(wallets), "path", p.walletFilePath)
	return wallets, nil
}

type recipientProviderImpl struct {
	filePath string
	next     port.AddressProvider
	logger   port.Logger
}

// NewRecipientProvider creates an AddressProvider reading split recipients from filePath.
func NewRecipientProvider(filePath string, logger port.Logger) port.AddressProvider {
	return &recipientProviderImpl{
		filePath: filePath,
		next:     walletloader.NewAddressFileLoader(filePath),
		logger:   logger,
	}
}

// GetAddresses loads the recipients. Duplicates are kept, each line receives a share.
func (p *recipientProviderImpl) GetAddresses() ([]string, error) {
	addresses, err := p.next.GetAddresses()
	if err != nil {
		p.logger.Error("Failed to load recipients", "path", p.filePath, "error", err)
		return nil, err
	}
	addresses = utils.CleanList(addresses)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("recipient file %s: %w", p.filePath, entity.ErrNoRecipients)
	}
	p.logger.Info("Recipients loaded successfully", "count", len(addresses), "path", p.filePath)
	return addresses, nil
}
