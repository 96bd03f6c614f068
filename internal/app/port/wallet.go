package port

import "parcel/internal/domain/entity"

// WalletProvider loads signing credentials.
type WalletProvider interface {
	GetWallets() ([]entity.Wallet, error)
}

// AddressProvider loads plain recipient addresses.
type AddressProvider interface {
	GetAddresses() ([]string, error)
}
