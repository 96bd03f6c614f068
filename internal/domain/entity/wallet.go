package entity

import "strings"

// Wallet is a signing credential. Exactly one of PrivateKey or Mnemonic is used,
// Version selects the TON wallet contract (4 or 5) and is ignored on EVM networks.
// Address is informational and is not re-checked against the key.
type Wallet struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey,omitempty"`
	Mnemonic   string `json:"mnemonic,omitempty"`
	Version    int    `json:"version,omitempty"`
}

// HasMnemonic reports whether the credential is a seed phrase.
func (w Wallet) HasMnemonic() bool {
	return strings.TrimSpace(w.Mnemonic) != ""
}

// Redacted drops secrets so the wallet can be logged.
func (w Wallet) Redacted() Wallet {
	return Wallet{Address: w.Address, Version: w.Version}
}
