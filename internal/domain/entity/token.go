package entity

import "strings"

// Token is a transferable asset on a network. An empty ContractAddress means the native coin.
type Token struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Symbol          string `json:"symbol,omitempty"`
	Decimals        *uint8 `json:"decimals,omitempty"`
	ContractAddress string `json:"address,omitempty"`
}

// IsNative reports whether the token is the network's native coin.
func (t Token) IsNative() bool {
	return strings.TrimSpace(t.ContractAddress) == ""
}

// WithDecimals returns a copy of the token with resolved decimals.
func (t Token) WithDecimals(decimals uint8) Token {
	d := decimals
	t.Decimals = &d
	return t
}

// Label is used in logs and metric labels.
func (t Token) Label() string {
	switch {
	case t.Symbol != "":
		return t.Symbol
	case t.ID != "":
		return t.ID
	case t.IsNative():
		return "native"
	}
	return t.ContractAddress
}

// TokenMetadata is read from chain or from a metadata service.
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}
