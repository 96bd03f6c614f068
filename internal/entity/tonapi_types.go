package entity

import (
	"strconv"
	"strings"
)

// JettonInfo is the tonapi.io answer for GET /v2/jettons/{account_id}.
type JettonInfo struct {
	Mintable     bool           `json:"mintable"`
	TotalSupply  string         `json:"total_supply"`
	Metadata     JettonMetadata `json:"metadata"`
	Verification string         `json:"verification"`
	HoldersCount int            `json:"holders_count"`
}

// JettonMetadata holds the TEP-64 fields of a jetton master.
type JettonMetadata struct {
	Address  string         `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals JettonDecimals `json:"decimals"`
	Image    string         `json:"image"`
}

// JettonDecimals accepts decimals encoded as a JSON string or number.
type JettonDecimals struct {
	Value uint8
	Set   bool
}

func (d *JettonDecimals) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return err
	}
	d.Value, d.Set = uint8(v), true
	return nil
}

// APIError is the error body returned by tonapi.io.
type APIError struct {
	Error string `json:"error"`
}
