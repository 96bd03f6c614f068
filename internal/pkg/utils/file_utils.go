package utils

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"parcel/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadTokensFromJSON reads a JSON file holding a list of tokens.
func LoadTokensFromJSON(filePath string) ([]entity.Token, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var tokens []entity.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}
