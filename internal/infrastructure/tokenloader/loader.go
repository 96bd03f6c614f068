package tokenloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/pkg/utils"
)

// TokenFileLoader implements port.TokenProvider by reading <dir>/<network>.json files.
type TokenFileLoader struct {
	tokenDirPath string
	loggerInfo   func(msg string, args ...any)
	loggerWarn   func(msg string, args ...any)
}

// NewTokenLoader creates a new TokenFileLoader.
func NewTokenLoader(dir string, loggerInfo func(msg string, args ...any), loggerWarn func(msg string, args ...any)) port.TokenProvider {
	return &TokenFileLoader{
		tokenDirPath: dir,
		loggerInfo:   loggerInfo,
		loggerWarn:   loggerWarn,
	}
}

// GetTokensByNetwork returns the tokens found for each known network, keyed by identifier.
// A missing directory is not an error.
func (l *TokenFileLoader) GetTokensByNetwork(defs []entity.NetworkDefinition) (map[string][]entity.Token, error) {
	tokensByNetwork := make(map[string][]entity.Token)

	files, err := os.ReadDir(l.tokenDirPath)
	if errors.Is(err, os.ErrNotExist) {
		if l.loggerInfo != nil {
			l.loggerInfo("Token directory not found, using built-in token lists", "path", l.tokenDirPath)
		}
		return tokensByNetwork, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token directory %s: %w", l.tokenDirPath, err)
	}

	known := make(map[string]entity.NetworkDefinition, len(defs))
	for _, def := range defs {
		known[def.Identifier] = def
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}

		identifier := strings.ToLower(strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())))
		def, ok := known[identifier]
		if !ok {
			if l.loggerWarn != nil {
				l.loggerWarn("Token file found for an unknown network, skipping", "file", file.Name())
			}
			continue
		}

		path := filepath.Join(l.tokenDirPath, file.Name())
		tokens, err := utils.LoadTokensFromJSON(path)
		if err != nil {
			if l.loggerWarn != nil {
				l.loggerWarn("Failed to load token file, skipping", "path", path, "error", err)
			}
			continue
		}

		valid := make([]entity.Token, 0, len(tokens))
		for _, token := range tokens {
			if token.ID == "" {
				if l.loggerWarn != nil {
					l.loggerWarn("Token without id, skipping", "path", path, "symbol", token.Symbol)
				}
				continue
			}
			if token.IsNative() && def.Family == entity.FamilyEVM && token.Decimals != nil && *token.Decimals != def.Decimals {
				if l.loggerWarn != nil {
					l.loggerWarn("Native token decimals differ from network definition, skipping", "path", path, "token", token.ID)
				}
				continue
			}
			valid = append(valid, token)
		}

		if len(valid) > 0 {
			tokensByNetwork[identifier] = append(tokensByNetwork[identifier], valid...)
			if l.loggerInfo != nil {
				l.loggerInfo("Loaded tokens from file", "network", identifier, "count", len(valid))
			}
		}
	}

	return tokensByNetwork, nil
}
