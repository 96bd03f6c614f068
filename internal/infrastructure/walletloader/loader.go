package walletloader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
)

// WalletFileLoader implements port.WalletProvider. Each non-empty line of the
// file is "address;secret[;version]" where secret is a hex private key or a
// space separated mnemonic. Lines starting with # are ignored.
type WalletFileLoader struct {
	filePath   string
	loggerInfo func(msg string, args ...any)
}

// NewWalletFileLoader creates a new WalletFileLoader.
func NewWalletFileLoader(filePath string, loggerInfo func(msg string, args ...any)) port.WalletProvider {
	return &WalletFileLoader{
		filePath:   filePath,
		loggerInfo: loggerInfo,
	}
}

// GetWallets reads credentials from the configured file path.
func (l *WalletFileLoader) GetWallets() ([]entity.Wallet, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", l.filePath, err)
	}
	defer file.Close()

	wallets, err := ParseWallets(file)
	if err != nil {
		return nil, fmt.Errorf("wallet file %s: %w", l.filePath, err)
	}
	if l.loggerInfo != nil {
		l.loggerInfo("Wallets loaded successfully from file", "count", len(wallets), "path", l.filePath)
	}
	return wallets, nil
}

// ParseWallets parses credential lines.
func ParseWallets(r io.Reader) ([]entity.Wallet, error) {
	var wallets []entity.Wallet
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		w, err := parseWalletLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		wallets = append(wallets, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallets: %w", err)
	}
	return wallets, nil
}

func parseWalletLine(line string) (entity.Wallet, error) {
	parts := strings.Split(line, ";")
	if len(parts) < 2 || len(parts) > 3 {
		return entity.Wallet{}, fmt.Errorf("expected address;secret[;version], got %d fields", len(parts))
	}
	w := entity.Wallet{Address: strings.TrimSpace(parts[0])}
	secret := strings.Join(strings.Fields(parts[1]), " ")
	if secret == "" {
		return entity.Wallet{}, fmt.Errorf("empty secret for %s", w.Address)
	}
	if strings.Contains(secret, " ") {
		w.Mnemonic = secret
	} else {
		w.PrivateKey = secret
	}
	if len(parts) == 3 {
		v, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return entity.Wallet{}, fmt.Errorf("invalid wallet version %q: %w", parts[2], err)
		}
		w.Version = v
	}
	return w, nil
}

// AddressFileLoader implements port.AddressProvider with one address per line.
type AddressFileLoader struct {
	filePath string
}

// NewAddressFileLoader creates a new AddressFileLoader.
func NewAddressFileLoader(filePath string) port.AddressProvider {
	return &AddressFileLoader{filePath: filePath}
}

// GetAddresses reads recipient addresses, skipping blanks and comments.
func (l *AddressFileLoader) GetAddresses() ([]string, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open address file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning address file %s: %w", l.filePath, err)
	}
	return out, nil
}
