package walletloader

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
)

// WalletFileLoader implements the port.WalletProvider interface by loading wallets from a file.
//
// Each non-comment line is "chain,address[,name]". A bare 0x address is read as an Ethereum wallet.
type WalletFileLoader struct {
	filePath   string
	loggerInfo func(msg string, args ...any)
}

// NewWalletFileLoader creates a new WalletFileLoader.
func NewWalletFileLoader(filePath string, loggerInfo func(msg string, args ...any)) *WalletFileLoader {
	return &WalletFileLoader{
		filePath:   filePath,
		loggerInfo: loggerInfo,
	}
}

// GetWallets reads wallets from the configured file path. A missing file yields no wallets.
func (l *WalletFileLoader) GetWallets() ([]entity.Wallet, error) {
	if l.filePath == "" {
		return nil, nil
	}
	file, err := os.Open(l.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open wallet file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var wallets []entity.Wallet
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		var w entity.Wallet
		switch {
		case len(parts) == 1 && strings.HasPrefix(parts[0], "0x") && len(parts[0]) == 42:
			w = entity.Wallet{Chain: "ethereum", Address: parts[0]}
		case len(parts) >= 2 && parts[0] != "" && parts[1] != "":
			w = entity.Wallet{Chain: strings.ToLower(parts[0]), Address: parts[1]}
			if len(parts) >= 3 {
				w.Name = parts[2]
			}
		default:
			if l.loggerInfo != nil {
				l.loggerInfo("Skipping invalid wallet line", "file", l.filePath, "line_number", lineNum)
			}
			continue
		}
		if w.Name == "" {
			w.Name = fmt.Sprintf("%s wallet %d", w.Chain, len(wallets)+1)
		}
		wallets = append(wallets, w)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", l.filePath, err)
	}

	if l.loggerInfo != nil {
		l.loggerInfo("Wallets loaded successfully from file", "count", len(wallets), "path", l.filePath)
	}
	return wallets, nil
}
