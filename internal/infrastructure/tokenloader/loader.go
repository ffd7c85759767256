package tokenloader

import (
	"os"
	"path/filepath"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

// defaultSymbolIDs maps ticker symbols to CoinGecko ids for the common assets.
var defaultSymbolIDs = map[string]string{ //nolint:gochecknoglobals
	"ETH":   "ethereum",
	"WETH":  "weth",
	"BTC":   "bitcoin",
	"WBTC":  "wrapped-bitcoin",
	"SOL":   "solana",
	"TON":   "the-open-network",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"DAI":   "dai",
	"MATIC": "matic-network",
	"POL":   "polygon-ecosystem-token",
	"AVAX":  "avalanche-2",
	"BNB":   "binancecoin",
	"OP":    "optimism",
	"ARB":   "arbitrum",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"AAVE":  "aave",
	"SHIB":  "shiba-inu",
	"PEPE":  "pepe",
}

// defaultSolanaMints are well-known SPL mints; token account data carries no symbol.
var defaultSolanaMints = []entity.TokenInfo{ //nolint:gochecknoglobals
	{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Name: "USD Coin", Symbol: "USDC", Decimals: 6, CoinGeckoID: "usd-coin"},
	{Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Name: "Tether USD", Symbol: "USDT", Decimals: 6, CoinGeckoID: "tether"},
	{Address: "So11111111111111111111111111111111111111112", Name: "Wrapped SOL", Symbol: "SOL", Decimals: 9, CoinGeckoID: "solana"},
}

// TokenFileLoader implements the port.TokenProvider interface.
type TokenFileLoader struct {
	symbols   map[string]string
	byAddress map[string]entity.TokenInfo
	families  map[string]entity.ChainFamily
}

// NewTokenLoader builds the token table from the defaults plus <network>.json files in tokenDir.
// A missing directory is not an error; the defaults still apply.
func NewTokenLoader(tokenDir string, networks []entity.NetworkDefinition, loggerInfo func(msg string, args ...any), loggerWarn func(msg string, args ...any)) *TokenFileLoader {
	l := &TokenFileLoader{
		symbols:   make(map[string]string, len(defaultSymbolIDs)),
		byAddress: make(map[string]entity.TokenInfo),
		families:  make(map[string]entity.ChainFamily, len(networks)),
	}
	for symbol, id := range defaultSymbolIDs {
		l.symbols[symbol] = id
	}
	for _, n := range networks {
		l.families[n.Identifier] = n.Family
	}
	for _, t := range defaultSolanaMints {
		l.add("solana", t)
	}

	if tokenDir == "" {
		return l
	}
	files, err := os.ReadDir(tokenDir)
	if err != nil {
		if loggerWarn != nil {
			loggerWarn("Failed to read token directory, only built-in tokens are known", "path", tokenDir, "error", err)
		}
		return l
	}

	networksByID := make(map[string]entity.NetworkDefinition, len(networks))
	for _, n := range networks {
		networksByID[n.Identifier] = n
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}
		identifier := strings.TrimSuffix(strings.ToLower(file.Name()), ".json")
		networkDef, known := networksByID[identifier]
		if !known {
			if loggerInfo != nil {
				loggerInfo("Token file found for an unknown network, skipping.", "file", file.Name())
			}
			continue
		}

		filePath := filepath.Join(tokenDir, file.Name())
		tokensInFile, err := utils.LoadJSONFile[[]entity.TokenInfo](filePath)
		if err != nil {
			if loggerWarn != nil {
				loggerWarn("Failed to load tokens from file, skipping file.", "path", filePath, "error", err)
			}
			continue
		}

		loaded := 0
		for _, token := range tokensInFile {
			if networkDef.IsEVM() && token.ChainID != 0 && token.ChainID != networkDef.ChainID {
				if loggerWarn != nil {
					loggerWarn("Token has mismatched ChainID in file, skipping token.",
						"file", filePath, "token_symbol", token.Symbol, "token_chain_id", token.ChainID,
						"expected_chain_id", networkDef.ChainID)
				}
				continue
			}
			l.add(identifier, token)
			loaded++
		}
		if loggerInfo != nil {
			loggerInfo("Loaded tokens for network from file", "network_identifier", identifier, "count", loaded)
		}
	}
	return l
}

func (l *TokenFileLoader) add(chain string, token entity.TokenInfo) {
	l.byAddress[l.addressKey(chain, token.Address)] = token
	if token.CoinGeckoID != "" && token.Symbol != "" {
		if _, exists := l.symbols[strings.ToUpper(token.Symbol)]; !exists {
			l.symbols[strings.ToUpper(token.Symbol)] = token.CoinGeckoID
		}
	}
}

func (l *TokenFileLoader) addressKey(chain, address string) string {
	chain = strings.ToLower(chain)
	if fam, ok := l.families[chain]; !ok || fam == entity.FamilyEVM {
		address = strings.ToLower(address)
	}
	return chain + ":" + address
}

// CoinGeckoID resolves a ticker symbol, case-insensitively.
func (l *TokenFileLoader) CoinGeckoID(symbol string) (string, bool) {
	id, ok := l.symbols[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

// TokenByAddress returns static metadata for a contract address or mint.
func (l *TokenFileLoader) TokenByAddress(chain, address string) (entity.TokenInfo, bool) {
	t, ok := l.byAddress[l.addressKey(chain, address)]
	return t, ok
}
