package entity

import "math/big"

// TokenInfo holds the static details of a specific token.
type TokenInfo struct {
	ChainID     uint64 `json:"chainId"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	CoinGeckoID string `json:"coingeckoId,omitempty"`
}

// TokenBalance is a fungible token position reconstructed by a chain adapter.
// Amount is in raw chain units; it may be negative when the transfer history is inconsistent.
type TokenBalance struct {
	ContractAddress string   `json:"contractAddress"`
	Name            string   `json:"name"`
	Symbol          string   `json:"symbol"`
	Decimals        uint8    `json:"decimals"`
	Amount          *big.Int `json:"amount"`
	// UIAmount is set by adapters whose upstream already reports a human-readable balance.
	UIAmount *float64 `json:"uiAmount,omitempty"`
}
