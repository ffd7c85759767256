package entity

import (
	"strings"
	"time"
)

// TxType is the best-effort classification of a transaction relative to the queried wallet.
type TxType string

const (
	TxTypeSend       TxType = "Send"
	TxTypeReceive    TxType = "Receive"
	TxTypeSwap       TxType = "Swap"
	TxTypeBuy        TxType = "Buy"
	TxTypeNFTSend    TxType = "NFT Send"
	TxTypeNFTReceive TxType = "NFT Receive"
)

// TxStatus is the chain-agnostic settlement status.
type TxStatus string

const (
	TxStatusCompleted TxStatus = "Completed"
	TxStatusPending   TxStatus = "Pending"
	TxStatusFailed    TxStatus = "Failed"
)

// NFTTicker marks the synthetic asset attached to NFT transfers.
const NFTTicker = "NFT"

// Transaction is a single on-chain event affecting one wallet, in canonical form.
// (ID, Wallet, Chain) is the upsert key; Wallet and Chain are stored lower-cased.
type Transaction struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	Type         TxType    `json:"type"`
	Asset        Asset     `json:"asset"`
	AmountCrypto float64   `json:"amountCrypto"`
	AmountUSD    float64   `json:"amountUSD"`
	Status       TxStatus  `json:"status"`
	Address      string    `json:"address"`
	Wallet       string    `json:"wallet"`
	Chain        string    `json:"chain"`
	GasFeeUSD    float64   `json:"gasFeeUSD"`
}

// NormalizeKey lower-cases a wallet address or chain identifier for keying.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
