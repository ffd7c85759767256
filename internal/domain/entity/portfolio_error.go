package entity

// PortfolioError represents an error that occurred while fetching one wallet
// during a multi-wallet aggregation. The aggregation still returns the other wallets.
type PortfolioError struct {
	WalletID      string `json:"walletId,omitempty"`
	WalletAddress string `json:"walletAddress"`
	Chain         string `json:"chain"`
	Message       string `json:"message"`
}
