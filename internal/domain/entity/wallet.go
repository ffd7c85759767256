package entity

import "time"

// DefaultUserID scopes wallets while there is no user management.
const DefaultUserID = "main_user"

// Wallet is a user-registered (chain, address) pair with a display name.
type Wallet struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Chain     string    `json:"chain"`
	CreatedAt time.Time `json:"createdAt"`
}

// Nft is a non-fungible holding, best effort per chain.
type Nft struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Collection      string `json:"collection"`
	ContractAddress string `json:"contractAddress,omitempty"`
	ImageURL        string `json:"imageUrl"`
	Chain           string `json:"chain"`
}

// ContractVerification is the result of a source-verification lookup.
type ContractVerification struct {
	IsVerified bool   `json:"isVerified"`
	Message    string `json:"message,omitempty"`
}
