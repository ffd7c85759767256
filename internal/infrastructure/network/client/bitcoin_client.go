package client

import (
	"context"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"

	"github.com/mr-tron/base58"
)

// bech32 charset excludes 1, b, i and o after the separator.
var bech32AddressRe = regexp.MustCompile(`^(bc|tb)1[02-9ac-hj-np-z]{11,71}$`)

// BitcoinClient implements port.ChainAdapter over an Esplora-compatible API.
type BitcoinClient struct {
	http   *httpclient.JSONClient
	netDef entity.NetworkDefinition
	logger port.Logger
}

// NewBitcoinClient creates a Bitcoin adapter.
func NewBitcoinClient(netDef entity.NetworkDefinition, http *httpclient.JSONClient, logger port.Logger) *BitcoinClient {
	return &BitcoinClient{http: http, netDef: netDef, logger: logger}
}

var _ port.ChainAdapter = (*BitcoinClient)(nil)

type esploraAddress struct {
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
	} `json:"chain_stats"`
}

type esploraOutput struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

type esploraTx struct {
	TxID   string `json:"txid"`
	Fee    int64  `json:"fee"`
	Status struct {
		Confirmed bool  `json:"confirmed"`
		BlockTime int64 `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		Prevout *esploraOutput `json:"prevout"`
	} `json:"vin"`
	Vout []esploraOutput `json:"vout"`
}

// Network returns the network definition for this adapter.
func (c *BitcoinClient) Network() entity.NetworkDefinition {
	return c.netDef
}

// ValidateAddress accepts base58check legacy/P2SH addresses and bech32 segwit addresses.
func (c *BitcoinClient) ValidateAddress(address string) error {
	if bech32AddressRe.MatchString(strings.ToLower(address)) && (address == strings.ToLower(address) || address == strings.ToUpper(address)) {
		return nil
	}
	if decoded, err := base58.Decode(address); err == nil && len(decoded) == 25 {
		return nil
	}
	return entity.NewValidationError("address", "invalid Bitcoin address %q", address)
}

func addressPath(address string, suffix string) string {
	return "/address/" + url.PathEscape(address) + suffix
}

// GetBalance returns the confirmed balance in satoshis.
func (c *BitcoinClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var res esploraAddress
	if err := c.http.GetJSON(ctx, "address", addressPath(address, ""), nil, &res); err != nil {
		return nil, err
	}
	return big.NewInt(res.ChainStats.FundedTxoSum - res.ChainStats.SpentTxoSum), nil
}

// GetTokenBalances returns nothing; Bitcoin has no fungible tokens here.
func (c *BitcoinClient) GetTokenBalances(context.Context, string) ([]entity.TokenBalance, error) {
	return []entity.TokenBalance{}, nil
}

// FetchTransactions returns the address history known to the explorer, mempool included.
func (c *BitcoinClient) FetchTransactions(ctx context.Context, address string) ([]entity.RawTransaction, error) {
	var txs []esploraTx
	if err := c.http.GetJSON(ctx, "address.txs", addressPath(address, "/txs"), nil, &txs); err != nil {
		return nil, err
	}

	result := make([]entity.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		raw := entity.BitcoinRawTx{
			TxID:      tx.TxID,
			Confirmed: tx.Status.Confirmed,
			BlockTime: tx.Status.BlockTime,
			Fee:       tx.Fee,
			Outputs:   make([]entity.BitcoinTxIO, 0, len(tx.Vout)),
		}
		for _, in := range tx.Vin {
			if in.Prevout == nil {
				continue // coinbase
			}
			raw.Inputs = append(raw.Inputs, entity.BitcoinTxIO{Address: in.Prevout.ScriptPubKeyAddress, Value: in.Prevout.Value})
		}
		for _, out := range tx.Vout {
			raw.Outputs = append(raw.Outputs, entity.BitcoinTxIO{Address: out.ScriptPubKeyAddress, Value: out.Value})
		}
		result = append(result, raw)
	}
	return result, nil
}

// GetNfts returns nothing; Bitcoin has no NFT support here.
func (c *BitcoinClient) GetNfts(context.Context, string) ([]entity.Nft, error) {
	return []entity.Nft{}, nil
}

// VerifyContract is not applicable to Bitcoin.
func (c *BitcoinClient) VerifyContract(context.Context, string) (entity.ContractVerification, error) {
	return entity.ContractVerification{IsVerified: false, Message: "Contract verification is not supported on " + c.netDef.Name}, nil
}
