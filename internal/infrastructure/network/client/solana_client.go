package client

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"

	jsoniter "github.com/json-iterator/go"
	"github.com/mr-tron/base58"
	"golang.org/x/sync/errgroup"
)

const (
	splTokenProgramID          = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	solanaTxFetchConcurrency   = 4
	defaultSolanaMaxSignatures = 50
)

// SolanaClient implements port.ChainAdapter over Solana JSON-RPC.
type SolanaClient struct {
	http          *httpclient.JSONClient
	netDef        entity.NetworkDefinition
	apiKey        string
	maxSignatures int
	logger        port.Logger
}

// NewSolanaClient creates a Solana adapter. apiKey, when set, is sent as the api-key query parameter.
func NewSolanaClient(netDef entity.NetworkDefinition, http *httpclient.JSONClient, apiKey string, maxSignatures int, logger port.Logger) *SolanaClient {
	if maxSignatures <= 0 {
		maxSignatures = defaultSolanaMaxSignatures
	}
	return &SolanaClient{http: http, netDef: netDef, apiKey: apiKey, maxSignatures: maxSignatures, logger: logger}
}

var _ port.ChainAdapter = (*SolanaClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

type solanaBalanceResult struct {
	Value uint64 `json:"value"`
}

type solanaTokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string   `json:"amount"`
							Decimals uint8    `json:"decimals"`
							UIAmount *float64 `json:"uiAmount"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

type solanaSignature struct {
	Signature string `json:"signature"`
	BlockTime *int64 `json:"blockTime"`
}

type solanaTransaction struct {
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Fee          uint64              `json:"fee"`
		Err          jsoniter.RawMessage `json:"err"`
		PreBalances  []uint64            `json:"preBalances"`
		PostBalances []uint64            `json:"postBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// Network returns the network definition for this adapter.
func (c *SolanaClient) Network() entity.NetworkDefinition {
	return c.netDef
}

// ValidateAddress accepts base58 strings that decode to a 32-byte public key.
func (c *SolanaClient) ValidateAddress(address string) error {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return entity.NewValidationError("address", "invalid Solana address %q", address)
	}
	return nil
}

func (c *SolanaClient) rpc(ctx context.Context, method string, out any, params ...any) error {
	path := ""
	if c.apiKey != "" {
		path = "?" + url.Values{"api-key": {c.apiKey}}.Encode()
	}
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}

	var resp rpcResponse
	if err := c.http.PostJSON(ctx, method, path, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return &entity.UpstreamError{
			Provider: c.http.Provider(),
			Op:       method,
			Err:      fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message),
		}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &entity.UpstreamError{Provider: c.http.Provider(), Op: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// GetBalance returns the balance in lamports.
func (c *SolanaClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var res solanaBalanceResult
	if err := c.rpc(ctx, "getBalance", &res, address); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(res.Value), nil
}

// GetTokenBalances lists SPL token accounts with a non-zero balance.
// Name and symbol are left for the caller to resolve from the mint.
func (c *SolanaClient) GetTokenBalances(ctx context.Context, address string) ([]entity.TokenBalance, error) {
	var res solanaTokenAccountsResult
	err := c.rpc(ctx, "getTokenAccountsByOwner", &res,
		address,
		map[string]string{"programId": splTokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	)
	if err != nil {
		return nil, err
	}

	result := make([]entity.TokenBalance, 0, len(res.Value))
	for _, acc := range res.Value {
		info := acc.Account.Data.Parsed.Info
		amount, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
		if !ok || amount.Sign() == 0 {
			continue
		}
		result = append(result, entity.TokenBalance{
			ContractAddress: info.Mint,
			Decimals:        info.TokenAmount.Decimals,
			Amount:          amount,
			UIAmount:        info.TokenAmount.UIAmount,
		})
	}
	return result, nil
}

// FetchTransactions loads the most recent signatures and resolves each one.
// Signatures the node no longer returns are skipped.
func (c *SolanaClient) FetchTransactions(ctx context.Context, address string) ([]entity.RawTransaction, error) {
	var sigs []solanaSignature
	if err := c.rpc(ctx, "getSignaturesForAddress", &sigs, address, map[string]int{"limit": c.maxSignatures}); err != nil {
		return nil, err
	}

	txs := make([]*entity.SolanaRawTx, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(solanaTxFetchConcurrency)
	for i, sig := range sigs {
		g.Go(func() error {
			var tx *solanaTransaction
			err := c.rpc(gctx, "getTransaction", &tx, sig.Signature,
				map[string]any{"encoding": "json", "maxSupportedTransactionVersion": 0})
			if err != nil {
				return err
			}
			if tx == nil || tx.Meta == nil {
				c.logger.Debug("Solana transaction not available", "signature", sig.Signature)
				return nil
			}
			txs[i] = toSolanaRawTx(sig, tx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]entity.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		if tx != nil {
			result = append(result, *tx)
		}
	}
	return result, nil
}

func toSolanaRawTx(sig solanaSignature, tx *solanaTransaction) *entity.SolanaRawTx {
	raw := &entity.SolanaRawTx{
		Signature:    sig.Signature,
		Fee:          tx.Meta.Fee,
		Failed:       len(tx.Meta.Err) > 0 && string(tx.Meta.Err) != "null",
		PreBalances:  tx.Meta.PreBalances,
		PostBalances: tx.Meta.PostBalances,
		AccountKeys:  tx.Transaction.Message.AccountKeys,
	}
	switch {
	case tx.BlockTime != nil:
		raw.BlockTime = *tx.BlockTime
	case sig.BlockTime != nil:
		raw.BlockTime = *sig.BlockTime
	}
	return raw
}

// GetNfts is not supported on Solana yet.
func (c *SolanaClient) GetNfts(context.Context, string) ([]entity.Nft, error) {
	return []entity.Nft{}, nil
}

// VerifyContract is not supported on Solana.
func (c *SolanaClient) VerifyContract(context.Context, string) (entity.ContractVerification, error) {
	return entity.ContractVerification{IsVerified: false, Message: "Contract verification is not supported on " + c.netDef.Name}, nil
}
