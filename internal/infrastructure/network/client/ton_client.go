package client

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strconv"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
)

const defaultTONLimit = 100

var (
	tonRawAddressRe      = regexp.MustCompile(`^-?[0-9]+:[0-9a-fA-F]{64}$`)
	tonFriendlyAddressRe = regexp.MustCompile(`^[A-Za-z0-9_+/-]{48}$`)
)

// TONClient implements port.ChainAdapter over toncenter API v2.
// The API key travels in the X-API-Key header configured on the JSON client.
type TONClient struct {
	http   *httpclient.JSONClient
	netDef entity.NetworkDefinition
	limit  int
	logger port.Logger
}

// NewTONClient creates a TON adapter.
func NewTONClient(netDef entity.NetworkDefinition, http *httpclient.JSONClient, limit int, logger port.Logger) *TONClient {
	if limit <= 0 {
		limit = defaultTONLimit
	}
	return &TONClient{http: http, netDef: netDef, limit: limit, logger: logger}
}

var _ port.ChainAdapter = (*TONClient)(nil)

type toncenterEnvelope struct {
	OK     bool                `json:"ok"`
	Result jsoniter.RawMessage `json:"result"`
	Error  string              `json:"error"`
}

type toncenterMessage struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Value       string `json:"value"`
}

type toncenterTx struct {
	UTime         int64 `json:"utime"`
	TransactionID struct {
		Hash string `json:"hash"`
		LT   string `json:"lt"`
	} `json:"transaction_id"`
	Fee        string             `json:"fee"`
	StorageFee string             `json:"storage_fee"`
	OtherFee   string             `json:"other_fee"`
	InMsg      *toncenterMessage  `json:"in_msg"`
	OutMsgs    []toncenterMessage `json:"out_msgs"`
}

// Network returns the network definition for this adapter.
func (c *TONClient) Network() entity.NetworkDefinition {
	return c.netDef
}

// ValidateAddress accepts raw (workchain:hex) and 48-character user-friendly forms.
func (c *TONClient) ValidateAddress(address string) error {
	if tonRawAddressRe.MatchString(address) || tonFriendlyAddressRe.MatchString(address) {
		return nil
	}
	return entity.NewValidationError("address", "invalid TON address %q", address)
}

func (c *TONClient) get(ctx context.Context, method string, query url.Values, out any) error {
	var env toncenterEnvelope
	if err := c.http.GetJSON(ctx, method, "/"+method, query, &env); err != nil {
		return err
	}
	if !env.OK {
		return &entity.UpstreamError{Provider: c.http.Provider(), Op: method, Err: fmt.Errorf("%s", env.Error)}
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &entity.UpstreamError{Provider: c.http.Provider(), Op: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// GetBalance returns the balance in nanotons.
func (c *TONClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var raw jsoniter.RawMessage
	if err := c.get(ctx, "getAddressBalance", url.Values{"address": {address}}, &raw); err != nil {
		return nil, err
	}
	// toncenter returns the balance as a string; some proxies return a number.
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	balance, err := utils.ParseBigInt(s)
	if err != nil {
		return nil, &entity.UpstreamError{Provider: c.http.Provider(), Op: "getAddressBalance", Err: err}
	}
	return balance, nil
}

// GetTokenBalances returns nothing; jettons are not tracked.
func (c *TONClient) GetTokenBalances(context.Context, string) ([]entity.TokenBalance, error) {
	return []entity.TokenBalance{}, nil
}

// FetchTransactions returns the latest transactions up to the configured limit.
func (c *TONClient) FetchTransactions(ctx context.Context, address string) ([]entity.RawTransaction, error) {
	var txs []toncenterTx
	query := url.Values{"address": {address}, "limit": {strconv.Itoa(c.limit)}}
	if err := c.get(ctx, "getTransactions", query, &txs); err != nil {
		return nil, err
	}

	result := make([]entity.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		raw := entity.TONRawTx{
			Hash:       tx.TransactionID.Hash,
			UTime:      tx.UTime,
			Fee:        utils.ParseBigIntOrZero(tx.Fee),
			StorageFee: utils.ParseBigIntOrZero(tx.StorageFee),
			OtherFee:   utils.ParseBigIntOrZero(tx.OtherFee),
		}
		if tx.InMsg != nil {
			raw.InMsg = toTONMessage(*tx.InMsg)
		}
		for _, m := range tx.OutMsgs {
			raw.OutMsgs = append(raw.OutMsgs, *toTONMessage(m))
		}
		result = append(result, raw)
	}
	return result, nil
}

func toTONMessage(m toncenterMessage) *entity.TONMessage {
	return &entity.TONMessage{
		Source:      m.Source,
		Destination: m.Destination,
		Value:       utils.ParseBigIntOrZero(m.Value),
	}
}

// GetNfts returns nothing; TON NFTs are not tracked.
func (c *TONClient) GetNfts(context.Context, string) ([]entity.Nft, error) {
	return []entity.Nft{}, nil
}

// VerifyContract is not supported on TON.
func (c *TONClient) VerifyContract(context.Context, string) (entity.ContractVerification, error) {
	return entity.ContractVerification{IsVerified: false, Message: "Contract verification is not supported on " + c.netDef.Name}, nil
}
