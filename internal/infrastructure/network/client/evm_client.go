package client

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nativeBalanceReader is satisfied by EVMRPCClient.
type nativeBalanceReader interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
}

// EVMClient implements port.ChainAdapter for EVM-compatible chains on top of the
// Etherscan v2 multichain API. One API key serves every chain via the chainid parameter.
type EVMClient struct {
	http   *httpclient.JSONClient
	apiKey string
	netDef entity.NetworkDefinition
	rpc    nativeBalanceReader // optional
	logger port.Logger
}

// NewEVMClient creates a new EVM adapter. rpc may be nil.
func NewEVMClient(netDef entity.NetworkDefinition, http *httpclient.JSONClient, apiKey string, rpc nativeBalanceReader, logger port.Logger) *EVMClient {
	return &EVMClient{http: http, apiKey: apiKey, netDef: netDef, rpc: rpc, logger: logger}
}

var _ port.ChainAdapter = (*EVMClient)(nil)

type etherscanEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
}

// etherscanTx covers txlist, tokentx and tokennfttx rows.
type etherscanTx struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	TokenID         string `json:"tokenID"`
	GasUsed         string `json:"gasUsed"`
	GasPrice        string `json:"gasPrice"`
	IsError         string `json:"isError"`
}

type etherscanSource struct {
	SourceCode   string `json:"SourceCode"`
	ContractName string `json:"ContractName"`
}

// Network returns the network definition for this adapter.
func (c *EVMClient) Network() entity.NetworkDefinition {
	return c.netDef
}

// ValidateAddress accepts 0x-prefixed 20-byte hex addresses in any case.
func (c *EVMClient) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return entity.NewValidationError("address", "invalid %s address %q", c.netDef.Name, address)
	}
	return nil
}

func isEmptyResult(env etherscanEnvelope) bool {
	msg := strings.ToLower(env.Message + " " + string(env.Result))
	return strings.Contains(msg, "no transactions found") || strings.Contains(msg, "no records found")
}

// call performs one Etherscan request and decodes result into out.
// status "0" with an empty-history message leaves out untouched.
func (c *EVMClient) call(ctx context.Context, module, action string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("chainid", strconv.FormatUint(c.netDef.ChainID, 10))
	q.Set("module", module)
	q.Set("action", action)
	q.Set("apikey", c.apiKey)

	op := module + "." + action
	var env etherscanEnvelope
	if err := c.http.GetJSON(ctx, op, "", q, &env); err != nil {
		return err
	}
	if env.Status == "0" {
		if isEmptyResult(env) {
			return nil
		}
		var detail string
		if err := json.Unmarshal(env.Result, &detail); err != nil || detail == "" {
			detail = env.Message
		}
		return &entity.UpstreamError{Provider: c.http.Provider(), Op: op, Err: fmt.Errorf("%s", detail)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &entity.UpstreamError{Provider: c.http.Provider(), Op: op, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

func historyParams(address, sortOrder string) url.Values {
	return url.Values{
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"sort":       {sortOrder},
	}
}

// GetBalance returns the native balance in wei. The node is asked first when
// configured; Etherscan is the fallback.
func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if c.rpc != nil {
		balance, err := c.rpc.NativeBalance(ctx, address)
		if err == nil {
			return balance, nil
		}
		c.logger.Warn("RPC balance failed, falling back to explorer", "network", c.netDef.Identifier, "error", err)
	}

	var raw string
	err := c.call(ctx, "account", "balance", url.Values{"address": {address}, "tag": {"latest"}}, &raw)
	if err != nil {
		return nil, err
	}
	balance, err := utils.ParseBigInt(raw)
	if err != nil {
		return nil, &entity.UpstreamError{Provider: c.http.Provider(), Op: "account.balance", Err: err}
	}
	return balance, nil
}

func (c *EVMClient) list(ctx context.Context, action, address string) ([]etherscanTx, error) {
	var rows []etherscanTx
	if err := c.call(ctx, "account", action, historyParams(address, "asc"), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetTokenBalances replays the ERC-20 transfer history of the address.
// Non-zero positions are returned, sorted by contract address.
func (c *EVMClient) GetTokenBalances(ctx context.Context, address string) ([]entity.TokenBalance, error) {
	rows, err := c.list(ctx, "tokentx", address)
	if err != nil {
		return nil, err
	}
	return replayTokenTransfers(address, rows), nil
}

func replayTokenTransfers(address string, rows []etherscanTx) []entity.TokenBalance {
	owner := strings.ToLower(address)
	positions := make(map[string]*entity.TokenBalance)

	for _, row := range rows {
		contract := strings.ToLower(row.ContractAddress)
		pos, ok := positions[contract]
		if !ok {
			decimals, _ := strconv.ParseUint(row.TokenDecimal, 10, 8)
			pos = &entity.TokenBalance{
				ContractAddress: contract,
				Name:            row.TokenName,
				Symbol:          row.TokenSymbol,
				Decimals:        uint8(decimals),
				Amount:          new(big.Int),
			}
			positions[contract] = pos
		}

		value := utils.ParseBigIntOrZero(row.Value)
		switch {
		case strings.EqualFold(row.To, owner):
			pos.Amount.Add(pos.Amount, value)
		case strings.EqualFold(row.From, owner):
			pos.Amount.Sub(pos.Amount, value)
		}
	}

	result := make([]entity.TokenBalance, 0, len(positions))
	for _, pos := range positions {
		if pos.Amount.Sign() == 0 {
			continue
		}
		result = append(result, *pos)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContractAddress < result[j].ContractAddress })
	return result
}

// FetchTransactions returns normal, token and NFT rows in that order.
// The three lists are fetched concurrently; any failure fails the whole call.
func (c *EVMClient) FetchTransactions(ctx context.Context, address string) ([]entity.RawTransaction, error) {
	var normal, token, nft []etherscanTx

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { normal, err = c.list(gctx, "txlist", address); return })
	g.Go(func() (err error) { token, err = c.list(gctx, "tokentx", address); return })
	g.Go(func() (err error) { nft, err = c.list(gctx, "tokennfttx", address); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]entity.RawTransaction, 0, len(normal)+len(token)+len(nft))
	for _, row := range normal {
		result = append(result, toEVMRawTx(entity.EVMTxNormal, row))
	}
	for _, row := range token {
		result = append(result, toEVMRawTx(entity.EVMTxToken, row))
	}
	for _, row := range nft {
		result = append(result, toEVMRawTx(entity.EVMTxNFT, row))
	}
	return result, nil
}

func toEVMRawTx(kind entity.EVMTxKind, row etherscanTx) entity.EVMRawTx {
	ts, _ := strconv.ParseInt(row.TimeStamp, 10, 64)
	tx := entity.EVMRawTx{
		Kind:            kind,
		Hash:            row.Hash,
		Timestamp:       ts,
		From:            row.From,
		To:              row.To,
		Value:           utils.ParseBigIntOrZero(row.Value),
		ContractAddress: row.ContractAddress,
		TokenName:       row.TokenName,
		TokenSymbol:     row.TokenSymbol,
		TokenID:         row.TokenID,
		GasUsed:         utils.ParseBigIntOrZero(row.GasUsed),
		GasPrice:        utils.ParseBigIntOrZero(row.GasPrice),
		IsError:         row.IsError,
	}
	if row.TokenDecimal != "" {
		if d, err := strconv.ParseUint(row.TokenDecimal, 10, 8); err == nil {
			decimals := uint8(d)
			tx.TokenDecimals = &decimals
		}
	}
	return tx
}

// GetNfts reconstructs current holdings from the ERC-721 transfer history.
func (c *EVMClient) GetNfts(ctx context.Context, address string) ([]entity.Nft, error) {
	rows, err := c.list(ctx, "tokennfttx", address)
	if err != nil {
		return nil, err
	}
	return replayNFTTransfers(address, c.netDef.Identifier, rows), nil
}

func replayNFTTransfers(address, chain string, rows []etherscanTx) []entity.Nft {
	owner := strings.ToLower(address)
	held := make(map[string]entity.Nft)

	for _, row := range rows {
		key := strings.ToLower(row.ContractAddress) + "/" + row.TokenID
		switch {
		case strings.EqualFold(row.To, owner):
			held[key] = entity.Nft{
				ID:              row.TokenID,
				Name:            row.TokenName,
				Collection:      row.TokenName,
				ContractAddress: strings.ToLower(row.ContractAddress),
				ImageURL:        "",
				Chain:           chain,
			}
		case strings.EqualFold(row.From, owner):
			delete(held, key)
		}
	}

	keys := make([]string, 0, len(held))
	for k := range held {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]entity.Nft, 0, len(keys))
	for _, k := range keys {
		result = append(result, held[k])
	}
	return result
}

// VerifyContract reports whether the explorer has verified source code for the contract.
func (c *EVMClient) VerifyContract(ctx context.Context, address string) (entity.ContractVerification, error) {
	var sources []etherscanSource
	if err := c.call(ctx, "contract", "getsourcecode", url.Values{"address": {address}}, &sources); err != nil {
		return entity.ContractVerification{}, err
	}
	if len(sources) > 0 && sources[0].SourceCode != "" {
		return entity.ContractVerification{IsVerified: true}, nil
	}
	return entity.ContractVerification{IsVerified: false, Message: "Contract source code not verified"}, nil
}
