// Package normalizer converts per-chain raw transaction records into the
// canonical entity.Transaction shape. It performs no I/O.
package normalizer

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

const (
	weiDecimals      = 18
	satoshiDecimals  = 8
	lamportDecimals  = 9
	nanotonDecimals  = 9
	defaultEVMTokenD = 18
)

// Context carries everything a normalization needs besides the raw record.
type Context struct {
	// Wallet is the queried address as the caller supplied it.
	Wallet  string
	Network entity.NetworkDefinition
	// Prices maps price oracle ids to USD prices. Missing ids price at 0.
	Prices map[string]float64
	// Tokens resolves token contracts to price oracle ids. May be nil.
	Tokens port.TokenProvider
	// Now stamps transactions without a block time. Zero means time.Now.
	Now time.Time
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now().UTC()
	}
	return c.Now.UTC()
}

func (c Context) price(id string) float64 {
	if id == "" {
		return 0
	}
	return c.Prices[id]
}

func (c Context) nativePrice() float64 {
	return c.price(c.Network.CoinGeckoID)
}

func (c Context) isWallet(address string) bool {
	return address != "" && strings.EqualFold(address, c.Wallet)
}

// tokenPriceID maps a token contract (or its symbol) to a price oracle id.
func (c Context) tokenPriceID(contract, symbol string) string {
	if c.Tokens == nil {
		return ""
	}
	if info, ok := c.Tokens.TokenByAddress(c.Network.Identifier, contract); ok && info.CoinGeckoID != "" {
		return info.CoinGeckoID
	}
	if id, ok := c.Tokens.CoinGeckoID(symbol); ok {
		return id
	}
	return ""
}

func (c Context) nativeAsset() entity.Asset {
	return entity.Asset{
		ID:          c.Network.NativeAssetID,
		Chain:       c.Network.Identifier,
		Name:        c.Network.NativeName,
		Ticker:      c.Network.NativeSymbol,
		Price:       c.nativePrice(),
		CoinGeckoID: c.Network.CoinGeckoID,
	}.Valued()
}

func (c Context) base(id string, date time.Time) entity.Transaction {
	return entity.Transaction{
		ID:     id,
		Date:   date.UTC(),
		Wallet: entity.NormalizeKey(c.Wallet),
		Chain:  entity.NormalizeKey(c.Network.Identifier),
	}
}

// Normalize converts a single raw record.
func Normalize(ctx Context, raw entity.RawTransaction) (entity.Transaction, error) {
	switch tx := raw.(type) {
	case entity.EVMRawTx:
		return normalizeEVM(ctx, tx), nil
	case entity.SolanaRawTx:
		return normalizeSolana(ctx, tx), nil
	case entity.BitcoinRawTx:
		return normalizeBitcoin(ctx, tx), nil
	case entity.TONRawTx:
		return normalizeTON(ctx, tx), nil
	default:
		return entity.Transaction{}, fmt.Errorf("unsupported raw transaction %T", raw)
	}
}

// NormalizeAll converts every record in order. An unknown variant fails the whole batch.
func NormalizeAll(ctx Context, raws []entity.RawTransaction) ([]entity.Transaction, error) {
	raws = MergeEVMRows(raws)
	result := make([]entity.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx, err := Normalize(ctx, raw)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, nil
}

var evmKindRank = map[entity.EVMTxKind]int{
	entity.EVMTxNormal: 0,
	entity.EVMTxToken:  1,
	entity.EVMTxNFT:    2,
}

// MergeEVMRows collapses EVM rows sharing a hash into one, keeping the most specific
// list (NFT over token over normal) at the position of the first row. A token or NFT
// transfer sent by the wallet also shows up in txlist as a zero-value contract call;
// the merged row keeps the gas and error fields of that call when its own are empty.
// Rows of other families pass through unchanged.
func MergeEVMRows(raws []entity.RawTransaction) []entity.RawTransaction {
	index := make(map[string]int, len(raws))
	result := make([]entity.RawTransaction, 0, len(raws))
	for _, raw := range raws {
		row, ok := raw.(entity.EVMRawTx)
		if !ok {
			result = append(result, raw)
			continue
		}
		key := strings.ToLower(row.Hash)
		i, seen := index[key]
		if !seen {
			index[key] = len(result)
			result = append(result, row)
			continue
		}
		prev := result[i].(entity.EVMRawTx)
		if evmKindRank[row.Kind] > evmKindRank[prev.Kind] {
			prev, row = row, prev
		}
		result[i] = fillFromCall(prev, row)
	}
	return result
}

func fillFromCall(dst, src entity.EVMRawTx) entity.EVMRawTx {
	if dst.GasUsed == nil || dst.GasUsed.Sign() == 0 {
		dst.GasUsed = src.GasUsed
	}
	if dst.GasPrice == nil || dst.GasPrice.Sign() == 0 {
		dst.GasPrice = src.GasPrice
	}
	if dst.IsError == "" {
		dst.IsError = src.IsError
	}
	return dst
}

// PriceIDs lists the price oracle ids needed to value raws: the native coin plus every priced token.
func PriceIDs(ctx Context, raws []entity.RawTransaction) []string {
	ids := []string{ctx.Network.CoinGeckoID}
	for _, raw := range raws {
		if tx, ok := raw.(entity.EVMRawTx); ok && tx.Kind == entity.EVMTxToken {
			ids = append(ids, ctx.tokenPriceID(tx.ContractAddress, tx.TokenSymbol))
		}
	}
	return utils.SortedUnique(ids)
}

func normalizeEVM(ctx Context, raw entity.EVMRawTx) entity.Transaction {
	tx := ctx.base(raw.Hash, time.Unix(raw.Timestamp, 0))

	incoming := ctx.isWallet(raw.To)
	if incoming {
		tx.Address = raw.From
	} else {
		tx.Address = raw.To
	}

	switch {
	case raw.Kind == entity.EVMTxNFT || raw.TokenID != "":
		tx.Type = entity.TxTypeNFTSend
		if incoming {
			tx.Type = entity.TxTypeNFTReceive
		}
		tx.Asset = entity.Asset{
			ID:     strings.ToLower(raw.ContractAddress),
			Chain:  ctx.Network.Identifier,
			Name:   raw.TokenName,
			Ticker: entity.NFTTicker,
		}.Valued()
		tx.AmountCrypto = 1
		tx.AmountUSD = 0

	case raw.Kind == entity.EVMTxToken:
		decimals := uint8(defaultEVMTokenD)
		if raw.TokenDecimals != nil {
			decimals = *raw.TokenDecimals
		}
		priceID := ctx.tokenPriceID(raw.ContractAddress, raw.TokenSymbol)
		tx.Asset = entity.Asset{
			ID:          strings.ToLower(raw.ContractAddress),
			Chain:       ctx.Network.Identifier,
			Name:        raw.TokenName,
			Ticker:      raw.TokenSymbol,
			Price:       ctx.price(priceID),
			CoinGeckoID: priceID,
		}.Valued()
		tx.Type = direction(incoming)
		tx.AmountCrypto = utils.ToFloat(raw.Value, decimals)
		tx.AmountUSD = tx.AmountCrypto * tx.Asset.Price

	default:
		tx.Asset = ctx.nativeAsset()
		tx.Type = direction(incoming)
		tx.AmountCrypto = utils.ToFloat(raw.Value, ctx.Network.Decimals)
		tx.AmountUSD = tx.AmountCrypto * tx.Asset.Price
	}

	if raw.GasUsed != nil && raw.GasPrice != nil {
		fee := new(big.Int).Mul(raw.GasUsed, raw.GasPrice)
		tx.GasFeeUSD = utils.ToFloat(fee, weiDecimals) * ctx.nativePrice()
	}

	tx.Status = entity.TxStatusCompleted
	if raw.IsError != "" && raw.IsError != "0" {
		tx.Status = entity.TxStatusFailed
	}
	return tx
}

func direction(incoming bool) entity.TxType {
	if incoming {
		return entity.TxTypeReceive
	}
	return entity.TxTypeSend
}

func normalizeSolana(ctx Context, raw entity.SolanaRawTx) entity.Transaction {
	date := ctx.now()
	if raw.BlockTime > 0 {
		date = time.Unix(raw.BlockTime, 0)
	}
	tx := ctx.base(raw.Signature, date)
	tx.Asset = ctx.nativeAsset()

	// Only the fee payer's lamport delta is considered; SPL transfers are not decomposed.
	if len(raw.PreBalances) > 0 && len(raw.PostBalances) > 0 {
		pre := new(big.Int).SetUint64(raw.PreBalances[0])
		post := new(big.Int).SetUint64(raw.PostBalances[0])
		delta := new(big.Int).Sub(post, pre)
		tx.AmountCrypto = utils.ToFloat(delta.Abs(delta), lamportDecimals)
	}
	tx.AmountUSD = tx.AmountCrypto * tx.Asset.Price
	tx.GasFeeUSD = utils.ToFloat(new(big.Int).SetUint64(raw.Fee), lamportDecimals) * ctx.nativePrice()

	tx.Type = entity.TxTypeSend
	if len(raw.AccountKeys) > 0 {
		feePayer := raw.AccountKeys[0]
		if ctx.isWallet(feePayer) {
			if len(raw.AccountKeys) > 1 {
				tx.Address = raw.AccountKeys[1]
			}
		} else {
			tx.Type = entity.TxTypeReceive
			tx.Address = feePayer
		}
	}

	tx.Status = entity.TxStatusCompleted
	if raw.Failed {
		tx.Status = entity.TxStatusFailed
	}
	return tx
}

func normalizeBitcoin(ctx Context, raw entity.BitcoinRawTx) entity.Transaction {
	date := ctx.now()
	if raw.Confirmed && raw.BlockTime > 0 {
		date = time.Unix(raw.BlockTime, 0)
	}
	tx := ctx.base(raw.TxID, date)
	tx.Asset = ctx.nativeAsset()

	var received, spent int64
	for _, out := range raw.Outputs {
		if ctx.isWallet(out.Address) {
			received += out.Value
		}
	}
	for _, in := range raw.Inputs {
		if ctx.isWallet(in.Address) {
			spent += in.Value
		}
	}
	net := big.NewInt(received - spent)

	if net.Sign() > 0 {
		tx.Type = entity.TxTypeReceive
		tx.Address = firstForeign(ctx, raw.Inputs)
	} else {
		tx.Type = entity.TxTypeSend
		tx.Address = firstForeign(ctx, raw.Outputs)
	}
	if tx.Address == "" && len(raw.Inputs) > 0 {
		tx.Address = raw.Inputs[0].Address
	}

	tx.AmountCrypto = utils.ToFloat(net.Abs(net), satoshiDecimals)
	tx.AmountUSD = tx.AmountCrypto * tx.Asset.Price
	tx.GasFeeUSD = utils.ToFloat(big.NewInt(raw.Fee), satoshiDecimals) * ctx.nativePrice()

	tx.Status = entity.TxStatusCompleted
	if !raw.Confirmed {
		tx.Status = entity.TxStatusPending
	}
	return tx
}

func firstForeign(ctx Context, ios []entity.BitcoinTxIO) string {
	for _, io := range ios {
		if io.Address != "" && !ctx.isWallet(io.Address) {
			return io.Address
		}
	}
	return ""
}

func normalizeTON(ctx Context, raw entity.TONRawTx) entity.Transaction {
	date := ctx.now()
	if raw.UTime > 0 {
		date = time.Unix(raw.UTime, 0)
	}
	tx := ctx.base(raw.Hash, date)
	tx.Asset = ctx.nativeAsset()

	amount := new(big.Int)
	if raw.InMsg != nil && raw.InMsg.Value != nil && raw.InMsg.Value.Sign() > 0 {
		tx.Type = entity.TxTypeReceive
		tx.Address = raw.InMsg.Source
		amount.Set(raw.InMsg.Value)
	} else {
		tx.Type = entity.TxTypeSend
		for _, m := range raw.OutMsgs {
			if m.Value != nil {
				amount.Add(amount, m.Value)
			}
		}
		if len(raw.OutMsgs) > 0 {
			tx.Address = raw.OutMsgs[0].Destination
		}
	}
	tx.AmountCrypto = utils.ToFloat(amount, nanotonDecimals)
	tx.AmountUSD = tx.AmountCrypto * tx.Asset.Price

	fee := new(big.Int)
	for _, part := range []*big.Int{raw.Fee, raw.StorageFee, raw.OtherFee} {
		if part != nil {
			fee.Add(fee, part)
		}
	}
	tx.GasFeeUSD = utils.ToFloat(fee, nanotonDecimals) * ctx.nativePrice()

	// toncenter exposes no pending state.
	tx.Status = entity.TxStatusCompleted
	return tx
}
