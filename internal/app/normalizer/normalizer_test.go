package normalizer

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_aggregator/internal/domain/entity"
	networkdefinition "portfolio_aggregator/internal/infrastructure/network/definition"
)

type stubTokens struct {
	byAddress map[string]entity.TokenInfo
	bySymbol  map[string]string
}

func (s stubTokens) CoinGeckoID(symbol string) (string, bool) {
	id, ok := s.bySymbol[strings.ToUpper(symbol)]
	return id, ok
}

func (s stubTokens) TokenByAddress(_ string, address string) (entity.TokenInfo, bool) {
	info, ok := s.byAddress[strings.ToLower(address)]
	return info, ok
}

const (
	evmWallet = "0xAbC0000000000000000000000000000000000001"
	other     = "0x2222222222222222222222222222222222222222"
	usdc      = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

func wei(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func evmContext() Context {
	return Context{
		Wallet:  evmWallet,
		Network: networkdefinition.Ethereum,
		Prices:  map[string]float64{"ethereum": 3000, "usd-coin": 1},
		Tokens: stubTokens{
			byAddress: map[string]entity.TokenInfo{usdc: {Address: usdc, Symbol: "USDC", Decimals: 6, CoinGeckoID: "usd-coin"}},
			bySymbol:  map[string]string{"USDC": "usd-coin"},
		},
	}
}

func TestNormalizeEVM_NativeReceive(t *testing.T) {
	ctx := evmContext()
	tx, err := Normalize(ctx, entity.EVMRawTx{
		Kind:      entity.EVMTxNormal,
		Hash:      "0xh1",
		Timestamp: 1700000000,
		From:      other,
		To:        strings.ToLower(evmWallet),
		Value:     wei("500000000000000000"),
		GasUsed:   big.NewInt(21000),
		GasPrice:  big.NewInt(20_000_000_000),
		IsError:   "0",
	})
	require.NoError(t, err)

	assert.Equal(t, "0xh1", tx.ID)
	assert.Equal(t, entity.TxTypeReceive, tx.Type)
	assert.Equal(t, entity.TxStatusCompleted, tx.Status)
	assert.Equal(t, "ETH", tx.Asset.Ticker)
	assert.Equal(t, "ethereum", tx.Asset.ID)
	assert.InDelta(t, 0.5, tx.AmountCrypto, 1e-12)
	assert.InDelta(t, 1500.0, tx.AmountUSD, 1e-9)
	// 21000 * 20 gwei = 0.00042 ETH
	assert.InDelta(t, 1.26, tx.GasFeeUSD, 1e-9)
	assert.Equal(t, other, tx.Address)
	assert.Equal(t, strings.ToLower(evmWallet), tx.Wallet)
	assert.Equal(t, "ethereum", tx.Chain)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tx.Date)
}

func TestNormalizeEVM_TokenSendAndFailure(t *testing.T) {
	ctx := evmContext()
	decimals := uint8(6)
	tx, err := Normalize(ctx, entity.EVMRawTx{
		Kind:            entity.EVMTxToken,
		Hash:            "0xh2",
		From:            evmWallet,
		To:              other,
		Value:           big.NewInt(2_500_000),
		ContractAddress: strings.ToUpper(usdc[:2]) + usdc[2:],
		TokenName:       "USD Coin",
		TokenSymbol:     "USDC",
		TokenDecimals:   &decimals,
		IsError:         "1",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.TxTypeSend, tx.Type)
	assert.Equal(t, entity.TxStatusFailed, tx.Status)
	assert.Equal(t, usdc, tx.Asset.ID)
	assert.Equal(t, "usd-coin", tx.Asset.CoinGeckoID)
	assert.InDelta(t, 2.5, tx.AmountCrypto, 1e-12)
	assert.InDelta(t, 2.5, tx.AmountUSD, 1e-12)
	assert.Equal(t, other, tx.Address)
}

func TestNormalizeEVM_UnknownTokenDefaultsTo18DecimalsAndZeroPrice(t *testing.T) {
	tx, err := Normalize(evmContext(), entity.EVMRawTx{
		Kind:            entity.EVMTxToken,
		Hash:            "0xh3",
		From:            other,
		To:              evmWallet,
		Value:           wei("3000000000000000000"),
		ContractAddress: "0xdead000000000000000000000000000000000000",
		TokenSymbol:     "MEME",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxStatusCompleted, tx.Status)
	assert.InDelta(t, 3.0, tx.AmountCrypto, 1e-12)
	assert.Zero(t, tx.AmountUSD)
	assert.Empty(t, tx.Asset.CoinGeckoID)
}

func TestNormalizeEVM_NFT(t *testing.T) {
	tx, err := Normalize(evmContext(), entity.EVMRawTx{
		Kind:            entity.EVMTxNFT,
		Hash:            "0xh4",
		From:            other,
		To:              evmWallet,
		ContractAddress: "0xCCCC000000000000000000000000000000000000",
		TokenName:       "Apes",
		TokenID:         "42",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeNFTReceive, tx.Type)
	assert.Equal(t, entity.NFTTicker, tx.Asset.Ticker)
	assert.EqualValues(t, 1, tx.AmountCrypto)
	assert.Zero(t, tx.AmountUSD)

	tx, err = Normalize(evmContext(), entity.EVMRawTx{Kind: entity.EVMTxNFT, Hash: "0xh5", From: evmWallet, To: other, TokenID: "42"})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeNFTSend, tx.Type)
}

func TestNormalizeEVM_MissingCounterpartyDefaultsToSend(t *testing.T) {
	tx, err := Normalize(evmContext(), entity.EVMRawTx{Kind: entity.EVMTxNormal, Hash: "0xcreate", From: evmWallet, Value: big.NewInt(0)})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeSend, tx.Type)
}

func TestNormalizeBitcoin_Receive(t *testing.T) {
	ctx := Context{
		Wallet:  "bc1qwallet",
		Network: networkdefinition.Bitcoin,
		Prices:  map[string]float64{"bitcoin": 60000},
	}
	tx, err := Normalize(ctx, entity.BitcoinRawTx{
		TxID:      "btc1",
		Confirmed: true,
		BlockTime: 1700000000,
		Fee:       2000,
		Inputs:    []entity.BitcoinTxIO{{Address: "bc1qsender", Value: 50_002_000}},
		Outputs:   []entity.BitcoinTxIO{{Address: "bc1qwallet", Value: 50_000_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.TxTypeReceive, tx.Type)
	assert.InDelta(t, 0.5, tx.AmountCrypto, 1e-12)
	assert.InDelta(t, 30000.0, tx.AmountUSD, 1e-9)
	assert.InDelta(t, 1.2, tx.GasFeeUSD, 1e-9)
	assert.Equal(t, entity.TxStatusCompleted, tx.Status)
	assert.Equal(t, "bc1qsender", tx.Address)
	assert.Equal(t, "BTC", tx.Asset.Ticker)
}

func TestNormalizeBitcoin_PendingSendWithChange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := Context{Wallet: "bc1qwallet", Network: networkdefinition.Bitcoin, Now: now}
	tx, err := Normalize(ctx, entity.BitcoinRawTx{
		TxID:    "btc2",
		Fee:     1000,
		Inputs:  []entity.BitcoinTxIO{{Address: "bc1qwallet", Value: 100_000_000}},
		Outputs: []entity.BitcoinTxIO{{Address: "bc1qpayee", Value: 30_000_000}, {Address: "bc1qwallet", Value: 69_999_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.TxTypeSend, tx.Type)
	assert.Equal(t, entity.TxStatusPending, tx.Status)
	assert.InDelta(t, 0.30001, tx.AmountCrypto, 1e-12)
	assert.Zero(t, tx.AmountUSD)
	assert.Equal(t, "bc1qpayee", tx.Address)
	assert.Equal(t, now, tx.Date)
}

func TestNormalizeSolana(t *testing.T) {
	ctx := Context{
		Wallet:  "WalletA",
		Network: networkdefinition.Solana,
		Prices:  map[string]float64{"solana": 150},
	}

	sent, err := Normalize(ctx, entity.SolanaRawTx{
		Signature:    "sig1",
		BlockTime:    1700000000,
		Fee:          5000,
		PreBalances:  []uint64{3_000_000_000, 0},
		PostBalances: []uint64{1_999_995_000, 1_000_000_000},
		AccountKeys:  []string{"WalletA", "WalletB"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeSend, sent.Type)
	assert.InDelta(t, 1.000005, sent.AmountCrypto, 1e-12)
	assert.InDelta(t, 0.00075, sent.GasFeeUSD, 1e-12)
	assert.Equal(t, "WalletB", sent.Address)
	assert.Equal(t, "walleta", sent.Wallet)

	received, err := Normalize(ctx, entity.SolanaRawTx{
		Signature:    "sig2",
		Failed:       true,
		PreBalances:  []uint64{10},
		PostBalances: []uint64{5},
		AccountKeys:  []string{"WalletC", "WalletA"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeReceive, received.Type)
	assert.Equal(t, entity.TxStatusFailed, received.Status)
	assert.Equal(t, "WalletC", received.Address)

	bare, err := Normalize(ctx, entity.SolanaRawTx{Signature: "sig3"})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeSend, bare.Type)
	assert.Zero(t, bare.AmountCrypto)
}

func TestNormalizeTON(t *testing.T) {
	ctx := Context{
		Wallet:  "EQme",
		Network: networkdefinition.TON,
		Prices:  map[string]float64{"the-open-network": 5},
	}

	in, err := Normalize(ctx, entity.TONRawTx{
		Hash:       "h1",
		UTime:      1700000000,
		Fee:        big.NewInt(1_000_000),
		StorageFee: big.NewInt(500_000),
		OtherFee:   big.NewInt(500_000),
		InMsg:      &entity.TONMessage{Source: "EQsrc", Destination: "EQme", Value: big.NewInt(3_000_000_000)},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeReceive, in.Type)
	assert.InDelta(t, 3.0, in.AmountCrypto, 1e-12)
	assert.InDelta(t, 15.0, in.AmountUSD, 1e-9)
	assert.InDelta(t, 0.01, in.GasFeeUSD, 1e-12)
	assert.Equal(t, "EQsrc", in.Address)
	assert.Equal(t, entity.TxStatusCompleted, in.Status)

	out, err := Normalize(ctx, entity.TONRawTx{
		Hash:  "h2",
		InMsg: &entity.TONMessage{Value: big.NewInt(0)},
		OutMsgs: []entity.TONMessage{
			{Destination: "EQa", Value: big.NewInt(1_000_000_000)},
			{Destination: "EQb", Value: big.NewInt(500_000_000)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxTypeSend, out.Type)
	assert.InDelta(t, 1.5, out.AmountCrypto, 1e-12)
	assert.Equal(t, "EQa", out.Address)
	assert.Zero(t, out.GasFeeUSD)
}

type bogusRaw struct{}

func (bogusRaw) Family() entity.ChainFamily { return "bogus" }
func (bogusRaw) TxHash() string             { return "x" }

func TestNormalizeAll_UnknownVariant(t *testing.T) {
	_, err := NormalizeAll(evmContext(), []entity.RawTransaction{bogusRaw{}})
	assert.Error(t, err)
}

func TestPriceIDs(t *testing.T) {
	ctx := evmContext()
	ids := PriceIDs(ctx, []entity.RawTransaction{
		entity.EVMRawTx{Kind: entity.EVMTxNormal},
		entity.EVMRawTx{Kind: entity.EVMTxToken, ContractAddress: usdc},
		entity.EVMRawTx{Kind: entity.EVMTxToken, ContractAddress: "0xunknown", TokenSymbol: "???"},
		entity.EVMRawTx{Kind: entity.EVMTxNFT, ContractAddress: "0xnft"},
	})
	assert.Equal(t, []string{"ethereum", "usd-coin"}, ids)
}

func TestNormalizeAll_SharedHashKeepsTokenTransfer(t *testing.T) {
	ctx := evmContext()
	decimals := uint8(6)
	raws := []entity.RawTransaction{
		entity.EVMRawTx{
			Kind:      entity.EVMTxNormal,
			Hash:      "0xABC",
			Timestamp: 1700000000,
			From:      evmWallet,
			To:        usdc,
			Value:     big.NewInt(0),
			GasUsed:   big.NewInt(50000),
			GasPrice:  big.NewInt(10_000_000_000),
			IsError:   "0",
		},
		entity.EVMRawTx{
			Kind:      entity.EVMTxNormal,
			Hash:      "0xother",
			Timestamp: 1700000100,
			From:      other,
			To:        evmWallet,
			Value:     wei("1000000000000000000"),
			IsError:   "0",
		},
		entity.EVMRawTx{
			Kind:            entity.EVMTxToken,
			Hash:            "0xabc",
			Timestamp:       1700000000,
			From:            evmWallet,
			To:              other,
			Value:           big.NewInt(100_000_000),
			ContractAddress: usdc,
			TokenName:       "USD Coin",
			TokenSymbol:     "USDC",
			TokenDecimals:   &decimals,
		},
	}

	txs, err := NormalizeAll(ctx, raws)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	tx := txs[0]
	assert.Equal(t, "0xabc", tx.ID)
	assert.Equal(t, usdc, tx.Asset.ID)
	assert.Equal(t, "USDC", tx.Asset.Ticker)
	assert.InDelta(t, 100.0, tx.AmountCrypto, 1e-12)
	assert.InDelta(t, 100.0, tx.AmountUSD, 1e-12)
	assert.Equal(t, entity.TxTypeSend, tx.Type)
	assert.Equal(t, other, tx.Address)
	assert.Equal(t, entity.TxStatusCompleted, tx.Status)
	// 50000 * 10 gwei = 0.0005 ETH, taken from the txlist row
	assert.InDelta(t, 1.5, tx.GasFeeUSD, 1e-9)

	assert.Equal(t, "0xother", txs[1].ID)
}

func TestMergeEVMRows(t *testing.T) {
	call := entity.EVMRawTx{Kind: entity.EVMTxNormal, Hash: "0xh", GasUsed: big.NewInt(7), GasPrice: big.NewInt(3), IsError: "1"}
	token := entity.EVMRawTx{Kind: entity.EVMTxToken, Hash: "0xh", ContractAddress: usdc}
	nft := entity.EVMRawTx{Kind: entity.EVMTxNFT, Hash: "0xH", ContractAddress: other, TokenID: "9"}
	btc := entity.BitcoinRawTx{TxID: "0xh"}

	merged := MergeEVMRows([]entity.RawTransaction{nft, btc, call, token})
	require.Len(t, merged, 2)

	row, ok := merged[0].(entity.EVMRawTx)
	require.True(t, ok)
	assert.Equal(t, entity.EVMTxNFT, row.Kind)
	assert.Equal(t, "9", row.TokenID)
	assert.Equal(t, int64(7), row.GasUsed.Int64())
	assert.Equal(t, int64(3), row.GasPrice.Int64())
	assert.Equal(t, "1", row.IsError)
	assert.Equal(t, btc, merged[1])
}

func TestNormalizeEVM_TokenRowWithoutErrorFieldIsCompleted(t *testing.T) {
	tx, err := Normalize(evmContext(), entity.EVMRawTx{
		Kind:            entity.EVMTxToken,
		Hash:            "0xh9",
		From:            other,
		To:              evmWallet,
		Value:           big.NewInt(1_000_000),
		ContractAddress: usdc,
		TokenSymbol:     "USDC",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TxStatusCompleted, tx.Status)
}
