package entity

import "math/big"

// RawTransaction is the tagged union of per-chain upstream transaction records.
// The concrete variants are EVMRawTx, SolanaRawTx, BitcoinRawTx and TONRawTx.
type RawTransaction interface {
	Family() ChainFamily
	TxHash() string
}

// EVMTxKind tells which Etherscan list an EVM record came from.
type EVMTxKind string

const (
	EVMTxNormal EVMTxKind = "normal"
	EVMTxToken  EVMTxKind = "token"
	EVMTxNFT    EVMTxKind = "nft"
)

// EVMRawTx is one row of an Etherscan txlist, tokentx or tokennfttx response.
type EVMRawTx struct {
	Kind            EVMTxKind
	Hash            string
	Timestamp       int64
	From            string
	To              string
	Value           *big.Int
	ContractAddress string
	TokenName       string
	TokenSymbol     string
	TokenDecimals   *uint8 // nil when the upstream row carries no decimals
	TokenID         string
	GasUsed         *big.Int
	GasPrice        *big.Int
	IsError         string
}

func (EVMRawTx) Family() ChainFamily { return FamilyEVM }
func (t EVMRawTx) TxHash() string    { return t.Hash }

// SolanaRawTx is the subset of a getTransaction result the normalizer needs.
type SolanaRawTx struct {
	Signature    string
	BlockTime    int64
	Fee          uint64
	Failed       bool // meta.err was non-null
	PreBalances  []uint64
	PostBalances []uint64
	AccountKeys  []string
}

func (SolanaRawTx) Family() ChainFamily { return FamilySolana }
func (t SolanaRawTx) TxHash() string    { return t.Signature }

// BitcoinTxIO is an input prevout or an output of a Bitcoin transaction.
type BitcoinTxIO struct {
	Address string
	Value   int64 // satoshis
}

// BitcoinRawTx is an Esplora transaction.
type BitcoinRawTx struct {
	TxID      string
	Confirmed bool
	BlockTime int64
	Fee       int64
	Inputs    []BitcoinTxIO
	Outputs   []BitcoinTxIO
}

func (BitcoinRawTx) Family() ChainFamily { return FamilyBitcoin }
func (t BitcoinRawTx) TxHash() string    { return t.TxID }

// TONMessage is an inbound or outbound message of a TON transaction. Value is in nanotons.
type TONMessage struct {
	Source      string
	Destination string
	Value       *big.Int
}

// TONRawTx is a toncenter v2 transaction.
type TONRawTx struct {
	Hash       string
	UTime      int64
	Fee        *big.Int
	StorageFee *big.Int
	OtherFee   *big.Int
	InMsg      *TONMessage
	OutMsgs    []TONMessage
}

func (TONRawTx) Family() ChainFamily { return FamilyTON }
func (t TONRawTx) TxHash() string    { return t.Hash }
