package entity

// SparklinePoint is one point of a recent price series, as consumed by the dashboard charts.
type SparklinePoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Asset is a fungible holding on one chain. It is assembled per request and never mutated in place.
type Asset struct {
	ID            string           `json:"id"`
	Chain         string           `json:"chain"`
	Name          string           `json:"name"`
	Ticker        string           `json:"ticker"`
	Price         float64          `json:"price"`
	Change24h     float64          `json:"change24h"`
	BalanceCrypto float64          `json:"balanceCrypto"`
	BalanceUSD    float64          `json:"balanceUSD"`
	MarketCap     float64          `json:"marketCap"`
	Volume24h     float64          `json:"volume24h"`
	SparklineData []SparklinePoint `json:"sparklineData"`
	CoinGeckoID   string           `json:"coingeckoId,omitempty"`
}

// Valued returns a copy of the asset with BalanceUSD derived from BalanceCrypto and Price.
func (a Asset) Valued() Asset {
	a.BalanceUSD = a.BalanceCrypto * a.Price
	if a.SparklineData == nil {
		a.SparklineData = []SparklinePoint{}
	}
	return a
}

// Merge sums the balance of other into a copy of a. Both must describe the same (chain, id).
func (a Asset) Merge(other Asset) Asset {
	a.BalanceCrypto += other.BalanceCrypto
	if a.Price == 0 && other.Price != 0 {
		a.Price = other.Price
	}
	return a.Valued()
}

// Key identifies the asset inside one aggregation.
func (a Asset) Key() string {
	return a.Chain + ":" + a.ID
}
