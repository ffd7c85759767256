package entity

import (
	"strconv"
	"time"
)

// PriceQuote is a spot price keyed by a price oracle identifier.
type PriceQuote struct {
	USD float64 `json:"usd"`
}

// MarketEntry is one row of the price oracle's market listing.
type MarketEntry struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image,omitempty"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	SparklineIn7d            *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d,omitempty"`
}

// Sparkline converts the 7-day series into chart points.
func (m MarketEntry) Sparkline() []SparklinePoint {
	if m.SparklineIn7d == nil {
		return []SparklinePoint{}
	}
	points := make([]SparklinePoint, 0, len(m.SparklineIn7d.Price))
	for i, p := range m.SparklineIn7d.Price {
		points = append(points, SparklinePoint{Name: "d" + strconv.Itoa(i), Value: p})
	}
	return points
}

// MarketChart is a historical series; each pair is [unix millis, value].
type MarketChart struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// HistoryHolding is one input row of a portfolio value history request.
type HistoryHolding struct {
	CoinGeckoID string  `json:"coingeckoId"`
	Balance     float64 `json:"balance"`
}

// ValuePoint is a portfolio value at one instant.
type ValuePoint struct {
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// PricePoint is one price sample of a single asset.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// RawJSON carries an upstream document through to the API unchanged.
type RawJSON []byte

// MarshalJSON implements json.Marshaler.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}
