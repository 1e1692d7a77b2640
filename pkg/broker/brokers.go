// File: pkg/broker/brokers.go
package broker

import (
	"context"
	"time"

	"github.com/crazy8156/okx/utilities"
)

// Broker defines the interface for interacting with a cryptocurrency exchange.
type Broker interface {
	// PlaceOrder submits a new order to the exchange and returns the fill details.
	// For market orders price is ignored by the venue; the returned Order carries
	// the average fill price reported by the exchange.
	PlaceOrder(ctx context.Context, commonPair, side, orderType string, volume, price float64) (Order, error)

	// GetBalances retrieves all non-zero currency balances on the trading account.
	GetBalances(ctx context.Context) ([]Balance, error)

	// GetTicker retrieves ticker data for a specific trading pair.
	GetTicker(ctx context.Context, commonPair string) (TickerData, error)

	// GetTickers retrieves 24h ticker data for every spot instrument on the venue.
	GetTickers(ctx context.Context) ([]TickerData, error)

	// GetLastNOHLCVBars retrieves the last N OHLCV bars for a pair and timeframe
	// (standard notation, e.g. "5m", "1h"), sorted ascending by timestamp.
	GetLastNOHLCVBars(ctx context.Context, commonPair, timeframe string, nBars int) ([]utilities.OHLCVBar, error)

	// GetRecentFills retrieves recently filled orders for a pair, oldest first.
	GetRecentFills(ctx context.Context, commonPair string, limit int) ([]Trade, error)

	// RefreshInstruments ensures the adapter's instrument map is loaded. Must be
	// called once before trading; a failure here is a startup-fatal condition.
	RefreshInstruments(ctx context.Context) error
}

// Order represents a trade order's state and details as reported by the venue.
type Order struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	Pair          string    `json:"pair"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Price         float64   `json:"price,omitempty"`
	AvgFillPrice  float64   `json:"avg_fill_price,omitempty"`
	Volume        float64   `json:"volume"`
	FilledVolume  float64   `json:"filled_volume"`
	CreatedAt     time.Time `json:"created_at"`
}

// TickerData contains current market ticker information for a trading pair.
type TickerData struct {
	Pair        string    `json:"pair"`         // Common trading pair, e.g. "BTC/USDT"
	Bid         float64   `json:"bid"`          // Current highest bid price
	Ask         float64   `json:"ask"`          // Current lowest ask price
	LastPrice   float64   `json:"last_price"`   // Price of the last trade
	Volume      float64   `json:"volume"`       // 24h volume in base currency
	QuoteVolume float64   `json:"quote_volume"` // 24h volume in quote currency
	Open24h     float64   `json:"open_24h"`     // Price 24 hours ago
	High        float64   `json:"high"`         // 24h high
	Low         float64   `json:"low"`          // 24h low
	Timestamp   time.Time `json:"timestamp"`
}

// ChangePercent24h derives the 24h percentage move from the open/last prices.
func (t TickerData) ChangePercent24h() float64 {
	if t.Open24h <= 0 {
		return 0
	}
	return (t.LastPrice - t.Open24h) / t.Open24h * 100.0
}

// Trade represents an executed trade fill.
type Trade struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Pair      string    `json:"pair"`
	Side      string    `json:"side"` // "buy" or "sell"
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// Balance represents the balance of a single currency.
type Balance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Total     float64 `json:"total"`
}
