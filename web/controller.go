// File: web/controller.go
package web

import (
	"time"

	"github.com/crazy8156/okx/dataprovider"
	"github.com/crazy8156/okx/pkg/ledger"
	"github.com/crazy8156/okx/strategy"
)

// BotController is the contract the HTTP layer needs from the trading
// controller. Implemented by pkg/app.Controller.
type BotController interface {
	// Start activates trading for the given symbols. Starting while already
	// running is a no-op that reports the running state, not an error.
	Start(symbols []string, mode string) (string, error)
	// Stop deactivates trading, waiting for the in-flight cycle to finish.
	// Stopping an idle controller is safe.
	Stop() string
	// Status returns a read-only snapshot of the controller's state.
	Status() StatusSnapshot
	// News returns the latest cached headlines with their aggregate sentiment.
	News() NewsReport
}

// HistoryPoint is one sample in a bounded time series.
type HistoryPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PnLInfo groups the profit figures shown on the status endpoint.
type PnLInfo struct {
	Current       float64        `json:"current"`
	TodayRealized float64        `json:"today_realized"`
	History       []HistoryPoint `json:"history"`
}

// ScanResult is one market opportunity found by the volatility scanner.
type ScanResult struct {
	Pair             string  `json:"pair"`
	LastPrice        float64 `json:"last_price"`
	ChangePercent24h float64 `json:"change_percent_24h"`
	QuoteVolume      float64 `json:"quote_volume"`
}

// StatusSnapshot is the full state view served by GET /api/status.
type StatusSnapshot struct {
	Running      bool                               `json:"running"`
	Mode         string                             `json:"mode"`
	Balances     map[string]float64                 `json:"balances"`
	Strategies   map[string]strategy.Info           `json:"strategies"`
	PnL          PnLInfo                            `json:"pnl"`
	Trades       []ledger.TradeRecord               `json:"trades"`
	Inventory    map[string][]ledger.InventoryBatch `json:"inventory,omitempty"`
	Prices       map[string]float64                 `json:"prices"`
	PriceHistory map[string][]HistoryPoint          `json:"price_history"`
	Scanner      []ScanResult                       `json:"scanner,omitempty"`
}

// NewsReport is the payload served by GET /api/news.
type NewsReport struct {
	Summary dataprovider.SentimentSummary `json:"summary"`
	News    []dataprovider.NewsItem       `json:"news"`
}
