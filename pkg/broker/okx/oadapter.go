// File: pkg/broker/okx/oadapter.go
package okx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crazy8156/okx/dataprovider"
	"github.com/crazy8156/okx/pkg/broker"
	"github.com/crazy8156/okx/utilities"
)

// Adapter implements the broker.Broker interface for the OKX v5 spot API.
// It translates between common pair names / float values and the venue's
// instrument IDs / string-typed payloads, and writes fetched candles through
// to the local SQLite cache.
type Adapter struct {
	client *Client
	cache  *dataprovider.SQLiteCache
	logger *utilities.Logger
}

// NewAdapter creates a new OKX adapter. The cache is optional; pass nil to
// skip candle caching.
func NewAdapter(cfg *utilities.OKXConfig, cache *dataprovider.SQLiteCache, logger *utilities.Logger) *Adapter {
	return &Adapter{
		client: NewClient(cfg, nil, logger),
		cache:  cache,
		logger: logger,
	}
}

// RefreshInstruments loads the venue's spot instrument map.
func (a *Adapter) RefreshInstruments(ctx context.Context) error {
	return a.client.RefreshInstruments(ctx)
}

// PlaceOrder submits an order and polls briefly for its fill details so the
// caller gets an average fill price for market orders.
func (a *Adapter) PlaceOrder(ctx context.Context, commonPair, side, orderType string, volume, price float64) (broker.Order, error) {
	instID, err := a.client.GetInstID(ctx, commonPair)
	if err != nil {
		return broker.Order{}, err
	}

	// OKX clOrdId allows alphanumerics only, max 32 chars.
	clOrdID := "okxbot" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	body := map[string]string{
		"instId":  instID,
		"tdMode":  "cash",
		"clOrdId": clOrdID,
		"side":    side,
		"ordType": orderType,
		"sz":      strconv.FormatFloat(volume, 'f', -1, 64),
	}
	if orderType == "market" {
		// Spot market buys default to sizing in quote currency; force base so
		// sz always means base-currency volume regardless of side.
		body["tgtCcy"] = "base_ccy"
	} else {
		body["px"] = strconv.FormatFloat(price, 'f', -1, 64)
	}

	a.logger.LogInfo("OKX Adapter: placing %s %s order for %s, sz=%s", side, orderType, instID, body["sz"])
	ordID, err := a.client.PlaceOrderAPI(ctx, body)
	if err != nil {
		return broker.Order{}, fmt.Errorf("place order for %s: %w", commonPair, err)
	}

	order := broker.Order{
		ID:            ordID,
		ClientOrderID: clOrdID,
		Pair:          commonPair,
		Side:          side,
		Type:          orderType,
		Status:        "live",
		Price:         price,
		Volume:        volume,
		CreatedAt:     time.Now(),
	}

	// Market orders usually fill immediately; poll a few times for the
	// average fill price before giving up and returning the live order.
	for attempt := 0; attempt < 5; attempt++ {
		detail, err := a.client.GetOrderAPI(ctx, instID, ordID)
		if err != nil {
			a.logger.LogWarn("OKX Adapter: fill poll %d for order %s failed: %v", attempt+1, ordID, err)
		} else {
			order.Status = detail.State
			order.AvgFillPrice, _ = strconv.ParseFloat(detail.AvgPx, 64)
			order.FilledVolume, _ = strconv.ParseFloat(detail.FillSz, 64)
			if detail.State == "filled" || detail.State == "canceled" {
				return order, nil
			}
		}
		select {
		case <-ctx.Done():
			return order, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	a.logger.LogWarn("OKX Adapter: order %s not confirmed filled after polling, state=%s", ordID, order.Status)
	return order, nil
}

// GetBalances returns all non-zero balances on the trading account.
func (a *Adapter) GetBalances(ctx context.Context) ([]broker.Balance, error) {
	acct, err := a.client.GetBalanceAPI(ctx)
	if err != nil {
		return nil, err
	}
	balances := make([]broker.Balance, 0, len(acct.Details))
	for _, d := range acct.Details {
		avail, _ := strconv.ParseFloat(d.AvailBal, 64)
		total, _ := strconv.ParseFloat(d.CashBal, 64)
		if total <= 0 && avail <= 0 {
			continue
		}
		balances = append(balances, broker.Balance{
			Currency:  d.Ccy,
			Available: avail,
			Total:     total,
		})
	}
	return balances, nil
}

// GetTicker returns ticker data for a single pair.
func (a *Adapter) GetTicker(ctx context.Context, commonPair string) (broker.TickerData, error) {
	instID, err := a.client.GetInstID(ctx, commonPair)
	if err != nil {
		return broker.TickerData{}, err
	}
	info, err := a.client.GetTickerAPI(ctx, instID)
	if err != nil {
		return broker.TickerData{}, err
	}
	return a.toTickerData(info), nil
}

// GetTickers returns 24h tickers for every live spot instrument.
func (a *Adapter) GetTickers(ctx context.Context) ([]broker.TickerData, error) {
	infos, err := a.client.GetTickersAPI(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make([]broker.TickerData, 0, len(infos))
	for _, info := range infos {
		tickers = append(tickers, a.toTickerData(info))
	}
	return tickers, nil
}

func (a *Adapter) toTickerData(info TickerInfo) broker.TickerData {
	last, _ := strconv.ParseFloat(info.Last, 64)
	bid, _ := strconv.ParseFloat(info.BidPx, 64)
	ask, _ := strconv.ParseFloat(info.AskPx, 64)
	open24h, _ := strconv.ParseFloat(info.Open24h, 64)
	high, _ := strconv.ParseFloat(info.High24h, 64)
	low, _ := strconv.ParseFloat(info.Low24h, 64)
	vol, _ := strconv.ParseFloat(info.Vol24h, 64)
	volCcy, _ := strconv.ParseFloat(info.VolCcy24h, 64)
	tsMs, _ := strconv.ParseInt(info.TS, 10, 64)
	return broker.TickerData{
		Pair:        a.client.GetCommonPairName(info.InstID),
		Bid:         bid,
		Ask:         ask,
		LastPrice:   last,
		Volume:      vol,
		QuoteVolume: volCcy,
		Open24h:     open24h,
		High:        high,
		Low:         low,
		Timestamp:   time.UnixMilli(tsMs),
	}
}

// GetLastNOHLCVBars fetches the last N candles for a pair, sorted ascending,
// and writes them through to the local cache.
func (a *Adapter) GetLastNOHLCVBars(ctx context.Context, commonPair, timeframe string, nBars int) ([]utilities.OHLCVBar, error) {
	instID, err := a.client.GetInstID(ctx, commonPair)
	if err != nil {
		return nil, err
	}
	okxBar, err := utilities.ConvertTFToOKXBar(timeframe)
	if err != nil {
		return nil, err
	}

	rows, err := a.client.GetCandlesAPI(ctx, instID, okxBar, nBars)
	if err != nil {
		// Venue unavailable: serve the cached window so indicator warm-up
		// survives a transient outage.
		if cached := a.cachedBars(commonPair, timeframe, nBars); len(cached) >= 2 {
			a.logger.LogWarn("OKX Adapter: candle fetch for %s failed, serving %d cached bars: %v", commonPair, len(cached), err)
			return cached, nil
		}
		return nil, fmt.Errorf("fetch candles for %s %s: %w", commonPair, timeframe, err)
	}

	bars := make([]utilities.OHLCVBar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			a.logger.LogWarn("OKX Adapter: skipping candle with bad timestamp %q for %s", row[0], instID)
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePx, _ := strconv.ParseFloat(row[4], 64)
		vol, _ := strconv.ParseFloat(row[5], 64)
		bars = append(bars, utilities.OHLCVBar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    vol,
		})
	}
	utilities.SortBarsByTimestamp(bars)

	if a.cache != nil {
		if err := a.cache.SaveBars(commonPair, timeframe, bars); err != nil {
			a.logger.LogWarn("OKX Adapter: candle cache write for %s failed: %v", commonPair, err)
		}
	}

	// Short venue window: the upsert above merged the fresh rows into the
	// cache, so a cached read tops the window back up with older history.
	if len(bars) < nBars {
		if cached := a.cachedBars(commonPair, timeframe, nBars); len(cached) > len(bars) {
			a.logger.LogDebug("OKX Adapter: venue returned %d/%d bars for %s, topped up from cache to %d", len(bars), nBars, commonPair, len(cached))
			return cached, nil
		}
	}
	return bars, nil
}

// cachedBars reads up to n bars from the local cache; a miss or error is
// reported as an empty slice.
func (a *Adapter) cachedBars(pair, timeframe string, n int) []utilities.OHLCVBar {
	if a.cache == nil {
		return nil
	}
	bars, err := a.cache.GetBars(pair, timeframe, n)
	if err != nil {
		a.logger.LogWarn("OKX Adapter: candle cache read for %s failed: %v", pair, err)
		return nil
	}
	return bars
}

// GetRecentFills returns recently filled orders for a pair, oldest first.
func (a *Adapter) GetRecentFills(ctx context.Context, commonPair string, limit int) ([]broker.Trade, error) {
	instID, err := a.client.GetInstID(ctx, commonPair)
	if err != nil {
		return nil, err
	}
	details, err := a.client.GetOrdersHistoryAPI(ctx, instID, limit)
	if err != nil {
		return nil, err
	}

	// OKX returns newest first; reverse into chronological order.
	trades := make([]broker.Trade, 0, len(details))
	for i := len(details) - 1; i >= 0; i-- {
		d := details[i]
		price, _ := strconv.ParseFloat(d.AvgPx, 64)
		vol, _ := strconv.ParseFloat(d.FillSz, 64)
		tsMs, _ := strconv.ParseInt(d.FillTime, 10, 64)
		if tsMs == 0 {
			tsMs, _ = strconv.ParseInt(d.CTime, 10, 64)
		}
		trades = append(trades, broker.Trade{
			ID:        d.OrdID,
			OrderID:   d.OrdID,
			Pair:      commonPair,
			Side:      d.Side,
			Price:     price,
			Volume:    vol,
			Cost:      price * vol,
			Timestamp: time.UnixMilli(tsMs),
		})
	}
	return trades, nil
}
