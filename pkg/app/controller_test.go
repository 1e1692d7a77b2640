// File: pkg/app/controller_test.go
package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazy8156/okx/pkg/broker"
	"github.com/crazy8156/okx/strategy"
	"github.com/crazy8156/okx/utilities"
	"github.com/crazy8156/okx/web"
)

// mockBroker satisfies broker.Broker with canned data and an order counter.
type mockBroker struct {
	mu       sync.Mutex
	orders   []broker.Order
	placeErr error

	bars     []utilities.OHLCVBar
	barsErr  error
	balances []broker.Balance
	tickers  []broker.TickerData
	fills    []broker.Trade
}

func (m *mockBroker) PlaceOrder(_ context.Context, pair, side, orderType string, volume, _ float64) (broker.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return broker.Order{}, m.placeErr
	}
	order := broker.Order{
		ID:           "order-1",
		Pair:         pair,
		Side:         side,
		Type:         orderType,
		Status:       "filled",
		AvgFillPrice: 100,
		Volume:       volume,
		FilledVolume: volume,
		CreatedAt:    time.Now(),
	}
	m.orders = append(m.orders, order)
	return order, nil
}

func (m *mockBroker) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockBroker) GetBalances(context.Context) ([]broker.Balance, error) {
	return m.balances, nil
}

func (m *mockBroker) GetTicker(_ context.Context, pair string) (broker.TickerData, error) {
	for _, t := range m.tickers {
		if t.Pair == pair {
			return t, nil
		}
	}
	return broker.TickerData{}, errors.New("ticker not found")
}

func (m *mockBroker) GetTickers(context.Context) ([]broker.TickerData, error) {
	return m.tickers, nil
}

func (m *mockBroker) GetLastNOHLCVBars(context.Context, string, string, int) ([]utilities.OHLCVBar, error) {
	return m.bars, m.barsErr
}

func (m *mockBroker) GetRecentFills(context.Context, string, int) ([]broker.Trade, error) {
	return m.fills, nil
}

func (m *mockBroker) RefreshInstruments(context.Context) error { return nil }

func testConfig() *utilities.AppConfig {
	return &utilities.AppConfig{
		Trading: utilities.TradingConfig{
			QuoteCurrency:    "USDT",
			DefaultSymbols:   []string{"BTC/USDT"},
			CycleIntervalSec: 3600, // cycles driven manually in tests
			CooldownSec:      300,
			DefaultOrderSize: 0.01,
		},
	}
}

func trendBars(n int) []utilities.OHLCVBar {
	bars := make([]utilities.OHLCVBar, n)
	for i := range bars {
		price := 100 + float64(i)*0.5
		bars[i] = utilities.OHLCVBar{Timestamp: int64(i) * 60_000, Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 5}
	}
	return bars
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		bars:     trendBars(60),
		balances: []broker.Balance{{Currency: "USDT", Available: 1000, Total: 1000}},
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	b := newMockBroker()
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))

	msg, err := c.Start(nil, "")
	require.NoError(t, err)
	assert.Contains(t, msg, "started")
	assert.True(t, c.Status().Running)
	assert.Len(t, c.Status().Strategies, 1)

	// Second start is a no-op report, not an error, and adds no engines.
	msg, err = c.Start([]string{"BTC/USDT", "ETH/USDT"}, "")
	require.NoError(t, err)
	assert.Equal(t, "bot is already running", msg)
	assert.Len(t, c.Status().Strategies, 1)

	assert.Equal(t, "bot stopped", c.Stop())
	assert.False(t, c.Status().Running)
	assert.Equal(t, "bot is already stopped", c.Stop())
}

func TestStart_NoSymbolsConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.DefaultSymbols = nil
	c := NewController(cfg, newMockBroker(), nil, nil, utilities.NewLogger(utilities.Error))

	_, err := c.Start(nil, "")
	assert.Error(t, err)
}

func newStartedEngine(t *testing.T, b *mockBroker) *strategy.Engine {
	t.Helper()
	engine, err := strategy.NewEngine("BTC/USDT", utilities.SymbolStrategyConfig{}, utilities.IndicatorsConfig{}, b, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Update(context.Background()))
	return engine
}

func TestHandleSignal_CooldownAllowsOneOrder(t *testing.T) {
	b := newMockBroker()
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))
	engine := newStartedEngine(t, b)

	ctx := context.Background()
	c.handleSignal(ctx, "BTC/USDT", strategy.SignalBuy, engine)
	c.handleSignal(ctx, "BTC/USDT", strategy.SignalSell, engine)

	assert.Equal(t, 1, b.orderCount())
	assert.Len(t, c.Status().Trades, 1)
}

func TestHandleSignal_CooldownExpiresAndIsPerSymbol(t *testing.T) {
	b := newMockBroker()
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))
	engine := newStartedEngine(t, b)

	ctx := context.Background()
	c.handleSignal(ctx, "BTC/USDT", strategy.SignalBuy, engine)

	// Another symbol has an independent timer.
	c.handleSignal(ctx, "ETH/USDT", strategy.SignalBuy, engine)
	assert.Equal(t, 2, b.orderCount())

	// A trade just outside the window executes.
	c.mu.Lock()
	c.lastTradeAt["BTC/USDT"] = time.Now().Add(-301 * time.Second)
	c.mu.Unlock()
	c.handleSignal(ctx, "BTC/USDT", strategy.SignalSell, engine)
	assert.Equal(t, 3, b.orderCount())
}

func TestHandleSignal_OrderFailureDoesNotRecordTrade(t *testing.T) {
	b := newMockBroker()
	b.placeErr = errors.New("insufficient funds")
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))
	engine := newStartedEngine(t, b)

	c.handleSignal(context.Background(), "BTC/USDT", strategy.SignalBuy, engine)
	assert.Empty(t, c.Status().Trades)

	// A failed order must not arm the cooldown.
	b.placeErr = nil
	c.handleSignal(context.Background(), "BTC/USDT", strategy.SignalBuy, engine)
	assert.Equal(t, 1, b.orderCount())
}

func TestCycle_SymbolFaultDoesNotAbortOthers(t *testing.T) {
	b := newMockBroker()
	b.barsErr = errors.New("candle source down")
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))

	// Engines built while the source works, then the source starts failing.
	b.barsErr = nil
	engineA := newStartedEngine(t, b)
	engineB := newStartedEngine(t, b)
	c.engines = map[string]*strategy.Engine{"BTC/USDT": engineA, "ETH/USDT": engineB}
	b.barsErr = errors.New("candle source down")

	assert.NotPanics(t, func() { c.cycle(context.Background()) })
}

func TestStatus_IsPureAndBestEffort(t *testing.T) {
	b := newMockBroker()
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))

	// Status on a never-started controller still returns a usable snapshot.
	snap := c.Status()
	assert.False(t, snap.Running)
	assert.NotNil(t, snap.Balances)
	assert.Zero(t, snap.PnL.TodayRealized)

	_, err := c.Start(nil, "")
	require.NoError(t, err)
	defer c.Stop()

	before := c.Status()
	after := c.Status()
	assert.Equal(t, before.Running, after.Running)
	assert.Equal(t, len(before.Trades), len(after.Trades))

	// Mutating the returned snapshot must not leak into the controller.
	before.Balances["USDT"] = -1
	assert.NotEqual(t, before.Balances["USDT"], c.Status().Balances["USDT"])
}

func TestStatus_RealizedPnLFromTradeLog(t *testing.T) {
	b := newMockBroker()
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))
	engine := newStartedEngine(t, b)

	ctx := context.Background()
	c.handleSignal(ctx, "BTC/USDT", strategy.SignalBuy, engine)
	c.mu.Lock()
	c.lastTradeAt["BTC/USDT"] = time.Now().Add(-301 * time.Second)
	c.tradeLog[0].Price = 90 // bought at 90, mock fills sells at 100
	c.mu.Unlock()
	c.handleSignal(ctx, "BTC/USDT", strategy.SignalSell, engine)

	snap := c.Status()
	require.Len(t, snap.Trades, 2)
	assert.InDelta(t, (100.0-90.0)*0.01, snap.PnL.TodayRealized, 1e-9)
}

func TestStart_HistorySyncDedupesAcrossRestarts(t *testing.T) {
	b := newMockBroker()
	b.fills = []broker.Trade{
		{ID: "fill-1", OrderID: "fill-1", Pair: "BTC/USDT", Side: "buy", Price: 100, Volume: 1, Timestamp: time.Now().Add(-2 * time.Minute)},
		{ID: "fill-2", OrderID: "fill-2", Pair: "BTC/USDT", Side: "sell", Price: 110, Volume: 1, Timestamp: time.Now().Add(-1 * time.Minute)},
	}
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))

	_, err := c.Start(nil, "")
	require.NoError(t, err)
	snap := c.Status()
	require.Len(t, snap.Trades, 2)
	assert.InDelta(t, 10.0, snap.PnL.TodayRealized, 1e-9)

	// Restarting must not re-append the same fills or double the PnL.
	c.Stop()
	_, err = c.Start(nil, "")
	require.NoError(t, err)
	defer c.Stop()

	snap = c.Status()
	assert.Len(t, snap.Trades, 2)
	assert.InDelta(t, 10.0, snap.PnL.TodayRealized, 1e-9)
}

func TestStatus_OpenInventoryFromTradeLog(t *testing.T) {
	b := newMockBroker()
	c := NewController(testConfig(), b, nil, nil, utilities.NewLogger(utilities.Error))
	engine := newStartedEngine(t, b)

	// Mock fills buys at 100 for the default 0.01 size.
	c.handleSignal(context.Background(), "BTC/USDT", strategy.SignalBuy, engine)

	snap := c.Status()
	require.Len(t, snap.Inventory["BTC/USDT"], 1)
	assert.InDelta(t, 100.0, snap.Inventory["BTC/USDT"][0].Price, 1e-9)
	assert.InDelta(t, 0.01, snap.Inventory["BTC/USDT"][0].Amount, 1e-9)
}

func TestAppendBounded_EvictsOldest(t *testing.T) {
	var points []web.HistoryPoint
	for i := 0; i < maxHistoryPoints+5; i++ {
		points = appendBounded(points, web.HistoryPoint{Value: float64(i)})
	}
	require.Len(t, points, maxHistoryPoints)
	assert.Equal(t, 5.0, points[0].Value)
	assert.Equal(t, float64(maxHistoryPoints+4), points[len(points)-1].Value)
}
