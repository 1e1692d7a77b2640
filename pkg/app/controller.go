// File: pkg/app/controller.go
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crazy8156/okx/dataprovider"
	"github.com/crazy8156/okx/notification/discord"
	"github.com/crazy8156/okx/pkg/broker"
	"github.com/crazy8156/okx/pkg/ledger"
	"github.com/crazy8156/okx/strategy"
	"github.com/crazy8156/okx/utilities"
	"github.com/crazy8156/okx/web"
)

const (
	defaultCycleInterval   = 5 * time.Second
	defaultCooldown        = 300 * time.Second
	defaultHistoryInterval = 10 * time.Second
	defaultTickerInterval  = 10 * time.Second
	maxHistoryPoints       = 100
	defaultMaxTradeRecords = 100
)

// Controller orchestrates the trading session: it owns the strategy engines,
// the trade log, the balance/price caches, and the bounded history buffers,
// and drives the recurring evaluation cycle. It implements web.BotController.
//
// Locking: lifecycle and trading state live under mu; the caches the
// background refreshers write live under cacheMu. The scheduler guarantees at
// most one in-flight cycle, so engines are never evaluated concurrently.
type Controller struct {
	cfg      *utilities.AppConfig
	logger   *utilities.Logger
	broker   broker.Broker
	news     dataprovider.NewsProvider
	notifier *discord.Client

	mu          sync.Mutex
	running     bool
	mode        string
	engines     map[string]*strategy.Engine
	lastTradeAt map[string]time.Time
	tradeLog    []ledger.TradeRecord
	baseline    float64
	stopCh      chan struct{}
	doneCh      chan struct{}

	cacheMu      sync.RWMutex
	balances     map[string]float64
	priceCache   map[string]float64
	newsItems    []dataprovider.NewsItem
	newsSummary  dataprovider.SentimentSummary
	scanResults  []web.ScanResult
	priceHistory map[string][]web.HistoryPoint
	pnlHistory   []web.HistoryPoint

	lastHistoryAt time.Time
}

// NewController wires a controller from its collaborators. The notifier may
// be nil when Discord is not configured.
func NewController(cfg *utilities.AppConfig, b broker.Broker, news dataprovider.NewsProvider, notifier *discord.Client, logger *utilities.Logger) *Controller {
	return &Controller{
		cfg:          cfg,
		logger:       logger,
		broker:       b,
		news:         news,
		notifier:     notifier,
		engines:      make(map[string]*strategy.Engine),
		lastTradeAt:  make(map[string]time.Time),
		balances:     make(map[string]float64),
		priceCache:   make(map[string]float64),
		priceHistory: make(map[string][]web.HistoryPoint),
	}
}

// Start activates trading for the given symbols. Calling Start while already
// running is a no-op that reports the running state. A failure to reach the
// exchange during setup is returned as a hard error; per-symbol indicator
// warm-up failures are logged and retried by the cycle.
func (c *Controller) Start(symbols []string, mode string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return "bot is already running", nil
	}

	if len(symbols) == 0 {
		symbols = c.cfg.Trading.DefaultSymbols
	}
	if len(symbols) == 0 {
		return "", fmt.Errorf("start: no symbols given and no default_symbols configured")
	}
	if mode == "" {
		if c.cfg.OKX.Sandbox {
			mode = "sandbox"
		} else {
			mode = "live"
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Exchange connectivity is a precondition; without balances there is no
	// session baseline to measure PnL against.
	if err := c.refreshBalances(ctx); err != nil {
		return "", fmt.Errorf("start: balance fetch failed: %w", err)
	}

	engines := make(map[string]*strategy.Engine, len(symbols))
	for _, symbol := range symbols {
		engine, err := strategy.NewEngine(symbol, c.strategyConfigFor(symbol), c.cfg.Indicators, c.broker, c.logger)
		if err != nil {
			return "", fmt.Errorf("start: %w", err)
		}
		// First synchronous update so the first status read is not empty.
		if err := engine.Update(ctx); err != nil {
			c.logger.LogWarn("Controller: initial update for %s failed, cycle will retry: %v", symbol, err)
		}
		engines[symbol] = engine
	}
	c.engines = engines

	c.syncTradeHistoryLocked(ctx, symbols)

	baseline, err := c.netAssetValue(ctx)
	if err != nil {
		return "", fmt.Errorf("start: session baseline: %w", err)
	}
	c.baseline = baseline
	c.mode = mode
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.lastHistoryAt = time.Time{}

	go c.runLoop(c.stopCh, c.doneCh)
	go c.runTickerUpdater(c.stopCh)
	if c.news != nil {
		go c.runNewsUpdater(c.stopCh)
	}
	if c.cfg.Scanner.Enabled {
		go c.runScanner(c.stopCh)
	}

	c.logger.LogInfo("Controller: started in %s mode for %s (baseline NAV %.2f %s)",
		mode, strings.Join(symbols, ", "), baseline, c.quoteCurrency())
	c.notify("Bot started in %s mode for %s", mode, strings.Join(symbols, ", "))
	return fmt.Sprintf("bot started for %d symbols", len(symbols)), nil
}

// Stop deactivates trading. It waits for the in-flight cycle to complete so
// no order is left submitted but unrecorded. Stopping twice is safe.
func (c *Controller) Stop() string {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return "bot is already stopped"
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	c.engines = make(map[string]*strategy.Engine)
	c.baseline = 0
	c.mu.Unlock()

	c.logger.LogInfo("Controller: stopped.")
	c.notify("Bot stopped")
	return "bot stopped"
}

// runLoop drives the recurring evaluation cycle until the stop channel
// closes. Cycles never overlap: the next tick waits for the current cycle.
func (c *Controller) runLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := secondsOr(c.cfg.Trading.CycleIntervalSec, defaultCycleInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval*4)
			c.cycle(ctx)
			cancel()
		}
	}
}

// cycle evaluates every active symbol once and refreshes the history buffers
// on their slower cadence. A fault in one symbol never aborts the others.
func (c *Controller) cycle(ctx context.Context) {
	c.mu.Lock()
	engines := make(map[string]*strategy.Engine, len(c.engines))
	for pair, engine := range c.engines {
		engines[pair] = engine
	}
	c.mu.Unlock()

	for pair, engine := range engines {
		if err := engine.Update(ctx); err != nil {
			c.logger.LogWarn("Controller: %s update failed this cycle: %v", pair, err)
			continue
		}
		sig := engine.CheckSignals()
		if sig == strategy.SignalNone {
			continue
		}
		c.handleSignal(ctx, pair, sig, engine)
	}

	c.refreshHistory(ctx)
}

// handleSignal applies the cooldown policy and forwards an accepted signal to
// the order gateway.
func (c *Controller) handleSignal(ctx context.Context, pair string, sig strategy.Signal, engine *strategy.Engine) {
	cooldown := secondsOr(c.cfg.Trading.CooldownSec, defaultCooldown)

	c.mu.Lock()
	last, traded := c.lastTradeAt[pair]
	c.mu.Unlock()
	if traded && time.Since(last) < cooldown {
		// Policy rejection, not an error. The signal is dropped; the next
		// cycle re-evaluates fresh state.
		c.logger.LogInfo("Controller: %s %s signal suppressed by cooldown (%.0fs remaining)",
			pair, sig, (cooldown - time.Since(last)).Seconds())
		return
	}

	size := c.orderSizeFor(pair)
	side := "buy"
	if sig == strategy.SignalSell {
		side = "sell"
	}

	order, err := c.broker.PlaceOrder(ctx, pair, side, "market", size, 0)
	if err != nil {
		c.logger.LogError("Controller: %s %s order failed: %v", pair, side, err)
		return
	}

	price := order.AvgFillPrice
	if price <= 0 {
		price = engine.LastPrice()
	}
	amount := order.FilledVolume
	if amount <= 0 {
		amount = size
	}

	record := ledger.TradeRecord{
		ID:     order.ID,
		Time:   time.Now(),
		Symbol: pair,
		Side:   string(sig),
		Price:  price,
		Amount: amount,
	}

	c.mu.Lock()
	c.tradeLog = append(c.tradeLog, record)
	if limit := c.maxTradeRecords(); len(c.tradeLog) > limit {
		c.tradeLog = c.tradeLog[len(c.tradeLog)-limit:]
	}
	c.lastTradeAt[pair] = record.Time
	c.mu.Unlock()

	c.logger.LogInfo("Controller: executed %s %s %.8f @ %.6f (order %s)", pair, sig, amount, price, order.ID)
	c.notify("%s %s %.8f @ %.6f", sig, pair, amount, price)

	refreshCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := c.refreshBalances(refreshCtx); err != nil {
		c.logger.LogWarn("Controller: balance refresh after trade failed: %v", err)
	}
	cancel()
}

// refreshHistory appends price and PnL history points when the slower history
// cadence has elapsed, evicting the oldest points beyond the cap.
func (c *Controller) refreshHistory(ctx context.Context) {
	interval := secondsOr(c.cfg.Trading.HistoryIntervalSec, defaultHistoryInterval)
	if !c.lastHistoryAt.IsZero() && time.Since(c.lastHistoryAt) < interval {
		return
	}
	c.lastHistoryAt = time.Now()
	now := c.lastHistoryAt

	c.mu.Lock()
	engines := make(map[string]*strategy.Engine, len(c.engines))
	for pair, engine := range c.engines {
		engines[pair] = engine
	}
	baseline := c.baseline
	c.mu.Unlock()

	nav, err := c.netAssetValue(ctx)
	pnl := 0.0
	if err != nil {
		c.logger.LogWarn("Controller: NAV for PnL history failed, point skipped: %v", err)
	} else {
		pnl = nav - baseline
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	for pair, engine := range engines {
		price := engine.LastPrice()
		if price <= 0 {
			price = c.priceCache[pair]
		}
		if price <= 0 {
			continue
		}
		c.priceHistory[pair] = appendBounded(c.priceHistory[pair], web.HistoryPoint{Time: now, Value: price})
	}
	if err == nil {
		c.pnlHistory = appendBounded(c.pnlHistory, web.HistoryPoint{Time: now, Value: pnl})
	}
}

func appendBounded(points []web.HistoryPoint, p web.HistoryPoint) []web.HistoryPoint {
	points = append(points, p)
	if len(points) > maxHistoryPoints {
		points = points[len(points)-maxHistoryPoints:]
	}
	return points
}

// Status returns a best-effort snapshot of the controller's state. It never
// mutates state and never fails; stale values are served as-is.
func (c *Controller) Status() web.StatusSnapshot {
	c.mu.Lock()
	running := c.running
	mode := c.mode
	strategies := make(map[string]strategy.Info, len(c.engines))
	for pair, engine := range c.engines {
		strategies[pair] = engine.Info()
	}
	trades := make([]ledger.TradeRecord, len(c.tradeLog))
	copy(trades, c.tradeLog)
	c.mu.Unlock()

	todayRealized := ledger.RealizedPnLForDay(time.Now(), trades)
	inventory := ledger.OpenInventory(trades)

	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	balances := make(map[string]float64, len(c.balances))
	for ccy, amt := range c.balances {
		balances[ccy] = amt
	}
	prices := make(map[string]float64, len(c.priceCache))
	for pair, px := range c.priceCache {
		prices[pair] = px
	}
	history := make(map[string][]web.HistoryPoint, len(c.priceHistory))
	for pair, points := range c.priceHistory {
		cp := make([]web.HistoryPoint, len(points))
		copy(cp, points)
		history[pair] = cp
	}
	pnlHistory := make([]web.HistoryPoint, len(c.pnlHistory))
	copy(pnlHistory, c.pnlHistory)
	scanner := make([]web.ScanResult, len(c.scanResults))
	copy(scanner, c.scanResults)

	current := 0.0
	if running && len(pnlHistory) > 0 {
		current = pnlHistory[len(pnlHistory)-1].Value
	}

	return web.StatusSnapshot{
		Running:    running,
		Mode:       mode,
		Balances:   balances,
		Strategies: strategies,
		PnL: web.PnLInfo{
			Current:       current,
			TodayRealized: todayRealized,
			History:       pnlHistory,
		},
		Trades:       trades,
		Inventory:    inventory,
		Prices:       prices,
		PriceHistory: history,
		Scanner:      scanner,
	}
}

// News returns the cached headlines and their aggregate sentiment.
func (c *Controller) News() web.NewsReport {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	items := make([]dataprovider.NewsItem, len(c.newsItems))
	copy(items, c.newsItems)
	return web.NewsReport{Summary: c.newsSummary, News: items}
}

// --- balance / NAV helpers ---

// refreshBalances fetches balances into the cache.
func (c *Controller) refreshBalances(ctx context.Context) error {
	balances, err := c.broker.GetBalances(ctx)
	if err != nil {
		return err
	}
	c.cacheMu.Lock()
	c.balances = make(map[string]float64, len(balances))
	for _, b := range balances {
		c.balances[b.Currency] = b.Total
	}
	c.cacheMu.Unlock()
	return nil
}

// netAssetValue computes quote balance plus the marked value of every base
// holding, fetching a ticker for any base without a cached price.
func (c *Controller) netAssetValue(ctx context.Context) (float64, error) {
	quote := c.quoteCurrency()

	c.cacheMu.RLock()
	balances := make(map[string]float64, len(c.balances))
	for ccy, amt := range c.balances {
		balances[ccy] = amt
	}
	prices := make(map[string]float64, len(c.priceCache))
	for pair, px := range c.priceCache {
		prices[pair] = px
	}
	c.cacheMu.RUnlock()

	nav := balances[quote]
	for ccy, amount := range balances {
		if ccy == quote || amount <= 0 {
			continue
		}
		pair := ccy + "/" + quote
		price, ok := prices[pair]
		if !ok {
			ticker, err := c.broker.GetTicker(ctx, pair)
			if err != nil {
				return 0, fmt.Errorf("price for %s: %w", pair, err)
			}
			price = ticker.LastPrice
			c.cacheMu.Lock()
			c.priceCache[pair] = price
			c.cacheMu.Unlock()
		}
		nav += amount * price
	}
	return nav, nil
}

// syncTradeHistoryLocked seeds the trade log with recent fills from the venue
// so today's realized PnL survives a restart. Fills already present (by venue
// order ID) are skipped, so a start/stop/start sequence does not double-count
// anything. Failures are non-fatal.
func (c *Controller) syncTradeHistoryLocked(ctx context.Context, symbols []string) {
	limit := c.maxTradeRecords()
	seen := make(map[string]struct{}, len(c.tradeLog))
	for _, rec := range c.tradeLog {
		if rec.ID != "" {
			seen[rec.ID] = struct{}{}
		}
	}

	synced := 0
	for _, symbol := range symbols {
		fills, err := c.broker.GetRecentFills(ctx, symbol, limit)
		if err != nil {
			c.logger.LogWarn("Controller: trade history sync for %s failed: %v", symbol, err)
			continue
		}
		for _, fill := range fills {
			if fill.ID != "" {
				if _, dup := seen[fill.ID]; dup {
					continue
				}
				seen[fill.ID] = struct{}{}
			}
			side := ledger.SideBuy
			if strings.EqualFold(fill.Side, "sell") {
				side = ledger.SideSell
			}
			c.tradeLog = append(c.tradeLog, ledger.TradeRecord{
				ID:     fill.ID,
				Time:   fill.Timestamp,
				Symbol: symbol,
				Side:   side,
				Price:  fill.Price,
				Amount: fill.Volume,
			})
			synced++
		}
	}
	sort.SliceStable(c.tradeLog, func(i, j int) bool {
		return c.tradeLog[i].Time.Before(c.tradeLog[j].Time)
	})
	if limit > 0 && len(c.tradeLog) > limit {
		c.tradeLog = c.tradeLog[len(c.tradeLog)-limit:]
	}
	if synced > 0 {
		c.logger.LogInfo("Controller: synced %d historical fills.", synced)
	}
}

// --- background refreshers ---

// runTickerUpdater refreshes the price cache for active and watched symbols.
func (c *Controller) runTickerUpdater(stop <-chan struct{}) {
	interval := secondsOr(c.cfg.Trading.TickerIntervalSec, defaultTickerInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		tickers, err := c.broker.GetTickers(ctx)
		if err != nil {
			c.logger.LogWarn("Controller: ticker refresh failed: %v", err)
			return
		}

		wanted := c.watchedPairs()
		c.cacheMu.Lock()
		for _, t := range tickers {
			if _, ok := wanted[t.Pair]; ok {
				c.priceCache[t.Pair] = t.LastPrice
			}
		}
		c.cacheMu.Unlock()
	}

	refresh()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// runNewsUpdater periodically refreshes the cached headlines and sentiment.
func (c *Controller) runNewsUpdater(stop <-chan struct{}) {
	intervalMin := 5
	if c.cfg.News != nil && c.cfg.News.RefreshIntervalMin > 0 {
		intervalMin = c.cfg.News.RefreshIntervalMin
	}
	ticker := time.NewTicker(time.Duration(intervalMin) * time.Minute)
	defer ticker.Stop()

	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		items, err := c.news.GetLatestNews(ctx)
		if err != nil {
			c.logger.LogWarn("Controller: news refresh failed: %v", err)
			return
		}
		summary := dataprovider.Summarize(items, time.Now())

		c.cacheMu.Lock()
		c.newsItems = items
		c.newsSummary = summary
		c.cacheMu.Unlock()
		c.logger.LogInfo("Controller: news sentiment %s (%.2f) across %d headlines.",
			summary.Label, summary.Score, summary.ItemCount)
	}

	refresh()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// watchedPairs returns the union of active and configured watch symbols.
func (c *Controller) watchedPairs() map[string]struct{} {
	wanted := make(map[string]struct{})
	c.mu.Lock()
	for pair := range c.engines {
		wanted[pair] = struct{}{}
	}
	c.mu.Unlock()
	for _, pair := range c.cfg.Trading.WatchSymbols {
		wanted[pair] = struct{}{}
	}
	return wanted
}

func (c *Controller) notify(format string, args ...interface{}) {
	if c.notifier == nil {
		return
	}
	go func() {
		if err := c.notifier.Sendf(format, args...); err != nil {
			c.logger.LogWarn("Controller: discord notification failed: %v", err)
		}
	}()
}

// --- config helpers ---

func (c *Controller) quoteCurrency() string {
	if c.cfg.Trading.QuoteCurrency != "" {
		return c.cfg.Trading.QuoteCurrency
	}
	return "USDT"
}

func (c *Controller) strategyConfigFor(symbol string) utilities.SymbolStrategyConfig {
	if cfg, ok := c.cfg.Strategies[symbol]; ok {
		return cfg
	}
	return utilities.SymbolStrategyConfig{}
}

func (c *Controller) orderSizeFor(symbol string) float64 {
	if cfg, ok := c.cfg.Strategies[symbol]; ok && cfg.OrderSize > 0 {
		return cfg.OrderSize
	}
	if size, ok := c.cfg.Trading.OrderSizes[symbol]; ok && size > 0 {
		return size
	}
	if c.cfg.Trading.DefaultOrderSize > 0 {
		return c.cfg.Trading.DefaultOrderSize
	}
	return 0.001
}

func (c *Controller) maxTradeRecords() int {
	if c.cfg.Trading.MaxTradeRecords > 0 {
		return c.cfg.Trading.MaxTradeRecords
	}
	return defaultMaxTradeRecords
}

func secondsOr(sec int, fallback time.Duration) time.Duration {
	if sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return fallback
}
