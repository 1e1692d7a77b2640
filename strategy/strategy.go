// File: strategy/strategy.go
package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/crazy8156/okx/utilities"
)

// Signal is the engine's per-cycle trade decision.
type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// Phase is the position state of one symbol's state machine.
type Phase string

const (
	PhaseFlat  Phase = "FLAT"
	PhaseLong  Phase = "LONG"
	PhaseShort Phase = "SHORT"
)

// PositionState is owned exclusively by one Engine and mutated only inside
// CheckSignals.
type PositionState struct {
	Phase            Phase
	EntryPrice       float64
	StopLossPct      float64
	TakeProfitPct    float64
	RSIBuyThreshold  float64
	RSISellThreshold float64
}

// StopLossPrice returns the protective exit price for the open position, or 0
// when flat or no stop is configured.
func (p PositionState) StopLossPrice() float64 {
	if p.StopLossPct <= 0 {
		return 0
	}
	switch p.Phase {
	case PhaseLong:
		return p.EntryPrice * (1 - p.StopLossPct)
	case PhaseShort:
		return p.EntryPrice * (1 + p.StopLossPct)
	}
	return 0
}

// TakeProfitPrice returns the target exit price for the open position, or 0
// when flat or no target is configured.
func (p PositionState) TakeProfitPrice() float64 {
	if p.TakeProfitPct <= 0 {
		return 0
	}
	switch p.Phase {
	case PhaseLong:
		return p.EntryPrice * (1 + p.TakeProfitPct)
	case PhaseShort:
		return p.EntryPrice * (1 - p.TakeProfitPct)
	}
	return 0
}

// Variant is the pluggable predicate pair that specializes the shared
// FLAT/LONG/SHORT state machine. Predicates receive the previous row as well
// so crossover variants can detect the actual cross.
type Variant interface {
	Name() string
	// EvaluateEntry decides a FLAT->LONG (SignalBuy) or FLAT->SHORT
	// (SignalSell) transition, or SignalNone.
	EvaluateEntry(prev, cur IndicatorRow, pos PositionState) Signal
	// EvaluateExit decides whether the open position must close. It returns
	// SignalSell for LONG exits and SignalBuy for SHORT exits, or SignalNone.
	EvaluateExit(prev, cur IndicatorRow, pos PositionState) Signal
}

// CandleSource supplies the candle window the engine recomputes indicators
// from. Satisfied by the broker adapter.
type CandleSource interface {
	GetLastNOHLCVBars(ctx context.Context, commonPair, timeframe string, nBars int) ([]utilities.OHLCVBar, error)
}

// Engine runs the position state machine for a single symbol. Update and
// CheckSignals are driven by the controller's cycle; Info may be read from
// the status path concurrently.
type Engine struct {
	Pair      string
	Timeframe string

	variant     Variant
	source      CandleSource
	logger      *utilities.Logger
	params      IndicatorParams
	candleLimit int

	mu       sync.RWMutex
	position PositionState
	prevRow  IndicatorRow
	curRow   IndicatorRow
	haveRows int // 0, 1 or 2 rows retained so far
}

// NewEngine builds an engine for one symbol from its resolved configuration.
func NewEngine(pair string, cfg utilities.SymbolStrategyConfig, ind utilities.IndicatorsConfig, source CandleSource, logger *utilities.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("strategy engine for %s: nil candle source", pair)
	}

	params := DefaultIndicatorParams()
	if ind.SMAPeriod > 0 {
		params.SMAPeriod = ind.SMAPeriod
	}
	if ind.SMAShortPeriod > 0 {
		params.SMAShortPeriod = ind.SMAShortPeriod
	}
	if ind.SMALongPeriod > 0 {
		params.SMALongPeriod = ind.SMALongPeriod
	}
	if ind.RSIPeriod > 0 {
		params.RSIPeriod = ind.RSIPeriod
	}
	if ind.MACDFastPeriod > 0 {
		params.MACDFastPeriod = ind.MACDFastPeriod
	}
	if ind.MACDSlowPeriod > 0 {
		params.MACDSlowPeriod = ind.MACDSlowPeriod
	}
	if ind.MACDSignalPeriod > 0 {
		params.MACDSignalPeriod = ind.MACDSignalPeriod
	}
	// Per-symbol overrides.
	if cfg.SMAPeriod > 0 {
		params.SMAPeriod = cfg.SMAPeriod
	}
	if cfg.RSIPeriod > 0 {
		params.RSIPeriod = cfg.RSIPeriod
	}

	variant, err := NewVariant(cfg.Variant)
	if err != nil {
		return nil, fmt.Errorf("strategy engine for %s: %w", pair, err)
	}

	timeframe := cfg.Timeframe
	if timeframe == "" {
		timeframe = "5m"
	}
	candleLimit := ind.CandleLimit
	if minimum := params.LongestWindow() + 10; candleLimit < minimum {
		candleLimit = minimum
	}

	position := PositionState{
		Phase:            PhaseFlat,
		StopLossPct:      cfg.StopLossPct,
		TakeProfitPct:    cfg.TakeProfitPct,
		RSIBuyThreshold:  cfg.RSIBuyThreshold,
		RSISellThreshold: cfg.RSISellThreshold,
	}
	if position.RSIBuyThreshold <= 0 {
		position.RSIBuyThreshold = 30
	}
	if position.RSISellThreshold <= 0 {
		position.RSISellThreshold = 70
	}

	return &Engine{
		Pair:        pair,
		Timeframe:   timeframe,
		variant:     variant,
		source:      source,
		logger:      logger,
		params:      params,
		candleLimit: candleLimit,
		position:    position,
	}, nil
}

// Update fetches the latest candle window and recomputes the indicator table.
// A transient fetch failure leaves prior indicator state untouched.
func (e *Engine) Update(ctx context.Context) error {
	bars, err := e.source.GetLastNOHLCVBars(ctx, e.Pair, e.Timeframe, e.candleLimit)
	if err != nil {
		return fmt.Errorf("update %s: candle fetch: %w", e.Pair, err)
	}
	if len(bars) < 2 {
		return fmt.Errorf("update %s: candle window too short (%d bars)", e.Pair, len(bars))
	}

	rows := ComputeIndicators(bars, e.params)

	e.mu.Lock()
	e.prevRow = rows[len(rows)-2]
	e.curRow = rows[len(rows)-1]
	e.haveRows = 2
	e.mu.Unlock()
	return nil
}

// CheckSignals evaluates the state machine against the latest indicator row.
// Exit predicates run before entry predicates, and at most one transition
// happens per call. Rows still inside the indicator warm-up suppress signals.
func (e *Engine) CheckSignals() Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.haveRows < 2 {
		return SignalNone
	}
	prev, cur := e.prevRow, e.curRow

	if e.position.Phase != PhaseFlat {
		if sig := e.variant.EvaluateExit(prev, cur, e.position); sig != SignalNone {
			e.logSignal(sig, cur, "exit")
			e.position.Phase = PhaseFlat
			e.position.EntryPrice = 0
			return sig
		}
		return SignalNone
	}

	sig := e.variant.EvaluateEntry(prev, cur, e.position)
	switch sig {
	case SignalBuy:
		e.position.Phase = PhaseLong
		e.position.EntryPrice = cur.Price
	case SignalSell:
		e.position.Phase = PhaseShort
		e.position.EntryPrice = cur.Price
	default:
		return SignalNone
	}
	e.logSignal(sig, cur, "entry")
	return sig
}

func (e *Engine) logSignal(sig Signal, row IndicatorRow, kind string) {
	if e.logger == nil {
		return
	}
	color := utilities.ColorCyan
	if sig == SignalSell {
		color = utilities.ColorRed
	}
	e.logger.LogInfo("%s%s%s: %s%s%s %s signal at %.6f (variant=%s)",
		utilities.ColorYellow, e.Pair, utilities.ColorReset,
		color, sig, utilities.ColorReset, kind, row.Price, e.variant.Name())
}

// Info is the per-symbol snapshot exposed on the status endpoint.
type Info struct {
	Pair             string  `json:"pair"`
	Variant          string  `json:"variant"`
	Timeframe        string  `json:"timeframe"`
	Position         string  `json:"position"`
	EntryPrice       float64 `json:"entry_price,omitempty"`
	StopLossPrice    float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice  float64 `json:"take_profit_price,omitempty"`
	RSIBuyThreshold  float64 `json:"rsi_buy_threshold"`
	RSISellThreshold float64 `json:"rsi_sell_threshold"`
	LastPrice        float64 `json:"last_price,omitempty"`
	RSI              float64 `json:"rsi,omitempty"`
	TrendRef         float64 `json:"trend_ref,omitempty"`
	NextAction       string  `json:"next_action"`
}

// Info returns a read-only snapshot of the engine's current state.
func (e *Engine) Info() Info {
	e.mu.RLock()
	defer e.mu.RUnlock()

	info := Info{
		Pair:             e.Pair,
		Variant:          e.variant.Name(),
		Timeframe:        e.Timeframe,
		Position:         string(e.position.Phase),
		EntryPrice:       e.position.EntryPrice,
		StopLossPrice:    e.position.StopLossPrice(),
		TakeProfitPrice:  e.position.TakeProfitPrice(),
		RSIBuyThreshold:  e.position.RSIBuyThreshold,
		RSISellThreshold: e.position.RSISellThreshold,
	}
	if e.haveRows >= 2 {
		info.LastPrice = e.curRow.Price
		if !math.IsNaN(e.curRow.RSI) {
			info.RSI = e.curRow.RSI
		}
		if !math.IsNaN(e.curRow.SMA) {
			info.TrendRef = e.curRow.SMA
		}
	}
	info.NextAction = e.nextAction()
	return info
}

// nextAction renders a human-readable hint of what would move the machine.
// Callers must hold e.mu.
func (e *Engine) nextAction() string {
	if e.haveRows < 2 {
		return "warming up: waiting for indicator data"
	}
	switch e.position.Phase {
	case PhaseLong:
		return fmt.Sprintf("holding long from %.6f: sell on stop %.6f, target %.6f or RSI > %.0f",
			e.position.EntryPrice, e.position.StopLossPrice(), e.position.TakeProfitPrice(), e.position.RSISellThreshold)
	case PhaseShort:
		return fmt.Sprintf("holding short from %.6f: cover on stop %.6f, target %.6f or RSI < %.0f",
			e.position.EntryPrice, e.position.StopLossPrice(), e.position.TakeProfitPrice(), e.position.RSIBuyThreshold)
	default:
		return fmt.Sprintf("flat: buy above trend with RSI < %.0f, sell below trend with RSI > %.0f",
			e.position.RSIBuyThreshold, e.position.RSISellThreshold)
	}
}

// Position returns a copy of the current position state.
func (e *Engine) Position() PositionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// LastPrice returns the close of the most recent indicator row, or 0 when the
// engine has not updated yet.
func (e *Engine) LastPrice() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.haveRows < 2 {
		return 0
	}
	return e.curRow.Price
}
