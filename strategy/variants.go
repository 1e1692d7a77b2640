// File: strategy/variants.go
package strategy

import "fmt"

// Variant names accepted in configuration.
const (
	VariantTrendRSI      = "trend_rsi"
	VariantSMACross      = "sma_cross"
	VariantTrendMomentum = "trend_momentum"
)

// NewVariant resolves a configured variant name to its predicate set. An empty
// name defaults to trend_rsi.
func NewVariant(name string) (Variant, error) {
	switch name {
	case "", VariantTrendRSI:
		return trendRSIVariant{}, nil
	case VariantSMACross:
		return smaCrossVariant{}, nil
	case VariantTrendMomentum:
		return trendMomentumVariant{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy variant %q", name)
	}
}

// bracketExit applies the stop-loss / take-profit checks shared by every
// variant. Returns the closing signal or SignalNone.
func bracketExit(cur IndicatorRow, pos PositionState) Signal {
	switch pos.Phase {
	case PhaseLong:
		if pos.StopLossPct > 0 && cur.Price <= pos.EntryPrice*(1-pos.StopLossPct) {
			return SignalSell
		}
		if pos.TakeProfitPct > 0 && cur.Price >= pos.EntryPrice*(1+pos.TakeProfitPct) {
			return SignalSell
		}
	case PhaseShort:
		if pos.StopLossPct > 0 && cur.Price >= pos.EntryPrice*(1+pos.StopLossPct) {
			return SignalBuy
		}
		if pos.TakeProfitPct > 0 && cur.Price <= pos.EntryPrice*(1-pos.TakeProfitPct) {
			return SignalBuy
		}
	}
	return SignalNone
}

// trendRSIVariant trades pullbacks within a trend: price relative to a single
// SMA picks the direction, RSI confirms the entry timing.
type trendRSIVariant struct{}

func (trendRSIVariant) Name() string { return VariantTrendRSI }

func (trendRSIVariant) EvaluateEntry(_, cur IndicatorRow, pos PositionState) Signal {
	if !HasValues(cur.Price, cur.SMA, cur.RSI) {
		return SignalNone
	}
	if cur.Price > cur.SMA && cur.RSI < pos.RSIBuyThreshold {
		return SignalBuy
	}
	if cur.Price < cur.SMA && cur.RSI > pos.RSISellThreshold {
		return SignalSell
	}
	return SignalNone
}

func (trendRSIVariant) EvaluateExit(_, cur IndicatorRow, pos PositionState) Signal {
	if !HasValues(cur.Price, cur.RSI) {
		return SignalNone
	}
	if sig := bracketExit(cur, pos); sig != SignalNone {
		return sig
	}
	// Momentum exhaustion.
	if pos.Phase == PhaseLong && cur.RSI > pos.RSISellThreshold {
		return SignalSell
	}
	if pos.Phase == PhaseShort && cur.RSI < pos.RSIBuyThreshold {
		return SignalBuy
	}
	return SignalNone
}

// smaCrossVariant trades short/long moving-average crossovers. Entries need an
// actual cross between the previous and current row, not just one side being
// above the other, so a freshly started engine does not chase an old trend.
type smaCrossVariant struct{}

func (smaCrossVariant) Name() string { return VariantSMACross }

func (smaCrossVariant) EvaluateEntry(prev, cur IndicatorRow, _ PositionState) Signal {
	if !HasValues(prev.SMAShort, prev.SMALong, cur.SMAShort, cur.SMALong) {
		return SignalNone
	}
	if prev.SMAShort <= prev.SMALong && cur.SMAShort > cur.SMALong {
		return SignalBuy
	}
	if prev.SMAShort >= prev.SMALong && cur.SMAShort < cur.SMALong {
		return SignalSell
	}
	return SignalNone
}

func (smaCrossVariant) EvaluateExit(prev, cur IndicatorRow, pos PositionState) Signal {
	if !HasValues(cur.Price) {
		return SignalNone
	}
	if sig := bracketExit(cur, pos); sig != SignalNone {
		return sig
	}
	if !HasValues(prev.SMAShort, prev.SMALong, cur.SMAShort, cur.SMALong) {
		return SignalNone
	}
	// Close on the opposite cross.
	if pos.Phase == PhaseLong && prev.SMAShort >= prev.SMALong && cur.SMAShort < cur.SMALong {
		return SignalSell
	}
	if pos.Phase == PhaseShort && prev.SMAShort <= prev.SMALong && cur.SMAShort > cur.SMALong {
		return SignalBuy
	}
	return SignalNone
}

// trendMomentumVariant layers a MACD momentum filter on top of the trend+RSI
// entries, and additionally closes a position when MACD crosses against it.
type trendMomentumVariant struct{}

func (trendMomentumVariant) Name() string { return VariantTrendMomentum }

func (trendMomentumVariant) EvaluateEntry(_, cur IndicatorRow, pos PositionState) Signal {
	if !HasValues(cur.Price, cur.SMA, cur.RSI, cur.MACD, cur.MACDSignal) {
		return SignalNone
	}
	if cur.Price > cur.SMA && cur.RSI < pos.RSIBuyThreshold && cur.MACD > cur.MACDSignal {
		return SignalBuy
	}
	if cur.Price < cur.SMA && cur.RSI > pos.RSISellThreshold && cur.MACD < cur.MACDSignal {
		return SignalSell
	}
	return SignalNone
}

func (trendMomentumVariant) EvaluateExit(prev, cur IndicatorRow, pos PositionState) Signal {
	if !HasValues(cur.Price, cur.RSI) {
		return SignalNone
	}
	if sig := bracketExit(cur, pos); sig != SignalNone {
		return sig
	}
	if pos.Phase == PhaseLong && cur.RSI > pos.RSISellThreshold {
		return SignalSell
	}
	if pos.Phase == PhaseShort && cur.RSI < pos.RSIBuyThreshold {
		return SignalBuy
	}
	if !HasValues(prev.MACD, prev.MACDSignal, cur.MACD, cur.MACDSignal) {
		return SignalNone
	}
	if pos.Phase == PhaseLong && prev.MACD >= prev.MACDSignal && cur.MACD < cur.MACDSignal {
		return SignalSell
	}
	if pos.Phase == PhaseShort && prev.MACD <= prev.MACDSignal && cur.MACD > cur.MACDSignal {
		return SignalBuy
	}
	return SignalNone
}
