// File: strategy/indicators.go
package strategy

import (
	"math"

	"github.com/crazy8156/okx/utilities"
)

// IndicatorRow holds the derived values for one candle. Rows inside a rolling
// window's warm-up period carry NaN for the affected fields; callers must
// check with HasValues before acting on them.
type IndicatorRow struct {
	Timestamp  int64
	Price      float64 // candle close
	SMA        float64
	SMAShort   float64
	SMALong    float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
}

// HasValues reports whether every given value is defined (not NaN).
func HasValues(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// IndicatorParams are the rolling-window sizes used to build the table.
type IndicatorParams struct {
	SMAPeriod        int
	SMAShortPeriod   int
	SMALongPeriod    int
	RSIPeriod        int
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int
}

// DefaultIndicatorParams mirror the common charting defaults.
func DefaultIndicatorParams() IndicatorParams {
	return IndicatorParams{
		SMAPeriod:        20,
		SMAShortPeriod:   9,
		SMALongPeriod:    21,
		RSIPeriod:        14,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
	}
}

// LongestWindow returns the largest warm-up any series in the table needs.
func (p IndicatorParams) LongestWindow() int {
	longest := p.SMAPeriod
	for _, n := range []int{p.SMALongPeriod, p.RSIPeriod + 1, p.MACDSlowPeriod + p.MACDSignalPeriod} {
		if n > longest {
			longest = n
		}
	}
	return longest
}

// ComputeIndicators maps a candle sequence to its indicator table. The result
// is aligned 1:1 with the input bars.
func ComputeIndicators(bars []utilities.OHLCVBar, p IndicatorParams) []IndicatorRow {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	sma := CalculateSMASeries(closes, p.SMAPeriod)
	smaShort := CalculateSMASeries(closes, p.SMAShortPeriod)
	smaLong := CalculateSMASeries(closes, p.SMALongPeriod)
	rsi := CalculateRSISeries(closes, p.RSIPeriod)
	macd, signal, hist := CalculateMACDSeries(closes, p.MACDFastPeriod, p.MACDSlowPeriod, p.MACDSignalPeriod)

	rows := make([]IndicatorRow, len(bars))
	for i := range bars {
		rows[i] = IndicatorRow{
			Timestamp:  bars[i].Timestamp,
			Price:      closes[i],
			SMA:        sma[i],
			SMAShort:   smaShort[i],
			SMALong:    smaLong[i],
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			MACDHist:   hist[i],
		}
	}
	return rows
}

// CalculateSMASeries computes a simple moving average; the first period-1
// entries are NaN.
func CalculateSMASeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMASeries computes an exponential moving average seeded with the
// SMA of the first period values.
func CalculateEMASeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	out[period-1] = sum / float64(period)

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(closes); i++ {
		out[i] = (closes[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// CalculateRSISeries computes Wilder's RSI; the first period entries are NaN.
func CalculateRSISeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateMACDSeries computes the MACD line (fast EMA - slow EMA), its signal
// line (EMA of the MACD line), and the histogram.
func CalculateMACDSeries(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (macd, signal, hist []float64) {
	macd = nanSeries(len(closes))
	signal = nanSeries(len(closes))
	hist = nanSeries(len(closes))
	if len(closes) < slowPeriod {
		return macd, signal, hist
	}

	fastEMA := CalculateEMASeries(closes, fastPeriod)
	slowEMA := CalculateEMASeries(closes, slowPeriod)
	for i := range closes {
		if HasValues(fastEMA[i], slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// Signal line: EMA over the defined portion of the MACD line.
	start := slowPeriod - 1
	defined := macd[start:]
	signalPart := CalculateEMASeries(defined, signalPeriod)
	for i, v := range signalPart {
		signal[start+i] = v
	}
	for i := range closes {
		if HasValues(macd[i], signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	return macd, signal, hist
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
