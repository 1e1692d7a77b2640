// File: strategy/indicators_test.go
package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSMASeries(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	sma := CalculateSMASeries(closes, 3)

	require.Len(t, sma, 5)
	assert.True(t, math.IsNaN(sma[0]))
	assert.True(t, math.IsNaN(sma[1]))
	assert.InDelta(t, 2.0, sma[2], 1e-9)
	assert.InDelta(t, 3.0, sma[3], 1e-9)
	assert.InDelta(t, 4.0, sma[4], 1e-9)
}

func TestCalculateSMASeries_TooShort(t *testing.T) {
	sma := CalculateSMASeries([]float64{1, 2}, 5)
	for _, v := range sma {
		assert.True(t, math.IsNaN(v))
	}
}

func TestCalculateEMASeries_SeedAndSmoothing(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 20}
	ema := CalculateEMASeries(closes, 4)

	assert.True(t, math.IsNaN(ema[2]))
	// Seed is the SMA of the first 4 values.
	assert.InDelta(t, 10.0, ema[3], 1e-9)
	// Multiplier 2/(4+1)=0.4: 10 + (20-10)*0.4 = 14.
	assert.InDelta(t, 14.0, ema[4], 1e-9)
}

func TestCalculateRSISeries_Bounds(t *testing.T) {
	// Monotonic gains push RSI to 100.
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(i)
	}
	rsi := CalculateRSISeries(up, 14)
	assert.True(t, math.IsNaN(rsi[13]))
	assert.InDelta(t, 100.0, rsi[len(rsi)-1], 1e-9)

	// Monotonic losses push RSI toward 0.
	down := make([]float64, 30)
	for i := range down {
		down[i] = float64(100 - i)
	}
	rsi = CalculateRSISeries(down, 14)
	assert.Less(t, rsi[len(rsi)-1], 1.0)
}

func TestCalculateMACDSeries_Alignment(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	macd, signal, hist := CalculateMACDSeries(closes, 12, 26, 9)

	require.Len(t, macd, 60)
	assert.True(t, math.IsNaN(macd[24]))
	assert.False(t, math.IsNaN(macd[25]))
	// Signal needs a further warm-up on top of the MACD line.
	assert.True(t, math.IsNaN(signal[25]))
	assert.False(t, math.IsNaN(signal[25+8]))

	last := len(closes) - 1
	require.False(t, math.IsNaN(hist[last]))
	assert.InDelta(t, macd[last]-signal[last], hist[last], 1e-9)
	// A steady uptrend keeps the fast EMA above the slow one.
	assert.Greater(t, macd[last], 0.0)
}

func TestComputeIndicators_AlignedWithBars(t *testing.T) {
	bars := makeTrendBars(50)
	rows := ComputeIndicators(bars, DefaultIndicatorParams())

	require.Len(t, rows, len(bars))
	for i, r := range rows {
		assert.Equal(t, bars[i].Timestamp, r.Timestamp)
		assert.Equal(t, bars[i].Close, r.Price)
	}
	last := rows[len(rows)-1]
	assert.True(t, HasValues(last.SMA, last.RSI, last.MACD, last.MACDSignal))
}

func TestIndicatorParams_LongestWindow(t *testing.T) {
	p := DefaultIndicatorParams()
	assert.Equal(t, p.MACDSlowPeriod+p.MACDSignalPeriod, p.LongestWindow())
}

func TestHasValues(t *testing.T) {
	assert.True(t, HasValues(1, 2, 3))
	assert.False(t, HasValues(1, math.NaN()))
}
