// File: pkg/ledger/ledger_test.go
package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 15, hour, minute, 0, 0, time.Local)
}

func TestRealizedPnLForDay_SimpleRoundTrip(t *testing.T) {
	log := []TradeRecord{
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 110, Amount: 1},
	}
	assert.InDelta(t, 10.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_PartialLotConsumption(t *testing.T) {
	log := []TradeRecord{
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 2},
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 90, Amount: 1},
	}
	assert.InDelta(t, -10.0, RealizedPnLForDay(day, log), 1e-9)

	open := OpenInventory(log)
	require.Len(t, open["BTC/USDT"], 1)
	assert.InDelta(t, 100.0, open["BTC/USDT"][0].Price, 1e-9)
	assert.InDelta(t, 1.0, open["BTC/USDT"][0].Amount, 1e-9)
}

func TestRealizedPnLForDay_FIFOOrdering(t *testing.T) {
	// Oldest lot must be consumed first: sell of 1 matches the 100 lot,
	// not the cheaper 80 lot bought later.
	log := []TradeRecord{
		{Time: at(9, 0), Symbol: "ETH/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: at(10, 0), Symbol: "ETH/USDT", Side: SideBuy, Price: 80, Amount: 1},
		{Time: at(11, 0), Symbol: "ETH/USDT", Side: SideSell, Price: 105, Amount: 1},
	}
	assert.InDelta(t, 5.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_SellSpansMultipleLots(t *testing.T) {
	log := []TradeRecord{
		{Time: at(9, 0), Symbol: "ETH/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: at(10, 0), Symbol: "ETH/USDT", Side: SideBuy, Price: 120, Amount: 1},
		{Time: at(11, 0), Symbol: "ETH/USDT", Side: SideSell, Price: 130, Amount: 2},
	}
	// 2*130 - (100 + 120) = 40
	assert.InDelta(t, 40.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_OversellIsZeroPnLForRemainder(t *testing.T) {
	log := []TradeRecord{
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 110, Amount: 3},
	}
	// Matched unit contributes 10; the 2 unmatched units contribute 0.
	assert.InDelta(t, 10.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_SellWithNoBuyHistory(t *testing.T) {
	log := []TradeRecord{
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 110, Amount: 2},
	}
	assert.Zero(t, RealizedPnLForDay(day, log))
}

func TestRealizedPnLForDay_EmptyAndBuyOnlyLogs(t *testing.T) {
	assert.Zero(t, RealizedPnLForDay(day, nil))

	buysOnly := []TradeRecord{
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: at(11, 0), Symbol: "ETH/USDT", Side: SideBuy, Price: 50, Amount: 2},
	}
	assert.Zero(t, RealizedPnLForDay(day, buysOnly))
}

func TestRealizedPnLForDay_DayScoping(t *testing.T) {
	yesterday := at(10, 0).AddDate(0, 0, -1)
	log := []TradeRecord{
		{Time: yesterday, Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: yesterday.Add(time.Hour), Symbol: "BTC/USDT", Side: SideSell, Price: 150, Amount: 1},
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 200, Amount: 1},
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 210, Amount: 1},
	}
	// Yesterday's +50 is excluded; only today's +10 counts.
	assert.InDelta(t, 10.0, RealizedPnLForDay(day, log), 1e-9)
	assert.InDelta(t, 50.0, RealizedPnLForDay(day.AddDate(0, 0, -1), log), 1e-9)
}

func TestRealizedPnLForDay_SymbolsAreIndependent(t *testing.T) {
	log := []TradeRecord{
		{Time: at(9, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: at(9, 30), Symbol: "ETH/USDT", Side: SideBuy, Price: 50, Amount: 1},
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 120, Amount: 1},
		{Time: at(10, 30), Symbol: "ETH/USDT", Side: SideSell, Price: 45, Amount: 1},
	}
	// +20 on BTC, -5 on ETH.
	assert.InDelta(t, 15.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_UnsortedInputIsSortedByTime(t *testing.T) {
	log := []TradeRecord{
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 110, Amount: 1},
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
	}
	assert.InDelta(t, 10.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	ts := at(10, 0)
	log := []TradeRecord{
		{Time: ts, Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 1},
		{Time: ts, Symbol: "BTC/USDT", Side: SideSell, Price: 110, Amount: 1},
	}
	// Stable sort keeps the buy before the sell, so the sale matches the lot.
	assert.InDelta(t, 10.0, RealizedPnLForDay(day, log), 1e-9)
}

func TestRealizedPnLForDay_IsIdempotentAndDoesNotMutateLog(t *testing.T) {
	log := []TradeRecord{
		{Time: at(9, 0), Symbol: "BTC/USDT", Side: SideBuy, Price: 100, Amount: 2},
		{Time: at(10, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 110, Amount: 1},
		{Time: at(11, 0), Symbol: "BTC/USDT", Side: SideSell, Price: 90, Amount: 1},
	}
	snapshot := make([]TradeRecord, len(log))
	copy(snapshot, log)

	first := RealizedPnLForDay(day, log)
	second := RealizedPnLForDay(day, log)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, log)
}
