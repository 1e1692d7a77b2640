// File: pkg/ledger/ledger.go

// Package ledger reconstructs realized profit-and-loss from a chronological
// trade log using FIFO lot matching. It keeps no state of its own: every
// computation rebuilds its inventory queues from the full log, so the result
// is always rederivable and cannot drift from the log.
package ledger

import (
	"sort"
	"time"
)

// Side of a trade record.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// TradeRecord is one executed fill in the append-only trade log. ID carries
// the venue order ID so fills synced from the exchange can be deduplicated;
// the PnL computation itself never looks at it.
type TradeRecord struct {
	ID     string    `json:"id,omitempty"`
	Time   time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	Side   string    `json:"side"`
	Price  float64   `json:"price"`
	Amount float64   `json:"amount"`
}

// lot is an open inventory batch inside a per-symbol FIFO queue.
type lot struct {
	price  float64
	amount float64
}

// RealizedPnLForDay computes the realized PnL of all sells dated the given
// local calendar day. The input log may arrive in any order; records are
// stable-sorted by time per symbol, so records sharing a timestamp keep their
// insertion order. The log itself is never mutated.
//
// A sell that exceeds the available bought inventory does not fail: the
// unmatched remainder's cost basis is taken as the sale price itself, so it
// contributes zero PnL.
func RealizedPnLForDay(day time.Time, log []TradeRecord) float64 {
	if len(log) == 0 {
		return 0
	}

	y, m, d := day.Date()

	bySymbol := make(map[string][]TradeRecord)
	for _, rec := range log {
		bySymbol[rec.Symbol] = append(bySymbol[rec.Symbol], rec)
	}

	var total float64
	for _, records := range bySymbol {
		sorted := make([]TradeRecord, len(records))
		copy(sorted, records)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Time.Before(sorted[j].Time)
		})

		var inventory []lot
		for _, rec := range sorted {
			switch rec.Side {
			case SideBuy:
				inventory = append(inventory, lot{price: rec.Price, amount: rec.Amount})
			case SideSell:
				pnl := consumeLots(&inventory, rec.Price, rec.Amount)
				ry, rm, rd := rec.Time.Date()
				if ry == y && rm == m && rd == d {
					total += pnl
				}
			}
		}
	}
	return total
}

// consumeLots withdraws amount from the front of the FIFO inventory and
// returns the realized PnL of the sale at the given price.
func consumeLots(inventory *[]lot, price, amount float64) float64 {
	remaining := amount
	var costBasis float64

	for remaining > 0 && len(*inventory) > 0 {
		front := &(*inventory)[0]
		consumed := front.amount
		if consumed > remaining {
			consumed = remaining
		}
		costBasis += consumed * front.price
		front.amount -= consumed
		remaining -= consumed
		if front.amount <= 0 {
			*inventory = (*inventory)[1:]
		}
	}

	// Oversold remainder: no buy history to match, so its basis equals the
	// sale price and it adds nothing to PnL.
	if remaining > 0 {
		costBasis += remaining * price
	}
	return price*amount - costBasis
}

// OpenInventory rebuilds the remaining (unsold) FIFO lots per symbol from the
// trade log. Used for display only; realized PnL ignores open lots.
func OpenInventory(log []TradeRecord) map[string][]InventoryBatch {
	bySymbol := make(map[string][]TradeRecord)
	for _, rec := range log {
		bySymbol[rec.Symbol] = append(bySymbol[rec.Symbol], rec)
	}

	open := make(map[string][]InventoryBatch)
	for symbol, records := range bySymbol {
		sorted := make([]TradeRecord, len(records))
		copy(sorted, records)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Time.Before(sorted[j].Time)
		})

		var inventory []lot
		for _, rec := range sorted {
			switch rec.Side {
			case SideBuy:
				inventory = append(inventory, lot{price: rec.Price, amount: rec.Amount})
			case SideSell:
				consumeLots(&inventory, rec.Price, rec.Amount)
			}
		}
		if len(inventory) == 0 {
			continue
		}
		batches := make([]InventoryBatch, len(inventory))
		for i, l := range inventory {
			batches[i] = InventoryBatch{Price: l.price, Amount: l.amount}
		}
		open[symbol] = batches
	}
	return open
}

// InventoryBatch is an open lot exposed for display.
type InventoryBatch struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}
