// File: pkg/app/scanner.go
package app

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/crazy8156/okx/pkg/broker"
	"github.com/crazy8156/okx/web"
)

const (
	defaultScanInterval      = 10 * time.Minute
	defaultMinQuoteVolume    = 5_000_000
	defaultMinChangePercent  = 5.0
	defaultScannerMaxResults = 10
)

// runScanner periodically sweeps the venue's 24h tickers for volatile,
// liquid quote-currency pairs and publishes the top movers for display.
func (c *Controller) runScanner(stop <-chan struct{}) {
	interval := defaultScanInterval
	if c.cfg.Scanner.IntervalMin > 0 {
		interval = time.Duration(c.cfg.Scanner.IntervalMin) * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	scan := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		results, err := c.scanMarket(ctx)
		if err != nil {
			c.logger.LogWarn("Scanner: market sweep failed: %v", err)
			return
		}
		c.cacheMu.Lock()
		c.scanResults = results
		c.cacheMu.Unlock()
		c.logger.LogInfo("Scanner: %d opportunities found.", len(results))
	}

	scan()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			scan()
		}
	}
}

// scanMarket filters the full ticker set down to pairs quoted in the
// configured quote currency with enough volume and a large enough 24h move,
// sorted by absolute move, biggest first.
func (c *Controller) scanMarket(ctx context.Context) ([]web.ScanResult, error) {
	tickers, err := c.broker.GetTickers(ctx)
	if err != nil {
		return nil, err
	}

	minVolume := c.cfg.Scanner.MinQuoteVolume
	if minVolume <= 0 {
		minVolume = defaultMinQuoteVolume
	}
	minChange := c.cfg.Scanner.MinChangePercent
	if minChange <= 0 {
		minChange = defaultMinChangePercent
	}
	maxResults := c.cfg.Scanner.MaxResults
	if maxResults <= 0 {
		maxResults = defaultScannerMaxResults
	}
	quoteSuffix := "/" + c.quoteCurrency()

	var results []web.ScanResult
	for _, t := range tickers {
		if !strings.HasSuffix(t.Pair, quoteSuffix) {
			continue
		}
		if t.QuoteVolume < minVolume {
			continue
		}
		change := t.ChangePercent24h()
		if math.Abs(change) < minChange {
			continue
		}
		results = append(results, toScanResult(t, change))
	}

	sort.Slice(results, func(i, j int) bool {
		return math.Abs(results[i].ChangePercent24h) > math.Abs(results[j].ChangePercent24h)
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func toScanResult(t broker.TickerData, change float64) web.ScanResult {
	return web.ScanResult{
		Pair:             t.Pair,
		LastPrice:        t.LastPrice,
		ChangePercent24h: change,
		QuoteVolume:      t.QuoteVolume,
	}
}
