// File: dataprovider/news.go
package dataprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crazy8156/okx/utilities"
)

const defaultCryptoPanicURL = "https://cryptopanic.com/api/v1/posts/"

var bullishKeywords = []string{
	"surge", "rally", "bullish", "soar", "gain", "record high", "all-time high",
	"breakout", "adoption", "approval", "partnership", "upgrade", "inflow",
}

var bearishKeywords = []string{
	"crash", "plunge", "bearish", "dump", "selloff", "sell-off", "hack",
	"exploit", "lawsuit", "ban", "fraud", "liquidation", "outflow", "delist",
}

// CryptoPanicProvider implements NewsProvider against the CryptoPanic posts API.
// Vote counts drive the sentiment score when present; otherwise a keyword scan
// of the headline decides.
type CryptoPanicProvider struct {
	baseURL  string
	apiKey   string
	maxItems int
	client   *http.Client
	logger   *utilities.Logger
}

// NewCryptoPanicProvider creates a provider from the news config section.
func NewCryptoPanicProvider(cfg *utilities.NewsConfig, logger *utilities.Logger) *CryptoPanicProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCryptoPanicURL
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 20
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CryptoPanicProvider{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		maxItems: maxItems,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type cryptoPanicResponse struct {
	Results []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Title string `json:"title"`
		} `json:"source"`
		PublishedAt string `json:"published_at"`
		Currencies  []struct {
			Code string `json:"code"`
		} `json:"currencies"`
		Votes struct {
			Positive int `json:"positive"`
			Negative int `json:"negative"`
			Liked    int `json:"liked"`
			Disliked int `json:"disliked"`
		} `json:"votes"`
	} `json:"results"`
}

// GetLatestNews fetches and scores the most recent headlines.
func (p *CryptoPanicProvider) GetLatestNews(ctx context.Context) ([]NewsItem, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("cryptopanic: API key not configured")
	}

	params := url.Values{
		"auth_token": {p.apiKey},
		"public":     {"true"},
		"kind":       {"news"},
	}
	endpoint := p.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptopanic: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var resp cryptoPanicResponse
	if err := utilities.DoJSONRequest(p.client, req, 2, 2*time.Second, &resp); err != nil {
		return nil, fmt.Errorf("cryptopanic: fetch posts: %w", err)
	}

	items := make([]NewsItem, 0, utilities.MinInt(len(resp.Results), p.maxItems))
	for _, post := range resp.Results {
		if len(items) >= p.maxItems {
			break
		}
		item := NewsItem{
			Title:  post.Title,
			Source: post.Source.Title,
			URL:    post.URL,
		}
		for _, ccy := range post.Currencies {
			item.Currencies = append(item.Currencies, ccy.Code)
		}
		if ts, err := time.Parse(time.RFC3339, post.PublishedAt); err == nil {
			item.PublishedAt = ts
		}

		up := post.Votes.Positive + post.Votes.Liked
		down := post.Votes.Negative + post.Votes.Disliked
		if up+down > 0 {
			item.Sentiment = float64(up-down) / float64(up+down)
		} else {
			item.Sentiment = scoreHeadline(post.Title)
		}
		items = append(items, item)
	}
	p.logger.LogDebug("CryptoPanic: fetched %d headlines.", len(items))
	return items, nil
}

// scoreHeadline assigns a coarse sentiment from keyword hits in the title.
func scoreHeadline(title string) float64 {
	lower := strings.ToLower(title)
	score := 0
	for _, kw := range bullishKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	for _, kw := range bearishKeywords {
		if strings.Contains(lower, kw) {
			score--
		}
	}
	switch {
	case score > 0:
		return 0.5
	case score < 0:
		return -0.5
	default:
		return 0
	}
}
