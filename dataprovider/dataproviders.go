// File: dataprovider/dataproviders.go
package dataprovider

import (
	"context"
	"time"
)

// NewsProvider supplies recent market headlines with a sentiment score.
type NewsProvider interface {
	// GetLatestNews fetches the most recent headlines, newest first.
	GetLatestNews(ctx context.Context) ([]NewsItem, error)
}

// NewsItem is a single scored headline.
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Currencies  []string  `json:"currencies,omitempty"`
	Sentiment   float64   `json:"sentiment"` // -1.0 (bearish) .. +1.0 (bullish)
	PublishedAt time.Time `json:"published_at"`
}

// SentimentSummary aggregates the sentiment of a batch of headlines.
type SentimentSummary struct {
	Score     float64   `json:"score"`     // mean item sentiment, -1.0 .. +1.0
	Label     string    `json:"sentiment"` // "bullish", "bearish" or "neutral"
	ItemCount int       `json:"news_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize computes the aggregate sentiment of a batch of headlines.
func Summarize(items []NewsItem, now time.Time) SentimentSummary {
	summary := SentimentSummary{Label: "neutral", ItemCount: len(items), UpdatedAt: now}
	if len(items) == 0 {
		return summary
	}
	var total float64
	for _, item := range items {
		total += item.Sentiment
	}
	summary.Score = total / float64(len(items))
	switch {
	case summary.Score > 0.15:
		summary.Label = "bullish"
	case summary.Score < -0.15:
		summary.Label = "bearish"
	}
	return summary
}
