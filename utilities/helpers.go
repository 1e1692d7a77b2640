package utilities

import (
	"fmt"
	"strings"
)

// ToInstID converts a common pair name (e.g. "BTC/USDT") to an OKX instrument ID ("BTC-USDT").
func ToInstID(commonPair string) string {
	return strings.ReplaceAll(commonPair, "/", "-")
}

// FromInstID converts an OKX instrument ID (e.g. "BTC-USDT") back to a common pair name ("BTC/USDT").
func FromInstID(instID string) string {
	return strings.ReplaceAll(instID, "-", "/")
}

// ConvertTFToOKXBar converts a standard timeframe string (e.g. "1h") to OKX's bar parameter ("1H").
func ConvertTFToOKXBar(tf string) (string, error) {
	switch strings.ToLower(tf) {
	case "1m":
		return "1m", nil
	case "5m":
		return "5m", nil
	case "15m":
		return "15m", nil
	case "30m":
		return "30m", nil
	case "1h":
		return "1H", nil
	case "4h":
		return "4H", nil
	case "1d":
		return "1D", nil
	default:
		return "", fmt.Errorf("unsupported timeframe for OKX bar conversion: %s", tf)
	}
}
