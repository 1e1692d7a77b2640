package utilities

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LogLevel defines the severity of a log message.
type LogLevel int

// Logging Level
const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// Colors.
const (
	ColorReset  = "\033[0m"
	ColorYellow = "\033[93m" // For symbols
	ColorCyan   = "\033[96m" // For Buy signals
	ColorRed    = "\033[91m" // For Sell signals
	ColorWhite  = "\033[97m" // For Hold signals
)

// --- Types (Alphabetized) ---

// AppConfig is the root configuration structure, holding all other config sections.
type AppConfig struct {
	AppName     string                          `mapstructure:"app_name"`
	Version     string                          `mapstructure:"version"`
	Environment string                          `mapstructure:"environment"`
	DB          DatabaseConfig                  `mapstructure:"database"`
	Discord     DiscordConfig                   `mapstructure:"discord"`
	Indicators  IndicatorsConfig                `mapstructure:"indicators"`
	Logging     LoggingConfig                   `mapstructure:"logging"`
	News        *NewsConfig                     `mapstructure:"news"`
	OKX         OKXConfig                       `mapstructure:"okx"`
	Scanner     ScannerConfig                   `mapstructure:"scanner"`
	Strategies  map[string]SymbolStrategyConfig `mapstructure:"strategies"`
	Trading     TradingConfig                   `mapstructure:"trading"`
	Web         WebConfig                       `mapstructure:"web"`
}

// DatabaseConfig holds settings for the local candle cache.
type DatabaseConfig struct {
	DBPath string `mapstructure:"database_path"`
}

// DiscordConfig holds settings for sending notifications via Discord.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// IndicatorsConfig holds default parameters for the technical indicators.
type IndicatorsConfig struct {
	SMAPeriod        int `mapstructure:"sma_period"`
	SMAShortPeriod   int `mapstructure:"sma_short_period"`
	SMALongPeriod    int `mapstructure:"sma_long_period"`
	RSIPeriod        int `mapstructure:"rsi_period"`
	MACDFastPeriod   int `mapstructure:"macd_fast_period"`
	MACDSlowPeriod   int `mapstructure:"macd_slow_period"`
	MACDSignalPeriod int `mapstructure:"macd_signal_period"`
	CandleLimit      int `mapstructure:"candle_limit"`
}

// Logger provides a structured logger with different levels.
type Logger struct {
	Level  LogLevel
	Logger *log.Logger
}

// NewLogger creates a new Logger instance.
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		Level:  level,
		Logger: log.New(os.Stdout, "[OKXBot] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// LogDebug logs a message at Debug level.
func (l *Logger) LogDebug(format string, v ...interface{}) {
	if l.Level <= Debug {
		_ = l.Logger.Output(2, fmt.Sprintf("[DEBUG] "+format, v...))
	}
}

// LogError logs a message at Error level.
func (l *Logger) LogError(format string, v ...interface{}) {
	if l.Level <= Error {
		_ = l.Logger.Output(2, fmt.Sprintf("[ERROR] "+format, v...))
	}
}

// LogFatal logs a message at Fatal level and then calls os.Exit(1).
func (l *Logger) LogFatal(format string, v ...interface{}) {
	_ = l.Logger.Output(2, fmt.Sprintf("[FATAL] "+format, v...))
	os.Exit(1)
}

// LogInfo logs a message at Info level.
func (l *Logger) LogInfo(format string, v ...interface{}) {
	if l.Level <= Info {
		_ = l.Logger.Output(2, fmt.Sprintf("[INFO] "+format, v...))
	}
}

// LogWarn logs a message at Warn level.
func (l *Logger) LogWarn(format string, v ...interface{}) {
	if l.Level <= Warn {
		_ = l.Logger.Output(2, fmt.Sprintf("[WARN] "+format, v...))
	}
}

// SetLogLevel updates the logging level of the logger.
func (l *Logger) SetLogLevel(level LogLevel) {
	l.Level = level
}

// LoggingConfig holds settings related to logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// NewsConfig holds settings for the news sentiment aggregator.
type NewsConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	RefreshIntervalMin int    `mapstructure:"refresh_interval_min"`
	MaxItems           int    `mapstructure:"max_items"`
	RequestTimeoutSec  int    `mapstructure:"request_timeout_sec"`
}

// OHLCVBar represents a single Open, High, Low, Close, Volume data point.
type OHLCVBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// OKXConfig holds all settings for the OKX exchange integration.
type OKXConfig struct {
	APIKey            string     `mapstructure:"api_key"`
	APISecret         string     `mapstructure:"api_secret"`
	Passphrase        string     `mapstructure:"passphrase"`
	BaseURL           string     `mapstructure:"base_url"`
	Sandbox           bool       `mapstructure:"sandbox"`
	HTTPProxy         string     `mapstructure:"http_proxy"`
	MaxRetries        int        `mapstructure:"max_retries"`
	RetryDelaySec     int        `mapstructure:"retry_delay_sec"`
	RequestTimeoutSec int        `mapstructure:"request_timeout_sec"`
	RateLimitPerSec   rate.Limit `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int        `mapstructure:"rate_limit_burst"`
}

// ScannerConfig holds parameters for the market opportunity scanner.
type ScannerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	IntervalMin      int     `mapstructure:"interval_min"`
	MinQuoteVolume   float64 `mapstructure:"min_quote_volume"`
	MinChangePercent float64 `mapstructure:"min_change_percent"`
	MaxResults       int     `mapstructure:"max_results"`
}

// SymbolStrategyConfig overrides the per-symbol strategy parameters.
type SymbolStrategyConfig struct {
	Variant          string  `mapstructure:"variant"` // "trend_rsi", "sma_cross" or "trend_momentum"
	Timeframe        string  `mapstructure:"timeframe"`
	SMAPeriod        int     `mapstructure:"sma_period"`
	RSIPeriod        int     `mapstructure:"rsi_period"`
	RSIBuyThreshold  float64 `mapstructure:"rsi_buy_threshold"`
	RSISellThreshold float64 `mapstructure:"rsi_sell_threshold"`
	StopLossPct      float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct    float64 `mapstructure:"take_profit_pct"`
	OrderSize        float64 `mapstructure:"order_size"`
}

// TradingConfig holds general trading parameters.
type TradingConfig struct {
	QuoteCurrency      string             `mapstructure:"quote_currency"`
	DefaultSymbols     []string           `mapstructure:"default_symbols"`
	WatchSymbols       []string           `mapstructure:"watch_symbols"`
	CycleIntervalSec   int                `mapstructure:"cycle_interval_sec"`
	CooldownSec        int                `mapstructure:"cooldown_sec"`
	HistoryIntervalSec int                `mapstructure:"history_interval_sec"`
	TickerIntervalSec  int                `mapstructure:"ticker_interval_sec"`
	DefaultOrderSize   float64            `mapstructure:"default_order_size"`
	OrderSizes         map[string]float64 `mapstructure:"order_sizes"`
	MaxTradeRecords    int                `mapstructure:"max_trade_records"`
	VirtualCapitalUSDT float64            `mapstructure:"virtual_capital_usdt"`
}

// WebConfig holds settings for the HTTP control surface.
type WebConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	StaticDir  string `mapstructure:"static_dir"`
}

// --- Standalone Functions (Alphabetized) ---

// DoJSONRequest performs an HTTP request, retries on transient errors, and unmarshals a JSON response.
func DoJSONRequest(client *http.Client, req *http.Request, maxRetries int, retryDelay time.Duration, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			bodyReader, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("retry %d: could not reset request body: %w", attempt, err)
			}
			r = req.Clone(req.Context())
			r.Body = bodyReader
		}

		resp, err := client.Do(r)
		if err != nil {
			lastErr = err
			time.Sleep(retryDelay)
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
			lastErr = fmt.Errorf("server error %d %s", resp.StatusCode, resp.Status)
			time.Sleep(retryDelay)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(snippet))
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode JSON response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("all retries failed: %w", lastErr)
}

// GenerateOKXAuthHeaders builds the OK-ACCESS-* headers for OKX v5 private endpoints.
// The signature is Base64(HMAC-SHA256(timestamp + method + requestPath + body)).
func GenerateOKXAuthHeaders(apiKey, apiSecret, passphrase, method, requestPath, body string, ts time.Time) map[string]string {
	timestamp := ts.UTC().Format("2006-01-02T15:04:05.000Z")

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"OK-ACCESS-KEY":        apiKey,
		"OK-ACCESS-SIGN":       signature,
		"OK-ACCESS-TIMESTAMP":  timestamp,
		"OK-ACCESS-PASSPHRASE": passphrase,
	}
}

// MinInt returns the minimum of two integers.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ParseFloatFromInterface is a helper function to parse float64 from various numeric types.
func ParseFloatFromInterface(val interface{}) (float64, error) {
	switch v := val.(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("unsupported type for float conversion: %T", v)
	}
}

// ParseLogLevel converts a string log level to the LogLevel type.
func ParseLogLevel(levelStr string) (LogLevel, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warn":
		return Warn, nil
	case "error":
		return Error, nil
	case "fatal":
		return Fatal, nil
	default:
		return Info, fmt.Errorf("invalid log level string: %s", levelStr)
	}
}

// SortBarsByTimestamp sorts a slice of OHLCVBar by ascending Timestamp.
func SortBarsByTimestamp(bars []OHLCVBar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})
}
