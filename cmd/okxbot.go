// File: cmd/okxbot.go
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crazy8156/okx/pkg/app"
	"github.com/crazy8156/okx/utilities"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "okxbot",
	Short: "Automated spot trading bot for OKX",
	Long: `okxbot evaluates technical indicators for a set of spot pairs on a fixed
cycle, runs a per-symbol position state machine, places orders through the
OKX v5 API, and serves a JSON control surface with live status and PnL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}

		level, err := utilities.ParseLogLevel(cfg.Logging.Level)
		if err != nil {
			level = utilities.Info
		}
		logger := utilities.NewLogger(level)

		if cfg.OKX.APIKey == "" || cfg.OKX.APISecret == "" || cfg.OKX.Passphrase == "" {
			logger.LogFatal("Missing OKX credentials. Set OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE (or the okx section of the config file).")
		}

		return app.Run(cfg, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.json", "path to the JSON configuration file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the JSON config file, layers environment overrides on top,
// and unmarshals into the typed config.
func loadConfig(path string) (*utilities.AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// String-valued credentials come from the environment in production; the
	// config file only carries defaults.
	bindings := map[string]string{
		"okx.api_key":         "OKX_API_KEY",
		"okx.api_secret":      "OKX_SECRET_KEY",
		"okx.passphrase":      "OKX_PASSPHRASE",
		"okx.http_proxy":      "HTTP_PROXY",
		"news.api_key":        "CRYPTOPANIC_API_KEY",
		"discord.webhook_url": "DISCORD_WEBHOOK_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg utilities.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Non-string deployment switches arrive from the environment as strings,
	// so they are coerced explicitly instead of through the struct decode.
	if raw, ok := os.LookupEnv("SANDBOX_MODE"); ok && raw != "" {
		sandbox, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SANDBOX_MODE %q: %w", raw, err)
		}
		cfg.OKX.Sandbox = sandbox
	}
	if raw, ok := os.LookupEnv("VIRTUAL_CAPITAL_USDT"); ok && raw != "" {
		capital, err := utilities.ParseFloatFromInterface(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid VIRTUAL_CAPITAL_USDT %q: %w", raw, err)
		}
		cfg.Trading.VirtualCapitalUSDT = capital
	}
	return &cfg, nil
}
