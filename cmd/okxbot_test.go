// File: cmd/okxbot_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_EnvOverridesCoerceTypes(t *testing.T) {
	path := writeTempConfig(t, `{
		"okx": {"sandbox": false},
		"trading": {"virtual_capital_usdt": 1000}
	}`)

	t.Setenv("SANDBOX_MODE", "true")
	t.Setenv("VIRTUAL_CAPITAL_USDT", "2500.5")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.OKX.Sandbox)
	assert.InDelta(t, 2500.5, cfg.Trading.VirtualCapitalUSDT, 1e-9)
}

func TestLoadConfig_FileValuesKeptWithoutEnv(t *testing.T) {
	path := writeTempConfig(t, `{
		"okx": {"sandbox": true},
		"trading": {"virtual_capital_usdt": 750}
	}`)

	t.Setenv("SANDBOX_MODE", "")
	t.Setenv("VIRTUAL_CAPITAL_USDT", "")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.OKX.Sandbox)
	assert.InDelta(t, 750.0, cfg.Trading.VirtualCapitalUSDT, 1e-9)
}

func TestLoadConfig_BadSandboxValue(t *testing.T) {
	path := writeTempConfig(t, `{"okx": {}}`)
	t.Setenv("SANDBOX_MODE", "maybe")

	_, err := loadConfig(path)
	assert.Error(t, err)
}
