package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"owner": "0x00000000000000000000000000000000000000a1",
		"min_profit_threshold": 12345
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", cfg.Owner)
	assert.Zero(t, cfg.MinProfitThreshold.Cmp(big.NewInt(12345)))
	assert.Equal(t, uint16(30), cfg.VenueFeeBps, "unset fields keep defaults")
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("owner: \"0x00000000000000000000000000000000000000b2\"\nhistory_size: 16\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000b2", cfg.Owner)
	assert.Equal(t, 16, cfg.HistorySize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvOwner, "0x00000000000000000000000000000000000000c3")
	t.Setenv(EnvMinProfit, "777")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000c3", cfg.Owner)
	assert.Zero(t, cfg.MinProfitThreshold.Cmp(big.NewInt(777)))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Owner = ""
	cfg.HistorySize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
	assert.Contains(t, err.Error(), "history_size")
}
