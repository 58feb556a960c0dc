package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.FileExists(t, path)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/coffee"
ChainID = 42
NetworkName = ""

[Fees]
AllowZeroPlatformFee = true

[RateLimit]
RequestsPerMinute = 60
Burst = 5
TrustedProxies = ["10.0.0.1"]

[Telemetry]
Traces = true

[Storage]
DSN = "ledger.db"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, uint64(42), cfg.ChainID)
	require.True(t, cfg.Fees.AllowZeroPlatformFee)
	require.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	require.Equal(t, []string{"10.0.0.1"}, cfg.RateLimit.TrustedProxies)
	require.Equal(t, "coffee-local", cfg.NetworkName)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	require.Equal(t, 3, cfg.Log.MaxBackups)
	require.Equal(t, "ledger.db", cfg.Storage.DSN)
}

func TestLoadRejectsUnknownAndInvalid(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("ValidatorKey = \"abc\"\n"), 0o644))
	_, err := Load(unknown)
	require.ErrorContains(t, err, "unknown keys")

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("ChainID = 0\n"), 0o644))
	_, err = Load(invalid)
	require.ErrorContains(t, err, "ChainID")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.RateLimit.Burst = -1
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ListenAddress = " "
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.DSN = "  "
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Telemetry.SampleRatio = 1.5
	require.ErrorContains(t, cfg.Validate(), "SampleRatio")

	cfg = Default()
	cfg.RateLimit.TrustedProxies = []string{"10.0.0.1", "proxy.internal"}
	require.ErrorContains(t, cfg.Validate(), "proxy.internal")

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, filepath.Join("/etc/coffee", "genesis.yaml"), ResolvePath("/etc/coffee/config.toml", "genesis.yaml"))
	require.Equal(t, "/abs/genesis.yaml", ResolvePath("/etc/coffee/config.toml", "/abs/genesis.yaml"))
	require.Equal(t, "", ResolvePath("/etc/coffee/config.toml", ""))
}
