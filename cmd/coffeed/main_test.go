package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/config"
	"cryptocoffee/core"
	"cryptocoffee/core/genesis"
)

const genesisDoc = `chainId: %d
discountDeposit: 1
`

func writeGenesis(t *testing.T, dir, name string, chainID int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(genesisDoc, chainID)), 0o644))
	return path
}

func TestLoadGenesisPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	writeGenesis(t, dir, "from-config.yaml", 1)
	envPath := writeGenesis(t, dir, "from-env.yaml", 2)
	flagPath := writeGenesis(t, dir, "from-flag.yaml", 3)

	cfg := config.Default()
	cfg.GenesisFile = "from-config.yaml"

	spec, err := loadGenesis(configPath, "", cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(1), spec.ChainID)

	t.Setenv(genesisEnv, envPath)
	spec, err = loadGenesis(configPath, "", cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(2), spec.ChainID)

	spec, err = loadGenesis(configPath, flagPath, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(3), spec.ChainID)
}

func TestLoadGenesisOptional(t *testing.T) {
	t.Setenv(genesisEnv, "")
	spec, err := loadGenesis(filepath.Join(t.TempDir(), "config.toml"), "", config.Default())
	require.NoError(t, err)
	require.Nil(t, spec)

	_, err = loadGenesis("config.toml", filepath.Join(t.TempDir(), "missing.yaml"), config.Default())
	require.ErrorContains(t, err, "load genesis")
}

func TestRunRejectsGenesisForOtherChain(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	genesisPath := writeGenesis(t, dir, "genesis.yaml", 5)
	t.Setenv(genesisEnv, "")

	err := run([]string{"--config", configPath, "--genesis", genesisPath})
	require.ErrorContains(t, err, "does not match configured ChainID")
}

func TestLedgerDSN(t *testing.T) {
	require.Equal(t, "", ledgerDSN("/etc/coffee/config.toml", " "))
	require.Equal(t, filepath.Join("/etc/coffee", "ledger.db"), ledgerDSN("/etc/coffee/config.toml", "ledger.db"))
	require.Equal(t, "postgres://u@h/db", ledgerDSN("/etc/coffee/config.toml", "postgres://u@h/db"))
	require.Equal(t, "file::memory:", ledgerDSN("/etc/coffee/config.toml", "file::memory:"))
}

func TestSnapshotMovesLedgerBetweenBackends(t *testing.T) {
	dir := t.TempDir()
	levelConfig := filepath.Join(dir, "level.toml")
	require.NoError(t, os.WriteFile(levelConfig, []byte("DataDir = \"level-data\"\nChainID = 4\n"), 0o644))
	sqlConfig := filepath.Join(dir, "sql.toml")
	require.NoError(t, os.WriteFile(sqlConfig, []byte("ChainID = 4\n[Storage]\nDSN = \"ledger.db\"\n"), 0o644))

	cfg, err := config.Load(levelConfig)
	require.NoError(t, err)
	db, backend, err := openDatabase(levelConfig, cfg)
	require.NoError(t, err)
	require.Equal(t, "leveldb", backend)
	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf(genesisDoc, 4)))
	require.NoError(t, err)
	_, err = core.NewNode(db, spec, core.Options{})
	require.NoError(t, err)
	db.Close()

	snapshot := filepath.Join(dir, "ledger.parquet")
	var out bytes.Buffer
	require.NoError(t, runSnapshot([]string{"--config", levelConfig, "export", snapshot}, &out))
	require.Contains(t, out.String(), "from leveldb")

	out.Reset()
	require.NoError(t, runSnapshot([]string{"--config", sqlConfig, "restore", snapshot}, &out))
	require.Contains(t, out.String(), "into sqlite")
	require.FileExists(t, filepath.Join(dir, "ledger.db"))

	cfg, err = config.Load(sqlConfig)
	require.NoError(t, err)
	db, _, err = openDatabase(sqlConfig, cfg)
	require.NoError(t, err)
	defer db.Close()
	node, err := core.NewNode(db, nil, core.Options{})
	require.NoError(t, err)
	require.Equal(t, uint64(4), node.ChainID())
	require.Equal(t, uint64(1), node.DiscountDeposit())

	require.ErrorContains(t, runSnapshot([]string{"--config", sqlConfig, "export"}, &out), "usage")
	require.ErrorContains(t, runSnapshot([]string{"--config", sqlConfig, "backup", snapshot}, &out), "unknown snapshot action")
}
