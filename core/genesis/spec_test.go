package genesis

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/core/state"
	"cryptocoffee/crypto"
	"cryptocoffee/native/coffee"
	"cryptocoffee/storage"
)

func testAddress(b byte) string {
	return crypto.MustNewAddress(crypto.CoffeePrefix, bytes.Repeat([]byte{b}, 20)).String()
}

func rawAddress(b byte) [20]byte {
	var out [20]byte
	copy(out[:], bytes.Repeat([]byte{b}, 20))
	return out
}

func sampleGenesis() string {
	return strings.Join([]string{
		"chainId: 7",
		"discountDeposit: 100",
		"accounts:",
		"  - address: " + testAddress(1),
		"    balance: 1000",
		"  - address: " + testAddress(4),
		"    balance: 50",
		"  - address: " + testAddress(9),
		"    program: true",
		"platform:",
		"  authority: " + testAddress(1),
		"  feeDestination: " + testAddress(2),
		"  feePercentage: 10",
		"discounts:",
		"  - creator: " + testAddress(3),
		"    feePercentage: 5",
		"",
	}, "\n")
}

func TestLoadAndApplyGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis()), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7), spec.ChainID)

	db := storage.NewMemDB()
	defer db.Close()
	mgr := state.NewManager(db)

	var params *Params
	require.NoError(t, mgr.Update(func(txn *state.Txn) error {
		params, err = Apply(spec, txn, coffee.FeePolicy{})
		return err
	}))
	require.Equal(t, &Params{ChainID: 7, DiscountDeposit: 100}, params)

	require.NoError(t, mgr.View(func(txn *state.Txn) error {
		stored, ok, err := LoadParams(txn)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, params, stored)

		cfg, ok, err := txn.CoffeePlatformGet()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rawAddress(1), cfg.Authority)
		require.Equal(t, uint64(10), cfg.FeePercentage)

		discount, ok, err := txn.CoffeeDiscountGet(rawAddress(3))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(100), discount.Deposit)

		authorityAddr := rawAddress(1)
		authority, err := txn.GetAccount(authorityAddr[:])
		require.NoError(t, err)
		require.Equal(t, uint64(900), authority.Balance)

		module := coffee.ModuleAddress
		escrow, err := txn.GetAccount(module[:])
		require.NoError(t, err)
		require.Equal(t, uint64(100), escrow.Balance)
		require.True(t, escrow.IsProgram())

		programAddr := rawAddress(9)
		program, err := txn.GetAccount(programAddr[:])
		require.NoError(t, err)
		require.True(t, program.IsProgram())
		return nil
	}))

	err = mgr.Update(func(txn *state.Txn) error {
		_, err := Apply(spec, txn, coffee.FeePolicy{})
		return err
	})
	require.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestApplyRejectsProgramFeeDestination(t *testing.T) {
	raw := strings.Replace(sampleGenesis(), "feeDestination: "+testAddress(2), "feeDestination: "+testAddress(9), 1)
	spec, err := ParseGenesisSpec([]byte(raw))
	require.NoError(t, err)

	db := storage.NewMemDB()
	defer db.Close()
	err = state.NewManager(db).Update(func(txn *state.Txn) error {
		_, err := Apply(spec, txn, coffee.FeePolicy{})
		return err
	})
	require.ErrorIs(t, err, coffee.ErrInvalidFeeDestination)
}

func TestParseGenesisSpecValidation(t *testing.T) {
	cases := map[string]string{
		"zero chain":      "chainId: 0\n",
		"unknown field":   "chainId: 1\nvalidators: []\n",
		"bad address":     "chainId: 1\naccounts:\n  - address: nope\n",
		"discount no cfg": "chainId: 1\ndiscounts:\n  - creator: " + testAddress(3) + "\n",
		"fee too high": "chainId: 1\nplatform:\n  authority: " + testAddress(1) +
			"\n  feeDestination: " + testAddress(2) + "\n  feePercentage: 101\n",
		"duplicate account": "chainId: 1\naccounts:\n  - address: " + testAddress(1) +
			"\n  - address: " + testAddress(1) + "\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenesisSpec([]byte(raw))
			require.Error(t, err)
		})
	}
}
