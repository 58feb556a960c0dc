package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/core/types"
	"cryptocoffee/native/coffee"
	"cryptocoffee/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestTxnOverlayIsInvisibleUntilCommit(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("greeting")

	txn := mgr.Begin()
	require.NoError(t, txn.KVPut(key, "hello"))

	var got string
	ok, err := txn.KVGet(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", got)

	require.NoError(t, mgr.View(func(other *Txn) error {
		exists, err := other.KVHas(key)
		require.False(t, exists)
		return err
	}))

	require.NoError(t, txn.Commit())
	require.NoError(t, mgr.View(func(other *Txn) error {
		ok, err := other.KVGet(key, &got)
		require.True(t, ok)
		return err
	}))
	require.Equal(t, "hello", got)
}

func TestUpdateDiscardsOnError(t *testing.T) {
	mgr := newTestManager(t)
	boom := errors.New("boom")

	err := mgr.Update(func(txn *Txn) error {
		require.NoError(t, txn.KVPut([]byte("a"), uint64(1)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, mgr.View(func(txn *Txn) error {
		ok, err := txn.KVHas([]byte("a"))
		require.False(t, ok)
		return err
	}))
}

func TestKVCreateAndDelete(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("record")

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		return txn.KVCreate(key, uint64(7))
	}))

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		require.ErrorIs(t, txn.KVCreate(key, uint64(8)), ErrRecordExists)
		require.NoError(t, txn.KVDelete(key))
		ok, err := txn.KVHas(key)
		require.NoError(t, err)
		require.False(t, ok)
		// A deleted key can be recreated within the same transaction.
		return txn.KVCreate(key, uint64(9))
	}))

	var got uint64
	require.NoError(t, mgr.View(func(txn *Txn) error {
		_, err := txn.KVGet(key, &got)
		return err
	}))
	require.Equal(t, uint64(9), got)
}

func TestClosedTxnRejectsUse(t *testing.T) {
	mgr := newTestManager(t)
	txn := mgr.Begin()
	txn.Discard()

	require.ErrorIs(t, txn.KVPut([]byte("k"), uint64(1)), ErrTxnClosed)
	_, err := txn.KVGet([]byte("k"), nil)
	require.ErrorIs(t, err, ErrTxnClosed)
	require.ErrorIs(t, txn.Commit(), ErrTxnClosed)

	_, err = mgr.Begin().KVGet(nil, nil)
	require.Error(t, err)
}

func TestAccountsDefaultAndPersist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	mgr := NewManager(db)

	addr := testAddr(1)
	require.NoError(t, mgr.Update(func(txn *Txn) error {
		acc, err := txn.GetAccount(addr[:])
		require.NoError(t, err)
		require.Equal(t, types.NewAccount(), acc)
		acc.Balance = 500
		acc.Nonce = 3
		acc.CodeHash = []byte{0xaa}
		return txn.PutAccount(addr[:], acc)
	}))
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	mgr = NewManager(db)
	require.NoError(t, mgr.View(func(txn *Txn) error {
		acc, err := txn.GetAccount(addr[:])
		require.NoError(t, err)
		require.Equal(t, uint64(500), acc.Balance)
		require.Equal(t, uint64(3), acc.Nonce)
		require.True(t, acc.IsProgram())
		return nil
	}))

	require.NoError(t, mgr.View(func(txn *Txn) error {
		_, err := txn.GetAccount([]byte{1, 2})
		require.Error(t, err)
		return nil
	}))
}

func TestCoffeeRecords(t *testing.T) {
	mgr := newTestManager(t)
	cfg := &coffee.PlatformConfig{Authority: testAddr(1), FeeDestination: testAddr(2), FeePercentage: 10}
	discount := &coffee.CreatorDiscount{Creator: testAddr(3), FeePercentage: 5, Deposit: 42}

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		require.NoError(t, txn.CoffeePlatformCreate(cfg))
		require.ErrorIs(t, txn.CoffeePlatformCreate(cfg), coffee.ErrPlatformInitialized)
		require.NoError(t, txn.CoffeeDiscountCreate(discount))
		require.ErrorIs(t, txn.CoffeeDiscountCreate(discount), coffee.ErrDiscountExists)
		return nil
	}))

	require.NoError(t, mgr.View(func(txn *Txn) error {
		got, ok, err := txn.CoffeePlatformGet()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, cfg, got)

		gotDiscount, ok, err := txn.CoffeeDiscountGet(testAddr(3))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, discount, gotDiscount)

		_, ok, err = txn.CoffeeDiscountGet(testAddr(4))
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		return txn.CoffeeDiscountDelete(testAddr(3))
	}))
	require.NoError(t, mgr.View(func(txn *Txn) error {
		_, ok, err := txn.CoffeeDiscountGet(testAddr(3))
		require.False(t, ok)
		return err
	}))
}

func TestEngineOverTxnRollsBackFailedPurchase(t *testing.T) {
	mgr := newTestManager(t)
	authority, treasury, creator, buyer := testAddr(1), testAddr(2), testAddr(3), testAddr(4)

	require.NoError(t, mgr.Update(func(txn *Txn) error {
		engine := coffee.NewEngine()
		engine.SetState(txn)
		if _, err := engine.InitializePlatform(authority, treasury, 10); err != nil {
			return err
		}
		return txn.PutAccount(buyer[:], &types.Account{Balance: 150})
	}))

	// The fee transfer succeeds but the creator transfer cannot; nothing of
	// the purchase may persist.
	err := mgr.Update(func(txn *Txn) error {
		engine := coffee.NewEngine()
		engine.SetState(txn)
		_, err := engine.BuyCoffee(coffee.BuyRequest{
			Contributor: buyer, Creator: creator, FeeDestination: treasury,
			Units: 2, UnitPrice: 100,
		})
		return err
	})
	require.Error(t, err)

	require.NoError(t, mgr.View(func(txn *Txn) error {
		for addr, want := range map[[20]byte]uint64{buyer: 150, treasury: 0, creator: 0} {
			acc, err := txn.GetAccount(addr[:])
			require.NoError(t, err)
			require.Equal(t, want, acc.Balance)
		}
		return nil
	}))
}
