package bank

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/core/events"
	"cryptocoffee/core/types"
)

type memAccounts struct {
	accounts map[string]*types.Account
	failPut  error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*types.Account)}
}

func (m *memAccounts) GetAccount(addr []byte) (*types.Account, error) {
	return m.accounts[string(addr)].Clone(), nil
}

func (m *memAccounts) PutAccount(addr []byte, account *types.Account) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.accounts[string(addr)] = account.Clone()
	return nil
}

type captured struct{ transfers []events.Transfer }

func (c *captured) Emit(evt events.Event) {
	if tr, ok := evt.(events.Transfer); ok {
		c.transfers = append(c.transfers, tr)
	}
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestTransferMovesBalance(t *testing.T) {
	state := newMemAccounts()
	sink := &captured{}
	ledger := NewLedger(state, sink)
	require.NoError(t, ledger.Mint(addr(1), 100))

	require.NoError(t, ledger.Transfer(addr(1), addr(2), 40))

	from, err := ledger.Balance(addr(1))
	require.NoError(t, err)
	to, err := ledger.Balance(addr(2))
	require.NoError(t, err)
	require.Equal(t, uint64(60), from)
	require.Equal(t, uint64(40), to)
	require.Equal(t, []events.Transfer{{From: addr(1), To: addr(2), Amount: 40}}, sink.transfers)
}

func TestTransferInsufficientBalance(t *testing.T) {
	state := newMemAccounts()
	ledger := NewLedger(state, nil)
	require.NoError(t, ledger.Mint(addr(1), 10))

	err := ledger.Transfer(addr(1), addr(2), 11)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	bal, err := ledger.Balance(addr(1))
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal)
}

func TestTransferRecipientOverflow(t *testing.T) {
	state := newMemAccounts()
	ledger := NewLedger(state, nil)
	require.NoError(t, ledger.Mint(addr(1), 10))
	require.NoError(t, ledger.Mint(addr(2), math.MaxUint64))

	err := ledger.Transfer(addr(1), addr(2), 1)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	require.ErrorIs(t, ledger.Mint(addr(2), 1), ErrBalanceOverflow)
}

func TestTransferZeroAndSelf(t *testing.T) {
	state := newMemAccounts()
	sink := &captured{}
	ledger := NewLedger(state, sink)
	require.NoError(t, ledger.Mint(addr(1), 5))

	require.NoError(t, ledger.Transfer(addr(1), addr(2), 0))
	require.NoError(t, ledger.Transfer(addr(1), addr(1), 5))
	require.Error(t, ledger.Transfer(addr(1), addr(1), 6))

	bal, err := ledger.Balance(addr(1))
	require.NoError(t, err)
	require.Equal(t, uint64(5), bal)
	require.Len(t, sink.transfers, 2)
}

func TestTransferSurfacesStoreFailure(t *testing.T) {
	state := newMemAccounts()
	ledger := NewLedger(state, nil)
	require.NoError(t, ledger.Mint(addr(1), 5))
	state.failPut = errors.New("disk full")

	err := ledger.Transfer(addr(1), addr(2), 1)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorContains(t, err, "disk full")
}

func TestNilLedger(t *testing.T) {
	var ledger *Ledger
	require.ErrorIs(t, ledger.Transfer(addr(1), addr(2), 1), ErrNilState)
	_, err := ledger.Balance(addr(1))
	require.ErrorIs(t, err, ErrNilState)
}
