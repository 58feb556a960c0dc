package bank

import (
	"errors"
	"fmt"

	"cryptocoffee/core/events"
	"cryptocoffee/core/types"
)

var (
	// ErrTransferFailed wraps every failure surfaced by Transfer.
	ErrTransferFailed      = errors.New("bank: transfer failed")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
	ErrNilState            = errors.New("bank: state not configured")
)

// AccountState is the account storage the ledger moves value through.
type AccountState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Ledger moves native balances between accounts. It relies on the enclosing
// state transaction for atomicity across several transfers.
type Ledger struct {
	state   AccountState
	emitter events.Emitter
}

// NewLedger constructs a ledger over the supplied state.
func NewLedger(state AccountState, emitter events.Emitter) *Ledger {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Ledger{state: state, emitter: emitter}
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return types.NewAccount()
	}
	return acc
}

// Balance returns the balance held by addr.
func (l *Ledger) Balance(addr [20]byte) (uint64, error) {
	if l == nil || l.state == nil {
		return 0, ErrNilState
	}
	acc, err := l.state.GetAccount(addr[:])
	if err != nil {
		return 0, err
	}
	return ensureAccount(acc).Balance, nil
}

// Transfer debits amount from one account and credits it to another. A zero
// amount is accepted and leaves both balances untouched.
func (l *Ledger) Transfer(from, to [20]byte, amount uint64) error {
	if l == nil || l.state == nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, ErrNilState)
	}
	sender, err := l.state.GetAccount(from[:])
	if err != nil {
		return fmt.Errorf("%w: load sender: %w", ErrTransferFailed, err)
	}
	sender = ensureAccount(sender)
	if sender.Balance < amount {
		return fmt.Errorf("%w: %w: have %d, need %d", ErrTransferFailed, ErrInsufficientBalance, sender.Balance, amount)
	}
	if from != to && amount > 0 {
		recipient, err := l.state.GetAccount(to[:])
		if err != nil {
			return fmt.Errorf("%w: load recipient: %w", ErrTransferFailed, err)
		}
		recipient = ensureAccount(recipient)
		if recipient.Balance > ^uint64(0)-amount {
			return fmt.Errorf("%w: %w", ErrTransferFailed, ErrBalanceOverflow)
		}
		sender.Balance -= amount
		recipient.Balance += amount
		if err := l.state.PutAccount(from[:], sender); err != nil {
			return fmt.Errorf("%w: store sender: %w", ErrTransferFailed, err)
		}
		if err := l.state.PutAccount(to[:], recipient); err != nil {
			return fmt.Errorf("%w: store recipient: %w", ErrTransferFailed, err)
		}
	}
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: amount})
	return nil
}

// Mint credits amount to addr out of thin air. Only genesis uses it.
func (l *Ledger) Mint(addr [20]byte, amount uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	acc, err := l.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	if acc.Balance > ^uint64(0)-amount {
		return ErrBalanceOverflow
	}
	acc.Balance += amount
	return l.state.PutAccount(addr[:], acc)
}
