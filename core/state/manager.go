package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"cryptocoffee/storage"
)

var (
	// ErrRecordExists is returned by KVCreate when the key is already occupied.
	ErrRecordExists = errors.New("state: record already exists")
	// ErrTxnClosed is returned when a transaction is used after Commit or Discard.
	ErrTxnClosed = errors.New("state: transaction closed")
)

// Manager owns the persistent key-value store and hands out transactions over
// it. Transactions are not safe for concurrent use; callers serialise them.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction. Nothing it writes reaches the database until
// Commit succeeds.
func (m *Manager) Begin() *Txn {
	return &Txn{db: m.db, writes: make(map[string][]byte)}
}

// View runs fn against a transaction that is always discarded.
func (m *Manager) View(fn func(*Txn) error) error {
	txn := m.Begin()
	defer txn.Discard()
	return fn(txn)
}

// Update runs fn and commits its writes only if fn returns nil.
func (m *Manager) Update(fn func(*Txn) error) error {
	txn := m.Begin()
	if err := fn(txn); err != nil {
		txn.Discard()
		return err
	}
	return txn.Commit()
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Txn overlays pending writes on top of the database. A nil entry in writes
// marks a pending delete.
type Txn struct {
	db     storage.Database
	writes map[string][]byte
	closed bool
}

func (t *Txn) load(hashed []byte) ([]byte, bool, error) {
	if t.closed {
		return nil, false, ErrTxnClosed
	}
	if value, ok := t.writes[string(hashed)]; ok {
		return value, value != nil, nil
	}
	data, err := t.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, len(data) > 0, nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// out. The boolean reports whether the key existed.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := t.load(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether key holds a value.
func (t *Txn) KVHas(key []byte) (bool, error) {
	return t.KVGet(key, nil)
}

// KVPut stores the RLP encoding of value under key, replacing any prior value.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if t.closed {
		return ErrTxnClosed
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	t.writes[string(kvKey(key))] = encoded
	return nil
}

// KVCreate stores value under key only if the key is unoccupied.
func (t *Txn) KVCreate(key []byte, value interface{}) error {
	exists, err := t.KVHas(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrRecordExists
	}
	return t.KVPut(key, value)
}

// KVDelete removes key. Removing an absent key is not an error.
func (t *Txn) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if t.closed {
		return ErrTxnClosed
	}
	t.writes[string(kvKey(key))] = nil
	return nil
}

// Pending reports the number of keys touched by the transaction.
func (t *Txn) Pending() int { return len(t.writes) }

// Commit writes every pending mutation in a single atomic batch.
func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	if len(t.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.writes))
	for key := range t.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, key := range keys {
		if value := t.writes[key]; value == nil {
			batch.Delete([]byte(key))
		} else {
			batch.Put([]byte(key), value)
		}
	}
	t.writes = nil
	return t.db.Write(batch)
}

// Discard drops every pending mutation.
func (t *Txn) Discard() {
	t.closed = true
	t.writes = nil
}
