package state

import (
	"fmt"

	"cryptocoffee/core/types"
)

var accountPrefix = []byte("account:")

const addressLength = 20

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return buf
}

// GetAccount loads the account for addr. Unknown addresses yield an empty
// externally-owned account.
func (t *Txn) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) != addressLength {
		return nil, fmt.Errorf("state: address must be %d bytes, got %d", addressLength, len(addr))
	}
	account := new(types.Account)
	ok, err := t.KVGet(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return account, nil
}

// PutAccount persists account under addr.
func (t *Txn) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) != addressLength {
		return fmt.Errorf("state: address must be %d bytes, got %d", addressLength, len(addr))
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	return t.KVPut(accountKey(addr), account)
}
