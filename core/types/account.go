package types

// Account is the ledger record held for every identity. Balances are
// denominated in the smallest indivisible unit of the native asset.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
	// CodeHash is non-empty for program identities. Such accounts are not
	// externally owned and cannot act as fee destinations.
	CodeHash []byte `json:"codeHash,omitempty"`
}

// NewAccount returns an empty externally-owned account.
func NewAccount() *Account { return &Account{} }

// IsProgram reports whether the account belongs to a program rather than a
// key holder.
func (a *Account) IsProgram() bool {
	return a != nil && len(a.CodeHash) > 0
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.CodeHash != nil {
		clone.CodeHash = append([]byte(nil), a.CodeHash...)
	}
	return &clone
}
