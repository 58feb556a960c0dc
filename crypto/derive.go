package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DeriveRecordKey computes the deterministic storage address of a record from
// its namespace tag and optional owning identity.
func DeriveRecordKey(namespace string, owner []byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(namespace), owner))
	return out
}

// DeriveIdentity computes a 20-byte program identity from a namespace tag.
// No private key exists for a derived identity.
func DeriveIdentity(namespace string) [20]byte {
	var out [20]byte
	digest := ethcrypto.Keccak256([]byte("identity/"), []byte(namespace))
	copy(out[:], digest[12:])
	return out
}
