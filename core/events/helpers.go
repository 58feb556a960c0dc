package events

import (
	"encoding/hex"
	"strconv"

	"cryptocoffee/crypto"
)

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAddress(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}

func hexHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}
