package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, string(CoffeePrefix)+"1"))

	raw, err := ParseAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Raw(), raw)
	require.Equal(t, encoded, FormatAddress(raw))
}

func TestParseAddressHexAndErrors(t *testing.T) {
	raw, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, byte(0x01), raw[0])
	require.Equal(t, byte(0x14), raw[19])

	_, err = ParseAddress("")
	require.Error(t, err)
	_, err = ParseAddress("0x0102")
	require.Error(t, err)

	other := MustNewAddress(AddressPrefix("tea"), raw[:]).String()
	_, err = ParseAddress(other)
	require.ErrorContains(t, err, "unexpected address prefix")
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	_, err := NewAddress(CoffeePrefix, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	caller := key.PubKey().Address().Raw()
	payload := []byte(`{"caller":"x","nonce":1}`)

	sig, err := SignRequest(key, 7, "coffee_updateFee", payload)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	require.NoError(t, VerifyCaller(7, "coffee_updateFee", payload, sig, caller))

	// Any change to the bound context invalidates the signature.
	require.ErrorIs(t, VerifyCaller(8, "coffee_updateFee", payload, sig, caller), ErrInvalidSignature)
	require.ErrorIs(t, VerifyCaller(7, "coffee_buy", payload, sig, caller), ErrInvalidSignature)
	require.ErrorIs(t, VerifyCaller(7, "coffee_updateFee", []byte(`{}`), sig, caller), ErrInvalidSignature)

	_, err = RecoverSigner(7, "coffee_updateFee", payload, sig[:10])
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodeSignature(t *testing.T) {
	sig, err := DecodeSignature("0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sig)

	_, err = DecodeSignature("  ")
	require.ErrorIs(t, err, ErrInvalidSignature)
	_, err = DecodeSignature("zz")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "authority.keystore")
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	require.False(t, KeystoreExists(path))
	require.NoError(t, SaveToKeystore(path, key, "secret"))
	require.True(t, KeystoreExists(path))

	loaded, err := LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = LoadFromKeystore(path, "wrong")
	require.ErrorIs(t, err, ErrKeystorePassphrase)

	// Overwriting replaces the previous key.
	next, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, SaveToKeystore(path, next, "secret"))
	loaded, err = LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, next.Bytes(), loaded.Bytes())
}
