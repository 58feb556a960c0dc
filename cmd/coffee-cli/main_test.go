package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/core"
	"cryptocoffee/core/genesis"
	"cryptocoffee/crypto"
	"cryptocoffee/rpc"
	"cryptocoffee/storage"
)

type harness struct {
	endpoint string
	keystore string
	address  string
	out      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	keystorePath := filepath.Join(t.TempDir(), "operator.keystore")
	require.NoError(t, crypto.SaveToKeystore(keystorePath, key, "pw"))
	address := key.PubKey().Address().String()

	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf(`chainId: 11
discountDeposit: 3
accounts:
  - address: %s
    balance: 1000
`, address)))
	require.NoError(t, err)
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, spec, core.Options{})
	require.NoError(t, err)
	ts := httptest.NewServer(rpc.NewServer(node, rpc.ServerConfig{}, nil).Handler())
	t.Cleanup(ts.Close)

	return &harness{endpoint: ts.URL, keystore: keystorePath, address: address, out: &bytes.Buffer{}}
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	app := &cli{
		stdout:     h.out,
		passphrase: func() (string, error) { return "pw", nil },
	}
	return app.run(append([]string{"--rpc", h.endpoint, "--keystore", h.keystore}, args...))
}

func decodeOutput[T any](t *testing.T, h *harness) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	return out
}

func fixedAddress(b byte) string {
	var raw [20]byte
	for i := range raw {
		raw[i] = b
	}
	return crypto.FormatAddress(raw)
}

func TestCLIOperatorAndPurchaseFlow(t *testing.T) {
	h := newHarness(t)
	treasury := fixedAddress(0x44)
	creator := fixedAddress(0x55)

	require.NoError(t, h.run("address"))
	require.Equal(t, h.address+"\n", h.out.String())

	require.NoError(t, h.run("init-platform", treasury, "10"))
	platform := decodeOutput[rpc.PlatformResult](t, h)
	require.Equal(t, h.address, platform.Authority)
	require.Equal(t, treasury, platform.FeeDestination)

	require.NoError(t, h.run("update-fee", "20"))
	require.Equal(t, uint64(20), decodeOutput[rpc.PlatformResult](t, h).FeePercentage)

	require.NoError(t, h.run("add-creator-discount", creator, "5"))
	require.Equal(t, uint64(3), decodeOutput[rpc.DiscountResult](t, h).Deposit)

	require.NoError(t, h.run("quote", creator, "2", "100"))
	quote := decodeOutput[rpc.QuoteResult](t, h)
	require.Equal(t, uint64(10), quote.Fee)
	require.Equal(t, "creator", quote.FeeSource)

	require.NoError(t, h.run("buy", creator, "2", "100"))
	receipt := decodeOutput[rpc.ReceiptResult](t, h)
	require.Equal(t, uint64(10), receipt.Fee)
	require.Equal(t, uint64(190), receipt.CreatorAmount)

	require.NoError(t, h.run("balance", h.address))
	acc := decodeOutput[rpc.AccountResult](t, h)
	// 1000 minus the 3 deposit and the 200 purchase.
	require.Equal(t, uint64(797), acc.Balance)
	require.Equal(t, uint64(4), acc.Nonce)

	require.NoError(t, h.run("remove-creator-discount", creator))
	require.NoError(t, h.run("balance", h.address))
	require.Equal(t, uint64(800), decodeOutput[rpc.AccountResult](t, h).Balance)
}

func TestCLIErrors(t *testing.T) {
	h := newHarness(t)

	require.ErrorContains(t, h.run("bogus"), "unknown command")
	require.ErrorContains(t, h.run("update-fee"), "usage")
	require.ErrorContains(t, h.run("update-fee", "abc"), "invalid fee percentage")
	require.ErrorContains(t, h.run("balance", "not-an-address"), "invalid address")

	err := h.run("update-fee", "20")
	require.ErrorContains(t, err, "PlatformNotInitialized")

	require.ErrorContains(t, h.run("keygen"), "already exists")
}

func TestCLIKeygenWritesKeystore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.keystore")
	out := &bytes.Buffer{}
	app := &cli{stdout: out, passphrase: func() (string, error) { return "secret", nil }}
	require.NoError(t, app.run([]string{"--keystore", path, "keygen"}))
	require.True(t, crypto.KeystoreExists(path))

	key, err := crypto.LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().String()+"\n", out.String())
}
