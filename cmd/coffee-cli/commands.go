package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cryptocoffee/crypto"
	"cryptocoffee/rpc"
)

type command struct {
	args []string
	help string
	run  func(ctx context.Context, c *cli, args []string) error
}

var commandOrder = []string{
	"keygen", "address",
	"init-platform", "update-fee", "update-fee-destination",
	"add-creator-discount", "update-creator-discount", "remove-creator-discount",
	"buy", "quote", "platform", "discount", "balance",
}

var commands = map[string]command{
	"keygen":  {help: "Generate a key and write it to the keystore", run: runKeygen},
	"address": {help: "Print the keystore address", run: runAddress},
	"init-platform": {
		args: []string{"<feeDestination>", "<pct>"},
		help: "Initialize the platform with the signer as authority",
		run:  runInitPlatform,
	},
	"update-fee": {
		args: []string{"<pct>"},
		help: "Change the platform fee percentage",
		run:  runUpdateFee,
	},
	"update-fee-destination": {
		args: []string{"<address>"},
		help: "Change the platform fee destination",
		run:  runUpdateFeeDestination,
	},
	"add-creator-discount": {
		args: []string{"<creator>", "<pct>"},
		help: "Register a creator fee discount",
		run:  discountMutation("coffee_addCreatorDiscount"),
	},
	"update-creator-discount": {
		args: []string{"<creator>", "<pct>"},
		help: "Change a creator fee discount",
		run:  discountMutation("coffee_updateCreatorDiscount"),
	},
	"remove-creator-discount": {
		args: []string{"<creator>"},
		help: "Remove a creator fee discount",
		run:  runRemoveDiscount,
	},
	"buy": {
		args: []string{"<creator>", "<units>", "<unitPrice>"},
		help: "Buy coffee for a creator",
		run:  runBuy,
	},
	"quote": {
		args: []string{"<creator>", "<units>", "<unitPrice>"},
		help: "Preview a purchase",
		run:  runQuote,
	},
	"platform": {help: "Show the platform configuration", run: runPlatform},
	"discount": {
		args: []string{"<creator>"},
		help: "Show a creator discount",
		run:  runDiscount,
	},
	"balance": {
		args: []string{"<address>"},
		help: "Show an account",
		run:  runBalance,
	},
}

func parseUint(name, value string) (uint64, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return parsed, nil
}

// normalizeAddress validates input and renders it in the canonical form.
func normalizeAddress(name, input string) (string, error) {
	raw, err := crypto.ParseAddress(input)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", name, err)
	}
	return crypto.FormatAddress(raw), nil
}

func (c *cli) loadKey() (*crypto.PrivateKey, error) {
	if !crypto.KeystoreExists(c.keystore) {
		return nil, fmt.Errorf("keystore %s not found; run keygen first", c.keystore)
	}
	pass, err := c.passphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(c.keystore, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore: %w", err)
	}
	return key, nil
}

// signer loads the key, resolves the chain id and fetches the next nonce.
type signer struct {
	key     *crypto.PrivateKey
	caller  string
	nonce   uint64
	chainID uint64
}

func (c *cli) signer(ctx context.Context) (*signer, error) {
	key, err := c.loadKey()
	if err != nil {
		return nil, err
	}
	chainID := c.chainID
	if chainID == 0 {
		info, err := c.client.ChainInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch chain info: %w", err)
		}
		chainID = info.ChainID
	}
	addr := key.PubKey().Address().Raw()
	nonce, err := c.client.NextNonce(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	return &signer{key: key, caller: crypto.FormatAddress(addr), nonce: nonce, chainID: chainID}, nil
}

func (c *cli) submit(ctx context.Context, s *signer, method string, payload interface{}, out interface{}) error {
	if err := c.client.SignedCall(ctx, s.key, s.chainID, method, payload, out); err != nil {
		if code := rpc.ErrorCode(err); code != "" {
			return fmt.Errorf("%s rejected (%s): %w", method, code, err)
		}
		return err
	}
	return c.print(out)
}

func runKeygen(_ context.Context, c *cli, _ []string) error {
	if crypto.KeystoreExists(c.keystore) {
		return fmt.Errorf("keystore %s already exists", c.keystore)
	}
	pass, err := c.passphrase()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(c.keystore, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	_, err = fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return err
}

func runAddress(_ context.Context, c *cli, _ []string) error {
	key, err := c.loadKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return err
}

func runInitPlatform(ctx context.Context, c *cli, args []string) error {
	dest, err := normalizeAddress("fee destination", args[0])
	if err != nil {
		return err
	}
	pct, err := parseUint("fee percentage", args[1])
	if err != nil {
		return err
	}
	s, err := c.signer(ctx)
	if err != nil {
		return err
	}
	return c.submit(ctx, s, "coffee_initializePlatform", rpc.InitializePlatformParams{
		Caller: s.caller, Nonce: s.nonce, FeeDestination: dest, FeePercentage: pct,
	}, &rpc.PlatformResult{})
}

func runUpdateFee(ctx context.Context, c *cli, args []string) error {
	pct, err := parseUint("fee percentage", args[0])
	if err != nil {
		return err
	}
	s, err := c.signer(ctx)
	if err != nil {
		return err
	}
	return c.submit(ctx, s, "coffee_updateFee", rpc.UpdateFeeParams{
		Caller: s.caller, Nonce: s.nonce, FeePercentage: pct,
	}, &rpc.PlatformResult{})
}

func runUpdateFeeDestination(ctx context.Context, c *cli, args []string) error {
	dest, err := normalizeAddress("fee destination", args[0])
	if err != nil {
		return err
	}
	s, err := c.signer(ctx)
	if err != nil {
		return err
	}
	return c.submit(ctx, s, "coffee_updateFeeDestination", rpc.UpdateFeeDestinationParams{
		Caller: s.caller, Nonce: s.nonce, FeeDestination: dest,
	}, &rpc.PlatformResult{})
}

func discountMutation(method string) func(context.Context, *cli, []string) error {
	return func(ctx context.Context, c *cli, args []string) error {
		creator, err := normalizeAddress("creator", args[0])
		if err != nil {
			return err
		}
		pct, err := parseUint("fee percentage", args[1])
		if err != nil {
			return err
		}
		s, err := c.signer(ctx)
		if err != nil {
			return err
		}
		return c.submit(ctx, s, method, rpc.CreatorDiscountParams{
			Caller: s.caller, Nonce: s.nonce, Creator: creator, FeePercentage: pct,
		}, &rpc.DiscountResult{})
	}
}

func runRemoveDiscount(ctx context.Context, c *cli, args []string) error {
	creator, err := normalizeAddress("creator", args[0])
	if err != nil {
		return err
	}
	s, err := c.signer(ctx)
	if err != nil {
		return err
	}
	return c.submit(ctx, s, "coffee_removeCreatorDiscount", rpc.RemoveCreatorDiscountParams{
		Caller: s.caller, Nonce: s.nonce, Creator: creator,
	}, &rpc.DiscountResult{})
}

func runBuy(ctx context.Context, c *cli, args []string) error {
	creator, err := normalizeAddress("creator", args[0])
	if err != nil {
		return err
	}
	units, err := parseUint("units", args[1])
	if err != nil {
		return err
	}
	unitPrice, err := parseUint("unit price", args[2])
	if err != nil {
		return err
	}
	var platform rpc.PlatformResult
	if err := c.client.Call(ctx, "coffee_getPlatform", &platform); err != nil {
		return fmt.Errorf("fetch platform: %w", err)
	}
	params := rpc.BuyParams{
		Creator:        creator,
		FeeDestination: platform.FeeDestination,
		Units:          units,
		UnitPrice:      unitPrice,
	}
	var discount rpc.DiscountResult
	if err := c.client.Call(ctx, "coffee_getCreatorDiscount", &discount, creator); err == nil {
		params.DiscountRef = discount.Key
	} else if rpc.ErrorCode(err) != "DiscountNotFound" {
		return fmt.Errorf("fetch discount: %w", err)
	}
	s, err := c.signer(ctx)
	if err != nil {
		return err
	}
	params.Caller = s.caller
	params.Nonce = s.nonce
	return c.submit(ctx, s, "coffee_buy", params, &rpc.ReceiptResult{})
}

func runQuote(ctx context.Context, c *cli, args []string) error {
	creator, err := normalizeAddress("creator", args[0])
	if err != nil {
		return err
	}
	units, err := parseUint("units", args[1])
	if err != nil {
		return err
	}
	unitPrice, err := parseUint("unit price", args[2])
	if err != nil {
		return err
	}
	var quote rpc.QuoteResult
	if err := c.client.Call(ctx, "coffee_quote", &quote, rpc.QuoteParams{Creator: creator, Units: units, UnitPrice: unitPrice}); err != nil {
		return err
	}
	return c.print(&quote)
}

func runPlatform(ctx context.Context, c *cli, _ []string) error {
	var platform rpc.PlatformResult
	if err := c.client.Call(ctx, "coffee_getPlatform", &platform); err != nil {
		return err
	}
	return c.print(&platform)
}

func runDiscount(ctx context.Context, c *cli, args []string) error {
	creator, err := normalizeAddress("creator", args[0])
	if err != nil {
		return err
	}
	var discount rpc.DiscountResult
	if err := c.client.Call(ctx, "coffee_getCreatorDiscount", &discount, creator); err != nil {
		return err
	}
	return c.print(&discount)
}

func runBalance(ctx context.Context, c *cli, args []string) error {
	addr, err := normalizeAddress("address", args[0])
	if err != nil {
		return err
	}
	var acc rpc.AccountResult
	if err := c.client.Call(ctx, "coffee_getAccount", &acc, addr); err != nil {
		return err
	}
	return c.print(&acc)
}
