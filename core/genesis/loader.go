package genesis

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"cryptocoffee/core/state"
	"cryptocoffee/core/types"
	"cryptocoffee/native/bank"
	"cryptocoffee/native/coffee"
)

var paramsKey = []byte("genesis/params")

// ErrAlreadyApplied is returned when genesis runs against a populated state.
var ErrAlreadyApplied = errors.New("genesis: already applied")

// Params are the chain-wide values fixed at genesis.
type Params struct {
	ChainID         uint64
	DiscountDeposit uint64
}

// LoadParams returns the parameters recorded by a previous Apply.
func LoadParams(txn *state.Txn) (*Params, bool, error) {
	params := new(Params)
	ok, err := txn.KVGet(paramsKey, params)
	if err != nil || !ok {
		return nil, false, err
	}
	return params, true, nil
}

func programCodeHash(addr [20]byte) []byte {
	return ethcrypto.Keccak256([]byte("program"), addr[:])
}

// Apply writes the genesis contents into txn. Platform and discount records go
// through the coffee engine so they obey the same rules as live operations.
func Apply(spec *GenesisSpec, txn *state.Txn, policy coffee.FeePolicy) (*Params, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if txn == nil {
		return nil, fmt.Errorf("state transaction must not be nil")
	}
	if _, ok, err := LoadParams(txn); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyApplied
	}

	module := coffee.ModuleAddress
	if err := txn.PutAccount(module[:], &types.Account{CodeHash: programCodeHash(module)}); err != nil {
		return nil, fmt.Errorf("module account: %w", err)
	}

	ledger := bank.NewLedger(txn, nil)
	for i, acc := range spec.Accounts {
		if acc.Program {
			record, err := txn.GetAccount(acc.addr[:])
			if err != nil {
				return nil, err
			}
			record.CodeHash = programCodeHash(acc.addr)
			if err := txn.PutAccount(acc.addr[:], record); err != nil {
				return nil, fmt.Errorf("accounts[%d]: %w", i, err)
			}
		}
		if acc.Balance > 0 {
			if err := ledger.Mint(acc.addr, acc.Balance); err != nil {
				return nil, fmt.Errorf("accounts[%d]: %w", i, err)
			}
		}
	}

	engine := coffee.NewEngine()
	engine.SetState(txn)
	engine.SetFeePolicy(policy)
	engine.SetDiscountDeposit(spec.DiscountDeposit)

	if p := spec.Platform; p != nil {
		if _, err := engine.InitializePlatform(p.authority, p.feeDestination, p.FeePercentage); err != nil {
			return nil, fmt.Errorf("platform: %w", err)
		}
		for i, d := range spec.Discounts {
			if _, err := engine.AddDiscount(p.authority, d.creator, d.FeePercentage); err != nil {
				return nil, fmt.Errorf("discounts[%d]: %w", i, err)
			}
		}
	}

	params := &Params{ChainID: spec.ChainID, DiscountDeposit: spec.DiscountDeposit}
	if err := txn.KVPut(paramsKey, params); err != nil {
		return nil, err
	}
	return params, nil
}
