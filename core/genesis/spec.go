package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cryptocoffee/crypto"
	"cryptocoffee/native/coffee"
)

// GenesisSpec describes the initial ledger contents.
type GenesisSpec struct {
	ChainID uint64 `yaml:"chainId"`
	// DiscountDeposit is escrowed from the authority for every discount record.
	DiscountDeposit uint64         `yaml:"discountDeposit"`
	Accounts        []AccountSpec  `yaml:"accounts"`
	Platform        *PlatformSpec  `yaml:"platform,omitempty"`
	Discounts       []DiscountSpec `yaml:"discounts"`
}

type AccountSpec struct {
	Address string `yaml:"address"`
	Balance uint64 `yaml:"balance"`
	// Program marks the identity as not externally owned.
	Program bool `yaml:"program"`

	addr [20]byte
}

type PlatformSpec struct {
	Authority      string `yaml:"authority"`
	FeeDestination string `yaml:"feeDestination"`
	FeePercentage  uint64 `yaml:"feePercentage"`

	authority      [20]byte
	feeDestination [20]byte
}

type DiscountSpec struct {
	Creator       string `yaml:"creator"`
	FeePercentage uint64 `yaml:"feePercentage"`

	creator [20]byte
}

// LoadGenesisSpec reads and validates a YAML genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates YAML genesis content. Unknown fields
// are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func (s *GenesisSpec) validate() error {
	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be greater than zero")
	}

	seen := make(map[[20]byte]struct{}, len(s.Accounts))
	for i := range s.Accounts {
		acc := &s.Accounts[i]
		addr, err := parseAddress(fmt.Sprintf("accounts[%d].address", i), acc.Address)
		if err != nil {
			return err
		}
		if addr == coffee.ModuleAddress {
			return fmt.Errorf("accounts[%d]: module account is reserved", i)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("accounts[%d]: duplicate address %s", i, acc.Address)
		}
		seen[addr] = struct{}{}
		acc.addr = addr
	}

	if s.Platform != nil {
		var err error
		if s.Platform.authority, err = parseAddress("platform.authority", s.Platform.Authority); err != nil {
			return err
		}
		if s.Platform.feeDestination, err = parseAddress("platform.feeDestination", s.Platform.FeeDestination); err != nil {
			return err
		}
		if s.Platform.FeePercentage > coffee.MaxFeePercentage {
			return fmt.Errorf("platform.feePercentage must be <= %d", coffee.MaxFeePercentage)
		}
	}

	if len(s.Discounts) > 0 && s.Platform == nil {
		return fmt.Errorf("discounts require a platform section")
	}
	creators := make(map[[20]byte]struct{}, len(s.Discounts))
	for i := range s.Discounts {
		d := &s.Discounts[i]
		creator, err := parseAddress(fmt.Sprintf("discounts[%d].creator", i), d.Creator)
		if err != nil {
			return err
		}
		if _, dup := creators[creator]; dup {
			return fmt.Errorf("discounts[%d]: duplicate creator %s", i, d.Creator)
		}
		if d.FeePercentage > coffee.MaxFeePercentage {
			return fmt.Errorf("discounts[%d].feePercentage must be <= %d", i, coffee.MaxFeePercentage)
		}
		creators[creator] = struct{}{}
		d.creator = creator
	}
	return nil
}
