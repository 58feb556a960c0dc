package coffee

import (
	"cryptocoffee/crypto"
)

const (
	// MaxFeePercentage is the inclusive upper bound for every fee rate.
	MaxFeePercentage uint64 = 100

	platformStateNamespace   = "coffee/platform_state"
	creatorDiscountNamespace = "coffee/creator_fee_discount"
	moduleNamespace          = "coffee/module"
)

var (
	platformStateKey = crypto.DeriveRecordKey(platformStateNamespace, nil)
	// ModuleAddress holds record deposits while discount records are live. It is
	// a program identity and can never act as a fee destination.
	ModuleAddress = crypto.DeriveIdentity(moduleNamespace)
)

// PlatformConfig is the deployment-wide fee configuration. Exactly one record
// exists, stored under PlatformStateKey.
type PlatformConfig struct {
	Authority      [20]byte `json:"authority"`
	FeeDestination [20]byte `json:"feeDestination"`
	FeePercentage  uint64   `json:"feePercentage"`
}

// Clone returns a copy of the configuration.
func (p *PlatformConfig) Clone() *PlatformConfig {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// CreatorDiscount overrides the platform fee for every purchase made from a
// single creator.
type CreatorDiscount struct {
	Creator       [20]byte `json:"creator"`
	FeePercentage uint64   `json:"feePercentage"`
	// Deposit is the amount escrowed from the authority when the record was
	// created. It is refunded in full when the record is removed.
	Deposit uint64 `json:"deposit"`
}

// Clone returns a copy of the discount.
func (d *CreatorDiscount) Clone() *CreatorDiscount {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// PlatformStateKey returns the fixed derivation key of the platform singleton.
func PlatformStateKey() [32]byte { return platformStateKey }

// CreatorDiscountKey returns the derivation key of the discount bound to creator.
func CreatorDiscountKey(creator [20]byte) [32]byte {
	return crypto.DeriveRecordKey(creatorDiscountNamespace, creator[:])
}

// FeePolicy selects the lower bound applied to the platform fee. Discounts
// always accept the full [0, 100] range.
type FeePolicy struct {
	AllowZeroPlatformFee bool
}

func (p FeePolicy) minPlatformFee() uint64 {
	if p.AllowZeroPlatformFee {
		return 0
	}
	return 1
}

// BuyRequest describes a single purchase. The contributor must already be
// authenticated by the caller of the engine.
type BuyRequest struct {
	Contributor    [20]byte
	Creator        [20]byte
	FeeDestination [20]byte
	Units          uint64
	UnitPrice      uint64
	// DiscountRef optionally names the discount record the contributor expects
	// to apply. When set it must equal CreatorDiscountKey(Creator).
	DiscountRef *[32]byte
	// Nonce is the contributor nonce consumed by this purchase; it makes
	// receipt identifiers unique.
	Nonce uint64
}

// Receipt is the outcome of a successful purchase. It is returned and
// broadcast but never persisted.
type Receipt struct {
	ID             [32]byte  `json:"id"`
	Contributor    [20]byte  `json:"contributor"`
	Creator        [20]byte  `json:"creator"`
	FeeDestination [20]byte  `json:"feeDestination"`
	Units          uint64    `json:"units"`
	UnitPrice      uint64    `json:"unitPrice"`
	FeePercentage  uint64    `json:"feePercentage"`
	FeeSource      FeeSource `json:"feeSource"`
	Total          uint64    `json:"total"`
	Fee            uint64    `json:"fee"`
	CreatorAmount  uint64    `json:"creatorAmount"`
	PurchasedAt    int64     `json:"purchasedAt"`
}

// Quote previews the split a purchase would produce without moving funds.
type Quote struct {
	Creator       [20]byte  `json:"creator"`
	Units         uint64    `json:"units"`
	UnitPrice     uint64    `json:"unitPrice"`
	FeePercentage uint64    `json:"feePercentage"`
	FeeSource     FeeSource `json:"feeSource"`
	Total         uint64    `json:"total"`
	Fee           uint64    `json:"fee"`
	CreatorAmount uint64    `json:"creatorAmount"`
}
