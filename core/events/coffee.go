package events

import (
	"strconv"

	"cryptocoffee/core/types"
)

const (
	TypePlatformInitialized   = "coffee.platform.initialized"
	TypeFeeUpdated            = "coffee.fee.updated"
	TypeFeeDestinationUpdated = "coffee.fee_destination.updated"
	TypeCoffeePurchased       = "coffee.purchased"
	TypeDiscountAdded         = "coffee.discount.added"
	TypeDiscountUpdated       = "coffee.discount.updated"
	TypeDiscountRemoved       = "coffee.discount.removed"
)

type PlatformInitialized struct {
	Authority      [20]byte
	FeeDestination [20]byte
	FeePercentage  uint64
}

func (PlatformInitialized) EventType() string { return TypePlatformInitialized }

func (e PlatformInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypePlatformInitialized,
		Attributes: map[string]string{
			"authority":      formatAddress(e.Authority),
			"feeDestination": formatAddress(e.FeeDestination),
			"feePercentage":  strconv.FormatUint(e.FeePercentage, 10),
		},
	}
}

type FeeUpdated struct {
	Authority     [20]byte
	OldPercentage uint64
	NewPercentage uint64
}

func (FeeUpdated) EventType() string { return TypeFeeUpdated }

func (e FeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeUpdated,
		Attributes: map[string]string{
			"authority":        formatAddress(e.Authority),
			"oldFeePercentage": strconv.FormatUint(e.OldPercentage, 10),
			"feePercentage":    strconv.FormatUint(e.NewPercentage, 10),
		},
	}
}

type FeeDestinationUpdated struct {
	Authority      [20]byte
	OldDestination [20]byte
	NewDestination [20]byte
}

func (FeeDestinationUpdated) EventType() string { return TypeFeeDestinationUpdated }

func (e FeeDestinationUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeDestinationUpdated,
		Attributes: map[string]string{
			"authority":         formatAddress(e.Authority),
			"oldFeeDestination": formatAddress(e.OldDestination),
			"feeDestination":    formatAddress(e.NewDestination),
		},
	}
}

type CoffeePurchased struct {
	ReceiptID      [32]byte
	Contributor    [20]byte
	Creator        [20]byte
	FeeDestination [20]byte
	Units          uint64
	UnitPrice      uint64
	FeePercentage  uint64
	FeeSource      string
	Total          uint64
	Fee            uint64
	CreatorAmount  uint64
	PurchasedAt    int64
}

func (CoffeePurchased) EventType() string { return TypeCoffeePurchased }

func (e CoffeePurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeCoffeePurchased,
		Attributes: map[string]string{
			"receiptId":      hexHash(e.ReceiptID),
			"contributor":    formatAddress(e.Contributor),
			"creator":        formatAddress(e.Creator),
			"feeDestination": formatAddress(e.FeeDestination),
			"units":          strconv.FormatUint(e.Units, 10),
			"unitPrice":      formatAmount(e.UnitPrice),
			"feePercentage":  strconv.FormatUint(e.FeePercentage, 10),
			"feeSource":      e.FeeSource,
			"total":          formatAmount(e.Total),
			"fee":            formatAmount(e.Fee),
			"creatorAmount":  formatAmount(e.CreatorAmount),
			"purchasedAt":    strconv.FormatInt(e.PurchasedAt, 10),
		},
	}
}

type DiscountAdded struct {
	Creator       [20]byte
	FeePercentage uint64
}

func (DiscountAdded) EventType() string { return TypeDiscountAdded }

func (e DiscountAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeDiscountAdded,
		Attributes: map[string]string{
			"creator":       formatAddress(e.Creator),
			"feePercentage": strconv.FormatUint(e.FeePercentage, 10),
		},
	}
}

type DiscountUpdated struct {
	Creator       [20]byte
	OldPercentage uint64
	NewPercentage uint64
}

func (DiscountUpdated) EventType() string { return TypeDiscountUpdated }

func (e DiscountUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeDiscountUpdated,
		Attributes: map[string]string{
			"creator":          formatAddress(e.Creator),
			"oldFeePercentage": strconv.FormatUint(e.OldPercentage, 10),
			"feePercentage":    strconv.FormatUint(e.NewPercentage, 10),
		},
	}
}

type DiscountRemoved struct {
	Creator  [20]byte
	Refunded uint64
	Refundee [20]byte
}

func (DiscountRemoved) EventType() string { return TypeDiscountRemoved }

func (e DiscountRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeDiscountRemoved,
		Attributes: map[string]string{
			"creator":  formatAddress(e.Creator),
			"refunded": formatAmount(e.Refunded),
			"refundee": formatAddress(e.Refundee),
		},
	}
}
