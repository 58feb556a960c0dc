package rpc

import (
	"encoding/hex"

	"cryptocoffee/core"
	"cryptocoffee/core/types"
	"cryptocoffee/crypto"
	"cryptocoffee/native/coffee"
)

// Signed request payloads. Every mutating method takes params
// [payload, signatureHex] where the signature covers the payload bytes exactly
// as sent.

type InitializePlatformParams struct {
	Caller         string `json:"caller"`
	Nonce          uint64 `json:"nonce"`
	FeeDestination string `json:"feeDestination"`
	FeePercentage  uint64 `json:"feePercentage"`
}

type UpdateFeeParams struct {
	Caller        string `json:"caller"`
	Nonce         uint64 `json:"nonce"`
	FeePercentage uint64 `json:"feePercentage"`
}

type UpdateFeeDestinationParams struct {
	Caller         string `json:"caller"`
	Nonce          uint64 `json:"nonce"`
	FeeDestination string `json:"feeDestination"`
}

// CreatorDiscountParams is shared by the add and update discount methods.
type CreatorDiscountParams struct {
	Caller        string `json:"caller"`
	Nonce         uint64 `json:"nonce"`
	Creator       string `json:"creator"`
	FeePercentage uint64 `json:"feePercentage"`
}

type RemoveCreatorDiscountParams struct {
	Caller  string `json:"caller"`
	Nonce   uint64 `json:"nonce"`
	Creator string `json:"creator"`
}

type BuyParams struct {
	Caller         string `json:"caller"`
	Nonce          uint64 `json:"nonce"`
	Creator        string `json:"creator"`
	FeeDestination string `json:"feeDestination"`
	Units          uint64 `json:"units"`
	UnitPrice      uint64 `json:"unitPrice"`
	// DiscountRef optionally pins the discount record, hex encoded.
	DiscountRef string `json:"discountRef,omitempty"`
}

type QuoteParams struct {
	Creator   string `json:"creator"`
	Units     uint64 `json:"units"`
	UnitPrice uint64 `json:"unitPrice"`
}

type PlatformResult struct {
	Authority      string `json:"authority"`
	FeeDestination string `json:"feeDestination"`
	FeePercentage  uint64 `json:"feePercentage"`
}

type DiscountResult struct {
	Creator       string `json:"creator"`
	FeePercentage uint64 `json:"feePercentage"`
	Deposit       uint64 `json:"deposit"`
	Key           string `json:"key"`
}

type ReceiptResult struct {
	ID             string `json:"id"`
	Contributor    string `json:"contributor"`
	Creator        string `json:"creator"`
	FeeDestination string `json:"feeDestination"`
	Units          uint64 `json:"units"`
	UnitPrice      uint64 `json:"unitPrice"`
	FeePercentage  uint64 `json:"feePercentage"`
	FeeSource      string `json:"feeSource"`
	Total          uint64 `json:"total"`
	Fee            uint64 `json:"fee"`
	CreatorAmount  uint64 `json:"creatorAmount"`
	PurchasedAt    int64  `json:"purchasedAt"`
}

type QuoteResult struct {
	Creator       string `json:"creator"`
	Units         uint64 `json:"units"`
	UnitPrice     uint64 `json:"unitPrice"`
	FeePercentage uint64 `json:"feePercentage"`
	FeeSource     string `json:"feeSource"`
	Total         uint64 `json:"total"`
	Fee           uint64 `json:"fee"`
	CreatorAmount uint64 `json:"creatorAmount"`
}

type AccountResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
	Program bool   `json:"program"`
}

type ChainInfoResult struct {
	ChainID         uint64 `json:"chainId"`
	DiscountDeposit uint64 `json:"discountDeposit"`
}

func encodeHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func platformResult(cfg *coffee.PlatformConfig) *PlatformResult {
	if cfg == nil {
		return nil
	}
	return &PlatformResult{
		Authority:      crypto.FormatAddress(cfg.Authority),
		FeeDestination: crypto.FormatAddress(cfg.FeeDestination),
		FeePercentage:  cfg.FeePercentage,
	}
}

func discountResult(d *coffee.CreatorDiscount) *DiscountResult {
	if d == nil {
		return nil
	}
	return &DiscountResult{
		Creator:       crypto.FormatAddress(d.Creator),
		FeePercentage: d.FeePercentage,
		Deposit:       d.Deposit,
		Key:           encodeHash(coffee.CreatorDiscountKey(d.Creator)),
	}
}

func receiptResult(r *coffee.Receipt) *ReceiptResult {
	if r == nil {
		return nil
	}
	return &ReceiptResult{
		ID:             encodeHash(r.ID),
		Contributor:    crypto.FormatAddress(r.Contributor),
		Creator:        crypto.FormatAddress(r.Creator),
		FeeDestination: crypto.FormatAddress(r.FeeDestination),
		Units:          r.Units,
		UnitPrice:      r.UnitPrice,
		FeePercentage:  r.FeePercentage,
		FeeSource:      string(r.FeeSource),
		Total:          r.Total,
		Fee:            r.Fee,
		CreatorAmount:  r.CreatorAmount,
		PurchasedAt:    r.PurchasedAt,
	}
}

func quoteResult(q *coffee.Quote) *QuoteResult {
	if q == nil {
		return nil
	}
	return &QuoteResult{
		Creator:       crypto.FormatAddress(q.Creator),
		Units:         q.Units,
		UnitPrice:     q.UnitPrice,
		FeePercentage: q.FeePercentage,
		FeeSource:     string(q.FeeSource),
		Total:         q.Total,
		Fee:           q.Fee,
		CreatorAmount: q.CreatorAmount,
	}
}

func accountResult(addr [20]byte, acc *types.Account) *AccountResult {
	if acc == nil {
		acc = types.NewAccount()
	}
	return &AccountResult{
		Address: crypto.FormatAddress(addr),
		Balance: acc.Balance,
		Nonce:   acc.Nonce,
		Program: acc.IsProgram(),
	}
}

// NotificationPayload is the websocket frame for one committed event.
type NotificationPayload struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

func notificationPayloadFrom(n core.Notification) NotificationPayload {
	return NotificationPayload{
		Sequence:   n.Sequence,
		Cursor:     n.Cursor,
		Type:       n.Type,
		Attributes: n.Attributes,
		Timestamp:  n.Timestamp,
	}
}
