package coffee

import (
	"errors"

	"cryptocoffee/native/bank"
)

var (
	ErrNilState               = errors.New("coffee: state not configured")
	ErrInvalidFeePercentage   = errors.New("coffee: invalid fee percentage")
	ErrUnauthorized           = errors.New("coffee: unauthorized")
	ErrInvalidFeeDestination  = errors.New("coffee: invalid fee destination")
	ErrInvalidUnits           = errors.New("coffee: must buy at least one unit")
	ErrInvalidUnitPrice       = errors.New("coffee: unit price must be greater than 0")
	ErrArithmeticOverflow     = errors.New("coffee: arithmetic overflow")
	ErrPlatformInitialized    = errors.New("coffee: platform already initialized")
	ErrPlatformNotInitialized = errors.New("coffee: platform not initialized")
	ErrDiscountExists         = errors.New("coffee: creator discount already exists")
	ErrDiscountNotFound       = errors.New("coffee: creator discount does not exist")
	ErrInvalidDiscount        = errors.New("coffee: invalid creator discount")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidFeePercentage, "InvalidFeePercentage"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidFeeDestination, "InvalidFeeDestination"},
	{ErrInvalidUnits, "InvalidUnits"},
	{ErrInvalidUnitPrice, "InvalidUnitPrice"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrPlatformInitialized, "PlatformAlreadyInitialized"},
	{ErrPlatformNotInitialized, "PlatformNotInitialized"},
	{ErrDiscountExists, "DiscountAlreadyExists"},
	{ErrDiscountNotFound, "DiscountNotFound"},
	{ErrInvalidDiscount, "InvalidDiscount"},
	{bank.ErrTransferFailed, "TransferFailed"},
	{ErrNilState, "StateUnavailable"},
}

// ErrorCode returns the stable taxonomy name for err, or the empty string when
// err is not one of the ledger's failure conditions.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}
