package coffee

// FeeSource names where an applied fee rate came from.
type FeeSource string

const (
	FeeSourcePlatform FeeSource = "platform"
	FeeSourceCreator  FeeSource = "creator"
)

// FeeOverride is either NoOverride or Override. Nil is malformed.
type FeeOverride interface {
	isFeeOverride()
}

// NoOverride selects the platform default.
type NoOverride struct{}

// Override selects the rate stored in a creator discount.
type Override struct {
	Discount CreatorDiscount
}

func (NoOverride) isFeeOverride() {}
func (Override) isFeeOverride()   {}

// Resolution is the fee rate a purchase will be charged.
type Resolution struct {
	FeePercentage uint64
	Source        FeeSource
}

// ResolveFee picks the effective fee percentage. A present override wins
// regardless of whether it is above or below the platform default.
func ResolveFee(platformDefault uint64, override FeeOverride) (Resolution, error) {
	switch o := override.(type) {
	case NoOverride:
		if platformDefault > MaxFeePercentage {
			return Resolution{}, ErrInvalidFeePercentage
		}
		return Resolution{FeePercentage: platformDefault, Source: FeeSourcePlatform}, nil
	case Override:
		if o.Discount.FeePercentage > MaxFeePercentage {
			return Resolution{}, ErrInvalidDiscount
		}
		return Resolution{FeePercentage: o.Discount.FeePercentage, Source: FeeSourceCreator}, nil
	default:
		return Resolution{}, ErrInvalidDiscount
	}
}
