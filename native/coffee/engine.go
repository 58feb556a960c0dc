package coffee

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"cryptocoffee/core/events"
	"cryptocoffee/core/types"
	"cryptocoffee/native/bank"
)

// engineState is the keyed record storage the engine mutates. Create methods
// must fail when the derivation key is already occupied: with
// ErrPlatformInitialized for the platform singleton and ErrDiscountExists for a
// creator discount.
type engineState interface {
	CoffeePlatformGet() (*PlatformConfig, bool, error)
	CoffeePlatformCreate(cfg *PlatformConfig) error
	CoffeePlatformPut(cfg *PlatformConfig) error
	CoffeeDiscountGet(creator [20]byte) (*CreatorDiscount, bool, error)
	CoffeeDiscountCreate(discount *CreatorDiscount) error
	CoffeeDiscountPut(discount *CreatorDiscount) error
	CoffeeDiscountDelete(creator [20]byte) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine applies platform configuration, discount registry and purchase
// operations against a single state transaction. Callers pass identities that
// have already been authenticated.
type Engine struct {
	state           engineState
	emitter         events.Emitter
	nowFn           func() int64
	policy          FeePolicy
	discountDeposit uint64
}

// NewEngine constructs an engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetFeePolicy configures the accepted platform fee range.
func (e *Engine) SetFeePolicy(policy FeePolicy) { e.policy = policy }

// SetDiscountDeposit configures the amount escrowed from the authority for
// every discount record created afterwards.
func (e *Engine) SetDiscountDeposit(amount uint64) { e.discountDeposit = amount }

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ledger() *bank.Ledger {
	return bank.NewLedger(e.state, e.emitter)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func (e *Engine) validatePlatformFee(pct uint64) error {
	if pct < e.policy.minPlatformFee() || pct > MaxFeePercentage {
		return ErrInvalidFeePercentage
	}
	return nil
}

func validateDiscountFee(pct uint64) error {
	if pct > MaxFeePercentage {
		return ErrInvalidFeePercentage
	}
	return nil
}

// externallyOwned reports whether addr is a key-holder account that may
// receive the platform cut.
func (e *Engine) externallyOwned(addr [20]byte) (bool, error) {
	if isZeroAddress(addr) || addr == ModuleAddress {
		return false, nil
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return false, err
	}
	return !acc.IsProgram(), nil
}

func (e *Engine) loadPlatform() (*PlatformConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, ok, err := e.state.CoffeePlatformGet()
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, ErrPlatformNotInitialized
	}
	return cfg, nil
}

// loadAuthorized returns the platform configuration after checking that caller
// is the stored authority.
func (e *Engine) loadAuthorized(caller [20]byte) (*PlatformConfig, error) {
	cfg, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Authority {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

// Platform returns the current platform configuration.
func (e *Engine) Platform() (*PlatformConfig, error) {
	cfg, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Discount returns the discount registered for creator, if any.
func (e *Engine) Discount(creator [20]byte) (*CreatorDiscount, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	discount, ok, err := e.state.CoffeeDiscountGet(creator)
	if err != nil || !ok || discount == nil {
		return nil, false, err
	}
	return discount.Clone(), true, nil
}

// InitializePlatform creates the platform singleton with authority as its sole
// administrator.
func (e *Engine) InitializePlatform(authority, feeDestination [20]byte, feePercentage uint64) (*PlatformConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, ok, err := e.state.CoffeePlatformGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrPlatformInitialized
	}
	if isZeroAddress(authority) {
		return nil, ErrUnauthorized
	}
	eoa, err := e.externallyOwned(feeDestination)
	if err != nil {
		return nil, err
	}
	if !eoa {
		return nil, ErrInvalidFeeDestination
	}
	if err := e.validatePlatformFee(feePercentage); err != nil {
		return nil, err
	}
	cfg := &PlatformConfig{
		Authority:      authority,
		FeeDestination: feeDestination,
		FeePercentage:  feePercentage,
	}
	if err := e.state.CoffeePlatformCreate(cfg); err != nil {
		return nil, err
	}
	e.emit(events.PlatformInitialized{
		Authority:      cfg.Authority,
		FeeDestination: cfg.FeeDestination,
		FeePercentage:  cfg.FeePercentage,
	})
	return cfg.Clone(), nil
}

// UpdateFee replaces the platform default fee percentage.
func (e *Engine) UpdateFee(caller [20]byte, newPercentage uint64) (*PlatformConfig, error) {
	cfg, err := e.loadAuthorized(caller)
	if err != nil {
		return nil, err
	}
	if err := e.validatePlatformFee(newPercentage); err != nil {
		return nil, err
	}
	old := cfg.FeePercentage
	cfg.FeePercentage = newPercentage
	if err := e.state.CoffeePlatformPut(cfg); err != nil {
		return nil, err
	}
	e.emit(events.FeeUpdated{Authority: caller, OldPercentage: old, NewPercentage: newPercentage})
	return cfg.Clone(), nil
}

// UpdateFeeDestination redirects the platform cut to a new externally-owned
// account.
func (e *Engine) UpdateFeeDestination(caller, newDestination [20]byte) (*PlatformConfig, error) {
	cfg, err := e.loadAuthorized(caller)
	if err != nil {
		return nil, err
	}
	eoa, err := e.externallyOwned(newDestination)
	if err != nil {
		return nil, err
	}
	if !eoa {
		return nil, ErrInvalidFeeDestination
	}
	old := cfg.FeeDestination
	cfg.FeeDestination = newDestination
	if err := e.state.CoffeePlatformPut(cfg); err != nil {
		return nil, err
	}
	e.emit(events.FeeDestinationUpdated{Authority: caller, OldDestination: old, NewDestination: newDestination})
	return cfg.Clone(), nil
}

// AddDiscount registers a fee override for creator. A second registration for
// the same creator fails and leaves the first record untouched.
func (e *Engine) AddDiscount(caller, creator [20]byte, feePercentage uint64) (*CreatorDiscount, error) {
	if _, err := e.loadAuthorized(caller); err != nil {
		return nil, err
	}
	if isZeroAddress(creator) {
		return nil, ErrInvalidDiscount
	}
	if _, ok, err := e.state.CoffeeDiscountGet(creator); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDiscountExists
	}
	if err := validateDiscountFee(feePercentage); err != nil {
		return nil, err
	}
	discount := &CreatorDiscount{
		Creator:       creator,
		FeePercentage: feePercentage,
		Deposit:       e.discountDeposit,
	}
	if discount.Deposit > 0 {
		if err := e.ledger().Transfer(caller, ModuleAddress, discount.Deposit); err != nil {
			return nil, fmt.Errorf("escrow discount deposit: %w", err)
		}
	}
	if err := e.state.CoffeeDiscountCreate(discount); err != nil {
		return nil, err
	}
	e.emit(events.DiscountAdded{Creator: creator, FeePercentage: feePercentage})
	return discount.Clone(), nil
}

// UpdateDiscount changes the rate of an existing creator discount in place.
func (e *Engine) UpdateDiscount(caller, creator [20]byte, newPercentage uint64) (*CreatorDiscount, error) {
	if _, err := e.loadAuthorized(caller); err != nil {
		return nil, err
	}
	discount, ok, err := e.state.CoffeeDiscountGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || discount == nil {
		return nil, ErrDiscountNotFound
	}
	if err := validateDiscountFee(newPercentage); err != nil {
		return nil, err
	}
	old := discount.FeePercentage
	discount.FeePercentage = newPercentage
	if err := e.state.CoffeeDiscountPut(discount); err != nil {
		return nil, err
	}
	e.emit(events.DiscountUpdated{Creator: creator, OldPercentage: old, NewPercentage: newPercentage})
	return discount.Clone(), nil
}

// RemoveDiscount destroys the discount for creator and refunds its deposit to
// the authority. Later purchases fall back to the platform default.
func (e *Engine) RemoveDiscount(caller, creator [20]byte) (*CreatorDiscount, error) {
	if _, err := e.loadAuthorized(caller); err != nil {
		return nil, err
	}
	discount, ok, err := e.state.CoffeeDiscountGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || discount == nil {
		return nil, ErrDiscountNotFound
	}
	if err := e.state.CoffeeDiscountDelete(creator); err != nil {
		return nil, err
	}
	if discount.Deposit > 0 {
		if err := e.ledger().Transfer(ModuleAddress, caller, discount.Deposit); err != nil {
			return nil, fmt.Errorf("refund discount deposit: %w", err)
		}
	}
	e.emit(events.DiscountRemoved{Creator: creator, Refunded: discount.Deposit, Refundee: caller})
	return discount.Clone(), nil
}

// overrideFor loads the override that applies to purchases from creator. An
// explicit reference must name the creator's own discount record.
func (e *Engine) overrideFor(creator [20]byte, ref *[32]byte) (FeeOverride, error) {
	if ref != nil && *ref != CreatorDiscountKey(creator) {
		return nil, ErrInvalidDiscount
	}
	discount, ok, err := e.state.CoffeeDiscountGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || discount == nil {
		if ref != nil {
			return nil, ErrDiscountNotFound
		}
		return NoOverride{}, nil
	}
	if discount.Creator != creator {
		return nil, ErrInvalidDiscount
	}
	return Override{Discount: *discount}, nil
}

func (e *Engine) price(cfg *PlatformConfig, creator [20]byte, ref *[32]byte, units, unitPrice uint64) (Resolution, Split, error) {
	if units == 0 {
		return Resolution{}, Split{}, ErrInvalidUnits
	}
	if unitPrice == 0 {
		return Resolution{}, Split{}, ErrInvalidUnitPrice
	}
	override, err := e.overrideFor(creator, ref)
	if err != nil {
		return Resolution{}, Split{}, err
	}
	resolution, err := ResolveFee(cfg.FeePercentage, override)
	if err != nil {
		return Resolution{}, Split{}, err
	}
	split, err := ComputeSplit(units, unitPrice, resolution.FeePercentage)
	if err != nil {
		return Resolution{}, Split{}, err
	}
	return resolution, split, nil
}

// QuoteCoffee previews the fee resolution and split of a purchase without
// moving any funds.
func (e *Engine) QuoteCoffee(creator [20]byte, units, unitPrice uint64) (*Quote, error) {
	cfg, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	resolution, split, err := e.price(cfg, creator, nil, units, unitPrice)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Creator:       creator,
		Units:         units,
		UnitPrice:     unitPrice,
		FeePercentage: resolution.FeePercentage,
		FeeSource:     resolution.Source,
		Total:         split.Total,
		Fee:           split.Fee,
		CreatorAmount: split.CreatorAmount,
	}, nil
}

// BuyCoffee charges the contributor for units at unitPrice, sending the fee
// to the platform fee destination and the remainder to the creator. The two
// transfers only become visible when the enclosing state transaction commits.
func (e *Engine) BuyCoffee(req BuyRequest) (*Receipt, error) {
	cfg, err := e.loadPlatform()
	if err != nil {
		return nil, err
	}
	if req.Units == 0 {
		return nil, ErrInvalidUnits
	}
	if req.UnitPrice == 0 {
		return nil, ErrInvalidUnitPrice
	}
	if req.FeeDestination != cfg.FeeDestination {
		return nil, ErrInvalidFeeDestination
	}
	resolution, split, err := e.price(cfg, req.Creator, req.DiscountRef, req.Units, req.UnitPrice)
	if err != nil {
		return nil, err
	}
	ledger := e.ledger()
	if err := ledger.Transfer(req.Contributor, cfg.FeeDestination, split.Fee); err != nil {
		return nil, fmt.Errorf("transfer platform fee: %w", err)
	}
	if err := ledger.Transfer(req.Contributor, req.Creator, split.CreatorAmount); err != nil {
		return nil, fmt.Errorf("transfer creator amount: %w", err)
	}
	id, err := receiptID(req)
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{
		ID:             id,
		Contributor:    req.Contributor,
		Creator:        req.Creator,
		FeeDestination: cfg.FeeDestination,
		Units:          req.Units,
		UnitPrice:      req.UnitPrice,
		FeePercentage:  resolution.FeePercentage,
		FeeSource:      resolution.Source,
		Total:          split.Total,
		Fee:            split.Fee,
		CreatorAmount:  split.CreatorAmount,
		PurchasedAt:    e.now(),
	}
	e.emit(events.CoffeePurchased{
		ReceiptID:      receipt.ID,
		Contributor:    receipt.Contributor,
		Creator:        receipt.Creator,
		FeeDestination: receipt.FeeDestination,
		Units:          receipt.Units,
		UnitPrice:      receipt.UnitPrice,
		FeePercentage:  receipt.FeePercentage,
		FeeSource:      string(receipt.FeeSource),
		Total:          receipt.Total,
		Fee:            receipt.Fee,
		CreatorAmount:  receipt.CreatorAmount,
		PurchasedAt:    receipt.PurchasedAt,
	})
	return receipt, nil
}

type receiptPreimage struct {
	Contributor [20]byte
	Creator     [20]byte
	Nonce       uint64
	Units       uint64
	UnitPrice   uint64
}

func receiptID(req BuyRequest) ([32]byte, error) {
	encoded, err := rlp.EncodeToBytes(receiptPreimage{
		Contributor: req.Contributor,
		Creator:     req.Creator,
		Nonce:       req.Nonce,
		Units:       req.Units,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(encoded), nil
}
