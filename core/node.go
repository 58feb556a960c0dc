package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptocoffee/core/events"
	"cryptocoffee/core/genesis"
	"cryptocoffee/core/state"
	"cryptocoffee/core/types"
	"cryptocoffee/native/coffee"
	"cryptocoffee/observability/metrics"
	"cryptocoffee/storage"
)

var (
	// ErrInvalidNonce is returned when a signed request does not carry the
	// caller's next nonce.
	ErrInvalidNonce = errors.New("core: invalid nonce")
	// ErrGenesisRequired is returned when an empty database is opened without
	// a genesis spec.
	ErrGenesisRequired = errors.New("core: genesis spec required for empty state")
	// ErrChainIDMismatch is returned when the stored chain differs from the
	// configured one.
	ErrChainIDMismatch = errors.New("core: chain id mismatch")
)

// ErrorCode extends coffee.ErrorCode with node level failures.
func ErrorCode(err error) string {
	if errors.Is(err, ErrInvalidNonce) {
		return "InvalidNonce"
	}
	return coffee.ErrorCode(err)
}

// Options configures a Node.
type Options struct {
	FeePolicy coffee.FeePolicy
	Logger    *slog.Logger
	// Now overrides the clock used for receipts and notifications.
	Now func() time.Time
}

// Node is the central controller. It serialises every operation, runs it in a
// single state transaction and publishes the resulting notifications once the
// transaction has committed.
type Node struct {
	db      storage.Database
	state   *state.Manager
	policy  coffee.FeePolicy
	logger  *slog.Logger
	metrics *metrics.CoffeeMetrics
	now     func() time.Time

	stateMu         sync.Mutex
	chainID         uint64
	discountDeposit uint64

	streamMu      sync.Mutex
	streamSeq     uint64
	streamNextID  uint64
	streamSubs    map[uint64]chan Notification
	streamHistory []Notification
}

// NewNode opens the ledger over db. When the database has never seen genesis,
// spec is applied; otherwise spec (if given) must name the stored chain.
func NewNode(db storage.Database, spec *genesis.GenesisSpec, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	n := &Node{
		db:      db,
		state:   state.NewManager(db),
		policy:  opts.FeePolicy,
		logger:  logger.With("component", "node"),
		metrics: metrics.Coffee(),
		now:     now,
	}
	if err := n.initGenesis(spec); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) initGenesis(spec *genesis.GenesisSpec) error {
	var params *genesis.Params
	err := n.state.View(func(txn *state.Txn) error {
		stored, ok, err := genesis.LoadParams(txn)
		if ok {
			params = stored
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("load genesis params: %w", err)
	}
	if params != nil {
		if spec != nil && spec.ChainID != params.ChainID {
			return fmt.Errorf("%w: stored %d, genesis %d", ErrChainIDMismatch, params.ChainID, spec.ChainID)
		}
	} else {
		if spec == nil {
			return ErrGenesisRequired
		}
		err := n.state.Update(func(txn *state.Txn) error {
			applied, err := genesis.Apply(spec, txn, n.policy)
			params = applied
			return err
		})
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		n.logger.Info("genesis applied", "chainId", params.ChainID, "accounts", len(spec.Accounts), "discounts", len(spec.Discounts))
	}
	n.chainID = params.ChainID
	n.discountDeposit = params.DiscountDeposit
	return nil
}

// ChainID returns the chain identifier signatures are bound to.
func (n *Node) ChainID() uint64 { return n.chainID }

// DiscountDeposit returns the amount escrowed per discount record.
func (n *Node) DiscountDeposit() uint64 { return n.discountDeposit }

func (n *Node) newEngine(txn *state.Txn, emitter events.Emitter) *coffee.Engine {
	engine := coffee.NewEngine()
	engine.SetState(txn)
	engine.SetEmitter(emitter)
	engine.SetFeePolicy(n.policy)
	engine.SetDiscountDeposit(n.discountDeposit)
	engine.SetNowFunc(func() int64 { return n.now().Unix() })
	return engine
}

// mutate runs fn inside one transaction after consuming the caller's nonce.
// The nonce bump, every record write and every transfer commit together or
// not at all.
func (n *Node) mutate(operation string, caller [20]byte, nonce uint64, fn func(*coffee.Engine) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	buffer := &events.Buffer{}
	txn := n.state.Begin()
	err := func() error {
		acc, err := txn.GetAccount(caller[:])
		if err != nil {
			return err
		}
		if nonce != acc.Nonce+1 {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, acc.Nonce+1, nonce)
		}
		acc.Nonce = nonce
		if err := txn.PutAccount(caller[:], acc); err != nil {
			return err
		}
		return fn(n.newEngine(txn, buffer))
	}()
	if err == nil {
		err = txn.Commit()
	} else {
		txn.Discard()
	}
	if err != nil {
		buffer.Discard()
		code := ErrorCode(err)
		n.metrics.ObserveRejected(operation, code)
		n.logger.Warn("operation rejected", "operation", operation, "code", code, "error", err)
		return err
	}
	buffer.Flush(nodeEmitter{node: n})
	n.logger.Info("operation committed", "operation", operation, "nonce", nonce)
	return nil
}

func (n *Node) view(fn func(*coffee.Engine, *state.Txn) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.View(func(txn *state.Txn) error {
		return fn(n.newEngine(txn, events.NoopEmitter{}), txn)
	})
}

// InitializePlatform creates the platform configuration with caller as its
// authority.
func (n *Node) InitializePlatform(caller [20]byte, nonce uint64, feeDestination [20]byte, feePercentage uint64) (*coffee.PlatformConfig, error) {
	var cfg *coffee.PlatformConfig
	err := n.mutate("initializePlatform", caller, nonce, func(engine *coffee.Engine) error {
		var err error
		cfg, err = engine.InitializePlatform(caller, feeDestination, feePercentage)
		return err
	})
	return cfg, err
}

// UpdateFee changes the platform default fee.
func (n *Node) UpdateFee(caller [20]byte, nonce uint64, feePercentage uint64) (*coffee.PlatformConfig, error) {
	var cfg *coffee.PlatformConfig
	err := n.mutate("updateFee", caller, nonce, func(engine *coffee.Engine) error {
		var err error
		cfg, err = engine.UpdateFee(caller, feePercentage)
		return err
	})
	return cfg, err
}

// UpdateFeeDestination changes where platform fees are paid.
func (n *Node) UpdateFeeDestination(caller [20]byte, nonce uint64, destination [20]byte) (*coffee.PlatformConfig, error) {
	var cfg *coffee.PlatformConfig
	err := n.mutate("updateFeeDestination", caller, nonce, func(engine *coffee.Engine) error {
		var err error
		cfg, err = engine.UpdateFeeDestination(caller, destination)
		return err
	})
	return cfg, err
}

func (n *Node) AddCreatorDiscount(caller [20]byte, nonce uint64, creator [20]byte, feePercentage uint64) (*coffee.CreatorDiscount, error) {
	var discount *coffee.CreatorDiscount
	err := n.mutate("addCreatorDiscount", caller, nonce, func(engine *coffee.Engine) error {
		var err error
		discount, err = engine.AddDiscount(caller, creator, feePercentage)
		return err
	})
	return discount, err
}

func (n *Node) UpdateCreatorDiscount(caller [20]byte, nonce uint64, creator [20]byte, feePercentage uint64) (*coffee.CreatorDiscount, error) {
	var discount *coffee.CreatorDiscount
	err := n.mutate("updateCreatorDiscount", caller, nonce, func(engine *coffee.Engine) error {
		var err error
		discount, err = engine.UpdateDiscount(caller, creator, feePercentage)
		return err
	})
	return discount, err
}

func (n *Node) RemoveCreatorDiscount(caller [20]byte, nonce uint64, creator [20]byte) (*coffee.CreatorDiscount, error) {
	var discount *coffee.CreatorDiscount
	err := n.mutate("removeCreatorDiscount", caller, nonce, func(engine *coffee.Engine) error {
		var err error
		discount, err = engine.RemoveDiscount(caller, creator)
		return err
	})
	return discount, err
}

// BuyCoffee executes a purchase on behalf of the authenticated contributor in
// req. The request nonce is consumed on success.
func (n *Node) BuyCoffee(req coffee.BuyRequest) (*coffee.Receipt, error) {
	var receipt *coffee.Receipt
	err := n.mutate("buyCoffee", req.Contributor, req.Nonce, func(engine *coffee.Engine) error {
		var err error
		receipt, err = engine.BuyCoffee(req)
		return err
	})
	return receipt, err
}

// QuoteCoffee previews a purchase against committed state.
func (n *Node) QuoteCoffee(creator [20]byte, units, unitPrice uint64) (*coffee.Quote, error) {
	var quote *coffee.Quote
	err := n.view(func(engine *coffee.Engine, _ *state.Txn) error {
		var err error
		quote, err = engine.QuoteCoffee(creator, units, unitPrice)
		return err
	})
	return quote, err
}

// Platform returns the committed platform configuration.
func (n *Node) Platform() (*coffee.PlatformConfig, error) {
	var cfg *coffee.PlatformConfig
	err := n.view(func(engine *coffee.Engine, _ *state.Txn) error {
		var err error
		cfg, err = engine.Platform()
		return err
	})
	return cfg, err
}

// CreatorDiscount returns the committed discount for creator.
func (n *Node) CreatorDiscount(creator [20]byte) (*coffee.CreatorDiscount, bool, error) {
	var (
		discount *coffee.CreatorDiscount
		found    bool
	)
	err := n.view(func(engine *coffee.Engine, _ *state.Txn) error {
		var err error
		discount, found, err = engine.Discount(creator)
		return err
	})
	return discount, found, err
}

// Account returns the committed account record for addr.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	var acc *types.Account
	err := n.view(func(_ *coffee.Engine, txn *state.Txn) error {
		var err error
		acc, err = txn.GetAccount(addr[:])
		return err
	})
	return acc, err
}

// nodeEmitter receives committed events, records them and feeds the stream.
type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	e.node.observe(evt)
	e.node.publish(evt)
}

func (n *Node) observe(evt events.Event) {
	switch ev := evt.(type) {
	case events.CoffeePurchased:
		n.metrics.ObservePurchase(ev.FeeSource, ev.Total, ev.Fee, ev.CreatorAmount)
	case events.Transfer:
		n.metrics.ObserveTransfer()
	case events.PlatformInitialized:
		n.metrics.ObserveConfigMutation("platform_initialized")
	case events.FeeUpdated:
		n.metrics.ObserveConfigMutation("fee")
	case events.FeeDestinationUpdated:
		n.metrics.ObserveConfigMutation("fee_destination")
	case events.DiscountAdded:
		n.metrics.ObserveConfigMutation("discount_added")
		n.metrics.DiscountAdded()
	case events.DiscountUpdated:
		n.metrics.ObserveConfigMutation("discount_updated")
	case events.DiscountRemoved:
		n.metrics.ObserveConfigMutation("discount_removed")
		n.metrics.DiscountRemoved()
	}
}
