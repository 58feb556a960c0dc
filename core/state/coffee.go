package state

import (
	"errors"

	"cryptocoffee/native/coffee"
)

var coffeePrefix = []byte("coffee:")

func coffeeRecordKey(derived [32]byte) []byte {
	buf := make([]byte, len(coffeePrefix)+len(derived))
	copy(buf, coffeePrefix)
	copy(buf[len(coffeePrefix):], derived[:])
	return buf
}

// CoffeePlatformGet loads the platform singleton.
func (t *Txn) CoffeePlatformGet() (*coffee.PlatformConfig, bool, error) {
	cfg := new(coffee.PlatformConfig)
	ok, err := t.KVGet(coffeeRecordKey(coffee.PlatformStateKey()), cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return cfg, true, nil
}

// CoffeePlatformCreate stores the platform singleton if it does not yet exist.
func (t *Txn) CoffeePlatformCreate(cfg *coffee.PlatformConfig) error {
	err := t.KVCreate(coffeeRecordKey(coffee.PlatformStateKey()), cfg)
	if errors.Is(err, ErrRecordExists) {
		return coffee.ErrPlatformInitialized
	}
	return err
}

// CoffeePlatformPut overwrites the platform singleton.
func (t *Txn) CoffeePlatformPut(cfg *coffee.PlatformConfig) error {
	return t.KVPut(coffeeRecordKey(coffee.PlatformStateKey()), cfg)
}

// CoffeeDiscountGet loads the discount stored for creator.
func (t *Txn) CoffeeDiscountGet(creator [20]byte) (*coffee.CreatorDiscount, bool, error) {
	discount := new(coffee.CreatorDiscount)
	ok, err := t.KVGet(coffeeRecordKey(coffee.CreatorDiscountKey(creator)), discount)
	if err != nil || !ok {
		return nil, false, err
	}
	return discount, true, nil
}

// CoffeeDiscountCreate stores a discount if none exists for its creator.
func (t *Txn) CoffeeDiscountCreate(discount *coffee.CreatorDiscount) error {
	err := t.KVCreate(coffeeRecordKey(coffee.CreatorDiscountKey(discount.Creator)), discount)
	if errors.Is(err, ErrRecordExists) {
		return coffee.ErrDiscountExists
	}
	return err
}

// CoffeeDiscountPut overwrites the discount stored for its creator.
func (t *Txn) CoffeeDiscountPut(discount *coffee.CreatorDiscount) error {
	return t.KVPut(coffeeRecordKey(coffee.CreatorDiscountKey(discount.Creator)), discount)
}

// CoffeeDiscountDelete removes the discount stored for creator.
func (t *Txn) CoffeeDiscountDelete(creator [20]byte) error {
	return t.KVDelete(coffeeRecordKey(coffee.CreatorDiscountKey(creator)))
}
