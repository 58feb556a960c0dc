package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cryptocoffee/core/types"
)

type recorder struct{ got []string }

func (r *recorder) Emit(evt Event) { r.got = append(r.got, evt.EventType()) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(FeeUpdated{NewPercentage: 5})
	buf.Emit(nil)
	buf.Emit(DiscountAdded{FeePercentage: 1})
	require.Len(t, buf.Events(), 2)

	rec := &recorder{}
	buf.Flush(rec)
	require.Equal(t, []string{TypeFeeUpdated, TypeDiscountAdded}, rec.got)
	require.Empty(t, buf.Events())
}

func TestBufferDiscard(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(FeeUpdated{})
	buf.Discard()
	rec := &recorder{}
	buf.Flush(rec)
	require.Empty(t, rec.got)
}

func TestMultiEmitterSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	MultiEmitter{a, nil, b}.Emit(DiscountRemoved{})
	require.Equal(t, []string{TypeDiscountRemoved}, a.got)
	require.Equal(t, []string{TypeDiscountRemoved}, b.got)
}

func TestCoffeePurchasedAttributes(t *testing.T) {
	var contributor, creator [20]byte
	contributor[19] = 1
	creator[19] = 2
	evt := CoffeePurchased{
		Contributor:   contributor,
		Creator:       creator,
		Units:         3,
		UnitPrice:     100,
		FeePercentage: 10,
		FeeSource:     "platform",
		Total:         300,
		Fee:           30,
		CreatorAmount: 270,
	}.Event()
	require.Equal(t, TypeCoffeePurchased, evt.Type)
	require.Equal(t, "300", evt.Attributes["total"])
	require.Equal(t, "30", evt.Attributes["fee"])
	require.Equal(t, "270", evt.Attributes["creatorAmount"])
	require.Equal(t, "platform", evt.Attributes["feeSource"])
	require.Contains(t, evt.Attributes["contributor"], "coffee1")
	require.Len(t, evt.Attributes["receiptId"], 66)
}

func TestEventCloneIsIndependent(t *testing.T) {
	evt := &types.Event{Type: "x", Attributes: map[string]string{"a": "1"}}
	clone := evt.Clone()
	clone.Attributes["a"] = "2"
	require.Equal(t, "1", evt.Attributes["a"])
}
