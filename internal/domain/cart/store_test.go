package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/infrastructure/store/mocks"
	"github.com/example/sweetshop-storefront/internal/journal"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOutOfStock = errors.New("out of stock")

// stubGate approves quantities up to a per-product stock level.
type stubGate struct {
	stock map[string]int
	err   error
	calls []gateCall
}

type gateCall struct {
	ProductID string
	Proposed  int
}

func (g *stubGate) CheckCapacity(ctx context.Context, productID string, proposed int) error {
	g.calls = append(g.calls, gateCall{ProductID: productID, Proposed: proposed})
	if g.err != nil {
		return g.err
	}
	if proposed > g.stock[productID] {
		return errOutOfStock
	}
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func product(id string, price string) shopapi.Product {
	return shopapi.Product{
		ID:    id,
		Name:  "Sweet " + id,
		Price: decimal.RequireFromString(price),
		Image: "/images/" + id + ".jpg",
	}
}

func newTestStore(t *testing.T, stock map[string]int) (*Store, *stubGate, *mocks.MockKV, *journal.Recorder) {
	t.Helper()
	gate := &stubGate{stock: stock}
	kv := mocks.NewMockKV(nil)
	rec := &journal.Recorder{}
	s := NewStore(kv, gate, rec, quietLogger())
	require.NoError(t, s.Hydrate(context.Background()))
	return s, gate, kv, rec
}

func assertTotalMatchesLines(t *testing.T, s *Store) {
	t.Helper()
	expected := decimal.Zero
	for _, item := range s.Items() {
		assert.GreaterOrEqual(t, item.Quantity, 1)
		expected = expected.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, expected.Equal(s.Total()), "total %s != %s", s.Total(), expected)
}

// ============================================
// AddOrIncrement
// ============================================

func TestAddOrIncrement_NewLine(t *testing.T) {
	s, gate, _, rec := newTestStore(t, map[string]int{"A": 5})

	err := s.AddOrIncrement(context.Background(), product("A", "10"), 2)

	require.NoError(t, err)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "20", s.Total().String())
	assert.Equal(t, []gateCall{{ProductID: "A", Proposed: 2}}, gate.calls)
	assert.Equal(t, []string{EventItemAdded}, rec.Types())
}

func TestAddOrIncrement_RejectedAtStockLimit(t *testing.T) {
	s, _, kv, rec := newTestStore(t, map[string]int{"A": 2})
	require.NoError(t, s.AddOrIncrement(context.Background(), product("A", "10"), 2))
	writes := len(kv.SetCalls)

	err := s.AddOrIncrement(context.Background(), product("A", "10"), 1)

	assert.ErrorIs(t, err, errOutOfStock)
	assert.Equal(t, 2, s.Quantity("A"))
	assert.Equal(t, "20", s.Total().String())
	assert.Len(t, kv.SetCalls, writes, "rejected mutation must not be persisted")
	assert.Equal(t, []string{EventItemAdded}, rec.Types())
}

func TestAddOrIncrement_GateFailureLeavesStoreUnchanged(t *testing.T) {
	s, gate, _, _ := newTestStore(t, map[string]int{"A": 5})
	require.NoError(t, s.AddOrIncrement(context.Background(), product("A", "10"), 1))
	gate.err = shopapi.ErrUnavailable

	err := s.AddOrIncrement(context.Background(), product("A", "10"), 1)

	assert.ErrorIs(t, err, shopapi.ErrUnavailable)
	assert.Equal(t, 1, s.Quantity("A"))
}

func TestAddOrIncrement_BelowOneIsNoop(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		delta   int
	}{
		{"absent line with zero", 0, 0},
		{"absent line with negative", 0, -3},
		{"decrement to zero", 2, -2},
		{"decrement below zero", 2, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, gate, kv, _ := newTestStore(t, map[string]int{"A": 10})
			if tt.initial > 0 {
				require.NoError(t, s.AddOrIncrement(context.Background(), product("A", "1"), tt.initial))
			}
			calls, writes := len(gate.calls), len(kv.SetCalls)

			err := s.AddOrIncrement(context.Background(), product("A", "1"), tt.delta)

			assert.NoError(t, err)
			assert.Equal(t, tt.initial, s.Quantity("A"))
			assert.Len(t, gate.calls, calls)
			assert.Len(t, kv.SetCalls, writes)
		})
	}
}

func TestAddOrIncrement_DecrementSkipsGate(t *testing.T) {
	s, gate, _, rec := newTestStore(t, map[string]int{"A": 3})
	require.NoError(t, s.AddOrIncrement(context.Background(), product("A", "1.5"), 3))
	gate.stock["A"] = 0

	err := s.AddOrIncrement(context.Background(), product("A", "1.5"), -1)

	require.NoError(t, err)
	assert.Equal(t, 2, s.Quantity("A"))
	assert.Len(t, gate.calls, 1)
	assert.Equal(t, "3", s.Total().String())
	assert.Equal(t, []string{EventItemAdded, EventItemQuantityChanged}, rec.Types())
}

func TestAddOrIncrement_KeepsInsertionOrder(t *testing.T) {
	s, _, _, _ := newTestStore(t, map[string]int{"A": 9, "B": 9, "C": 9})
	ctx := context.Background()

	require.NoError(t, s.AddOrIncrement(ctx, product("B", "1"), 1))
	require.NoError(t, s.AddOrIncrement(ctx, product("A", "1"), 1))
	require.NoError(t, s.AddOrIncrement(ctx, product("C", "1"), 1))
	require.NoError(t, s.AddOrIncrement(ctx, product("B", "1"), 2))

	var ids []string
	for _, item := range s.Items() {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []string{"B", "A", "C"}, ids)
	assert.Equal(t, 5, s.Count())
}

func TestAddOrIncrement_RequiresProductID(t *testing.T) {
	s, _, _, _ := newTestStore(t, nil)

	err := s.AddOrIncrement(context.Background(), shopapi.Product{}, 1)

	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestAddOrIncrement_NetZeroRestoresPriorState(t *testing.T) {
	s, _, _, _ := newTestStore(t, map[string]int{"A": 10, "B": 10})
	ctx := context.Background()
	require.NoError(t, s.AddOrIncrement(ctx, product("A", "2.25"), 3))
	require.NoError(t, s.AddOrIncrement(ctx, product("B", "4"), 1))
	before := s.Items()

	require.NoError(t, s.AddOrIncrement(ctx, product("A", "2.25"), 4))
	require.NoError(t, s.AddOrIncrement(ctx, product("A", "2.25"), -4))

	assert.Equal(t, before, s.Items())
}

func TestAddOrIncrement_RandomSequencesKeepInvariants(t *testing.T) {
	s, _, _, _ := newTestStore(t, map[string]int{"A": 4, "B": 7, "C": 1})
	ctx := context.Background()
	r := rand.New(rand.NewSource(42))
	ids := []string{"A", "B", "C"}
	prices := map[string]string{"A": "0.99", "B": "12.50", "C": "3"}

	for i := 0; i < 300; i++ {
		id := ids[r.Intn(len(ids))]
		if r.Intn(5) == 0 {
			require.NoError(t, s.Remove(ctx, id))
		} else {
			_ = s.AddOrIncrement(ctx, product(id, prices[id]), r.Intn(7)-3)
		}
		assertTotalMatchesLines(t, s)
		seen := make(map[string]bool)
		for _, item := range s.Items() {
			assert.False(t, seen[item.ProductID], "duplicate line for %s", item.ProductID)
			seen[item.ProductID] = true
		}
	}
}

// ============================================
// Remove / Clear
// ============================================

func TestRemove(t *testing.T) {
	s, _, kv, rec := newTestStore(t, map[string]int{"A": 5, "B": 5})
	ctx := context.Background()
	require.NoError(t, s.AddOrIncrement(ctx, product("A", "1"), 1))
	require.NoError(t, s.AddOrIncrement(ctx, product("B", "2"), 2))

	require.NoError(t, s.Remove(ctx, "A"))

	require.Len(t, s.Items(), 1)
	assert.Equal(t, "B", s.Items()[0].ProductID)
	assert.Equal(t, "4", s.Total().String())
	raw, _ := kv.Value(store.KeyCartItems)
	assert.NotContains(t, raw, `"_id":"A"`)
	assert.Equal(t, EventItemRemoved, rec.Types()[len(rec.Types())-1])
}

func TestRemove_MissingLineIsNoop(t *testing.T) {
	s, _, kv, _ := newTestStore(t, nil)

	require.NoError(t, s.Remove(context.Background(), "nope"))

	assert.Empty(t, kv.SetCalls)
}

func TestClear(t *testing.T) {
	s, _, kv, rec := newTestStore(t, map[string]int{"A": 5})
	ctx := context.Background()
	require.NoError(t, s.AddOrIncrement(ctx, product("A", "1"), 3))

	require.NoError(t, s.Clear(ctx))

	assert.True(t, s.IsEmpty())
	assert.True(t, s.Total().IsZero())
	raw, ok := kv.Value(store.KeyCartItems)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, raw)
	assert.Equal(t, EventCartCleared, rec.Types()[len(rec.Types())-1])
}

func TestItems_ReturnsCopy(t *testing.T) {
	s, _, _, _ := newTestStore(t, map[string]int{"A": 5})
	require.NoError(t, s.AddOrIncrement(context.Background(), product("A", "1"), 1))

	items := s.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, s.Quantity("A"))
}

// ============================================
// Persistence
// ============================================

func TestPersistence_RoundTrip(t *testing.T) {
	kv := store.NewMemoryStore()
	gate := &stubGate{stock: map[string]int{"A": 9, "B": 9, "C": 9}}
	ctx := context.Background()

	first := NewStore(kv, gate, nil, quietLogger())
	require.NoError(t, first.Hydrate(ctx))
	require.NoError(t, first.AddOrIncrement(ctx, product("C", "0.10"), 3))
	require.NoError(t, first.AddOrIncrement(ctx, product("A", "7.25"), 1))
	require.NoError(t, first.AddOrIncrement(ctx, product("B", "2"), 2))

	second := NewStore(kv, gate, nil, quietLogger())
	require.NoError(t, second.Hydrate(ctx))

	want, got := first.Items(), second.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Image, got[i].Image)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price))
	}
	assert.True(t, first.Total().Equal(second.Total()))
}

func TestHydrate(t *testing.T) {
	tests := []struct {
		name     string
		stored   map[string]string
		expected []string
	}{
		{"no stored cart", nil, nil},
		{"invalid json", map[string]string{store.KeyCartItems: "{not json"}, nil},
		{"browser format with numeric price", map[string]string{
			store.KeyCartItems: `[{"_id":"A","name":"Fudge","price":2.5,"image":"/a.jpg","qty":2}]`,
		}, []string{"A:2"}},
		{"drops lines below one", map[string]string{
			store.KeyCartItems: `[{"_id":"A","price":1,"qty":0},{"_id":"B","price":1,"qty":1}]`,
		}, []string{"B:1"}},
		{"merges duplicate lines", map[string]string{
			store.KeyCartItems: `[{"_id":"A","price":1,"qty":1},{"_id":"B","price":1,"qty":1},{"_id":"A","price":1,"qty":2}]`,
		}, []string{"A:3", "B:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(mocks.NewMockKV(tt.stored), &stubGate{}, nil, quietLogger())

			require.NoError(t, s.Hydrate(context.Background()))

			var got []string
			for _, item := range s.Items() {
				got = append(got, fmt.Sprintf("%s:%d", item.ProductID, item.Quantity))
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHydrate_StorageFailure(t *testing.T) {
	kv := mocks.NewMockKV(nil)
	kv.GetErr = errors.New("disk on fire")
	s := NewStore(kv, &stubGate{}, nil, quietLogger())

	err := s.Hydrate(context.Background())

	assert.Error(t, err)
	assert.True(t, s.IsEmpty())
}

func TestHydrate_CorruptSealedValueStartsEmpty(t *testing.T) {
	kv := mocks.NewMockKV(nil)
	kv.GetErr = store.ErrCorrupt
	s := NewStore(kv, &stubGate{}, nil, quietLogger())

	assert.NoError(t, s.Hydrate(context.Background()))
	assert.True(t, s.IsEmpty())
}

func TestPersistFailure_KeepsMutationInMemory(t *testing.T) {
	s, _, kv, _ := newTestStore(t, map[string]int{"A": 5})
	kv.SetFailing(errors.New("quota exceeded"))

	err := s.AddOrIncrement(context.Background(), product("A", "1"), 1)

	assert.Error(t, err)
	assert.Equal(t, 1, s.Quantity("A"))

	kv.SetFailing(nil)
	require.NoError(t, s.AddOrIncrement(context.Background(), product("A", "1"), 1))
	raw, _ := kv.Value(store.KeyCartItems)
	assert.Contains(t, raw, `"qty":2`)
}

func TestJournalFailureDoesNotFailMutation(t *testing.T) {
	gate := &stubGate{stock: map[string]int{"A": 5}}
	rec := &journal.Recorder{Err: errors.New("broker down")}
	s := NewStore(store.NewMemoryStore(), gate, rec, quietLogger())

	err := s.AddOrIncrement(context.Background(), product("A", "1"), 1)

	assert.NoError(t, err)
	assert.Equal(t, 1, s.Quantity("A"))
}
