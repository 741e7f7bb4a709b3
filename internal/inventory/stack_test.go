package inventory

import "testing"

type testStackItem struct {
	id  int64
	qty int
}

type testStackAdapter struct {
	maxStack int
}

func newTestStackAdapter(maxStack int) *testStackAdapter {
	return &testStackAdapter{maxStack: maxStack}
}

func (a *testStackAdapter) ID(item *testStackItem) int64          { return item.id }
func (a *testStackAdapter) IsUnique(id int64) bool                { return false }
func (a *testStackAdapter) OnAdd(item *testStackItem, slot int)    {}
func (a *testStackAdapter) OnRemove(item *testStackItem, slot int) {}
func (a *testStackAdapter) OnUpdate(item *testStackItem, slot int) {}
func (a *testStackAdapter) OnSwap(x, y int)                        {}
func (a *testStackAdapter) Quantity(item *testStackItem) int       { return item.qty }
func (a *testStackAdapter) SetQuantity(item *testStackItem, qty int) { item.qty = qty }
func (a *testStackAdapter) MaxStackSize(item *testStackItem) int   { return a.maxStack }
func (a *testStackAdapter) NewStack(id int64, qty int) *testStackItem {
	return &testStackItem{id: id, qty: qty}
}
func (a *testStackAdapter) OnQuantityChange(item *testStackItem, slot int) {}

func TestTryAddStackOpensNewSlotWhenNoExistingStack(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(99), 4)
	if err := si.TryAddStack(100, 10); err != nil {
		t.Fatal(err)
	}
	if got := si.QuantityByID(100); got != 10 {
		t.Fatalf("want 10, got %d", got)
	}
}

func TestTryAddStackFillsExistingBeforeOpeningNewSlot(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.TryAddStack(100, 8)
	if err := si.TryAddStack(100, 2); err != nil {
		t.Fatal(err)
	}
	if si.Len() != 1 {
		t.Fatalf("want single stack after fill, got %d slots", si.Len())
	}
	if got := si.QuantityByID(100); got != 10 {
		t.Fatalf("want 10, got %d", got)
	}
}

// Scenario 1 from spec §8: stack split — adding more than max_stack_size
// spills into a second slot.
func TestTryAddStackSpillsIntoSecondSlot(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	if err := si.TryAddStack(100, 15); err != nil {
		t.Fatal(err)
	}
	if si.Len() != 2 {
		t.Fatalf("want 2 slots after spillover, got %d", si.Len())
	}
	if got := si.QuantityByID(100); got != 15 {
		t.Fatalf("want total 15, got %d", got)
	}
}

func TestTryAddStackFailsWhenFullAndNoExistingStack(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 1)
	si.TryAddStack(200, 10)
	if err := si.TryAddStack(300, 1); err != ErrFull {
		t.Fatalf("want ErrFull, got %v", err)
	}
}

// Scenario 2 from spec §8: stack merge — moving a partial stack onto a
// same-id destination stack merges rather than swapping.
func TestMoveMergesSameIDStacks(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 4})
	si.Inventory().Set(1, &testStackItem{id: 5, qty: 3})

	if err := si.Move(0, 1, nil); err != nil {
		t.Fatal(err)
	}
	if si.Inventory().Get(0) != nil {
		t.Fatal("source slot should be emptied by a complete merge-move")
	}
	if got := si.Inventory().Get(1).qty; got != 7 {
		t.Fatalf("want merged quantity 7, got %d", got)
	}
}

func TestMoveMergeBoundedByDestinationCapacity(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 4})
	si.Inventory().Set(1, &testStackItem{id: 5, qty: 8})

	if err := si.Move(0, 1, nil); err != nil {
		t.Fatal(err)
	}
	if si.Inventory().Get(1).qty != 10 {
		t.Fatalf("want destination capped at 10, got %d", si.Inventory().Get(1).qty)
	}
	if src := si.Inventory().Get(0); src == nil || src.qty != 2 {
		t.Fatalf("want 2 left behind in source, got %v", src)
	}
}

func TestMoveSplitsPartialQuantityOntoEmptySlot(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 10})

	qty := 3
	if err := si.Move(0, 1, &qty); err != nil {
		t.Fatal(err)
	}
	if si.Inventory().Get(0).qty != 7 {
		t.Fatalf("want 7 left in source, got %d", si.Inventory().Get(0).qty)
	}
	if si.Inventory().Get(1).qty != 3 {
		t.Fatalf("want 3 in new split slot, got %d", si.Inventory().Get(1).qty)
	}
}

func TestMoveSwapsWholeSlotsWhenIDsDiffer(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 10})
	si.Inventory().Set(1, &testStackItem{id: 6, qty: 4})

	if err := si.Move(0, 1, nil); err != nil {
		t.Fatal(err)
	}
	if si.Inventory().Get(0).id != 6 || si.Inventory().Get(1).id != 5 {
		t.Fatal("differing ids should swap whole slots")
	}
}

// TryTakeByID is transactional: a request exceeding total availability
// fails before mutating any slot (resolves the open take_items rollback
// question).
func TestTryTakeByIDIsTransactional(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 4})
	si.Inventory().Set(1, &testStackItem{id: 5, qty: 3})

	if err := si.TryTakeByID(5, 100); err != ErrInsufficientItems {
		t.Fatalf("want ErrInsufficientItems, got %v", err)
	}
	if got := si.QuantityByID(5); got != 7 {
		t.Fatalf("failed take must not mutate any slot, want 7 got %d", got)
	}
}

func TestTryTakeByIDDebitsAcrossStacksAndRemovesEmptied(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 4})
	si.Inventory().Set(1, &testStackItem{id: 5, qty: 3})

	if err := si.TryTakeByID(5, 6); err != nil {
		t.Fatal(err)
	}
	if got := si.QuantityByID(5); got != 1 {
		t.Fatalf("want 1 remaining, got %d", got)
	}
	if si.Inventory().Get(0) != nil {
		t.Fatal("first stack should have been fully emptied and removed")
	}
}

func TestTryTakeAllByIDReturnsTotalRemoved(t *testing.T) {
	si := NewStack[testStackItem, int](newTestStackAdapter(10), 4)
	si.Inventory().Set(0, &testStackItem{id: 5, qty: 4})
	si.Inventory().Set(1, &testStackItem{id: 5, qty: 3})

	if got := si.TryTakeAllByID(5); got != 7 {
		t.Fatalf("want 7, got %d", got)
	}
	if si.QuantityByID(5) != 0 {
		t.Fatal("all stacks of id should be gone")
	}
}
