package inventory

import "testing"

type testItem struct {
	id  int64
	tag string
}

type testAdapter struct {
	uniqueIDs map[int64]bool
	adds      int
	removes   int
	swaps     int
}

func newTestAdapter() *testAdapter {
	return &testAdapter{uniqueIDs: map[int64]bool{}}
}

func (a *testAdapter) ID(item *testItem) int64       { return item.id }
func (a *testAdapter) IsUnique(id int64) bool        { return a.uniqueIDs[id] }
func (a *testAdapter) OnAdd(item *testItem, slot int) { a.adds++ }
func (a *testAdapter) OnRemove(item *testItem, slot int) { a.removes++ }
func (a *testAdapter) OnUpdate(item *testItem, slot int) {}
func (a *testAdapter) OnSwap(x, y int)                { a.swaps++ }

func TestAddFindsFirstFreeSlot(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 3)
	s0, err := inv.Add(&testItem{id: 1})
	if err != nil || s0 != 0 {
		t.Fatalf("want slot 0, got %d err=%v", s0, err)
	}
	s1, err := inv.Add(&testItem{id: 2})
	if err != nil || s1 != 1 {
		t.Fatalf("want slot 1, got %d err=%v", s1, err)
	}
}

func TestAddFailsWhenFull(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 1)
	if _, err := inv.Add(&testItem{id: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Add(&testItem{id: 2}); err != ErrFull {
		t.Fatalf("want ErrFull, got %v", err)
	}
}

func TestAddRejectsUniqueConflict(t *testing.T) {
	a := newTestAdapter()
	a.uniqueIDs[5] = true
	inv := New[testItem, int](a, 4)
	if _, err := inv.Add(&testItem{id: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Add(&testItem{id: 5}); err != ErrUniqueConflict {
		t.Fatalf("want ErrUniqueConflict, got %v", err)
	}
}

func TestSetRejectsOccupiedSlot(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 2)
	if err := inv.Set(0, &testItem{id: 1}); err != nil {
		t.Fatal(err)
	}
	if err := inv.Set(0, &testItem{id: 2}); err != ErrSlotFull {
		t.Fatalf("want ErrSlotFull, got %v", err)
	}
}

func TestRemoveClearsSlotAndIndex(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 2)
	slot, _ := inv.Add(&testItem{id: 7})
	item, err := inv.Remove(slot)
	if err != nil || item.id != 7 {
		t.Fatalf("unexpected remove result: %v %v", item, err)
	}
	if inv.ContainsID(7) {
		t.Fatal("id should no longer be indexed after remove")
	}
	if _, err := inv.Remove(slot); err != ErrEmptySlot {
		t.Fatalf("want ErrEmptySlot on double remove, got %v", err)
	}
}

func TestSwapExchangesContentsAndIndex(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 2)
	inv.Set(0, &testItem{id: 1})
	inv.Set(1, &testItem{id: 2})

	if err := inv.Swap(0, 1); err != nil {
		t.Fatal(err)
	}
	if inv.Get(0).id != 2 || inv.Get(1).id != 1 {
		t.Fatalf("contents not swapped: %v %v", inv.Get(0), inv.Get(1))
	}
	if slots := inv.SlotsByID(2); len(slots) != 1 || slots[0] != 0 {
		t.Fatalf("index for id 2 should point at slot 0, got %v", slots)
	}
	if slots := inv.SlotsByID(1); len(slots) != 1 || slots[0] != 1 {
		t.Fatalf("index for id 1 should point at slot 1, got %v", slots)
	}
}

// Round-trip law: swap(a,b); swap(a,b) is a no-op.
func TestDoubleSwapIsNoOp(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 2)
	inv.Set(0, &testItem{id: 1})
	inv.Set(1, &testItem{id: 2})

	inv.Swap(0, 1)
	inv.Swap(0, 1)

	if inv.Get(0).id != 1 || inv.Get(1).id != 2 {
		t.Fatalf("double swap should restore original layout, got %v %v", inv.Get(0), inv.Get(1))
	}
	if slots := inv.SlotsByID(1); len(slots) != 1 || slots[0] != 0 {
		t.Fatalf("index for id 1 should be back at slot 0, got %v", slots)
	}
}

func TestSwapWithEmptySlot(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 2)
	inv.Set(0, &testItem{id: 1})

	if err := inv.Swap(0, 1); err != nil {
		t.Fatal(err)
	}
	if inv.Get(0) != nil {
		t.Fatal("slot 0 should be empty after swap with empty slot 1")
	}
	if inv.Get(1) == nil || inv.Get(1).id != 1 {
		t.Fatal("item should have moved to slot 1")
	}
	if slots := inv.SlotsByID(1); len(slots) != 1 || slots[0] != 1 {
		t.Fatalf("index should track the move, got %v", slots)
	}
}

// Invariant: the secondary id-index always agrees with a linear scan.
func TestIndexAgreesWithLinearScan(t *testing.T) {
	inv := New[testItem, int](newTestAdapter(), 4)
	inv.Set(0, &testItem{id: 9})
	inv.Set(2, &testItem{id: 9})
	inv.Swap(0, 3)
	inv.Remove(2)

	want := map[int]bool{}
	inv.Items(func(slot int, item *testItem) {
		if item.id == 9 {
			want[slot] = true
		}
	})
	got := map[int]bool{}
	for _, s := range inv.SlotsByID(9) {
		got[s] = true
	}
	if len(want) != len(got) {
		t.Fatalf("index/scan disagree: scan=%v index=%v", want, got)
	}
	for s := range want {
		if !got[s] {
			t.Fatalf("index missing slot %d held by linear scan", s)
		}
	}
}

func TestUpdateNotifiesWithoutMoving(t *testing.T) {
	a := newTestAdapter()
	inv := New[testItem, int](a, 2)
	inv.Set(0, &testItem{id: 1})
	before := a.adds
	inv.Update(0)
	if a.adds != before {
		t.Fatal("Update must not fire OnAdd")
	}
	if inv.Get(0) == nil {
		t.Fatal("item should remain in place")
	}
}
