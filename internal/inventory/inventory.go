// Package inventory implements the slot-array inventory contract from
// spec §3 "Inventory slot" / §4.9: a stable array of capacity C, an
// id→slot-index secondary map, and a pluggable event handler.
package inventory

import "errors"

var (
	ErrUniqueConflict    = errors.New("inventory: unique item conflict")
	ErrFull              = errors.New("inventory: full")
	ErrSlotFull          = errors.New("inventory: slot occupied")
	ErrInvalidSlot       = errors.New("inventory: invalid slot")
	ErrEmptySlot         = errors.New("inventory: empty slot")
	ErrInsufficientItems = errors.New("inventory: insufficient items")
	ErrInvalidMergeID    = errors.New("inventory: invalid merge id")
)

// SlotIndex is any integer-backed slot addressing scheme. Plain inventories
// use int; the equipped inventory uses a typed enum of equip locations.
type SlotIndex interface {
	~int
}

// Adapter bundles everything the generic Inventory needs to know about the
// concrete item type T and slot type S: how to extract an item's identity,
// whether that identity must be unique, and the event hooks. Spec's
// `Item` (id()) and `Handler` (on_add/remove/update/swap, is_unique) are
// folded into one adapter because Go generics have no clean way to attach
// a method to a bare type parameter.
type Adapter[T any, S SlotIndex] interface {
	ID(item *T) int64
	IsUnique(id int64) bool
	OnAdd(item *T, slot S)
	OnRemove(item *T, slot S)
	OnUpdate(item *T, slot S)
	OnSwap(a, b S)
}

// Inventory is a stable array of capacity C plus an id→slots secondary
// index, mutated only through its own methods.
type Inventory[T any, S SlotIndex] struct {
	slots    []*T
	idSlots  map[int64][]S
	adapter  Adapter[T, S]
	capacity int
}

// New creates an empty inventory with the given capacity.
func New[T any, S SlotIndex](adapter Adapter[T, S], capacity int) *Inventory[T, S] {
	return &Inventory[T, S]{
		slots:    make([]*T, capacity),
		idSlots:  make(map[int64][]S),
		adapter:  adapter,
		capacity: capacity,
	}
}

func (inv *Inventory[T, S]) Capacity() int { return inv.capacity }

// Len returns the number of occupied slots.
func (inv *Inventory[T, S]) Len() int {
	n := 0
	for _, s := range inv.slots {
		if s != nil {
			n++
		}
	}
	return n
}

func (inv *Inventory[T, S]) checkSlot(ix int) error {
	if ix < 0 || ix >= inv.capacity {
		return ErrInvalidSlot
	}
	return nil
}

// ContainsID reports whether any slot currently holds an item with this id.
func (inv *Inventory[T, S]) ContainsID(id int64) bool {
	slots, ok := inv.idSlots[id]
	return ok && len(slots) > 0
}

func (inv *Inventory[T, S]) addIndex(id int64, slot S) {
	inv.idSlots[id] = append(inv.idSlots[id], slot)
}

func (inv *Inventory[T, S]) removeIndex(id int64, slot S) {
	list := inv.idSlots[id]
	for i, s := range list {
		if s == slot {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(inv.idSlots, id)
	} else {
		inv.idSlots[id] = list
	}
}

// FindFreeSlot returns the lowest-indexed empty slot, if any.
func (inv *Inventory[T, S]) FindFreeSlot() (S, bool) {
	for i, s := range inv.slots {
		if s == nil {
			return S(i), true
		}
	}
	var zero S
	return zero, false
}

// Add inserts item into the first free slot. Fails with ErrUniqueConflict
// if the adapter marks the id unique and the inventory already holds one,
// or ErrFull if there is no free slot.
func (inv *Inventory[T, S]) Add(item *T) (S, error) {
	var zero S
	id := inv.adapter.ID(item)
	if inv.adapter.IsUnique(id) && inv.ContainsID(id) {
		return zero, ErrUniqueConflict
	}
	slot, ok := inv.FindFreeSlot()
	if !ok {
		return zero, ErrFull
	}
	inv.slots[int(slot)] = item
	inv.addIndex(id, slot)
	inv.adapter.OnAdd(item, slot)
	return slot, nil
}

// Set places item directly into slot, failing if the slot is occupied.
func (inv *Inventory[T, S]) Set(slot S, item *T) error {
	ix := int(slot)
	if err := inv.checkSlot(ix); err != nil {
		return err
	}
	if inv.slots[ix] != nil {
		return ErrSlotFull
	}
	inv.slots[ix] = item
	inv.addIndex(inv.adapter.ID(item), slot)
	inv.adapter.OnAdd(item, slot)
	return nil
}

// Get returns the item at slot, or nil if empty.
func (inv *Inventory[T, S]) Get(slot S) *T {
	ix := int(slot)
	if ix < 0 || ix >= inv.capacity {
		return nil
	}
	return inv.slots[ix]
}

// Remove takes the item out of slot and returns it.
func (inv *Inventory[T, S]) Remove(slot S) (*T, error) {
	ix := int(slot)
	if err := inv.checkSlot(ix); err != nil {
		return nil, err
	}
	item := inv.slots[ix]
	if item == nil {
		return nil, ErrEmptySlot
	}
	inv.slots[ix] = nil
	inv.removeIndex(inv.adapter.ID(item), slot)
	inv.adapter.OnRemove(item, slot)
	return item, nil
}

// Update notifies the handler that the item at slot changed in place,
// without moving it.
func (inv *Inventory[T, S]) Update(slot S) {
	if item := inv.Get(slot); item != nil {
		inv.adapter.OnUpdate(item, slot)
	}
}

// Swap exchanges the contents of two slots, updating the id index for
// both moved items atomically. Swapping a slot with itself, or two empty
// slots, is a no-op beyond the OnSwap notification.
func (inv *Inventory[T, S]) Swap(a, b S) error {
	ai, bi := int(a), int(b)
	if err := inv.checkSlot(ai); err != nil {
		return err
	}
	if err := inv.checkSlot(bi); err != nil {
		return err
	}
	inv.slots[ai], inv.slots[bi] = inv.slots[bi], inv.slots[ai]
	itemA, itemB := inv.slots[ai], inv.slots[bi]
	if itemA != nil && itemB != nil && inv.adapter.ID(itemA) == inv.adapter.ID(itemB) {
		// Both slots held the same id before and after: the set of slots
		// holding that id hasn't changed, so leave idSlots[id] untouched —
		// routing this through moveIndex twice would reorder it even
		// though the swap is a no-op on the id index.
	} else {
		if itemA != nil {
			inv.moveIndex(inv.adapter.ID(itemA), b, a)
		}
		if itemB != nil {
			inv.moveIndex(inv.adapter.ID(itemB), a, b)
		}
	}
	inv.adapter.OnSwap(a, b)
	return nil
}

// moveIndex updates the secondary index for an item that moved from
// `from` to `to`, leaving entries for other slots of the same id intact.
func (inv *Inventory[T, S]) moveIndex(id int64, from, to S) {
	list := inv.idSlots[id]
	for i, s := range list {
		if s == from {
			list[i] = to
			return
		}
	}
	// Item wasn't indexed at `from` (e.g. it just moved in from the other
	// side of the swap) — add it directly.
	inv.idSlots[id] = append(list, to)
}

// Items iterates over every occupied slot in ascending slot order.
func (inv *Inventory[T, S]) Items(fn func(slot S, item *T)) {
	for i, item := range inv.slots {
		if item != nil {
			fn(S(i), item)
		}
	}
}

// SlotsByID returns the slots currently holding id, in insertion order.
func (inv *Inventory[T, S]) SlotsByID(id int64) []S {
	return append([]S(nil), inv.idSlots[id]...)
}

// ItemsByID returns the items currently holding id, in insertion order.
func (inv *Inventory[T, S]) ItemsByID(id int64) []*T {
	slots := inv.idSlots[id]
	out := make([]*T, 0, len(slots))
	for _, s := range slots {
		out = append(out, inv.slots[int(s)])
	}
	return out
}
