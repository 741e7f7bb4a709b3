package inventory

// StackAdapter extends Adapter with the stack-specific operations spec
// §3 "Stack inventory" requires: quantity access, stack-size limits, and
// a factory for materialising a brand-new stack when an add spills over.
type StackAdapter[T any, S SlotIndex] interface {
	Adapter[T, S]
	Quantity(item *T) int
	SetQuantity(item *T, qty int)
	MaxStackSize(item *T) int
	NewStack(id int64, qty int) *T
	OnQuantityChange(item *T, slot S)
}

// StackInventory wraps Inventory with stack-aware merge/split/move
// operations (spec §4.9).
type StackInventory[T any, S SlotIndex] struct {
	inv     *Inventory[T, S]
	adapter StackAdapter[T, S]
}

// NewStack creates an empty stack inventory with the given capacity.
func NewStack[T any, S SlotIndex](adapter StackAdapter[T, S], capacity int) *StackInventory[T, S] {
	return &StackInventory[T, S]{
		inv:     New[T, S](adapter, capacity),
		adapter: adapter,
	}
}

func (si *StackInventory[T, S]) Inventory() *Inventory[T, S] { return si.inv }
func (si *StackInventory[T, S]) Len() int                    { return si.inv.Len() }
func (si *StackInventory[T, S]) Capacity() int               { return si.inv.Capacity() }
func (si *StackInventory[T, S]) ContainsID(id int64) bool    { return si.inv.ContainsID(id) }
func (si *StackInventory[T, S]) Get(slot S) *T               { return si.inv.Get(slot) }
func (si *StackInventory[T, S]) Set(slot S, item *T) error   { return si.inv.Set(slot, item) }
func (si *StackInventory[T, S]) Items(fn func(slot S, item *T)) { si.inv.Items(fn) }

func (si *StackInventory[T, S]) freeSpace(item *T) int {
	return si.adapter.MaxStackSize(item) - si.adapter.Quantity(item)
}

// AddQuantity adds delta to the stack at slot, failing if it would exceed
// the stack's max size.
func (si *StackInventory[T, S]) AddQuantity(slot S, delta int) error {
	item := si.inv.Get(slot)
	if item == nil {
		return ErrEmptySlot
	}
	if si.freeSpace(item) < delta {
		return ErrSlotFull
	}
	si.adapter.SetQuantity(item, si.adapter.Quantity(item)+delta)
	si.adapter.OnQuantityChange(item, slot)
	return nil
}

// TakeQuantity removes delta from the stack at slot, removing the slot
// entirely if the stack is thereby emptied.
func (si *StackInventory[T, S]) TakeQuantity(slot S, delta int) error {
	item := si.inv.Get(slot)
	if item == nil {
		return ErrEmptySlot
	}
	q := si.adapter.Quantity(item)
	if delta > q {
		return ErrInsufficientItems
	}
	if delta == q {
		_, err := si.inv.Remove(slot)
		return err
	}
	si.adapter.SetQuantity(item, q-delta)
	si.adapter.OnQuantityChange(item, slot)
	return nil
}

// TryAddStack fills existing stacks of id first (in insertion order,
// respecting max_stack_size) then opens new slots for any residue, each
// holding at most max_stack_size. Residue that finds no free slot is
// discarded; ErrFull is returned only if the inventory was full before
// any fill.
func (si *StackInventory[T, S]) TryAddStack(id int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	wasFull := si.inv.Len() >= si.inv.Capacity()
	remaining := qty

	for _, slot := range si.inv.SlotsByID(id) {
		item := si.inv.Get(slot)
		if item == nil {
			continue
		}
		space := si.freeSpace(item)
		if space <= 0 {
			continue
		}
		delta := space
		if remaining < delta {
			delta = remaining
		}
		si.adapter.SetQuantity(item, si.adapter.Quantity(item)+delta)
		si.adapter.OnQuantityChange(item, slot)
		remaining -= delta
		if remaining == 0 {
			return nil
		}
	}

	if remaining > 0 {
		if wasFull {
			return ErrFull
		}
		for remaining > 0 {
			if _, ok := si.inv.FindFreeSlot(); !ok {
				break
			}
			stack := si.adapter.NewStack(id, remaining)
			if max := si.adapter.MaxStackSize(stack); max > 0 && remaining > max {
				si.adapter.SetQuantity(stack, max)
			}
			remaining -= si.adapter.Quantity(stack)
			if _, err := si.inv.Add(stack); err != nil {
				return err
			}
		}
	}
	return nil
}

// Move implements the §4.9 stack-move contract: splitting onto an empty
// destination, merging onto a same-id destination, or swapping whole
// slots when ids differ.
func (si *StackInventory[T, S]) Move(src, dst S, qty *int) error {
	srcItem := si.inv.Get(src)
	if srcItem == nil {
		return ErrEmptySlot
	}
	srcQty := si.adapter.Quantity(srcItem)
	moveQty := srcQty
	if qty != nil {
		moveQty = *qty
	}
	if moveQty > srcQty {
		return ErrInsufficientItems
	}
	completeMove := moveQty == srcQty

	dstItem := si.inv.Get(dst)
	if dstItem == nil {
		if completeMove {
			return si.inv.Swap(src, dst)
		}
		if err := si.TakeQuantity(src, moveQty); err != nil {
			return err
		}
		srcID := si.adapter.ID(srcItem)
		split := si.adapter.NewStack(srcID, moveQty)
		return si.inv.Set(dst, split)
	}

	srcID := si.adapter.ID(srcItem)
	dstID := si.adapter.ID(dstItem)
	if srcID != dstID {
		return si.inv.Swap(src, dst)
	}

	// Merge, bounded by destination free space.
	space := si.freeSpace(dstItem)
	merge := moveQty
	if space < merge {
		merge = space
	}
	if merge > 0 {
		if err := si.AddQuantity(dst, merge); err != nil {
			return err
		}
		if err := si.TakeQuantity(src, merge); err != nil {
			return err
		}
	}
	return nil
}

// QuantityByID returns the sum of Quantity() over every slot holding id.
func (si *StackInventory[T, S]) QuantityByID(id int64) int {
	total := 0
	for _, item := range si.inv.ItemsByID(id) {
		total += si.adapter.Quantity(item)
	}
	return total
}

// TryTakeByID debits id across stacks in insertion order. It is
// transactional: if the total available quantity is less than requested
// it fails with ErrInsufficientItems *before* mutating any slot (resolves
// the open "take_items rollback" question from spec §9 — see
// SPEC_FULL.md §4.9).
func (si *StackInventory[T, S]) TryTakeByID(id int64, qty int) error {
	if si.QuantityByID(id) < qty {
		return ErrInsufficientItems
	}
	remaining := qty
	for _, slot := range si.inv.SlotsByID(id) {
		if remaining == 0 {
			break
		}
		item := si.inv.Get(slot)
		if item == nil {
			continue
		}
		have := si.adapter.Quantity(item)
		delta := have
		if remaining < delta {
			delta = remaining
		}
		if err := si.TakeQuantity(slot, delta); err != nil {
			return err
		}
		remaining -= delta
	}
	return nil
}

// TryTakeAllByID removes every stack of id and returns the total quantity
// removed.
func (si *StackInventory[T, S]) TryTakeAllByID(id int64) int {
	total := si.QuantityByID(id)
	if total == 0 {
		return 0
	}
	_ = si.TryTakeByID(id, total)
	return total
}
