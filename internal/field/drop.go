package field

import "github.com/l1jgo/server/internal/ids"

const (
	dropSpreadStep    = 20
	dropTimeoutTicks  = 60_000 // 60s, in ms-scale GameTime ticks
)

// DropOwner is either nobody (free pickup), or the character whose kill
// produced the drop (exclusive pickup window, not modelled here — spec
// leaves ownership-window enforcement to the session layer).
type DropOwner struct {
	CharID ids.CharacterId
	HasOwner bool
}

// DropKind distinguishes a mesos pile from an item stack.
type DropKind int

const (
	DropMoney DropKind = iota
	DropItemStack
)

// DropItem is one ground-drop instance.
type DropItem struct {
	Owner    DropOwner
	Pos      Point
	StartPos Point
	Kind     DropKind
	ItemID   ids.ItemId
	Quantity int
	Money    ids.Money
}

func (d *DropItem) EnterMsg() any { return DropEnter{Item: *d} }
func (d *DropItem) LeaveMsg(reason LeaveReason) any {
	return DropLeave{Item: *d, Reason: reason}
}

type DropEnter struct{ Item DropItem }
type DropLeave struct {
	Item   DropItem
	Reason LeaveReason
}

// DropPool owns every ground drop in a field.
type DropPool struct {
	pool *Pool[*DropItem]
}

func NewDropPool() *DropPool { return &DropPool{pool: NewPool[*DropItem]()} }

func (dp *DropPool) Insert(tx Broadcaster, item *DropItem) ids.ObjectId {
	return dp.pool.Insert(tx, item)
}

func (dp *DropPool) Remove(tx Broadcaster, id ids.ObjectId, reason LeaveReason) (*DropItem, bool) {
	return dp.pool.Remove(tx, id, reason)
}

func (dp *DropPool) Get(id ids.ObjectId) (*DropItem, bool) { return dp.pool.Get(id) }

func (dp *DropPool) Items(fn func(id ids.ObjectId, item *DropItem)) { dp.pool.Items(fn) }

// GroundFinder resolves the foothold immediately below a probe point, if
// any (spec §4.5: "clamped to the foothold found immediately below
// (pos.x, pos.y − 20)").
type GroundFinder interface {
	FootholdBelow(x, y int16) (Point, bool)
}

// SpreadDrops computes the landing position for each item in drops plus
// one more for money (if > 0), spaced symmetrically around pos.x in
// dropSpreadStep-unit increments, each clamped to the ground found below
// (x, pos.y-20). Items pile at pos when no ground is found there (spec
// §4.5).
func SpreadDrops(pos Point, drops []ids.ItemDrop, money ids.Money, ground GroundFinder) []DropItem {
	n := len(drops)
	if money > 0 {
		n++
	}
	if n == 0 {
		return nil
	}

	positions := spreadXPositions(pos, n, ground)
	out := make([]DropItem, 0, n)
	i := 0
	if money > 0 {
		out = append(out, DropItem{Pos: positions[i], StartPos: pos, Kind: DropMoney, Money: money, Quantity: 1})
		i++
	}
	for _, d := range drops {
		out = append(out, DropItem{Pos: positions[i], StartPos: pos, Kind: DropItemStack, ItemID: d.ItemID, Quantity: d.Quantity})
		i++
	}
	return out
}

// spreadXPositions returns n landing points, symmetric around pos.X in
// steps of dropSpreadStep, each clamped to ground.
func spreadXPositions(pos Point, n int, ground GroundFinder) []Point {
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		offset := int16(2*i-(n-1)) * dropSpreadStep / 2
		probeX := pos.X + offset
		probeY := pos.Y - 20
		if landing, ok := ground.FootholdBelow(probeX, probeY); ok {
			out[i] = landing
		} else {
			out[i] = pos
		}
	}
	return out
}
