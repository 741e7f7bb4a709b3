package field

import "github.com/l1jgo/server/internal/ids"

// Controllable is implemented by pool members whose simulation authority
// (movement validation, skill casting) is delegated to one session at a
// time — mobs and NPCs (spec §4.3 "Controller invariant").
type Controllable interface {
	PoolItem
	// AssignMsg builds the "now controlled" payload. refresh distinguishes
	// an initial assignment (full state) from a reassignment (deltas only).
	AssignMsg(refresh bool) any
	// UnassignMsg builds the "no longer controlled" payload.
	UnassignMsg() any
}

// UpdateController reassigns the single controller of every member of a
// controller-aware pool: the old controller gets one unassign message per
// item, the new controller gets one assign message per item. refresh
// distinguishes a fresh assignment from a refresh of an already-assigned
// controller (spec §4.3).
func UpdateController[T Controllable](p *Pool[T], tx Broadcaster, old, new_ ids.CharacterId, hasOld, hasNew, refresh bool) {
	if hasOld {
		p.Items(func(_ ids.ObjectId, item T) {
			tx.Send(old, item.UnassignMsg())
		})
	}
	if hasNew {
		p.Items(func(_ ids.ObjectId, item T) {
			tx.Send(new_, item.AssignMsg(refresh))
		})
	}
}
