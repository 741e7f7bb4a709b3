// Package field implements the per-room simulation: the fixed-universe
// entity pools (spec §4.3), the mob pool's respawn/skill/damage pipeline
// (spec §4.4), drop spreading (spec §4.5), and the Field room actor that
// ties them together under the room runtime (spec §4.6).
//
// Grounded on original_source/crates/shroom-game/src/field/mod.rs and
// life/mob/pool.rs, generalised from the original's per-domain pool
// structs into one generic Pool[T] plus a thin controller-aware layer.
package field

import (
	"sort"

	"github.com/l1jgo/server/internal/ids"
)

// Broadcaster is the per-room outbound message sink a pool writes enter/
// leave/assign notifications to. Concrete wire messages are supplied by
// the caller as opaque payloads (the pool itself is protocol-agnostic);
// session/net wiring turns these into actual packets.
type Broadcaster interface {
	// Broadcast sends msg to every session in the room.
	Broadcast(msg any)
	// BroadcastExcept sends msg to every session except except.
	BroadcastExcept(msg any, except ids.CharacterId)
	// Send delivers msg to a single character, if still present.
	Send(to ids.CharacterId, msg any)
}

// EnterMsg/LeaveMsg are built by an Item's pool adapter to describe how a
// member announces or retracts itself.
type EnterMsg struct {
	ID  ids.ObjectId
	Msg any
}

// PoolItem is the minimal contract an entity pool member must satisfy:
// enough to build enter/leave broadcasts. Pools needing richer behaviour
// (the mob pool) wrap Pool rather than fighting its generic surface.
type PoolItem interface {
	// EnterMsg returns the wire payload describing this item's spawn.
	EnterMsg() any
	// LeaveMsg returns the wire payload describing this item's despawn,
	// given the reason it left.
	LeaveMsg(reason LeaveReason) any
}

// LeaveReason tags why a pool member was removed, mirrored into the
// leave broadcast (e.g. timeout vs. pickup vs. death).
type LeaveReason int

const (
	LeaveGeneric LeaveReason = iota
	LeaveTimeout
	LeavePickup
	LeaveDeath
	LeaveSwitchMap
)

// Pool is a fixed-universe container of live instances of T, each
// addressed by an ObjectId allocated on insert. ObjectIds are unique for
// the room's lifetime (spec §8 invariant 3): the counter never reuses a
// retired id.
type Pool[T PoolItem] struct {
	members map[ids.ObjectId]T
	nextID  ids.ObjectId
}

// NewPool creates an empty pool.
func NewPool[T PoolItem]() *Pool[T] {
	return &Pool[T]{members: make(map[ids.ObjectId]T)}
}

// Insert allocates the next ObjectId for item, stores it, and broadcasts
// its enter message.
func (p *Pool[T]) Insert(tx Broadcaster, item T) ids.ObjectId {
	p.nextID++
	id := p.nextID
	p.members[id] = item
	tx.Broadcast(item.EnterMsg())
	return id
}

// Remove takes id out of the pool, broadcasts its leave message, and
// returns the removed item.
func (p *Pool[T]) Remove(tx Broadcaster, id ids.ObjectId, reason LeaveReason) (T, bool) {
	item, ok := p.members[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(p.members, id)
	tx.Broadcast(item.LeaveMsg(reason))
	return item, true
}

// Get returns the member at id without removing it.
func (p *Pool[T]) Get(id ids.ObjectId) (T, bool) {
	item, ok := p.members[id]
	return item, ok
}

// MustGet panics if id is not present; used by callers that have already
// established the id is live (mirrors the original's must_get helper,
// which is only ever called after a presence check).
func (p *Pool[T]) MustGet(id ids.ObjectId) T {
	item, ok := p.members[id]
	if !ok {
		panic("field: pool.MustGet on missing id")
	}
	return item
}

// Set overwrites the stored value for id (used when an item is a value
// type mutated in place, e.g. after Items iterates a copy).
func (p *Pool[T]) Set(id ids.ObjectId, item T) {
	if _, ok := p.members[id]; ok {
		p.members[id] = item
	}
}

// Len reports live member count.
func (p *Pool[T]) Len() int { return len(p.members) }

// sortedIDs returns every live member's id in ascending order, so
// per-item broadcasts (controller assign/unassign, enter/leave replay)
// are emitted in a deterministic sequence instead of Go's randomised map
// order (spec §3 "Entity pool": "for every pool item, in deterministic
// order", reinforced by §4.3 and scenario §8.5).
func (p *Pool[T]) sortedIDs() []ids.ObjectId {
	out := make([]ids.ObjectId, 0, len(p.members))
	for id := range p.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Items iterates every live member in ascending ObjectId order.
func (p *Pool[T]) Items(fn func(id ids.ObjectId, item T)) {
	for _, id := range p.sortedIDs() {
		fn(id, p.members[id])
	}
}

// OnEnter serialises every live member's enter message, in ascending
// ObjectId order, for a newly joined session's initial greeting (spec
// §4.3 on_enter).
func (p *Pool[T]) OnEnter(buf *[]any) {
	for _, id := range p.sortedIDs() {
		*buf = append(*buf, p.members[id].EnterMsg())
	}
}
