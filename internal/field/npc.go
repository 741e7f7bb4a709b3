package field

import "github.com/l1jgo/server/internal/ids"

// Npc is a live, stationary (or patrolling) non-mob life object. Simpler
// than Mob: no hp/combat, but still controller-aware for move requests
// from the GM/owning session during scripted cutscenes.
type Npc struct {
	TmplID ids.NpcId
	Pos    Point
}

func (n *Npc) EnterMsg() any                { return NpcEnter{TmplID: n.TmplID, Pos: n.Pos} }
func (n *Npc) LeaveMsg(reason LeaveReason) any { return NpcLeave{TmplID: n.TmplID} }
func (n *Npc) AssignMsg(refresh bool) any   { return NpcAssignCtrl{TmplID: n.TmplID, Refresh: refresh} }
func (n *Npc) UnassignMsg() any             { return NpcUnassignCtrl{TmplID: n.TmplID} }

type NpcEnter struct {
	TmplID ids.NpcId
	Pos    Point
}
type NpcLeave struct{ TmplID ids.NpcId }
type NpcAssignCtrl struct {
	TmplID  ids.NpcId
	Refresh bool
}
type NpcUnassignCtrl struct{ TmplID ids.NpcId }

// NpcPool owns every live NPC in a field.
type NpcPool struct {
	pool       *Pool[*Npc]
	controller ids.CharacterId
	hasCtrl    bool
}

func NewNpcPool() *NpcPool { return &NpcPool{pool: NewPool[*Npc]()} }

func (np *NpcPool) Insert(tx Broadcaster, npc *Npc) ids.ObjectId { return np.pool.Insert(tx, npc) }
func (np *NpcPool) Remove(tx Broadcaster, id ids.ObjectId) (*Npc, bool) {
	return np.pool.Remove(tx, id, LeaveGeneric)
}
func (np *NpcPool) Get(id ids.ObjectId) (*Npc, bool) { return np.pool.Get(id) }
func (np *NpcPool) Items(fn func(id ids.ObjectId, n *Npc)) { np.pool.Items(fn) }

// UpdateController mirrors MobPool's controller handoff.
func (np *NpcPool) UpdateController(tx Broadcaster, old ids.CharacterId, hasOld bool, new_ ids.CharacterId, hasNew, refresh bool) {
	np.controller = new_
	np.hasCtrl = hasNew
	UpdateController[*Npc](np.pool, tx, old, new_, hasOld, hasNew, refresh)
}

// HandleMove applies a controller-reported NPC move; rejects if ctrl
// isn't the pool's current controller.
func (np *NpcPool) HandleMove(id ids.ObjectId, ctrl ids.CharacterId, pos Point) bool {
	if np.hasCtrl && np.controller != ctrl {
		return false
	}
	npc, ok := np.pool.Get(id)
	if !ok {
		return false
	}
	npc.Pos = pos
	return true
}

// Reactor is a live, attackable world object that breaks into drops.
type Reactor struct {
	TmplID     ids.ReactorId
	Pos        Point
	HP         int32
	Broken     bool
	QuestFlags map[uint32]struct{}
}

func (r *Reactor) EnterMsg() any                  { return ReactorEnter{TmplID: r.TmplID, Pos: r.Pos} }
func (r *Reactor) LeaveMsg(reason LeaveReason) any { return ReactorLeave{TmplID: r.TmplID} }

type ReactorEnter struct {
	TmplID ids.ReactorId
	Pos    Point
}
type ReactorLeave struct{ TmplID ids.ReactorId }

// ReactorPool owns every live reactor in a field.
type ReactorPool struct{ pool *Pool[*Reactor] }

func NewReactorPool() *ReactorPool { return &ReactorPool{pool: NewPool[*Reactor]()} }

func (rp *ReactorPool) Insert(tx Broadcaster, r *Reactor) ids.ObjectId { return rp.pool.Insert(tx, r) }
func (rp *ReactorPool) Get(id ids.ObjectId) (*Reactor, bool)           { return rp.pool.Get(id) }
func (rp *ReactorPool) Items(fn func(id ids.ObjectId, r *Reactor))     { rp.pool.Items(fn) }

// Attack breaks the reactor if this hit brings it down, returning it for
// the caller to roll drops from (mirrors MobPool.Attack's contract, minus
// hp percentage feedback since reactors have no client hp bar).
func (rp *ReactorPool) Attack(tx Broadcaster, id ids.ObjectId, dmg int32) (*Reactor, bool) {
	r, ok := rp.pool.Get(id)
	if !ok || r.Broken {
		return nil, false
	}
	r.HP -= dmg
	if r.HP > 0 {
		return nil, false
	}
	r.Broken = true
	rp.pool.Remove(tx, id, LeaveDeath)
	return r, true
}
