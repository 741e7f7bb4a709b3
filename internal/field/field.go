package field

import (
	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/roomrt"
)

// FieldSession is what a room-attached session must additionally expose
// for Field to address it directly (beyond the bare roomrt.SessionActor
// contract): its character id and a way to hand it a wire payload. The
// session package implements this; field stays ignorant of session's
// internals to avoid an import cycle.
type FieldSession interface {
	roomrt.SessionActor
	CharID() ids.CharacterId
	Deliver(msg any)
	// BindField hands the session a live pointer to the room it just
	// joined (nil on leave), so its own packet handlers can reach pool
	// operations (attack, drop) without the room runtime threading a
	// reference through every call.
	BindField(f *Field)
	// Pos reports the session's current field-local position, so pool
	// operations can filter by rectangle (mob char_buff/dispel skills).
	Pos() Point
	// ApplyCharBuff arms key until deadline.
	ApplyCharBuff(key character.BuffKey, deadline delayqueue.GameTime)
	// DispelCharBuffs clears every one of the character's active buffs.
	DispelCharBuffs()
}

// FieldEventKind distinguishes the two timer kinds Field itself schedules
// (as opposed to the mob pool's internal respawn/skill queues).
type FieldEventKind int

const (
	EventDropTimeout FieldEventKind = iota
	EventAffectedAreaTimeout
)

// FieldEvent is a (kind, target) pair popped off Field's own delay queue.
type FieldEvent struct {
	Kind FieldEventKind
	ID   ids.ObjectId
}

// Field is one room's simulation state: every entity pool plus the
// controller handoff and field-owned timers. It implements
// roomrt.RoomActor. Grounded on original_source
// crates/shroom-game/src/field/mod.rs's FieldHandler/FieldContext.
type Field struct {
	id ids.FieldId

	Drops     *DropPool
	Mobs      *MobPool
	Npcs      *NpcPool
	Reactors  *ReactorPool
	Areas     *AffectedAreaPool
	Employees *EmployeePool
	Boxes     *MessageBoxPool
	Gates     *OpenGatePool
	Portals   *TownPortalPool

	events *delayqueue.Queue[FieldEvent]
	ground GroundFinder

	controller    ids.CharacterId
	hasController bool
}

// NewField builds an empty field ready to receive spawn points via its
// pools' own constructors (MobPool in particular needs the spawn point
// list up front).
func NewField(id ids.FieldId, mobs *MobPool, ground GroundFinder) *Field {
	return &Field{
		id:        id,
		Drops:     NewDropPool(),
		Mobs:      mobs,
		Npcs:      NewNpcPool(),
		Reactors:  NewReactorPool(),
		Areas:     NewAffectedAreaPool(),
		Employees: NewEmployeePool(),
		Boxes:     NewMessageBoxPool(),
		Gates:     NewOpenGatePool(),
		Portals:   NewTownPortalPool(),
		events:    delayqueue.New[FieldEvent](),
		ground:    ground,
	}
}

// ID satisfies roomrt.RoomActor.
func (f *Field) ID() ids.FieldId { return f.id }

// sessionBroadcaster adapts the runner's live session slice into the
// pools' Broadcaster contract for the duration of one call.
type sessionBroadcaster struct {
	sessions []FieldSession
}

func (b *sessionBroadcaster) Broadcast(msg any) {
	for _, s := range b.sessions {
		s.Deliver(msg)
	}
}

func (b *sessionBroadcaster) BroadcastExcept(msg any, except ids.CharacterId) {
	for _, s := range b.sessions {
		if s.CharID() != except {
			s.Deliver(msg)
		}
	}
}

func (b *sessionBroadcaster) Send(to ids.CharacterId, msg any) {
	for _, s := range b.sessions {
		if s.CharID() == to {
			s.Deliver(msg)
			return
		}
	}
}

func asFieldSessions(sessions []roomrt.SessionActor) []FieldSession {
	return AsFieldSessions(sessions)
}

// AsFieldSessions filters a raw SessionActor slice (e.g. roomrt.Context's
// per-tick snapshot) down to the ones that satisfy FieldSession, for
// callers outside this package that need to build their own Broadcaster
// (a session handling an attack/skill-use packet mid-tick, in particular).
func AsFieldSessions(sessions []roomrt.SessionActor) []FieldSession {
	out := make([]FieldSession, 0, len(sessions))
	for _, s := range sessions {
		if fs, ok := s.(FieldSession); ok {
			out = append(out, fs)
		}
	}
	return out
}

// NewBroadcaster builds a Broadcaster over a fixed snapshot of sessions,
// for use outside Field's own OnTick/OnEnterSession/OnLeaveSession (a
// session's own packet handler needs one to call AttackMob/AddDrops).
func NewBroadcaster(sessions []FieldSession) Broadcaster {
	return &sessionBroadcaster{sessions: sessions}
}

// OnTick advances the pool-owned timers (mob respawn/skill effects, drop
// and affected-area expiry), in that order, then assigns a controller if
// the room gained its first session this tick (spec §5 ordering: "pool
// tick effects → control-mailbox effects → per-session tick effects" —
// the control-mailbox and per-session steps are the room runtime's job,
// not Field's; Field only ever sees the "pool tick effects" slice here).
func (f *Field) OnTick(ctx *roomrt.Context, sessions []roomrt.SessionActor) error {
	fsessions := asFieldSessions(sessions)
	tx := &sessionBroadcaster{sessions: fsessions}

	f.Mobs.OnTick(tx, ctx.Time, fsessions)

	for {
		ev, _, ok := f.events.Pop(ctx.Time)
		if !ok {
			break
		}
		f.handleEvent(tx, ev)
	}

	if !f.hasController && len(fsessions) > 0 {
		f.assignController(tx, fsessions[0].CharID(), false)
	}

	return nil
}

func (f *Field) handleEvent(tx Broadcaster, ev FieldEvent) {
	switch ev.Kind {
	case EventDropTimeout:
		f.Drops.Remove(tx, ev.ID, LeaveTimeout)
	case EventAffectedAreaTimeout:
		f.Areas.Remove(tx, ev.ID)
	}
}

// OnMsg satisfies roomrt.RoomActor; Field has no control messages of its
// own beyond add/remove session, which the runtime already handles.
func (f *Field) OnMsg(ctx *roomrt.Context, msg roomrt.ControlMessage) error { return nil }

// OnEnterSession sends the joining session every live pool's spawn
// messages in the fixed order spec §4.6 names (drop, npc, mob, reactor,
// affected-area, employee, message-box, open-gate, town-portal), assigns
// it as controller if the room had none, and notifies existing
// controller-aware pools of a fresh session if it becomes controller.
func (f *Field) OnEnterSession(ctx *roomrt.Context, s roomrt.SessionActor) error {
	fs, ok := s.(FieldSession)
	if !ok {
		return nil
	}
	fs.BindField(f)

	f.Drops.Items(func(_ ids.ObjectId, d *DropItem) { fs.Deliver(d.EnterMsg()) })
	f.Npcs.Items(func(_ ids.ObjectId, n *Npc) { fs.Deliver(n.EnterMsg()) })
	f.Mobs.Items(func(_ ids.ObjectId, m *Mob) { fs.Deliver(m.EnterMsg()) })
	f.Reactors.Items(func(_ ids.ObjectId, r *Reactor) { fs.Deliver(r.EnterMsg()) })
	f.Areas.Items(func(_ ids.ObjectId, a *AffectedArea) { fs.Deliver(a.EnterMsg()) })
	f.Employees.Items(func(_ ids.ObjectId, e *Employee) { fs.Deliver(e.EnterMsg()) })
	f.Boxes.Items(func(_ ids.ObjectId, m *MessageBox) { fs.Deliver(m.EnterMsg()) })
	f.Gates.Items(func(_ ids.ObjectId, g *OpenGate) { fs.Deliver(g.EnterMsg()) })
	f.Portals.Items(func(_ ids.ObjectId, t *TownPortal) { fs.Deliver(t.EnterMsg()) })

	if !f.hasController {
		f.assignController(&sessionBroadcaster{sessions: []FieldSession{fs}}, fs.CharID(), false)
	}
	return nil
}

// OnLeaveSession reassigns the controller if the leaver held it, handing
// it to nobody (the next OnTick will pick up a new controller once
// another session is known to the runtime).
func (f *Field) OnLeaveSession(ctx *roomrt.Context, s roomrt.SessionActor) error {
	fs, ok := s.(FieldSession)
	if !ok {
		return nil
	}
	if f.hasController && f.controller == fs.CharID() {
		f.hasController = false
		f.Mobs.UpdateController(&sessionBroadcaster{}, f.controller, true, 0, false, false)
		f.Npcs.UpdateController(&sessionBroadcaster{}, f.controller, true, 0, false, false)
	}
	fs.BindField(nil)
	return nil
}

func (f *Field) assignController(tx Broadcaster, who ids.CharacterId, refresh bool) {
	old := f.controller
	hadOld := f.hasController
	f.controller = who
	f.hasController = true
	f.Mobs.UpdateController(tx, old, hadOld, who, true, refresh)
	f.Npcs.UpdateController(tx, old, hadOld, who, true, refresh)
}

// AttackMob applies damage to a mob and, if it died, rolls rewards via
// reward, removing it from the pool (spec §4.4 "Damage, aggro, death").
func (f *Field) AttackMob(tx Broadcaster, now delayqueue.GameTime, attacker ids.CharacterId, id ids.ObjectId, dmg uint32, reward func(m *Mob)) {
	mob, died := f.Mobs.Attack(tx, attacker, id, dmg)
	if mob == nil {
		return
	}
	if died {
		killed, ok := f.Mobs.Kill(tx, now, id)
		if ok && reward != nil {
			reward(killed)
		}
	}
}

// AttackReactor applies damage to a reactor and, if it broke, returns it
// for the caller to roll drops from.
func (f *Field) AttackReactor(tx Broadcaster, id ids.ObjectId, dmg int32) (*Reactor, bool) {
	return f.Reactors.Attack(tx, id, dmg)
}

// AddDrops spreads drops around pos using the field's ground finder and
// inserts each one, scheduling its pickup-timeout removal.
func (f *Field) AddDrops(tx Broadcaster, now delayqueue.GameTime, pos Point, items []ids.ItemDrop, money ids.Money, owner DropOwner) {
	for _, d := range SpreadDrops(pos, items, money, f.ground) {
		item := d
		item.Owner = owner
		id := f.Drops.Insert(tx, &item)
		f.events.Push(FieldEvent{Kind: EventDropTimeout, ID: id}, now+dropTimeoutTicks, 0)
	}
}

// AddAffectedArea inserts a skill's affected-area marker and schedules
// its removal after durTicks.
func (f *Field) AddAffectedArea(tx Broadcaster, now delayqueue.GameTime, area *AffectedArea, durTicks delayqueue.GameTime) ids.ObjectId {
	id := f.Areas.Insert(tx, area)
	f.events.Push(FieldEvent{Kind: EventAffectedAreaTimeout, ID: id}, now+durTicks, 0)
	return id
}

// AddTownPortal inserts a player-placed town portal.
func (f *Field) AddTownPortal(tx Broadcaster, t *TownPortal) ids.ObjectId {
	return f.Portals.Insert(tx, t)
}
