// Package session implements the per-player session actor (spec §4.7):
// it owns a Character, a socket, and dispatches decoded packets to the
// move/chat/attack/skill/inventory/quest pipelines described there.
//
// Grounded on original_source/crates/shroom-game/src/field/mod.rs's
// on_tick/on_socket_msg and the teacher's own
// internal/net.Session (raw-byte I/O) plus internal/net/packet (opcode
// framing), bridged here onto internal/roomrt.SessionActor and
// internal/field.FieldSession.
package session

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/l1jgo/server/internal/buff"
	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/field"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
	"github.com/l1jgo/server/internal/net"
	"github.com/l1jgo/server/internal/net/packet"
	"github.com/l1jgo/server/internal/roomrt"
	"github.com/l1jgo/server/internal/script"
)

// Opcodes for the in-world session protocol, distinct from the login/
// char-select opcode space internal/net/packet already defines (spec §6
// treats the full opcode catalogue as an opaque external interface —
// this is a working placeholder set sufficient to exercise every
// pipeline §4.7 names, not a claim about the real client's byte values).
const (
	OpMove      byte = 0x01
	OpChat      byte = 0x02
	OpAttack    byte = 0x03
	OpSkillUp   byte = 0x04
	OpSkillUse  byte = 0x05
	OpInvMove   byte = 0x06
	OpNpcAnswer byte = 0x07
	OpQuestAct  byte = 0x08
	OpNpcTalk   byte = 0x09
)

// npcEntryPoint names the Lua function an NPC's script exposes, by the
// fixed convention "npc_<template id>" (spec §9 doesn't name a lookup
// scheme beyond "scripts addressed by npc id"; this is the simplest one
// that needs no extra metadata table).
func npcEntryPoint(npcID ids.NpcId) string { return fmt.Sprintf("npc_%d", npcID) }

// SkillHandler applies one class skill's effect (typed buff, summon, AoE)
// once mp has already been debited and before cooldown is armed (spec
// §4.7 "Skill use": "invoke class handler which maps skill id → typed
// buff application or summon spawn or AoE").
type SkillHandler func(s *Session, sk meta.SkillMeta, level int, now delayqueue.GameTime)

// maxPacketsPerTick bounds how many queued client packets one RunOnce
// drains, mirroring roomrt.MessagesPerTick's control-mailbox cap so a
// packet flood from one client can't starve its own tick processing.
const maxPacketsPerTick = 32

// debuffDurationTicks is the fixed debuff length applied by the attack
// pipeline's optional debuff (spec §4.7 doesn't name a duration; this
// matches the mob pool's own fixed buff durations in mobpool.go).
const debuffDurationTicks = 5000

// Session is the per-connection actor: a live Character bound to a raw
// net.Session, attached to one field room at a time.
type Session struct {
	Char *character.Character

	conn    *net.Session
	catalog *meta.Catalog
	skills  map[ids.SkillId]SkillHandler
	rng     *rand.Rand
	log     *zap.Logger

	fld        *field.Field
	hasField   bool

	scripts *script.Engine
	dialog  *script.Dialog
}

// NewSession builds a session actor around an already-authenticated
// connection and character, ready to be handed to a room's mailbox.
// scripts may be nil in contexts that never exercise NPC dialog (tests,
// or a server built without the dialog engine wired up yet).
func NewSession(conn *net.Session, char *character.Character, catalog *meta.Catalog, skills map[ids.SkillId]SkillHandler, scripts *script.Engine, log *zap.Logger) *Session {
	return &Session{
		Char:    char,
		conn:    conn,
		catalog: catalog,
		skills:  skills,
		scripts: scripts,
		rng:     rand.New(rand.NewSource(int64(char.ID))),
		log:     log.With(zap.Uint32("char", uint32(char.ID))),
	}
}

// ID satisfies roomrt.SessionActor.
func (s *Session) ID() ids.CharacterId { return s.Char.ID }

// CharID satisfies field.FieldSession.
func (s *Session) CharID() ids.CharacterId { return s.Char.ID }

// Deliver satisfies field.FieldSession: hands the session an outbound
// domain message. Actual wire encoding is the codec's job (spec §6 "Wire
// codec" is an opaque collaborator); here every msg is sent as the same
// placeholder packet holding only a zero opcode byte, and msg's contents
// are not encoded, so the pipeline is exercised end-to-end without
// inventing the client's real opcode catalogue.
func (s *Session) Deliver(msg any) {
	if s.conn == nil {
		return
	}
	w := packet.NewWriter()
	w.WriteC(0) // placeholder opcode: real per-message opcodes belong to the wire catalogue
	s.conn.Send(w.Bytes())
	_ = msg // the concrete payload shape is the codec's concern, not session's
}

// BindField attaches (or detaches, with nil) the field room this session
// is currently inside, so its packet handlers can reach pool operations
// without the room runtime threading a reference through every call.
func (s *Session) BindField(f *field.Field) {
	s.fld = f
	s.hasField = f != nil
}

// Pos satisfies field.FieldSession: reports this session's current
// field-local position, for mob char_buff/dispel skills' rectangle
// filter.
func (s *Session) Pos() field.Point { return field.Point{X: s.Char.Pos.X, Y: s.Char.Pos.Y} }

// ApplyCharBuff satisfies field.FieldSession: arms key on the character
// until deadline, the way a mob's char_buff skill effect does.
func (s *Session) ApplyCharBuff(key character.BuffKey, deadline delayqueue.GameTime) {
	s.Char.BuffExpiry.Insert(key, deadline)
}

// DispelCharBuffs satisfies field.FieldSession: clears every one of the
// character's currently active buffs, notifying the session the same way
// natural expiry does.
func (s *Session) DispelCharBuffs() {
	var keys []character.BuffKey
	s.Char.Buffs.Each(func(k character.BuffKey) { keys = append(keys, k) })
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		s.Char.BuffExpiry.MarkRemoved(k)
	}
	s.Deliver(BuffsExpired{Keys: keys})
}

// OnEnterRoom/OnLeaveRoom satisfy roomrt.SessionActor; the pool spawn
// broadcast and controller handoff are Field's job (OnEnterSession/
// OnLeaveSession), these hooks are for session-local bookkeeping only.
func (s *Session) OnEnterRoom(ctx *roomrt.Context) error { return nil }
func (s *Session) OnLeaveRoom(ctx *roomrt.Context) error { return nil }

// broadcaster builds a Broadcaster over this tick's live session
// snapshot, for packet handlers that need to fan out a field mutation.
func (s *Session) broadcaster(ctx *roomrt.Context) field.Broadcaster {
	return field.NewBroadcaster(field.AsFieldSessions(ctx.Sessions))
}

// RunOnce satisfies roomrt.SessionActor: drains queued client packets,
// then advances the character's own tick (spec §4.7 "on_tick advances
// the character: buff expirations, stat diffs, pending events").
func (s *Session) RunOnce(ctx *roomrt.Context) error {
	if s.conn != nil {
		for i := 0; i < maxPacketsPerTick; i++ {
			select {
			case data := <-s.conn.InQueue:
				s.dispatch(ctx, data)
			default:
				i = maxPacketsPerTick
			}
		}
	}

	expired := s.Char.OnTick(ctx.Time)
	if expired.Any() {
		s.Deliver(BuffsExpired{Keys: collectBuffKeys(expired)})
	}
	return nil
}

func collectBuffKeys(flags *buff.Flags[character.BuffKey]) []character.BuffKey {
	var out []character.BuffKey
	flags.Each(func(k character.BuffKey) { out = append(out, k) })
	return out
}

// BuffsExpired is the self-notification sent when one or more character
// buffs expire this tick.
type BuffsExpired struct{ Keys []character.BuffKey }

// MobExp is the self-notification of an experience award from a kill.
type MobExp struct {
	MobID ids.MobId
	Exp   uint64
}

// dispatch decodes data's opcode and routes to the matching pipeline
// (spec §4.7 "on_socket_msg dispatches by opcode to user-move, user-chat,
// attack, skill-up, skill-use, inventory ops, NPC script answer, quest
// accept/complete").
func (s *Session) dispatch(ctx *roomrt.Context, data []byte) {
	if len(data) == 0 {
		return
	}
	r := packet.NewReader(data)
	switch data[0] {
	case OpMove:
		s.handleMove(r)
	case OpChat:
		s.handleChat(r)
	case OpAttack:
		s.handleAttack(ctx, r)
	case OpSkillUp:
		s.handleSkillUp(r)
	case OpSkillUse:
		s.handleSkillUse(ctx, r)
	case OpInvMove:
		s.handleInvMove(r)
	case OpNpcTalk:
		s.handleNpcTalk(r)
	case OpNpcAnswer:
		s.handleNpcAnswer(r)
	case OpQuestAct:
		s.handleQuestAction(r)
	default:
		s.log.Debug("unknown in-world opcode", zap.Uint8("opcode", data[0]))
	}
}

func (s *Session) handleMove(r *packet.Reader) {
	x := int16(r.ReadH())
	y := int16(r.ReadH())
	s.Char.Pos.X, s.Char.Pos.Y = x, y
}

func (s *Session) handleChat(r *packet.Reader) {
	_ = r.ReadS() // chat relay belongs to the broadcaster layer, not session state
}

// handleAttack implements spec §4.7's attack pipeline exactly: validate
// controller-or-ownerless, call field.AttackMob per target with a
// quest-drop-flag-aware reward callback, then apply any debuff if the
// mob survived.
func (s *Session) handleAttack(ctx *roomrt.Context, r *packet.Reader) {
	if !s.hasField {
		return
	}
	targetCount := int(r.ReadC())
	for i := 0; i < targetCount; i++ {
		id := ids.ObjectId(uint32(r.ReadD()))
		dmg := uint32(r.ReadD())
		debuff := field.MobBuffKey(r.ReadC())
		hasDebuff := r.ReadC() != 0

		ctrl, hasCtrl := s.fld.Mobs.Controller()
		if hasCtrl && ctrl != s.Char.ID {
			continue
		}

		tx := s.broadcaster(ctx)
		s.fld.AttackMob(tx, ctx.Time, s.Char.ID, id, dmg, s.rewardKill(tx, ctx.Time))

		if mob, ok := s.fld.Mobs.Get(id); ok && hasDebuff {
			mob.BuffExpiry.Insert(debuff, ctx.Time+debuffDurationTicks)
		}
	}
}

// rewardKill builds the per-kill reward callback passed to
// Field.AttackMob: experience share by damage fraction, then a drop roll
// gated by this session's own quest drop flags (spec §4.4 "compute
// per-attacker exp share ... scaled by each attacker's damage fraction
// ... rounds down"; a kill shared across multiple live sessions would
// need each attacker's own Quests to gate their own drop view — out of
// one Session's reach without a character registry, so the drop roll
// here uses only the killing session's own flags).
func (s *Session) rewardKill(tx field.Broadcaster, now delayqueue.GameTime) func(*field.Mob) {
	return func(mob *field.Mob) {
		attackers := mob.Attackers()
		var total uint64
		for _, dmg := range attackers {
			total += uint64(dmg)
		}
		if total == 0 {
			total = 1
		}
		if dmg, ok := attackers[s.Char.ID]; ok {
			share := uint64(mob.Meta.Exp) * uint64(dmg) / total
			s.Char.Stats.Exp += int64(share)
			s.Char.LevelUp(func(lv int16) int64 { return int64(s.catalog.NextLevelExp(int(lv))) })
			s.Deliver(MobExp{MobID: mob.TmplID, Exp: share})
		}

		flags, _ := s.Char.Quests.MobDropFlags.Get(mob.TmplID)
		drops := s.catalog.DropsForMob(mob.TmplID, func(bit int) bool { return flags.Has(ids.QuestId(bit)) }, s.rng)
		money := s.catalog.MoneyDrop(s.rng)
		s.fld.AddDrops(tx, now, mob.Pos, drops, money, field.DropOwner{CharID: s.Char.ID, HasOwner: true})
		s.Char.Quests.OnMobKilled(mob.TmplID, 1)
	}
}

func (s *Session) handleSkillUp(r *packet.Reader) {
	id := ids.SkillId(uint32(r.ReadD()))
	entry, ok := s.Char.Skills.Get(id)
	if !ok {
		entry = character.SkillEntry{Level: 0}
	}
	entry.Level++
	s.Char.Skills.Learn(id, entry)
}

// handleSkillUse implements spec §4.7's skill-use pipeline exactly:
// fetch skill, debit mp (fail is a silent no-op), invoke the class
// handler, set cooldown if configured, clear action_locked.
func (s *Session) handleSkillUse(ctx *roomrt.Context, r *packet.Reader) {
	id := ids.SkillId(uint32(r.ReadD()))
	level := int(r.ReadC())

	sk, ok := s.catalog.Skill(id)
	if !ok {
		return
	}
	if s.Char.Skills.OnCooldown(id, ctx.Time) {
		return
	}
	if sk.MpCost > 0 && !s.Char.Stats.MP.TryAdd(-int64(sk.MpCost)) {
		return
	}

	if handler, ok := s.skills[id]; ok {
		handler(s, sk, level, ctx.Time)
	}

	if sk.CooldownS > 0 {
		s.Char.Skills.SetCooldown(id, ctx.Time+delayqueue.GameTime(sk.CooldownS)*1000)
	}
	s.Char.Stats.ActionLocked = false
}

func (s *Session) handleInvMove(r *packet.Reader) {
	src := int(r.ReadH())
	dst := int(r.ReadH())
	kind := character.InventoryKind(r.ReadC())
	qty := int(r.ReadD())
	var q *int
	if qty > 0 {
		q = &qty
	}
	_ = s.Char.Inv.Compartment(kind).Move(src, dst, q)
}

// handleNpcTalk starts a fresh conversation with the clicked NPC,
// replacing any dialog this session already had open (spec §9: a
// session holds at most one live coroutine at a time).
func (s *Session) handleNpcTalk(r *packet.Reader) {
	if s.scripts == nil {
		return
	}
	npcID := ids.NpcId(uint32(r.ReadD()))
	if s.dialog != nil {
		s.dialog.Close()
		s.dialog = nil
	}
	dlg, act, err := s.scripts.Start(npcEntryPoint(npcID), uint32(npcID), uint32(s.Char.ID))
	if err != nil {
		s.log.Debug("npc dialog start failed", zap.Uint32("npc", uint32(npcID)), zap.Error(err))
		return
	}
	s.dialog = dlg
	s.deliverDialogAction(act)
}

// handleNpcAnswer resumes the session's open dialog with the player's
// reply (spec §9 "exactly one action per suspension": this call runs
// the script forward to its next yield and no further).
func (s *Session) handleNpcAnswer(r *packet.Reader) {
	reply := r.ReadS()
	if s.dialog == nil {
		return
	}
	act, err := s.dialog.Answer(reply)
	if err != nil {
		s.log.Debug("npc dialog resume failed", zap.Error(err))
		s.dialog = nil
		return
	}
	s.deliverDialogAction(act)
	if act.Kind == script.ActionEnd {
		s.dialog = nil
	}
}

func (s *Session) deliverDialogAction(act script.Action) {
	s.Deliver(NpcDialog{Kind: act.Kind, Text: act.Text, Options: act.Options})
}

// NpcDialog is the placeholder wire payload for one NPC dialog
// suspension (say/menu/number/end); the real per-kind framing is the
// codec's concern, spec §6.
type NpcDialog struct {
	Kind    script.ActionKind
	Text    string
	Options []string
}

func (s *Session) handleQuestAction(r *packet.Reader) {
	qid := ids.QuestId(uint32(r.ReadD()))
	accept := r.ReadC() != 0
	if !accept {
		return
	}
	if s.catalog == nil {
		return
	}
	_ = s.Char.Quests.TryStartQuest(qid, s.catalog, s.Char.Stats.Job, s.Char.Field, int(s.Char.Stats.Level), nil)
}
