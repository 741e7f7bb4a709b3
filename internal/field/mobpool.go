package field

import (
	"math"
	"math/rand"

	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
)

// defaultBuffDur is the fallback buff/debuff length when a skill's
// metadata leaves duration_ms unset, matching the original's lazily
// created 5s buff trackers.
const defaultBuffDur delayqueue.GameTime = 5000

// mobBuffKeyFromStat maps a mob skill's stat selector onto the fixed mob
// buff-key universe; an empty or unrecognised selector falls back to
// Seal, matching the field this replaced before stats were wired.
func mobBuffKeyFromStat(stat string) MobBuffKey {
	switch stat {
	case "power_up":
		return MobBuffPowerUp
	case "magic_up":
		return MobBuffMagicUp
	case "pguard_up":
		return MobBuffPGuardUp
	case "mguard_up":
		return MobBuffMGuardUp
	case "haste":
		return MobBuffHaste
	default:
		return MobBuffSeal
	}
}

// charBuffKeyFromStat maps a char_buff skill's stat selector onto
// character.BuffKey, which only models the subset of the original's
// char-debuff variants this repo carries; anything unrecognised maps to
// Seal.
func charBuffKeyFromStat(stat string) character.BuffKey {
	switch stat {
	case "poison":
		return character.BuffPoison
	default:
		return character.BuffSeal
	}
}

// mobSkillJob is the (mob, skill index) pair scheduled by a successful
// TryCast, fired after the skill's configured effect_after delay.
type mobSkillJob struct {
	mob ids.ObjectId
	ix  int
}

// MobSpawnPoint is one static spawn slot from field metadata.
type MobSpawnPoint struct {
	TmplID     ids.MobId
	Meta       meta.MobMeta
	Pos        Point
	RespawnGap delayqueue.GameTime // 0 = does not respawn automatically
}

// MobPool owns every live mob in a field plus its respawn and skill-cast
// scheduling (spec §4.4). Grounded on original_source
// life/mob/pool.rs's MobPool.
type MobPool struct {
	pool        *Pool[*Mob]
	spawnPoints []MobSpawnPoint
	respawnQ    *delayqueue.Queue[int]
	skillQ      *delayqueue.Queue[mobSkillJob]
	softCap     int
	controller  ids.CharacterId
	hasCtrl     bool
	rng         *rand.Rand
}

// NewMobPool builds a pool from a field's spawn point list, queuing an
// initial respawn for every point at t.
func NewMobPool(t delayqueue.GameTime, spawnPoints []MobSpawnPoint, rng *rand.Rand) *MobPool {
	softCap := int(math.Ceil(0.75 * float64(len(spawnPoints))))
	if softCap < 1 {
		softCap = 1
	}
	mp := &MobPool{
		pool:        NewPool[*Mob](),
		spawnPoints: spawnPoints,
		respawnQ:    delayqueue.New[int](),
		skillQ:      delayqueue.New[mobSkillJob](),
		softCap:     softCap,
		rng:         rng,
	}
	for i := range spawnPoints {
		mp.respawnQ.Push(i, t, 0)
	}
	return mp
}

func (mp *MobPool) Len() int { return mp.pool.Len() }

func (mp *MobPool) Get(id ids.ObjectId) (*Mob, bool) { return mp.pool.Get(id) }

// Controller reports the pool's current single controller, if any (spec
// §4.7 attack pipeline: "the attacker is the mob's controller or the mob
// is ownerless").
func (mp *MobPool) Controller() (ids.CharacterId, bool) { return mp.controller, mp.hasCtrl }

// Respawn spawns due mobs until the soft cap is reached or the respawn
// queue has no more due entries (spec §4.4 "Respawn").
func (mp *MobPool) Respawn(tx Broadcaster, now delayqueue.GameTime) {
	for mp.pool.Len() < mp.softCap {
		ix, _, ok := mp.respawnQ.Pop(now)
		if !ok {
			return
		}
		sp := mp.spawnPoints[ix]
		mob := NewMob(sp.TmplID, sp.Meta, sp.Pos)
		mob.SpawnIx = ix
		mob.HasSpawnIx = true
		mp.pool.Insert(tx, mob)
	}
}

// Spawn directly inserts an externally constructed mob (e.g. a GM admin
// command), bypassing the respawn queue.
func (mp *MobPool) Spawn(tx Broadcaster, mob *Mob) ids.ObjectId {
	return mp.pool.Insert(tx, mob)
}

// runSkillEffect fires the scheduled effect for one (mob, skillIx) job,
// categorised the way original_source's life/mob/pool.rs on_tick match
// dispatches MobSkill::{Buff,PartizanBuff,CharBuff,Dispel,Summon}: "buff"
// applies the stat-selected mob buff (Seal when Stat is empty or
// unrecognised) to the caster itself; "partisan_buff" extends a buff
// (or heals, when Stat=="heal") on every other mob in the optional
// rectangle; "char_buff"/"dispel" reach the room's live sessions, filtered
// by the same rectangle, translated by the caster's position.
func (mp *MobPool) runSkillEffect(tx Broadcaster, now delayqueue.GameTime, job mobSkillJob, sessions []FieldSession) {
	mob, ok := mp.pool.Get(job.mob)
	if !ok {
		return
	}
	skill := mob.Skills[job.ix]
	dur := skill.DurationTicks
	if dur == 0 {
		dur = defaultBuffDur
	}
	rect, hasRect := rangeRect(mob.Pos, skill.RangeW, skill.RangeH)

	switch skill.Kind {
	case "buff":
		mob.BuffExpiry.Insert(mobBuffKeyFromStat(skill.Stat), now+dur)
	case "partisan_buff":
		if skill.Stat == "heal" {
			mp.pool.Items(func(_ ids.ObjectId, other *Mob) {
				if other == mob || (hasRect && !rect.Contains(other.Pos)) {
					return
				}
				other.HP.AddSigned(int64(skill.HealAmount))
			})
			break
		}
		key := mobBuffKeyFromStat(skill.Stat)
		mp.pool.Items(func(_ ids.ObjectId, other *Mob) {
			if other == mob || (hasRect && !rect.Contains(other.Pos)) {
				return
			}
			other.BuffExpiry.Extend(key, now+dur)
		})
	case "char_buff":
		key := charBuffKeyFromStat(skill.Stat)
		for _, s := range sessions {
			if hasRect && !rect.Contains(s.Pos()) {
				continue
			}
			s.ApplyCharBuff(key, now+dur)
		}
	case "dispel":
		for _, s := range sessions {
			if hasRect && !rect.Contains(s.Pos()) {
				continue
			}
			s.DispelCharBuffs()
		}
	case "summon":
		for _, childID := range skill.SummonMobIDs {
			if skill.SummonLimit > 0 && skill.count >= skill.SummonLimit {
				break
			}
			childMeta := mob.Meta // summons default to the parent's template stats when no lookup is wired
			child := NewMob(childID, childMeta, mob.Pos)
			child.ParentID = job.mob
			child.ParentSkillIx = job.ix
			child.HasParent = true
			mp.pool.Insert(tx, child)
			skill.count++
		}
		mob.Skills[job.ix] = skill
	}
}

// OnTick advances respawns, fires any due scheduled skill effects against
// the room's live sessions, then expires each mob's due buffs (broadcasting
// a stat reset for every mob that lost one). No passive regen runs here.
// The "next skill?" scan on controllable mobs that recently moved is
// driven by HandleMove, not here.
func (mp *MobPool) OnTick(tx Broadcaster, now delayqueue.GameTime, sessions []FieldSession) {
	mp.Respawn(tx, now)

	for {
		job, _, ok := mp.skillQ.Pop(now)
		if !ok {
			break
		}
		mp.runSkillEffect(tx, now, job, sessions)
	}

	mp.pool.Items(func(id ids.ObjectId, mob *Mob) {
		expired := mob.BuffExpiry.UpdateExpirations(now)
		if expired.Any() {
			tx.Broadcast(MobStatReset{ID: id})
		}
	})
}

// Remove takes a mob out of the pool (no respawn bookkeeping — see Kill
// for the death path which does requeue).
func (mp *MobPool) Remove(tx Broadcaster, id ids.ObjectId, reason LeaveReason) (*Mob, bool) {
	return mp.pool.Remove(tx, id, reason)
}

// Kill removes the mob, requeues its spawn point's respawn if configured,
// decrements its parent's summon counter if it was summoned, and returns
// the removed mob so the caller (Field) can roll exp/drops (spec §4.4
// "Damage, aggro, death").
func (mp *MobPool) Kill(tx Broadcaster, now delayqueue.GameTime, id ids.ObjectId) (*Mob, bool) {
	mob, ok := mp.pool.Remove(tx, id, LeaveDeath)
	if !ok {
		return nil, false
	}
	if mob.HasSpawnIx {
		sp := mp.spawnPoints[mob.SpawnIx]
		if sp.RespawnGap > 0 {
			mp.respawnQ.Push(mob.SpawnIx, now+sp.RespawnGap, 0)
		}
	}
	if mob.HasParent {
		if parent, ok := mp.pool.Get(mob.ParentID); ok {
			parent.Skills[mob.ParentSkillIx].count--
		}
	}
	return mob, true
}

// Attack applies damage to a mob, broadcasts the hit, and returns the mob
// (nil if id is not live) plus whether the hit killed it; on a kill the
// caller calls Kill and then rolls exp/drops.
func (mp *MobPool) Attack(tx Broadcaster, attacker ids.CharacterId, id ids.ObjectId, dmg uint32) (*Mob, bool) {
	mob, ok := mp.pool.Get(id)
	if !ok {
		return nil, false
	}
	mob.Damage(dmg, attacker)
	tx.BroadcastExcept(MobDamaged{ID: id, Dmg: dmg, HP: mob.HP.Value}, attacker)
	tx.Send(attacker, MobHPIndicator{ID: id, Pct: mob.HP.Ratio100()})
	return mob, mob.IsDead()
}

// SetAggro bumps a mob's calc-damage index (anti-replay counter, spec §4.4
// "Controller ACK" — bumped only on an explicit aggro-change request) and
// notifies the new controller.
func (mp *MobPool) SetAggro(tx Broadcaster, id ids.ObjectId, ctrl ids.CharacterId) {
	mob, ok := mp.pool.Get(id)
	if !ok {
		return
	}
	if mob.CalcDamageIndex == math.MaxUint32 {
		// Saturate rather than wrap: wrapping would let a replayed ack
		// collide with a future legitimate index (spec §9 wraparound
		// resolution).
	} else {
		mob.CalcDamageIndex++
	}
	tx.Send(ctrl, MobChangeController{ID: id, CalcDamageIndex: mob.CalcDamageIndex})
}

// HandleMove applies a controller-reported move, rejecting it if ctrl
// isn't the pool's current controller, and — when attack_possible is set —
// rolls the mob's next skill and schedules its effect.
func (mp *MobPool) HandleMove(tx Broadcaster, now delayqueue.GameTime, id ids.ObjectId, ctrl ids.CharacterId, pos Point, attackPossible bool) {
	if mp.hasCtrl && mp.controller != ctrl {
		return
	}
	mob, ok := mp.pool.Get(id)
	if !ok {
		return
	}
	mob.Pos = pos

	if attackPossible {
		if ix, castOk := mob.NextSkillIx(now, mp.rng); castOk {
			skill := mob.Skills[ix]
			tx.Send(ctrl, MobSkillDelay{ID: id, SkillID: skill.SkillID, Level: skill.Level, Delay: skill.EffectAfter})
			mp.skillQ.Push(mobSkillJob{mob: id, ix: ix}, now+skill.EffectAfter, 0)
		}
	}
}

// UpdateController reassigns the pool's controller, notifying the old one
// as unassigned and the new one as assigned for every live mob.
func (mp *MobPool) UpdateController(tx Broadcaster, old ids.CharacterId, hasOld bool, new_ ids.CharacterId, hasNew, refresh bool) {
	mp.controller = new_
	mp.hasCtrl = hasNew
	UpdateController[*Mob](mp.pool, tx, old, new_, hasOld, hasNew, refresh)
}

// Items iterates every live mob in ascending ObjectId order.
func (mp *MobPool) Items(fn func(id ids.ObjectId, m *Mob)) { mp.pool.Items(fn) }

// MobStatReset/MobDamaged/MobHPIndicator/MobChangeController/MobSkillDelay
// are placeholder wire payloads analogous to MobEnter et al in mob.go.
type MobStatReset struct{ ID ids.ObjectId }
type MobDamaged struct {
	ID  ids.ObjectId
	Dmg uint32
	HP  uint32
}
type MobHPIndicator struct {
	ID  ids.ObjectId
	Pct int
}
type MobChangeController struct {
	ID              ids.ObjectId
	CalcDamageIndex uint32
}
type MobSkillDelay struct {
	ID      ids.ObjectId
	SkillID int
	Level   int
	Delay   delayqueue.GameTime
}
