package field

import (
	"math/rand"

	"github.com/l1jgo/server/internal/buff"
	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
)

// MobBuffKey enumerates the fixed universe of mob buff/debuff kinds a
// MobSkill can apply (spec §4.4 "Skill effects").
type MobBuffKey int

const (
	MobBuffSeal MobBuffKey = iota
	MobBuffPowerUp
	MobBuffMagicUp
	MobBuffPGuardUp
	MobBuffMGuardUp
	MobBuffHaste
	mobBuffKeyCount
)

// MobSkillEntry is one cast slot on a mob's skill list: the template
// skill plus whatever per-instance interval/summon-count bookkeeping
// try_cast needs (spec §4.4 "Skill scheduler").
type MobSkillEntry struct {
	Ix            int
	SkillID       int
	Level         int
	Kind          string
	MpCost        int
	IntervalTicks delayqueue.GameTime
	EffectAfter   delayqueue.GameTime
	SummonLimit   int
	SummonMobIDs  []ids.MobId

	// Stat selects the concrete buff/debuff a "buff", "partisan_buff" or
	// "char_buff" skill grants; HealAmount is only meaningful when Stat is
	// "heal"; DurationTicks is the buff/debuff length (0 falls back to a
	// fixed 5s default). RangeW/RangeH are the optional rectangle's full
	// width/height, centered on the caster's position at cast time — zero
	// means no rectangle filter (applies room-wide).
	Stat          string
	HealAmount    int32
	DurationTicks delayqueue.GameTime
	RangeW        int16
	RangeH        int16

	lastCastAt delayqueue.GameTime
	everCast   bool
	count      int // live summon count, for summon-limited skills
}

// TryCast checks mp/interval/summon-limit gates and, on success, debits
// mp and returns true (spec §4.4: "checks mp ≥ cost; checks the per-skill
// interval tracker (created lazily at 5s default); checks summon-limit").
func (s *MobSkillEntry) TryCast(now delayqueue.GameTime, mp *character.ClampedStat[uint32]) bool {
	if uint32(s.MpCost) > mp.Value {
		return false
	}
	interval := s.IntervalTicks
	if interval == 0 {
		interval = 5000 // 5s default, matches the original's lazy 5s tracker
	}
	if s.everCast && now-s.lastCastAt < interval {
		return false
	}
	if s.Kind == "summon" && s.SummonLimit > 0 && s.count >= s.SummonLimit {
		return false
	}
	s.lastCastAt = now
	s.everCast = true
	mp.AddSigned(-int64(s.MpCost))
	return true
}

// Mob is a live instance of a mob template spawned into a field. Grounded
// on original_source life/mob/mod.rs's Mob struct.
type Mob struct {
	TmplID  ids.MobId
	Meta    meta.MobMeta
	Pos     Point
	HP      character.ClampedStat[uint32]
	MP      character.ClampedStat[uint32]
	SpawnIx int
	HasSpawnIx bool

	Buffs       *buff.Flags[MobBuffKey]
	BuffExpiry  *buff.Expirations[MobBuffKey]
	Skills      []MobSkillEntry
	QuestFlags  character.QuestDropFlags
	CalcDamageIndex uint32

	ParentID      ids.ObjectId
	ParentSkillIx int
	HasParent     bool

	attackers map[ids.CharacterId]uint32
}

// Point is a field-local 2D coordinate.
type Point struct{ X, Y int16 }

// NewMob instantiates a mob from template metadata at pos.
func NewMob(tmplID ids.MobId, m meta.MobMeta, pos Point) *Mob {
	flags := buff.NewFlags[MobBuffKey](int(mobBuffKeyCount))
	skills := make([]MobSkillEntry, len(m.Skills))
	for i, sk := range m.Skills {
		skills[i] = MobSkillEntry{
			Ix:            i,
			SkillID:       sk.SkillID,
			Level:         sk.Level,
			Kind:          sk.Kind,
			MpCost:        sk.MpCost,
			IntervalTicks: delayqueue.GameTime(sk.IntervalSec) * 1000,
			EffectAfter:   delayqueue.GameTime(sk.EffectAfterMs),
			SummonLimit:   sk.SummonLimit,
			SummonMobIDs:  sk.SummonMobIDs,
			Stat:          sk.Stat,
			HealAmount:    sk.HealAmount,
			DurationTicks: delayqueue.GameTime(sk.DurationMs),
			RangeW:        sk.RangeW,
			RangeH:        sk.RangeH,
		}
	}
	return &Mob{
		TmplID:     tmplID,
		Meta:       m,
		Pos:        pos,
		HP:         character.Maxed(m.MaxHP),
		MP:         character.Maxed(m.MaxMP),
		Buffs:      flags,
		BuffExpiry: buff.NewExpirations[MobBuffKey](flags),
		Skills:     skills,
		QuestFlags: character.QuestDropFlags{},
		CalcDamageIndex: 1,
		attackers:  make(map[ids.CharacterId]uint32),
	}
}

// Damage applies dmg to hp (saturating) and records the attacker's share.
func (m *Mob) Damage(dmg uint32, attacker ids.CharacterId) {
	m.attackers[attacker] += dmg
	m.HP.AddSigned(-int64(dmg))
}

func (m *Mob) IsDead() bool { return m.HP.IsZero() }

// Attackers returns a snapshot of (attacker, total damage dealt) pairs.
func (m *Mob) Attackers() map[ids.CharacterId]uint32 {
	out := make(map[ids.CharacterId]uint32, len(m.attackers))
	for k, v := range m.attackers {
		out[k] = v
	}
	return out
}

// NextSkillIx picks a random start offset into the skill list and returns
// the first castable skill index found scanning from there, or false if
// none is castable right now (spec §4.4).
func (m *Mob) NextSkillIx(now delayqueue.GameTime, rng *rand.Rand) (int, bool) {
	if m.Buffs.Has(MobBuffSeal) || len(m.Skills) == 0 {
		return 0, false
	}
	n := len(m.Skills)
	off := rng.Intn(n)
	for i := 0; i < n; i++ {
		ix := (i + off) % n
		if m.Skills[ix].TryCast(now, &m.MP) {
			return ix, true
		}
	}
	return 0, false
}

func (m *Mob) EnterMsg() any { return MobEnter{ID: 0, TmplID: m.TmplID, Pos: m.Pos} }
func (m *Mob) LeaveMsg(reason LeaveReason) any {
	return MobLeave{TmplID: m.TmplID, Reason: reason}
}
func (m *Mob) AssignMsg(refresh bool) any  { return MobAssignCtrl{TmplID: m.TmplID, Refresh: refresh} }
func (m *Mob) UnassignMsg() any            { return MobUnassignCtrl{TmplID: m.TmplID} }

// MobEnter/MobLeave/MobAssignCtrl/MobUnassignCtrl are placeholder wire
// payloads; the net/codec layer maps these onto the opaque opcode frames
// described in spec §6 "Wire codec".
type MobEnter struct {
	ID     ids.ObjectId
	TmplID ids.MobId
	Pos    Point
}
type MobLeave struct {
	TmplID ids.MobId
	Reason LeaveReason
}
type MobAssignCtrl struct {
	TmplID  ids.MobId
	Refresh bool
}
type MobUnassignCtrl struct {
	TmplID ids.MobId
}
