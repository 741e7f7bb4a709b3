package session

import (
	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
)

// Fixed class-skill ids the demo metadata catalogue ships with (spec
// §4.7 "invoke class handler which maps skill id → typed buff
// application or summon spawn or AoE"). The catalogue only carries
// job/mp-cost/cooldown; which *effect* a skill id has is a per-server
// content decision, so it's wired here rather than invented inside
// meta.Catalog.
const (
	SkillHaste       ids.SkillId = 1001
	SkillWeaponBoost ids.SkillId = 1002
	SkillHeal        ids.SkillId = 1003
)

const (
	hasteDurationTicks       = 30_000
	weaponBoostDurationTicks = 30_000
)

// DefaultSkillHandlers returns the class-skill handler table wired into
// every session (spec §4.7). Each handler only applies its effect;
// handleSkillUse debits mp before the handler runs, and arms the cooldown
// and clears the action lock after it returns.
func DefaultSkillHandlers() map[ids.SkillId]SkillHandler {
	return map[ids.SkillId]SkillHandler{
		SkillHaste:       hasteHandler,
		SkillWeaponBoost: weaponBoostHandler,
		SkillHeal:        healHandler,
	}
}

func hasteHandler(s *Session, sk meta.SkillMeta, level int, now delayqueue.GameTime) {
	s.Char.BuffExpiry.Insert(character.BuffHaste, now+hasteDurationTicks)
}

func weaponBoostHandler(s *Session, sk meta.SkillMeta, level int, now delayqueue.GameTime) {
	s.Char.BuffExpiry.Insert(character.BuffWeaponAttackUp, now+weaponBoostDurationTicks)
}

// healHandler restores hp proportional to skill level, matching the
// typical "heal" class skill shape rather than a flat constant.
func healHandler(s *Session, sk meta.SkillMeta, level int, now delayqueue.GameTime) {
	s.Char.Stats.HP.AddSigned(int64(level) * 50)
}
