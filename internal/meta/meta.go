// Package meta implements the static metadata catalogue (spec §6): field,
// mob, skill, quest, item-option and npc-shop lookups loaded once from
// on-disk YAML and shared immutably across every room.
//
// Grounded on internal/data's per-table yaml.v3 loaders, generalised from
// several parallel flat tables into one Catalog that owns all of them, the
// way spec §6 describes a single MetaService surface.
package meta

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/server/internal/ids"
)

// FieldMeta describes one map/room template: its spawn points and
// reactor templates.
type FieldMeta struct {
	ID          ids.FieldId   `yaml:"id"`
	Name        string        `yaml:"name"`
	ReturnField ids.FieldId   `yaml:"return_field"`
	Mobs        []MobSpawn    `yaml:"mobs"`
	Npcs        []NpcSpawn    `yaml:"npcs"`
	Reactors    []ReactorSpec `yaml:"reactors"`
}

type MobSpawn struct {
	TmplID     ids.MobId `yaml:"tmpl_id"`
	X          int16     `yaml:"x"`
	Y          int16     `yaml:"y"`
	Foothold   int32     `yaml:"foothold"`
	Flip       bool      `yaml:"flip"`
	RespawnSec int       `yaml:"respawn_sec"`
}

type NpcSpawn struct {
	TmplID   ids.NpcId `yaml:"tmpl_id"`
	X        int16     `yaml:"x"`
	Y        int16     `yaml:"y"`
	Foothold int32     `yaml:"foothold"`
	Flip     bool      `yaml:"flip"`
}

type ReactorSpec struct {
	ID  ids.ReactorId `yaml:"id"`
	X   int16         `yaml:"x"`
	Y   int16         `yaml:"y"`
}

// MobSkillEntry is a single cast slot on a mob's skill list: the template
// skill id/level plus any configured interval and effect delay.
type MobSkillEntry struct {
	SkillID      int `yaml:"skill_id"`
	Level        int `yaml:"level"`
	MpCost       int `yaml:"mp_cost"`
	IntervalSec  int `yaml:"interval_sec"`
	EffectAfterMs int `yaml:"effect_after_ms"`
	SummonLimit  int `yaml:"summon_limit"`
	SummonMobIDs []ids.MobId `yaml:"summon_mob_ids"`
	Kind         string `yaml:"kind"` // "buff", "partisan_buff", "char_buff", "dispel", "summon"

	// Stat selects which concrete buff/debuff "buff", "partisan_buff" and
	// "char_buff" grant (e.g. "power_up", "magic_up", "pguard_up",
	// "mguard_up", "haste", "heal", "poison"); an empty or unrecognised
	// value falls back to a seal-style debuff, matching the original's
	// per-kind enum of concrete MobSkill data variants.
	Stat       string `yaml:"stat"`
	HealAmount int32  `yaml:"heal_amount"` // only meaningful when Stat == "heal"
	DurationMs int    `yaml:"duration_ms"` // buff/debuff length; 0 = 5s default

	// RangeW/RangeH are the optional rectangle's full width/height,
	// centered on the casting mob's position at cast time; 0 means no
	// rectangle filter (applies room-wide), matching the original's
	// `Option<MobSkillRange>`.
	RangeW int16 `yaml:"range_w"`
	RangeH int16 `yaml:"range_h"`
}

// MobMeta is the static template data for a mob kind.
type MobMeta struct {
	ID         ids.MobId       `yaml:"id"`
	MaxHP      uint32          `yaml:"max_hp"`
	MaxMP      uint32          `yaml:"max_mp"`
	Exp        uint32          `yaml:"exp"`
	HPRecovery int32           `yaml:"hp_recovery"`
	MPRecovery int32           `yaml:"mp_recovery"`
	Skills     []MobSkillEntry `yaml:"skills"`
}

// SkillMeta is the static template data for a player skill.
type SkillMeta struct {
	ID        ids.SkillId `yaml:"id"`
	Job       int         `yaml:"job"`
	MpCost    int         `yaml:"mp_cost"`
	CooldownS int         `yaml:"cooldown_s"`
}

// QuestMeta is the static template data for a quest.
type QuestMeta struct {
	ID       ids.QuestId `yaml:"id"`
	Name     string      `yaml:"name"`
	MinLevel int         `yaml:"min_level"`
	MaxLevel int         `yaml:"max_level"`
	PreQuest ids.QuestId `yaml:"pre_quest"`
	Field    ids.FieldId `yaml:"field"`
}

// DropEntry is one weighted item/quantity entry in a mob's or reactor's
// drop table, optionally gated behind a quest drop-flag bit.
type DropEntry struct {
	ItemID     ids.ItemId `yaml:"item_id"`
	MinQty     int        `yaml:"min_qty"`
	MaxQty     int        `yaml:"max_qty"`
	Weight     int        `yaml:"weight"`
	QuestGate  int        `yaml:"quest_gate"` // 0 = ungated; else a quest-flag bit index
}

// ItemOptionMeta describes a random-option roll table entry for an item.
type ItemOptionMeta struct {
	ItemID ids.ItemId `yaml:"item_id"`
	Str    int        `yaml:"str"`
	Dex    int        `yaml:"dex"`
	Int    int        `yaml:"int"`
	Luk    int        `yaml:"luk"`
}

// NpcShopMeta lists the items an NPC sells.
type NpcShopMeta struct {
	NpcID ids.NpcId    `yaml:"npc_id"`
	Items []ids.ItemId `yaml:"items"`
}

type catalogFile struct {
	Fields      []FieldMeta      `yaml:"fields"`
	Mobs        []MobMeta        `yaml:"mobs"`
	Skills      []SkillMeta      `yaml:"skills"`
	Quests      []QuestMeta      `yaml:"quests"`
	MobDrops    []mobDropEntry   `yaml:"mob_drops"`
	ReactorDrops []reactorDropEntry `yaml:"reactor_drops"`
	ItemOptions []ItemOptionMeta `yaml:"item_options"`
	NpcShops    []NpcShopMeta    `yaml:"npc_shops"`
	LevelExp    []uint64         `yaml:"level_exp"`
}

type mobDropEntry struct {
	MobID ids.MobId   `yaml:"mob_id"`
	Drops []DropEntry `yaml:"drops"`
}

type reactorDropEntry struct {
	ReactorID ids.ReactorId `yaml:"reactor_id"`
	Drops     []DropEntry   `yaml:"drops"`
}

// Catalog is the immutable, process-wide metadata service (spec §6
// "Static metadata"). It is built once at startup and shared by every
// room via a pointer; no method mutates it after Load returns.
type Catalog struct {
	fields       map[ids.FieldId]FieldMeta
	mobs         map[ids.MobId]MobMeta
	skills       map[ids.SkillId]SkillMeta
	skillsByJob  map[int][]SkillMeta
	quests       map[ids.QuestId]QuestMeta
	mobDrops     map[ids.MobId][]DropEntry
	reactorDrops map[ids.ReactorId][]DropEntry
	itemOptions  map[ids.ItemId]ItemOptionMeta
	npcShops     map[ids.NpcId]NpcShopMeta
	levelExp     []uint64
}

// Load reads the catalogue from a single YAML file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata catalogue: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse metadata catalogue: %w", err)
	}

	c := &Catalog{
		fields:       make(map[ids.FieldId]FieldMeta, len(f.Fields)),
		mobs:         make(map[ids.MobId]MobMeta, len(f.Mobs)),
		skills:       make(map[ids.SkillId]SkillMeta, len(f.Skills)),
		skillsByJob:  make(map[int][]SkillMeta),
		quests:       make(map[ids.QuestId]QuestMeta, len(f.Quests)),
		mobDrops:     make(map[ids.MobId][]DropEntry, len(f.MobDrops)),
		reactorDrops: make(map[ids.ReactorId][]DropEntry, len(f.ReactorDrops)),
		itemOptions:  make(map[ids.ItemId]ItemOptionMeta, len(f.ItemOptions)),
		npcShops:     make(map[ids.NpcId]NpcShopMeta, len(f.NpcShops)),
		levelExp:     f.LevelExp,
	}
	for _, m := range f.Fields {
		c.fields[m.ID] = m
	}
	for _, m := range f.Mobs {
		c.mobs[m.ID] = m
	}
	for _, s := range f.Skills {
		c.skills[s.ID] = s
		c.skillsByJob[s.Job] = append(c.skillsByJob[s.Job], s)
	}
	for _, q := range f.Quests {
		c.quests[q.ID] = q
	}
	for _, d := range f.MobDrops {
		c.mobDrops[d.MobID] = d.Drops
	}
	for _, d := range f.ReactorDrops {
		c.reactorDrops[d.ReactorID] = d.Drops
	}
	for _, o := range f.ItemOptions {
		c.itemOptions[o.ItemID] = o
	}
	for _, s := range f.NpcShops {
		c.npcShops[s.NpcID] = s
	}
	return c, nil
}

func (c *Catalog) Field(id ids.FieldId) (FieldMeta, bool) { m, ok := c.fields[id]; return m, ok }
func (c *Catalog) Mob(id ids.MobId) (MobMeta, bool)       { m, ok := c.mobs[id]; return m, ok }
func (c *Catalog) Skill(id ids.SkillId) (SkillMeta, bool) { m, ok := c.skills[id]; return m, ok }
func (c *Catalog) SkillsForJob(job int) []SkillMeta       { return c.skillsByJob[job] }
func (c *Catalog) Quest(id ids.QuestId) (QuestMeta, bool) { m, ok := c.quests[id]; return m, ok }
func (c *Catalog) ItemOption(id ids.ItemId) (ItemOptionMeta, bool) {
	m, ok := c.itemOptions[id]
	return m, ok
}
func (c *Catalog) NpcShop(id ids.NpcId) (NpcShopMeta, bool) { m, ok := c.npcShops[id]; return m, ok }

// NextLevelExp returns the experience required to advance past level.
func (c *Catalog) NextLevelExp(level int) uint64 {
	if level < 1 || level > len(c.levelExp) {
		return 0
	}
	return c.levelExp[level-1]
}

// rollDrops picks item/quantity pairs from a weighted table, gated by
// questFlags, using rng.
func rollDrops(entries []DropEntry, questFlags func(bit int) bool, rng *rand.Rand) []ids.ItemDrop {
	var out []ids.ItemDrop
	for _, e := range entries {
		if e.QuestGate != 0 && (questFlags == nil || !questFlags(e.QuestGate)) {
			continue
		}
		if e.Weight <= 0 || rng.Intn(10000) >= e.Weight {
			continue
		}
		qty := e.MinQty
		if e.MaxQty > e.MinQty {
			qty += rng.Intn(e.MaxQty - e.MinQty + 1)
		}
		out = append(out, ids.ItemDrop{ItemID: e.ItemID, Quantity: qty})
	}
	return out
}

// DropsForMob returns the rolled item drops for a mob kill, gated by the
// union of attacking characters' quest drop flags.
func (c *Catalog) DropsForMob(mobID ids.MobId, questFlags func(bit int) bool, rng *rand.Rand) []ids.ItemDrop {
	return rollDrops(c.mobDrops[mobID], questFlags, rng)
}

// ReactorDrops returns the rolled item drops for a reactor break.
func (c *Catalog) ReactorDrops(reactorID ids.ReactorId, questFlags func(bit int) bool, rng *rand.Rand) []ids.ItemDrop {
	return rollDrops(c.reactorDrops[reactorID], questFlags, rng)
}

// MoneyDrop rolls a mesos amount for a generic kill (flat 1-100 range;
// callers scale by mob level/exp as needed).
func (c *Catalog) MoneyDrop(rng *rand.Rand) ids.Money {
	return ids.Money(1 + rng.Intn(100))
}
