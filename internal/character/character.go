// Package character implements the per-player domain model: position and
// primary stats (spec §3 "Character"), the skill set with cooldowns, the
// inventory set wiring internal/inventory's generic containers, pets and
// summons addressed by stable slab indices, and quest records (quest.go).
//
// Grounded on original_source/crates/shroom-game/src/life/char/{mod.rs,stats.rs,skill/mod.rs}.
package character

import (
	"github.com/l1jgo/server/internal/buff"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/inventory"
)

// BuffKey is the fixed universe of character buff/debuff kinds (spec §3
// "Buff set (character and mob)").
type BuffKey int

const (
	BuffHaste BuffKey = iota
	BuffWeaponAttackUp
	BuffMagicAttackUp
	BuffPhysicalGuardUp
	BuffMagicGuardUp
	BuffInvincible
	BuffPoison
	BuffSeal
	buffKeyCount
)

// StatPage identifies which SP-allocation scheme a job class uses (spec
// §3 invariant: "stats page index matches job class's SP scheme").
type StatPage int

// Stats holds every primary stat named in spec §3 "Character".
type Stats struct {
	HP, MP       ClampedStat[uint32]
	Str, Dex     int16
	Int, Luk     int16
	Level        int16
	Exp          int64
	Fame         int32
	AP           int16
	SPPages      map[StatPage]int16
	Money        ids.Money
	Job          int
	ActionLocked bool
}

// SkillEntry is one learned skill: level, optional mastery, optional
// expiry, and the metadata id it's keyed by.
type SkillEntry struct {
	Level     int
	Mastery   int
	ExpiresAt delayqueue.GameTime
	HasExpiry bool
}

// SkillSet is `skill_id → (level, mastery, expires_at?)` plus a cooldown
// map and pending-diff sets for batched client updates (spec §3 "Skill
// set").
type SkillSet struct {
	entries          map[ids.SkillId]SkillEntry
	cooldowns        map[ids.SkillId]delayqueue.GameTime
	pendingUpdates   map[ids.SkillId]struct{}
	pendingCooldowns map[ids.SkillId]struct{}
}

func NewSkillSet() *SkillSet {
	return &SkillSet{
		entries:          make(map[ids.SkillId]SkillEntry),
		cooldowns:        make(map[ids.SkillId]delayqueue.GameTime),
		pendingUpdates:   make(map[ids.SkillId]struct{}),
		pendingCooldowns: make(map[ids.SkillId]struct{}),
	}
}

// Learn sets or overwrites a skill entry and marks it for the next diff flush.
func (s *SkillSet) Learn(id ids.SkillId, entry SkillEntry) {
	s.entries[id] = entry
	s.pendingUpdates[id] = struct{}{}
}

func (s *SkillSet) Get(id ids.SkillId) (SkillEntry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Each calls fn once per learned skill, in no particular order (used by
// persistence to flatten the whole set for a full save).
func (s *SkillSet) Each(fn func(id ids.SkillId, e SkillEntry)) {
	for id, e := range s.entries {
		fn(id, e)
	}
}

// OnCooldown reports whether id is still cooling down at now.
func (s *SkillSet) OnCooldown(id ids.SkillId, now delayqueue.GameTime) bool {
	deadline, ok := s.cooldowns[id]
	return ok && now < deadline
}

// SetCooldown starts a cooldown for id, marking it for the next diff flush.
func (s *SkillSet) SetCooldown(id ids.SkillId, deadline delayqueue.GameTime) {
	s.cooldowns[id] = deadline
	s.pendingCooldowns[id] = struct{}{}
}

// TakeUpdated drains and returns the skill/cooldown ids that changed
// since the last flush (spec §4.7 "flushes updated skill/cooldown diffs").
func (s *SkillSet) TakeUpdated() (skills, cooldowns []ids.SkillId) {
	for id := range s.pendingUpdates {
		skills = append(skills, id)
	}
	for id := range s.pendingCooldowns {
		cooldowns = append(cooldowns, id)
	}
	s.pendingUpdates = make(map[ids.SkillId]struct{})
	s.pendingCooldowns = make(map[ids.SkillId]struct{})
	return skills, cooldowns
}

// Item is the minimal shape the character's inventories store: enough
// for the Adapter contract in internal/inventory. Objects are grouped and
// stacked by ItemID (the template id); ObjID is only the wire-facing
// per-instance identity.
type Item struct {
	ObjID    ids.ObjectId
	ItemID   ids.ItemId
	Quantity int32
	Unique   bool
}

// itemAdapter implements inventory.StackAdapter[*Item, int] for a plain
// slot-indexed (by int) character inventory. Uniqueness is learned at
// OnAdd time from the item's own Unique flag, since IsUnique is only
// handed the grouping id.
type itemAdapter struct {
	maxStack int32
	unique   map[int64]bool
	nextObj  ids.ObjectId
}

func newItemAdapter(maxStack int32) *itemAdapter {
	return &itemAdapter{maxStack: maxStack, unique: make(map[int64]bool)}
}

func (a *itemAdapter) ID(it *Item) int64    { return int64(it.ItemID) }
func (a *itemAdapter) IsUnique(id int64) bool { return a.unique[id] }

func (a *itemAdapter) OnAdd(it *Item, _ int) {
	if it.Unique {
		a.unique[int64(it.ItemID)] = true
	}
}
func (a *itemAdapter) OnRemove(*Item, int)  {}
func (a *itemAdapter) OnUpdate(*Item, int)  {}
func (a *itemAdapter) OnSwap(_, _ int)      {}

func (a *itemAdapter) Quantity(it *Item) int        { return int(it.Quantity) }
func (a *itemAdapter) SetQuantity(it *Item, q int)  { it.Quantity = int32(q) }
func (a *itemAdapter) MaxStackSize(*Item) int       { return int(a.maxStack) }
func (a *itemAdapter) OnQuantityChange(*Item, int)  {}

// NewStack materialises a brand-new instance of the template id,
// assigning it a fresh object id from this adapter's counter.
func (a *itemAdapter) NewStack(id int64, qty int) *Item {
	a.nextObj++
	return &Item{ObjID: a.nextObj, ItemID: ids.ItemId(id), Quantity: int32(qty)}
}

// InventoryKind distinguishes the character's separate inventory
// compartments (spec §3 "inventory set (equipped/equip/consume/install/
// etc/cash)").
type InventoryKind int

const (
	InvEquip InventoryKind = iota
	InvConsume
	InvInstall
	InvEtc
	InvCash
	invKindCount
)

// InventorySet owns one stack inventory per compartment, each a fixed
// capacity slot array.
type InventorySet struct {
	inv [invKindCount]*inventory.StackInventory[*Item, int]
}

// NewInventorySet builds an inventory set with capacity slots per
// compartment (a single uniform capacity here; callers that need
// per-compartment capacities construct compartments individually and
// assign them directly).
func NewInventorySet(capacity int, maxStack int32) *InventorySet {
	is := &InventorySet{}
	for k := InventoryKind(0); k < invKindCount; k++ {
		is.inv[k] = inventory.NewStack[*Item, int](newItemAdapter(maxStack), capacity)
	}
	return is
}

// Compartment returns the inventory for kind.
func (is *InventorySet) Compartment(kind InventoryKind) *inventory.StackInventory[*Item, int] {
	return is.inv[kind]
}

// PetSlot/SummonSlot are stable slab indices (spec §9 "Characters
// reference pets/summons via stable indices into an intrusive slab").
type PetSlot int
type SummonSlot int

// Pet is a tamed companion bound to one slab slot.
type Pet struct {
	TmplID ids.MobId
	Name   string
	Level  int16
}

// Summon is a temporary player-controlled or passive summon.
type Summon struct {
	SkillID ids.SkillId
	Pos     struct{ X, Y int16 }
}

// Character is the full per-player domain model (spec §3).
type Character struct {
	ID     ids.CharacterId
	Name   string
	Gender int
	Skin   int
	Face   int
	Hair   int

	Field      ids.FieldId
	SpawnPoint int
	Pos        struct{ X, Y int16 }
	Foothold   int32

	Stats Stats

	Buffs      *buff.Flags[BuffKey]
	BuffExpiry *buff.Expirations[BuffKey]

	Skills *SkillSet
	Inv    *InventorySet

	Pets    map[PetSlot]*Pet
	Summons map[SummonSlot]*Summon

	Quests *Quests

	events *delayqueue.Queue[CharEvent]
}

// CharEventKind distinguishes the kinds of self-scheduled character
// events (spec §3 "delay queue of pending character events").
type CharEventKind int

const (
	EventBuffTick CharEventKind = iota
	EventRegenTick
)

type CharEvent struct {
	Kind CharEventKind
}

// New builds a fresh character with empty buffs/skills/quests and a
// uniform-capacity inventory set (24 slots per compartment, matching the
// teacher's default starter capacity).
func New(id ids.CharacterId, name string, maxHP, maxMP uint32) *Character {
	flags := buff.NewFlags[BuffKey](int(buffKeyCount))
	return &Character{
		ID:   id,
		Name: name,
		Stats: Stats{
			HP:      Maxed(maxHP),
			MP:      Maxed(maxMP),
			Level:   1,
			SPPages: make(map[StatPage]int16),
		},
		Buffs:      flags,
		BuffExpiry: buff.NewExpirations[BuffKey](flags),
		Skills:     NewSkillSet(),
		Inv:        NewInventorySet(24, 100),
		Pets:       make(map[PetSlot]*Pet),
		Summons:    make(map[SummonSlot]*Summon),
		Quests:     NewQuests(),
		events:     delayqueue.New[CharEvent](),
	}
}

// OnTick advances buff expirations and drains any due self-scheduled
// events, returning the bitset of buffs that expired this tick so the
// session can emit removal packets (spec §4.7 "on_tick advances the
// character (buff expirations, stat diffs, pending events)").
func (c *Character) OnTick(now delayqueue.GameTime) *buff.Flags[BuffKey] {
	expired := c.BuffExpiry.UpdateExpirations(now)
	for {
		if _, _, ok := c.events.Pop(now); !ok {
			break
		}
	}
	return expired
}

// LevelUp applies a level-up using meta's next_level_exp curve, rolling
// over any excess exp (spec §3 invariant: "exp < next_level_exp(level)
// or overflow triggers level-up").
func (c *Character) LevelUp(nextLevelExp func(level int16) int64) {
	for {
		need := nextLevelExp(c.Stats.Level)
		if c.Stats.Exp < need {
			return
		}
		c.Stats.Exp -= need
		c.Stats.Level++
		c.Stats.AP += 5
	}
}
