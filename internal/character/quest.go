package character

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
)

// QuestDropFlags is the set of quest ids currently granting a drop-flag
// bit on some mob or reactor (spec SPEC_FULL.md §3).
type QuestDropFlags map[ids.QuestId]struct{}

func (f QuestDropFlags) Has(qid ids.QuestId) bool { _, ok := f[qid]; return ok }
func (f QuestDropFlags) Insert(qid ids.QuestId)   { f[qid] = struct{}{} }
func (f QuestDropFlags) Remove(qid ids.QuestId)   { delete(f, qid) }
func (f QuestDropFlags) Empty() bool              { return len(f) == 0 }

// Union returns f with every entry of other also present (used when
// multiple attackers' flags must be combined for a single drop roll).
func (f QuestDropFlags) Union(other QuestDropFlags) QuestDropFlags {
	out := make(QuestDropFlags, len(f)+len(other))
	for k := range f {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// CharQuestFlags tracks, per mob-or-reactor id, the union of quest ids
// whose end-condition is "kill this and get the bonus drop". Grounded on
// original_source life/char/quest.rs's CharQuestFlags<Id>.
type CharQuestFlags[Id comparable] struct {
	byID map[Id]QuestDropFlags
}

func NewCharQuestFlags[Id comparable]() *CharQuestFlags[Id] {
	return &CharQuestFlags[Id]{byID: make(map[Id]QuestDropFlags)}
}

func (c *CharQuestFlags[Id]) Add(targets []Id, qid ids.QuestId) {
	for _, id := range targets {
		f, ok := c.byID[id]
		if !ok {
			f = QuestDropFlags{}
			c.byID[id] = f
		}
		f.Insert(qid)
	}
}

func (c *CharQuestFlags[Id]) Remove(targets []Id, qid ids.QuestId) {
	for _, id := range targets {
		f, ok := c.byID[id]
		if !ok {
			continue
		}
		f.Remove(qid)
		if f.Empty() {
			delete(c.byID, id)
		}
	}
}

func (c *CharQuestFlags[Id]) Get(id Id) (QuestDropFlags, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// QuestRecord is the persisted state of one active quest: either a set of
// mob-kill counters or a free-form ex-record of k=v pairs (spec §6
// "Persisted domain format").
type QuestRecord interface {
	// Encode renders the record to its persisted string form.
	Encode() string
}

// MobKillQuest tracks kill counts toward a quest's mob requirements. Each
// counter is persisted as a fixed 3-digit field, concatenated in
// declaration order (spec §6).
type MobKillQuest struct {
	Mobs []MobKillEntry
}

type MobKillEntry struct {
	MobID  ids.MobId
	Cur    int
	Target int
}

// UpdateMobs increments the counter for mob by n (capped at target),
// reporting whether the record changed.
func (q *MobKillQuest) UpdateMobs(mob ids.MobId, n int) bool {
	changed := false
	for i := range q.Mobs {
		e := &q.Mobs[i]
		if e.MobID != mob || e.Cur >= e.Target {
			continue
		}
		e.Cur += n
		if e.Cur > e.Target {
			e.Cur = e.Target
		}
		changed = true
	}
	return changed
}

// Complete reports whether every mob counter has reached its target.
func (q *MobKillQuest) Complete() bool {
	for _, e := range q.Mobs {
		if e.Cur < e.Target {
			return false
		}
	}
	return true
}

func (q *MobKillQuest) Encode() string {
	var sb strings.Builder
	for _, e := range q.Mobs {
		fmt.Fprintf(&sb, "%03d", e.Cur)
	}
	return sb.String()
}

// DecodeMobKillQuest parses a MobKillQuest's persisted string given the
// mob/target list from metadata (counters are positional, 3 digits each,
// in declaration order).
func DecodeMobKillQuest(s string, mobs []MobKillEntry) (*MobKillQuest, error) {
	q := &MobKillQuest{Mobs: append([]MobKillEntry(nil), mobs...)}
	for i := range q.Mobs {
		start := i * 3
		if start+3 > len(s) {
			break
		}
		n, err := strconv.Atoi(s[start : start+3])
		if err != nil {
			return nil, fmt.Errorf("quest: bad mob-kill counter at %d: %w", i, err)
		}
		q.Mobs[i].Cur = n
	}
	return q, nil
}

// ExRecordQuest is a free-form set of k=v pairs, joined by ';', used by
// quests whose progress isn't a simple mob-kill tally.
type ExRecordQuest struct {
	Values map[string]string
}

func NewExRecordQuest() *ExRecordQuest {
	return &ExRecordQuest{Values: make(map[string]string)}
}

func (q *ExRecordQuest) Encode() string {
	keys := make([]string, 0, len(q.Values))
	for k := range q.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + q.Values[k]
	}
	return strings.Join(parts, ";")
}

func DecodeExRecordQuest(s string) *ExRecordQuest {
	q := NewExRecordQuest()
	if s == "" {
		return q
	}
	for _, part := range strings.Split(s, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		q.Values[kv[0]] = kv[1]
	}
	return q
}

// QuestCheckError enumerates why try_start_quest rejected an attempt
// (spec §7 domain error "QuestCheck{...}").
type QuestCheckError int

const (
	QuestCheckPreQuest QuestCheckError = iota
	QuestCheckJob
	QuestCheckField
	QuestCheckLevel
	QuestCheckInventory
)

func (e QuestCheckError) Error() string {
	switch e {
	case QuestCheckPreQuest:
		return "quest: prerequisite not completed"
	case QuestCheckJob:
		return "quest: wrong job"
	case QuestCheckField:
		return "quest: wrong field"
	case QuestCheckLevel:
		return "quest: level out of range"
	case QuestCheckInventory:
		return "quest: missing required item"
	default:
		return "quest: check failed"
	}
}

// Quests holds one character's quest state: completed quest timestamps,
// active records, and the mob/reactor drop-flag indices derived from
// active quests.
type Quests struct {
	Completed          map[ids.QuestId]int64
	Active             map[ids.QuestId]QuestRecord
	updated            map[ids.QuestId]struct{}
	MobDropFlags       *CharQuestFlags[ids.MobId]
	ReactorDropFlags   *CharQuestFlags[ids.ReactorId]
}

func NewQuests() *Quests {
	return &Quests{
		Completed:        make(map[ids.QuestId]int64),
		Active:           make(map[ids.QuestId]QuestRecord),
		updated:          make(map[ids.QuestId]struct{}),
		MobDropFlags:     NewCharQuestFlags[ids.MobId](),
		ReactorDropFlags: NewCharQuestFlags[ids.ReactorId](),
	}
}

func (q *Quests) IsActive(qid ids.QuestId) bool    { _, ok := q.Active[qid]; return ok }
func (q *Quests) IsCompleted(qid ids.QuestId) bool { _, ok := q.Completed[qid]; return ok }

// TryStartQuest validates prerequisites against catalogue metadata and, on
// success, installs an active mob-kill record.
func (q *Quests) TryStartQuest(qid ids.QuestId, cat *meta.Catalog, job int, field ids.FieldId, level int, mobReq []MobKillEntry) error {
	qm, ok := cat.Quest(qid)
	if !ok {
		return QuestCheckPreQuest
	}
	if qm.PreQuest != 0 && !q.IsCompleted(qm.PreQuest) {
		return QuestCheckPreQuest
	}
	if qm.Field != 0 && qm.Field != field {
		return QuestCheckField
	}
	if level < qm.MinLevel || (qm.MaxLevel > 0 && level > qm.MaxLevel) {
		return QuestCheckLevel
	}
	q.Active[qid] = &MobKillQuest{Mobs: mobReq}
	q.updated[qid] = struct{}{}
	return nil
}

// CompleteQuest moves qid from active to completed, clearing its drop flags.
func (q *Quests) CompleteQuest(qid ids.QuestId, completedAt int64, mobFlagTargets []ids.MobId, reactorFlagTargets []ids.ReactorId) {
	delete(q.Active, qid)
	delete(q.updated, qid)
	q.MobDropFlags.Remove(mobFlagTargets, qid)
	q.ReactorDropFlags.Remove(reactorFlagTargets, qid)
	q.Completed[qid] = completedAt
}

// OnMobKilled updates every active mob-kill record tracking mob.
func (q *Quests) OnMobKilled(mob ids.MobId, n int) {
	for qid, rec := range q.Active {
		if mk, ok := rec.(*MobKillQuest); ok && mk.UpdateMobs(mob, n) {
			q.updated[qid] = struct{}{}
		}
	}
}

// TakeUpdated drains and returns the set of quests whose record changed
// since the last call, for persistence/client sync.
func (q *Quests) TakeUpdated() []ids.QuestId {
	out := make([]ids.QuestId, 0, len(q.updated))
	for qid := range q.updated {
		out = append(out, qid)
	}
	q.updated = make(map[ids.QuestId]struct{})
	return out
}
