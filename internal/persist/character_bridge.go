package persist

import (
	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/ids"
)

// CharacterFromRow rebuilds a domain character.Character from its
// persisted row plus its separately-stored skill and quest side tables.
// The row's columns were the teacher's own L1J-shaped schema (six
// stats: str/dex/con/wis/cha/intel); this repo's Character models four
// (str/dex/int/luk), so con and wis have no home here and are dropped —
// cha is carried over as the closest analogue of luk. Appearance
// (skin/face/hair) and foothold aren't tracked by the row either; they
// start zero-valued until a dedicated appearance column exists.
func CharacterFromRow(row *CharacterRow, skills []SkillRow, quests []QuestRow) *character.Character {
	c := character.New(ids.CharacterId(row.ID), row.Name, uint32(row.MaxHP), uint32(row.MaxMP))
	c.Gender = int(row.Sex)
	c.Field = ids.FieldId(row.MapID)
	c.SpawnPoint = 0
	c.Pos.X = int16(row.X)
	c.Pos.Y = int16(row.Y)

	c.Stats.Str = row.Str
	c.Stats.Dex = row.Dex
	c.Stats.Int = row.Intel
	c.Stats.Luk = row.Cha
	c.Stats.Level = row.Level
	c.Stats.Exp = row.Exp
	c.Stats.Job = int(row.ClassID)
	c.Stats.Money = ids.Money(0)
	c.Stats.HP.Value = uint32(row.HP)
	c.Stats.MP.Value = uint32(row.MP)

	for _, sk := range skills {
		c.Skills.Learn(ids.SkillId(sk.SkillID), character.SkillEntry{
			Level:   int(sk.Level),
			Mastery: int(sk.Mastery),
		})
	}

	// Completed quests and ex-record actives round-trip exactly;
	// mob-kill actives need the quest's required-mob list from content
	// data the catalogue doesn't carry yet, so those restart fresh
	// rather than restoring a record this repo can't decode faithfully.
	for _, q := range quests {
		if q.State == QuestRowCompleted {
			c.Quests.Completed[ids.QuestId(q.QuestID)] = 0
			continue
		}
		if q.Kind == "ex_record" {
			rec := character.DecodeExRecordQuest(q.Record)
			c.Quests.Active[ids.QuestId(q.QuestID)] = rec
		}
	}

	return c
}

// RowFromCharacter projects a domain Character's mutable fields back
// onto an existing row (loaded once at session start so fields this
// bridge doesn't model — title, clan, karma, and the rest of the L1J
// columns this repo's Character never represents — survive the
// round-trip unchanged).
func RowFromCharacter(row *CharacterRow, c *character.Character) {
	row.Sex = int16(c.Gender)
	row.MapID = int16(c.Field)
	row.X = int32(c.Pos.X)
	row.Y = int32(c.Pos.Y)
	row.Str = c.Stats.Str
	row.Dex = c.Stats.Dex
	row.Intel = c.Stats.Int
	row.Cha = c.Stats.Luk
	row.Level = c.Stats.Level
	row.Exp = c.Stats.Exp
	row.ClassID = int32(c.Stats.Job)
	row.HP = int16(c.Stats.HP.Value)
	row.MaxHP = int16(c.Stats.HP.Max)
	row.MP = int16(c.Stats.MP.Value)
	row.MaxMP = int16(c.Stats.MP.Max)
}

// SkillRowsFromCharacter flattens a character's learned skills into the
// persisted row shape SaveSkills expects.
func SkillRowsFromCharacter(c *character.Character) []SkillRow {
	var out []SkillRow
	c.Skills.Each(func(id ids.SkillId, e character.SkillEntry) {
		out = append(out, SkillRow{SkillID: int32(id), Level: int32(e.Level), Mastery: int32(e.Mastery)})
	})
	return out
}
