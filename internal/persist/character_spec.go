package persist

import (
	"context"
	"encoding/json"
)

// This file adapts CharacterRepo's existing columns to the exact
// operation names the core calls (spec §6): check_name, create, get,
// list_for_account, delete, save, load_skills/save_skills,
// load_key_map/save_key_map, load_quests/save_quests. Most are thin
// renames over methods the teacher already had; skills/key-map/quests
// are new JSONB columns following the same pattern as the teacher's own
// known_spells/char_config columns in character_repo.go.

// CheckName reports whether name is already taken.
func (r *CharacterRepo) CheckName(ctx context.Context, name string) (bool, error) {
	return r.NameExists(ctx, name)
}

// Get loads one character by name, or nil if not found.
func (r *CharacterRepo) Get(ctx context.Context, name string) (*CharacterRow, error) {
	return r.LoadByName(ctx, name)
}

// ListForAccount lists every non-deleted character belonging to an
// account.
func (r *CharacterRepo) ListForAccount(ctx context.Context, accountName string) ([]CharacterRow, error) {
	return r.LoadByAccount(ctx, accountName)
}

// Delete soft-deletes a character (7-day grace period, matching
// SoftDelete's existing interval).
func (r *CharacterRepo) Delete(ctx context.Context, name string) error {
	return r.SoftDelete(ctx, name)
}

// Save persists every mutable character field.
func (r *CharacterRepo) Save(ctx context.Context, c *CharacterRow) error {
	return r.SaveCharacter(ctx, c)
}

// SkillRow is one persisted skill entry: level plus optional mastery
// and expiry, matching the character package's skill-set shape.
type SkillRow struct {
	SkillID   int32 `json:"skill_id"`
	Level     int32 `json:"level"`
	Mastery   int32 `json:"mastery,omitempty"`
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// LoadSkills loads the character's skill set from its JSONB column.
func (r *CharacterRepo) LoadSkills(ctx context.Context, charID int32) ([]SkillRow, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(skills, '[]'::jsonb) FROM characters WHERE id = $1 AND deleted_at IS NULL`, charID,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var skills []SkillRow
	if err := json.Unmarshal(raw, &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// SaveSkills persists the character's full skill set.
func (r *CharacterRepo) SaveSkills(ctx context.Context, charID int32, skills []SkillRow) error {
	if skills == nil {
		skills = []SkillRow{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `UPDATE characters SET skills = $1 WHERE id = $2`, data, charID)
	return err
}

// LoadKeyMap loads the character's keybinding map (key slot → action id).
func (r *CharacterRepo) LoadKeyMap(ctx context.Context, charID int32) (map[int32]int32, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(key_map, '{}'::jsonb) FROM characters WHERE id = $1 AND deleted_at IS NULL`, charID,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var m map[int32]int32
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveKeyMap persists the character's keybinding map.
func (r *CharacterRepo) SaveKeyMap(ctx context.Context, charID int32, keyMap map[int32]int32) error {
	if keyMap == nil {
		keyMap = map[int32]int32{}
	}
	data, err := json.Marshal(keyMap)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `UPDATE characters SET key_map = $1 WHERE id = $2`, data, charID)
	return err
}

// QuestRow is one persisted quest record: its encoded record string plus
// which encoding it uses, so LoadQuests can reconstruct either a
// MobKillQuest or an ExRecordQuest (spec §6 "persisted domain format").
// Quest completion state, persisted alongside each record.
const (
	QuestRowActive    int16 = 0
	QuestRowCompleted int16 = 1
)

type QuestRow struct {
	QuestID int32  `json:"quest_id"`
	Kind    string `json:"kind"` // "mob_kill" or "ex_record"
	Record  string `json:"record"`
	State   int16  `json:"state"` // QuestRowActive or QuestRowCompleted
}

// LoadQuests loads every quest record attached to a character.
func (r *CharacterRepo) LoadQuests(ctx context.Context, charID int32) ([]QuestRow, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(quests, '[]'::jsonb) FROM characters WHERE id = $1 AND deleted_at IS NULL`, charID,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var quests []QuestRow
	if err := json.Unmarshal(raw, &quests); err != nil {
		return nil, err
	}
	return quests, nil
}

// SaveQuests persists every quest record attached to a character. The
// core depends only on round-trip identity of the encoded record
// strings, not their byte layout (spec §6).
func (r *CharacterRepo) SaveQuests(ctx context.Context, charID int32, quests []QuestRow) error {
	if quests == nil {
		quests = []QuestRow{}
	}
	data, err := json.Marshal(quests)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `UPDATE characters SET quests = $1 WHERE id = $2`, data, charID)
	return err
}
