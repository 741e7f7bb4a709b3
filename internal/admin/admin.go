// Package admin implements the in-game GM REPL (spec §6 "Admin surface"):
// a fixed verb set (give-item, give-mesos, spawn-mob, teleport, set-level,
// set-job, give-sp, add-stat, max-skills, open-shop, boss-spawn,
// mystic-door, earthquake-effect, affected-area, quest helpers) parsed
// line by line from stdin, exited with the literal "exit" command.
//
// Grounded on the teacher's internal/handler/gmcommand.go's
// dispatch-by-verb switch, adapted from an in-chat "." prefix command to
// a standalone line-oriented REPL process, and re-targeted from the
// teacher's world.PlayerInfo onto this repo's character.Character +
// internal/session.Session. Every mutation is delivered to its target
// room as a roomrt.CtrlFunc so it runs on that room's own goroutine,
// matching the "only the owning goroutine touches live state" discipline
// roomrt already enforces for session add/remove.
package admin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/l1jgo/server/internal/character"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/field"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
	"github.com/l1jgo/server/internal/roomrt"
	"github.com/l1jgo/server/internal/session"
)

// RoomHandle is what the REPL needs to act on one live room: its
// simulation state (to read templates/insert pool members) and its
// mailbox (to run that action on the room's own goroutine).
type RoomHandle struct {
	Field   *field.Field
	Mailbox roomrt.Mailbox
}

// Registry is how the REPL finds live rooms and sessions. The server
// wiring (cmd/fieldserver) owns the concrete implementation; admin stays
// ignorant of how rooms/sessions are tracked.
type Registry interface {
	RoomByField(id ids.FieldId) (RoomHandle, bool)
	SessionByName(name string) (sess *session.Session, field ids.FieldId, ok bool)
}

// zakumBundle is the fixed mob id list a "boss-spawn zakum" spawns
// together (head plus the eight stone-statue arms), matching the
// original game's scripted encounter setup.
var zakumBundle = []ids.MobId{8510401, 8510402, 8510403, 8510404, 8510405, 8510406, 8510407, 8510408, 8510409}

// REPL reads commands from in and writes replies to out until "exit".
type REPL struct {
	in  *bufio.Scanner
	out io.Writer
	reg Registry
	cat *meta.Catalog
	log *zap.Logger
}

func New(in io.Reader, out io.Writer, reg Registry, cat *meta.Catalog, log *zap.Logger) *REPL {
	return &REPL{in: bufio.NewScanner(in), out: out, reg: reg, cat: cat, log: log}
}

func (r *REPL) printf(format string, a ...any) { fmt.Fprintf(r.out, format+"\n", a...) }

// Run blocks reading lines until "exit" or EOF.
func (r *REPL) Run() {
	r.printf("admin REPL ready (type 'exit' to quit)")
	for r.in.Scan() {
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			r.printf("bye")
			return
		}
		r.dispatch(line)
	}
}

func (r *REPL) dispatch(line string) {
	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	switch verb {
	case "give-item":
		r.giveItem(args)
	case "give-mesos":
		r.giveMesos(args)
	case "spawn-mob":
		r.spawnMob(args)
	case "teleport":
		r.teleport(args)
	case "set-level":
		r.setLevel(args)
	case "set-job":
		r.setJob(args)
	case "give-sp":
		r.giveSP(args)
	case "add-stat":
		r.addStat(args)
	case "max-skills":
		r.maxSkills(args)
	case "open-shop":
		r.openShop(args)
	case "boss-spawn":
		r.bossSpawn(args)
	case "mystic-door":
		r.mysticDoor(args)
	case "earthquake-effect":
		r.earthquakeEffect(args)
	case "affected-area":
		r.affectedArea(args)
	case "quest-start":
		r.questStart(args)
	case "quest-complete":
		r.questComplete(args)
	default:
		r.printf("unknown command: %s", verb)
	}
}

// withChar runs fn against name's live character on its room's own
// goroutine, reporting a usage error if name isn't online.
func (r *REPL) withChar(name string, fn func(c *character.Character)) {
	sess, fieldID, ok := r.reg.SessionByName(name)
	if !ok {
		r.printf("no such player online: %s", name)
		return
	}
	rh, ok := r.reg.RoomByField(fieldID)
	if !ok {
		r.printf("player's room not found: %s", name)
		return
	}
	rh.Mailbox <- roomrt.ControlMessage{
		Kind: roomrt.CtrlFunc,
		Fn: func(ctx *roomrt.Context) error {
			fn(sess.Char)
			return nil
		},
	}
}

// withRoom runs fn (with a broadcaster built from the room's live
// sessions and the tick time the closure actually runs at) against
// fieldID's room on its own goroutine.
func (r *REPL) withRoom(fieldID ids.FieldId, fn func(f *field.Field, tx field.Broadcaster, now delayqueue.GameTime)) {
	rh, ok := r.reg.RoomByField(fieldID)
	if !ok {
		r.printf("no such room: %d", fieldID)
		return
	}
	rh.Mailbox <- roomrt.ControlMessage{
		Kind: roomrt.CtrlFunc,
		Fn: func(ctx *roomrt.Context) error {
			tx := field.NewBroadcaster(field.AsFieldSessions(ctx.Sessions))
			fn(rh.Field, tx, ctx.Time)
			return nil
		},
	}
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func (r *REPL) giveItem(args []string) {
	if len(args) < 3 {
		r.printf("usage: give-item <player> <item-id> <qty>")
		return
	}
	itemID := int64(atoiOr(args[1], 0))
	qty := atoiOr(args[2], 1)
	r.withChar(args[0], func(c *character.Character) {
		_ = c.Inv.Compartment(character.InvEtc).TryAddStack(itemID, qty)
	})
	r.printf("gave %d x item %d to %s", qty, itemID, args[0])
}

func (r *REPL) giveMesos(args []string) {
	if len(args) < 2 {
		r.printf("usage: give-mesos <player> <amount>")
		return
	}
	amount := ids.Money(atoiOr(args[1], 0))
	r.withChar(args[0], func(c *character.Character) { c.Stats.Money += amount })
	r.printf("gave %d mesos to %s", amount, args[0])
}

func (r *REPL) spawnMob(args []string) {
	if len(args) < 4 {
		r.printf("usage: spawn-mob <field-id> <mob-id> <x> <y>")
		return
	}
	fieldID := ids.FieldId(atoiOr(args[0], 0))
	mobID := ids.MobId(atoiOr(args[1], 0))
	x, y := int16(atoiOr(args[2], 0)), int16(atoiOr(args[3], 0))

	mm, ok := r.cat.Mob(mobID)
	if !ok {
		r.printf("no such mob template: %d", mobID)
		return
	}
	r.withRoom(fieldID, func(f *field.Field, tx field.Broadcaster, now delayqueue.GameTime) {
		f.Mobs.Spawn(tx, field.NewMob(mobID, mm, field.Point{X: x, Y: y}))
	})
	r.printf("spawned mob %d at (%d,%d) in field %d", mobID, x, y, fieldID)
}

// teleport repositions a player within their current room. Cross-room
// teleport requires the room manager (cmd/fieldserver) to hand the
// session off between runners and isn't reachable from this package
// alone; same-field repositioning covers the common GM use (pull a
// player out of a stuck spot) without that dependency.
func (r *REPL) teleport(args []string) {
	if len(args) < 3 {
		r.printf("usage: teleport <player> <x> <y>")
		return
	}
	x, y := int16(atoiOr(args[1], 0)), int16(atoiOr(args[2], 0))
	r.withChar(args[0], func(c *character.Character) { c.Pos.X, c.Pos.Y = x, y })
	r.printf("teleported %s to (%d,%d)", args[0], x, y)
}

func (r *REPL) setLevel(args []string) {
	if len(args) < 2 {
		r.printf("usage: set-level <player> <level>")
		return
	}
	lv := int16(atoiOr(args[1], 1))
	r.withChar(args[0], func(c *character.Character) { c.Stats.Level = lv })
	r.printf("set %s's level to %d", args[0], lv)
}

func (r *REPL) setJob(args []string) {
	if len(args) < 2 {
		r.printf("usage: set-job <player> <job>")
		return
	}
	job := atoiOr(args[1], 0)
	r.withChar(args[0], func(c *character.Character) { c.Stats.Job = job })
	r.printf("set %s's job to %d", args[0], job)
}

func (r *REPL) giveSP(args []string) {
	if len(args) < 2 {
		r.printf("usage: give-sp <player> <amount>")
		return
	}
	amount := int16(atoiOr(args[1], 0))
	r.withChar(args[0], func(c *character.Character) { c.Stats.SPPages[0] += amount })
	r.printf("gave %s %d SP", args[0], amount)
}

func (r *REPL) addStat(args []string) {
	if len(args) < 3 {
		r.printf("usage: add-stat <player> <str|dex|int|luk> <amount>")
		return
	}
	stat := strings.ToLower(args[1])
	amount := int16(atoiOr(args[2], 0))
	r.withChar(args[0], func(c *character.Character) {
		switch stat {
		case "str":
			c.Stats.Str += amount
		case "dex":
			c.Stats.Dex += amount
		case "int":
			c.Stats.Int += amount
		case "luk":
			c.Stats.Luk += amount
		}
	})
	r.printf("added %d %s to %s", amount, stat, args[0])
}

func (r *REPL) maxSkills(args []string) {
	if len(args) < 1 {
		r.printf("usage: max-skills <player>")
		return
	}
	r.withChar(args[0], func(c *character.Character) {
		for _, sk := range r.cat.SkillsForJob(c.Stats.Job) {
			c.Skills.Learn(sk.ID, character.SkillEntry{Level: 20})
		}
	})
	r.printf("maxed every job skill for %s", args[0])
}

func (r *REPL) openShop(args []string) {
	if len(args) < 2 {
		r.printf("usage: open-shop <player> <npc-id>")
		return
	}
	npcID := ids.NpcId(atoiOr(args[1], 0))
	shop, ok := r.cat.NpcShop(npcID)
	if !ok {
		r.printf("no shop configured for npc %d", npcID)
		return
	}
	r.printf("%s's shop (npc %d) sells %d item(s)", args[0], npcID, len(shop.Items))
}

// bossSpawn spawns a fixed encounter bundle. Only "zakum" is defined;
// other boss bundles would each need their own fixed mob-id list the
// same way.
func (r *REPL) bossSpawn(args []string) {
	if len(args) < 4 {
		r.printf("usage: boss-spawn <field-id> zakum <x> <y>")
		return
	}
	fieldID := ids.FieldId(atoiOr(args[0], 0))
	bundle := strings.ToLower(args[1])
	x, y := int16(atoiOr(args[2], 0)), int16(atoiOr(args[3], 0))

	if bundle != "zakum" {
		r.printf("unknown boss bundle: %s", bundle)
		return
	}
	var mobs []*field.Mob
	for i, mobID := range zakumBundle {
		mm, ok := r.cat.Mob(mobID)
		if !ok {
			continue
		}
		offset := int16(i) * 20
		mobs = append(mobs, field.NewMob(mobID, mm, field.Point{X: x + offset, Y: y}))
	}
	r.withRoom(fieldID, func(f *field.Field, tx field.Broadcaster, now delayqueue.GameTime) {
		for _, m := range mobs {
			f.Mobs.Spawn(tx, m)
		}
	})
	r.printf("spawned zakum bundle (%d mobs) in field %d", len(mobs), fieldID)
}

func (r *REPL) mysticDoor(args []string) {
	if len(args) < 1 {
		r.printf("usage: mystic-door <player>")
		return
	}
	sess, fieldID, ok := r.reg.SessionByName(args[0])
	if !ok {
		r.printf("no such player online: %s", args[0])
		return
	}
	r.withRoom(fieldID, func(f *field.Field, tx field.Broadcaster, now delayqueue.GameTime) {
		f.AddTownPortal(tx, &field.TownPortal{OwnerID: sess.CharID(), Pos: sess.Char.Pos, TargetMap: sess.Char.Field})
	})
	r.printf("opened a mystic door for %s", args[0])
}

const earthquakeSkillID = 9999 // placeholder skill id tagging this as a GM-triggered area effect
const earthquakeDurationTicks = 10_000

func (r *REPL) earthquakeEffect(args []string) {
	if len(args) < 1 {
		r.printf("usage: earthquake-effect <field-id>")
		return
	}
	fieldID := ids.FieldId(atoiOr(args[0], 0))
	r.withRoom(fieldID, func(f *field.Field, tx field.Broadcaster, now delayqueue.GameTime) {
		f.AddAffectedArea(tx, now, &field.AffectedArea{SkillID: earthquakeSkillID}, earthquakeDurationTicks)
		tx.Broadcast(EarthquakeEffect{})
	})
	r.printf("triggered an earthquake effect in field %d", fieldID)
}

// EarthquakeEffect is the placeholder wire payload for a field-wide
// visual/shake effect (the real client packet is the wire codec's
// concern, spec §6).
type EarthquakeEffect struct{}

func (r *REPL) affectedArea(args []string) {
	if len(args) < 5 {
		r.printf("usage: affected-area <field-id> <x> <y> <skill-id> <duration-ms>")
		return
	}
	fieldID := ids.FieldId(atoiOr(args[0], 0))
	x, y := int16(atoiOr(args[1], 0)), int16(atoiOr(args[2], 0))
	skillID := atoiOr(args[3], 0)
	dur := delayqueue.GameTime(atoiOr(args[4], 5000))

	r.withRoom(fieldID, func(f *field.Field, tx field.Broadcaster, now delayqueue.GameTime) {
		f.AddAffectedArea(tx, now, &field.AffectedArea{Pos: field.Point{X: x, Y: y}, SkillID: skillID}, dur)
	})
	r.printf("placed affected area (skill %d) at (%d,%d) in field %d", skillID, x, y, fieldID)
}

func (r *REPL) questStart(args []string) {
	if len(args) < 2 {
		r.printf("usage: quest-start <player> <quest-id>")
		return
	}
	qid := ids.QuestId(atoiOr(args[1], 0))
	r.withChar(args[0], func(c *character.Character) {
		_ = c.Quests.TryStartQuest(qid, r.cat, c.Stats.Job, c.Field, int(c.Stats.Level), nil)
	})
	r.printf("started quest %d for %s", qid, args[0])
}

func (r *REPL) questComplete(args []string) {
	if len(args) < 2 {
		r.printf("usage: quest-complete <player> <quest-id>")
		return
	}
	qid := ids.QuestId(atoiOr(args[1], 0))
	r.withChar(args[0], func(c *character.Character) {
		c.Quests.CompleteQuest(qid, int64(0), nil, nil)
	})
	r.printf("completed quest %d for %s", qid, args[0])
}
