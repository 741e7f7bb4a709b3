// Package script implements the NPC dialog engine (spec §9 "Coroutine
// control flow (NPC scripts)"; SPEC_FULL.md §4.11): one Lua coroutine per
// live conversation, resumed exactly once per player reply, running to
// its next suspension point (a line of text, a menu, a number prompt, or
// the dialog's end) and no further.
//
// Grounded on the teacher's internal/scripting.Engine — the same
// load-a-directory-of-.lua-files-into-one-VM shape, the same
// lInt/lStr table-reading helpers — generalised from synchronous
// formula calls (calc_melee_attack et al.) onto gopher-lua's coroutine
// API so a script can suspend mid-function instead of returning in one
// call.
package script

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ActionKind is the fixed set of suspension shapes an NPC script can
// yield (spec §9: "exactly one action per suspension").
type ActionKind int

const (
	ActionSay ActionKind = iota
	ActionAskMenu
	ActionAskNumber
	ActionEnd
)

// Action is what a dialog is waiting on after a resume: text to show,
// optionally with menu choices or a number prompt, or a signal that the
// conversation is over.
type Action struct {
	Kind    ActionKind
	Text    string
	Options []string
}

// Engine owns one Lua VM loaded with every NPC script in a directory,
// shared read-only across every Dialog spawned from it (the NPC scripts
// don't mutate globals at runtime, only the per-conversation coroutine
// state changes).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine loads every .lua file directly under scriptsDir into a fresh
// VM, exposing the say/ask_menu/ask_number bridge functions scripts call
// to drive a conversation. No item or quest bridge functions are exposed.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	e := &Engine{vm: vm, log: log}
	e.registerBridge()
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load npc scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs, matching the teacher's loadDir
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded npc script", zap.String("file", path))
	}
	return nil
}

// registerBridge installs the Go-backed globals a script body calls to
// suspend itself. Each one runs on whichever LState is actually
// executing the script (the conversation's own coroutine thread, once a
// Dialog has started it), so calling L.Yield there suspends exactly that
// conversation without touching any other live dialog.
func (e *Engine) registerBridge() {
	e.vm.SetGlobal("say", e.vm.NewFunction(func(l *lua.LState) int {
		text := l.CheckString(1)
		return l.Yield(lua.LNumber(ActionSay), lua.LString(text))
	}))
	e.vm.SetGlobal("ask_menu", e.vm.NewFunction(func(l *lua.LState) int {
		text := l.CheckString(1)
		opts := l.CheckTable(2)
		optsOut := l.NewTable()
		opts.ForEach(func(k, v lua.LValue) { optsOut.Append(v) })
		return l.Yield(lua.LNumber(ActionAskMenu), lua.LString(text), optsOut)
	}))
	e.vm.SetGlobal("ask_number", e.vm.NewFunction(func(l *lua.LState) int {
		text := l.CheckString(1)
		return l.Yield(lua.LNumber(ActionAskNumber), lua.LString(text))
	}))
}

// Close shuts down the underlying Lua VM.
func (e *Engine) Close() { e.vm.Close() }

// Dialog is one live NPC conversation: a Lua coroutine suspended between
// player replies. Not safe for concurrent use — a dialog belongs to the
// one session driving it, matching every other per-character state in
// this repo.
type Dialog struct {
	co      *lua.LState
	cancel  func()
	engine  *Engine
	started bool
	done    bool
}

// Start begins fnName(npc_id, char_id) on a fresh coroutine, running it
// to its first suspension point.
func (e *Engine) Start(fnName string, npcID, charID uint32) (*Dialog, Action, error) {
	fn, ok := e.vm.GetGlobal(fnName).(*lua.LFunction)
	if !ok {
		return nil, Action{}, fmt.Errorf("script: npc entry point %q not found", fnName)
	}
	co, cancel := e.vm.NewThread()
	d := &Dialog{co: co, cancel: cancel, engine: e}
	act, err := d.resume(fn, lua.LNumber(npcID), lua.LNumber(charID))
	return d, act, err
}

// Answer resumes the dialog with the player's reply to the last Action
// (a menu index as a number, a typed number, or "" acknowledging a plain
// say), running to the next suspension point.
func (d *Dialog) Answer(reply string) (Action, error) {
	if d.done {
		return Action{Kind: ActionEnd}, nil
	}
	return d.resume(nil, lua.LString(reply))
}

// Close abandons the dialog's coroutine without running it to
// completion (a player disconnecting or walking away mid-conversation).
func (d *Dialog) Close() {
	if !d.done {
		d.done = true
		d.cancel()
	}
}

func (d *Dialog) resume(fn *lua.LFunction, args ...lua.LValue) (Action, error) {
	state, rets, err := d.co.Resume(d.engine.vm, fn, args...)
	switch state {
	case lua.ResumeYield:
		return decodeAction(rets)
	case lua.ResumeOK:
		d.done = true
		return Action{Kind: ActionEnd}, nil
	default:
		d.done = true
		return Action{Kind: ActionEnd}, fmt.Errorf("script: dialog error: %w", err)
	}
}

// decodeAction turns a yield's return values (kind, text, [options])
// back into an Action.
func decodeAction(rets []lua.LValue) (Action, error) {
	if len(rets) == 0 {
		return Action{}, fmt.Errorf("script: empty yield")
	}
	kind := ActionKind(lua.LVAsNumber(rets[0]))
	act := Action{Kind: kind}
	if len(rets) > 1 {
		act.Text = lua.LVAsString(rets[1])
	}
	if len(rets) > 2 {
		if tbl, ok := rets[2].(*lua.LTable); ok {
			tbl.ForEach(func(_, v lua.LValue) {
				act.Options = append(act.Options, lua.LVAsString(v))
			})
		}
	}
	return act, nil
}
