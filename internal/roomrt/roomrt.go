// Package roomrt implements the per-room actor runtime (spec §4.8): one
// goroutine per room driven by a shared tick clock, a bounded control
// mailbox, panic-isolated per-session ticks, idle shutdown, and cross-room
// session transfer.
//
// Grounded directly on original_source/crates/shroom-srv/src/act/room.rs,
// translated from its async-task-plus-tokio::select! model into Go's
// goroutine-plus-channel-select idiom; golang.org/x/sync/errgroup
// supervises the goroutine the way the teacher's cmd/l1jgo/main.go
// supervises its own long-running tasks.
package roomrt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/ids"
)

// MessagesPerTick bounds how many control messages one RunOnce drains
// before running the room's own tick, so a control-message storm cannot
// starve simulation (spec §5 "Suspension points").
const MessagesPerTick = 64

// RoomConfig tunes a room runtime's mailbox size and idle lifetime.
type RoomConfig struct {
	RoomChannelCap     int
	ShutdownAfterTicks int
}

// DefaultRoomConfig matches the original's RoomConfig::default().
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{RoomChannelCap: 256, ShutdownAfterTicks: 100}
}

// ControlKind distinguishes the three control-mailbox message shapes.
type ControlKind int

const (
	CtrlAddSession ControlKind = iota
	CtrlRemoveSession
	// CtrlFunc runs Fn on the room's own goroutine during message
	// draining, before this tick's OnTick/RunOnce pass. This is the
	// mailbox's general escape hatch for any external goroutine (the
	// admin REPL in particular) that needs to touch room or session
	// state without racing the tick loop — the same "only the owning
	// goroutine touches live state" discipline the rest of this package
	// already follows.
	CtrlFunc
)

// ControlMessage is sent to a room's mailbox to add or remove a session,
// or run an arbitrary function, out-of-band from the tick loop.
type ControlMessage struct {
	Kind     ControlKind
	Session  SessionActor
	RemoveID ids.CharacterId
	Fn       func(ctx *Context) error
}

// SessionActor is the contract a room-attached session must satisfy.
// Grounded on the original's SessionActor/TickActor traits, collapsed
// into one interface since Go has no separate on_msg dispatch layer here
// (the session package handles opcode dispatch internally).
type SessionActor interface {
	ID() ids.CharacterId
	RunOnce(ctx *Context) error
	OnEnterRoom(ctx *Context) error
	OnLeaveRoom(ctx *Context) error
}

// RoomActor is the contract a room's simulation state must satisfy.
type RoomActor interface {
	ID() ids.FieldId
	OnTick(ctx *Context, sessions []SessionActor) error
	OnMsg(ctx *Context, msg ControlMessage) error
	OnEnterSession(ctx *Context, s SessionActor) error
	OnLeaveSession(ctx *Context, s SessionActor) error
}

// RoomController is the owner a runtime reports room-lifecycle events to:
// shutdown notification and cross-room session transfer.
type RoomController interface {
	RemoveRoom(roomID ids.FieldId)
	ChangeSessionToRoom(session SessionActor, roomID ids.FieldId)
}

// NoopController discards every callback; useful in tests and for a
// room that never transfers sessions.
type NoopController struct{}

func (NoopController) RemoveRoom(ids.FieldId)                    {}
func (NoopController) ChangeSessionToRoom(SessionActor, ids.FieldId) {}

// Context is threaded through every on_tick/on_msg/RunOnce call within one
// RunOnce invocation: the current tick time and the outcome a session or
// the room itself wants to report (a room-change request or a fatal
// per-session error).
type Context struct {
	Time        delayqueue.GameTime
	Sessions    []SessionActor
	changeTo    ids.FieldId
	hasChangeTo bool
	errored     []ids.CharacterId
}

// RequestRoomChange marks the currently-ticking session for transfer to
// room id after this tick completes (spec §4.8 "Cross-room transfer").
func (c *Context) RequestRoomChange(id ids.FieldId) {
	c.changeTo = id
	c.hasChangeTo = true
}

// MarkError flags a session for removal after an infrastructure/protocol
// error that isn't a panic (spec §7 "Infrastructure errors").
func (c *Context) MarkError(id ids.CharacterId) {
	c.errored = append(c.errored, id)
}

// Mailbox is the sender half a controller uses to hand sessions to a
// running room.
type Mailbox chan<- ControlMessage

// Runner drives one room: its mailbox, its live session set in join
// order, and idle-shutdown bookkeeping.
type Runner struct {
	room       RoomActor
	ctrl       RoomController
	cfg        RoomConfig
	sessions   map[ids.CharacterId]SessionActor
	order      []ids.CharacterId
	ch         chan ControlMessage
	idleTicks  int
	changeRoom map[ids.CharacterId]ids.FieldId
	ctx        Context
	log        *zap.Logger
}

// NewRunner builds a Runner around room, ready to receive control
// messages on its mailbox and be driven tick-by-tick via RunOnce. log may
// be nil, in which case a no-op logger is used (tests in particular don't
// always wire one up).
func NewRunner(room RoomActor, ctrl RoomController, cfg RoomConfig, log *zap.Logger) *Runner {
	if cfg.RoomChannelCap <= 0 {
		cfg = DefaultRoomConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		room:       room,
		ctrl:       ctrl,
		cfg:        cfg,
		sessions:   make(map[ids.CharacterId]SessionActor),
		ch:         make(chan ControlMessage, cfg.RoomChannelCap),
		changeRoom: make(map[ids.CharacterId]ids.FieldId),
		log:        log.With(zap.Uint32("room", uint32(room.ID()))),
	}
}

// Mailbox returns the send-only handle external callers use to add or
// remove sessions.
func (r *Runner) Mailbox() Mailbox { return r.ch }

// SessionCount reports the current live session count.
func (r *Runner) SessionCount() int { return len(r.order) }

func (r *Runner) addSession(s SessionActor) error {
	if err := r.room.OnEnterSession(&r.ctx, s); err != nil {
		return err
	}
	if err := s.OnEnterRoom(&r.ctx); err != nil {
		return err
	}
	r.sessions[s.ID()] = s
	r.order = append(r.order, s.ID())
	return nil
}

func (r *Runner) removeSession(id ids.CharacterId) (SessionActor, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	delete(r.sessions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if err := r.room.OnLeaveSession(&r.ctx, s); err != nil {
		return s, err
	}
	// Drain any messages still pending for the session before it fully
	// detaches, mirroring the original's "process pending messages" step.
	if err := s.RunOnce(&r.ctx); err != nil {
		return s, err
	}
	if err := s.OnLeaveRoom(&r.ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (r *Runner) handleControlMsg(msg ControlMessage) error {
	switch msg.Kind {
	case CtrlAddSession:
		return r.addSession(msg.Session)
	case CtrlRemoveSession:
		_, err := r.removeSession(msg.RemoveID)
		return err
	case CtrlFunc:
		if msg.Fn == nil {
			return nil
		}
		return msg.Fn(&r.ctx)
	default:
		return r.room.OnMsg(&r.ctx, msg)
	}
}

func (r *Runner) handleErrors() {
	for _, id := range r.ctx.errored {
		if _, err := r.removeSession(id); err != nil {
			r.log.Error("error closing session", zap.Uint32("char", uint32(id)), zap.Error(err))
		}
	}
	r.ctx.errored = nil
}

func (r *Runner) handleTransfers() error {
	for id, roomID := range r.changeRoom {
		delete(r.changeRoom, id)
		sess, err := r.removeSession(id)
		if err != nil {
			return err
		}
		if sess != nil {
			r.ctrl.ChangeSessionToRoom(sess, roomID)
		}
	}
	return nil
}

// checkShutdown reports whether the room has now been empty for
// ShutdownAfterTicks consecutive ticks.
func (r *Runner) checkShutdown() bool {
	if len(r.order) > 0 {
		r.idleTicks = 0
		return false
	}
	r.idleTicks++
	return r.idleTicks >= r.cfg.ShutdownAfterTicks
}

// runOnceSafe calls s.RunOnce, converting a panic into an error so the
// room can isolate just this session (spec §4.6 "Failure", §7 "Panics").
func runOnceSafe(s SessionActor, ctx *Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("roomrt: session panic: %v", p)
		}
	}()
	return s.RunOnce(ctx)
}

// RunOnce drains up to MessagesPerTick control messages, runs the room's
// on_tick, then ticks every live session in join order, isolating panics
// and errors at session granularity (spec §4.8, §5 "Ordering guarantees").
// It returns true if the room should now shut down.
func (r *Runner) RunOnce(now delayqueue.GameTime) (shutdown bool, err error) {
	r.ctx.Time = now

	for i := 0; i < MessagesPerTick; i++ {
		select {
		case msg := <-r.ch:
			if err := r.handleControlMsg(msg); err != nil {
				return false, err
			}
		default:
			i = MessagesPerTick
		}
	}

	live := make([]SessionActor, len(r.order))
	for i, id := range r.order {
		live[i] = r.sessions[id]
	}
	r.ctx.Sessions = live
	if err := r.room.OnTick(&r.ctx, live); err != nil {
		return false, err
	}

	for _, id := range r.order {
		s := r.sessions[id]
		r.ctx.hasChangeTo = false
		if err := runOnceSafe(s, &r.ctx); err != nil {
			r.ctx.MarkError(id)
			continue
		}
		if r.ctx.hasChangeTo {
			r.changeRoom[id] = r.ctx.changeTo
		}
	}

	r.handleErrors()
	if err := r.handleTransfers(); err != nil {
		return false, err
	}

	return r.checkShutdown(), nil
}

// Shutdown notifies the controller the room is gone, drains any
// still-pending AddSession messages back to it (spec §4.8 "Idle
// shutdown"), and returns.
func (r *Runner) Shutdown() {
	r.ctrl.RemoveRoom(r.room.ID())
	for {
		select {
		case msg := <-r.ch:
			if msg.Kind == CtrlAddSession {
				r.ctrl.ChangeSessionToRoom(msg.Session, r.room.ID())
			}
		default:
			return
		}
	}
}
