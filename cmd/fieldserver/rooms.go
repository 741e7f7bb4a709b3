package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/server/internal/admin"
	"github.com/l1jgo/server/internal/config"
	"github.com/l1jgo/server/internal/delayqueue"
	"github.com/l1jgo/server/internal/field"
	"github.com/l1jgo/server/internal/ids"
	"github.com/l1jgo/server/internal/meta"
	"github.com/l1jgo/server/internal/roomrt"
	"github.com/l1jgo/server/internal/session"
)

// roomEntry pairs a live room's simulation state with the mailbox its
// runner goroutine reads from.
type roomEntry struct {
	field  *field.Field
	runner *roomrt.Runner
}

// sessionLoc is where a named session currently lives, for the admin
// REPL's by-name lookups (spec §6 "Admin surface").
type sessionLoc struct {
	sess  *session.Session
	field ids.FieldId
}

// roomManager owns every live field room, lazily created from metadata
// on first use, and supervises their tick goroutines with errgroup
// (SPEC_FULL.md §2.1 commits x/sync/errgroup to this role in place of a
// bare sync.WaitGroup). It also implements roomrt.RoomController
// (cross-room transfer, idle shutdown) and admin.Registry (the REPL's
// view of live rooms/sessions).
type roomManager struct {
	mu    sync.Mutex
	rooms map[ids.FieldId]*roomEntry
	names map[string]*sessionLoc

	cfg     config.RoomConfig
	catalog *meta.Catalog
	log     *zap.Logger

	ctx   context.Context
	group *errgroup.Group

	clockMs int64 // advanced by runClock, read by each room's tick loop
	clockMu sync.RWMutex
}

func newRoomManager(ctx context.Context, group *errgroup.Group, cfg config.RoomConfig, catalog *meta.Catalog, log *zap.Logger) *roomManager {
	return &roomManager{
		rooms:   make(map[ids.FieldId]*roomEntry),
		names:   make(map[string]*sessionLoc),
		cfg:     cfg,
		catalog: catalog,
		log:     log,
		ctx:     ctx,
		group:   group,
	}
}

// runClock advances the shared game clock once per tick interval, the
// way roomrt.go's package doc describes: "one goroutine per room driven
// by a shared tick clock."
func (rm *roomManager) runClock() {
	ticker := time.NewTicker(rm.cfg.TickInterval)
	defer ticker.Stop()
	stepMs := int64(rm.cfg.TickInterval / time.Millisecond)
	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			rm.clockMu.Lock()
			rm.clockMs += stepMs
			rm.clockMu.Unlock()
		}
	}
}

func (rm *roomManager) now() delayqueue.GameTime {
	rm.clockMu.RLock()
	defer rm.clockMu.RUnlock()
	return delayqueue.GameTime(rm.clockMs)
}

// ensureRoom returns the live room for id, building and launching it on
// first use from the metadata catalogue's spawn list.
func (rm *roomManager) ensureRoom(id ids.FieldId) (*roomEntry, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if e, ok := rm.rooms[id]; ok {
		return e, nil
	}

	fm, ok := rm.catalog.Field(id)
	if !ok {
		return nil, fmt.Errorf("room: unknown field %d", id)
	}

	var spawnPoints []field.MobSpawnPoint
	for _, ms := range fm.Mobs {
		mm, ok := rm.catalog.Mob(ms.TmplID)
		if !ok {
			continue
		}
		gap := delayqueue.GameTime(ms.RespawnSec) * 1000
		spawnPoints = append(spawnPoints, field.MobSpawnPoint{
			TmplID:     ms.TmplID,
			Meta:       mm,
			Pos:        field.Point{X: ms.X, Y: ms.Y},
			RespawnGap: gap,
		})
	}

	rng := rand.New(rand.NewSource(int64(id)))
	mobs := field.NewMobPool(rm.now(), spawnPoints, rng)
	f := field.NewField(id, mobs, field.FlatGround{})
	runner := roomrt.NewRunner(f, rm, roomrt.RoomConfig{
		RoomChannelCap:     rm.cfg.RoomChannelCap,
		ShutdownAfterTicks: rm.cfg.ShutdownAfterTicks,
	}, rm.log)

	e := &roomEntry{field: f, runner: runner}
	rm.rooms[id] = e

	rm.group.Go(func() error {
		rm.driveRoom(id, runner)
		return nil
	})

	return e, nil
}

// driveRoom ticks one room's runner until it reports idle shutdown or
// the server is stopping.
func (rm *roomManager) driveRoom(id ids.FieldId, runner *roomrt.Runner) {
	ticker := time.NewTicker(rm.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			shutdown, err := runner.RunOnce(rm.now())
			if err != nil {
				rm.log.Error("room tick failed", zap.Uint32("field", uint32(id)), zap.Error(err))
				continue
			}
			if shutdown {
				runner.Shutdown()
				return
			}
		}
	}
}

// Join hands a freshly connected session to its character's home room,
// recording it in the by-name registry the admin REPL queries.
func (rm *roomManager) Join(fieldID ids.FieldId, sess *session.Session) error {
	e, err := rm.ensureRoom(fieldID)
	if err != nil {
		return err
	}
	rm.mu.Lock()
	rm.names[sess.Char.Name] = &sessionLoc{sess: sess, field: fieldID}
	rm.mu.Unlock()
	e.runner.Mailbox() <- roomrt.ControlMessage{Kind: roomrt.CtrlAddSession, Session: sess}
	return nil
}

// RemoveRoom satisfies roomrt.RoomController: drops a shut-down room
// from the registry so the next Join rebuilds it fresh.
func (rm *roomManager) RemoveRoom(id ids.FieldId) {
	rm.mu.Lock()
	delete(rm.rooms, id)
	rm.mu.Unlock()
}

// ChangeSessionToRoom satisfies roomrt.RoomController: runs on the
// departing room's own tick goroutine (spec §4.8 "Cross-room transfer"),
// so the send onto the destination mailbox is the only cross-goroutine
// step.
func (rm *roomManager) ChangeSessionToRoom(s roomrt.SessionActor, roomID ids.FieldId) {
	sess, ok := s.(*session.Session)
	if !ok {
		return
	}
	e, err := rm.ensureRoom(roomID)
	if err != nil {
		rm.log.Error("room transfer failed", zap.Uint32("to", uint32(roomID)), zap.Error(err))
		return
	}
	rm.mu.Lock()
	rm.names[sess.Char.Name] = &sessionLoc{sess: sess, field: roomID}
	rm.mu.Unlock()
	e.runner.Mailbox() <- roomrt.ControlMessage{Kind: roomrt.CtrlAddSession, Session: sess}
}

// RoomByField satisfies admin.Registry.
func (rm *roomManager) RoomByField(id ids.FieldId) (admin.RoomHandle, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	e, ok := rm.rooms[id]
	if !ok {
		return admin.RoomHandle{}, false
	}
	return admin.RoomHandle{Field: e.field, Mailbox: e.runner.Mailbox()}, true
}

// SessionByName satisfies admin.Registry.
func (rm *roomManager) SessionByName(name string) (*session.Session, ids.FieldId, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	loc, ok := rm.names[name]
	if !ok {
		return nil, 0, false
	}
	return loc.sess, loc.field, true
}
