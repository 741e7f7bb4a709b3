package buff

import (
	"sync/atomic"

	"github.com/l1jgo/server/internal/delayqueue"
)

// GameTime is a tick-based monotonic timestamp local to a room's clock.
type GameTime = delayqueue.GameTime

// generation is the process-wide monotonic counter backing every
// Expirations instance. Per spec DESIGN NOTES: "The generation counter
// must be monotonic per process (not per key) to avoid ABA across rapid
// insert/remove/insert cycles." Sharing one atomic counter across all
// rooms/characters/mobs satisfies that without any cross-room coordination
// beyond the atomic add itself.
var generation atomic.Uint64

// NextGeneration returns the next process-wide generation value. Exposed so
// tests can observe monotonicity and so callers that need to pre-allocate a
// generation (e.g. to hand to a newly constructed buff before enqueuing it)
// can do so.
func NextGeneration() uint64 {
	return generation.Add(1)
}

// state is the per-key bookkeeping backing a live buff: the entry a
// caller sees is the latest (deadline, gen); a queued (key, gen) pair is
// stale once gen no longer matches.
type state struct {
	deadline GameTime
	gen      uint64
	extended bool
	active   bool
}

// queuedKey is the delay-queue payload: which buff key is expiring. The
// generation it was queued at travels as the queue entry's own gen.
type queuedKey[K Key] struct {
	key K
}

// Expirations layers a generation-stamped delay queue over a Flags bitset
// to support extension and cancellation of per-key expirations without an
// O(N) scan (spec §3 "Buff set", §4.2).
type Expirations[K Key] struct {
	flags   *Flags[K]
	states  []state
	queue   *delayqueue.Queue[queuedKey[K]]
}

// NewExpirations builds an Expirations over the same fixed key universe as
// flags (flags.Len() keys, indices [0, n)).
func NewExpirations[K Key](flags *Flags[K]) *Expirations[K] {
	return &Expirations[K]{
		flags:  flags,
		states: make([]state, flags.Len()),
		queue:  delayqueue.New[queuedKey[K]](),
	}
}

func (e *Expirations[K]) idx(k K) int { return int(k) }

// Insert starts (or restarts) key's expiration at deadline, setting its
// flag and bumping its generation so any previously queued entry for this
// key becomes stale.
func (e *Expirations[K]) Insert(k K, deadline GameTime) {
	i := e.idx(k)
	gen := NextGeneration()
	e.states[i] = state{deadline: deadline, gen: gen, extended: false, active: true}
	e.flags.Set(k)
	e.queue.Push(queuedKey[K]{key: k}, deadline, gen)
}

// Extend raises key's deadline without touching its generation or
// re-enqueuing; the stale queue entry's eventual pop re-enqueues it at the
// new deadline (see NextExpired). A key that is not active is inserted
// fresh instead, as Insert does.
func (e *Expirations[K]) Extend(k K, deadline GameTime) {
	i := e.idx(k)
	if !e.states[i].active {
		e.Insert(k, deadline)
		return
	}
	if deadline > e.states[i].deadline {
		e.states[i].deadline = deadline
	}
	e.states[i].extended = true
}

// ExpirationDur returns the remaining duration (in ticks, never negative)
// until key's expiration, relative to now.
func (e *Expirations[K]) ExpirationDur(k K, now GameTime) GameTime {
	i := e.idx(k)
	if !e.states[i].active {
		return 0
	}
	d := e.states[i].deadline - now
	if d < 0 {
		return 0
	}
	return d
}

// MarkRemoved clears key's flag and bumps its generation, invalidating any
// queue entry for it (spec §4.2 "Invariants": cancelling by id removes the
// flag AND marks the generation removed).
func (e *Expirations[K]) MarkRemoved(k K) {
	i := e.idx(k)
	e.states[i].gen++
	e.states[i].active = false
	e.flags.Clear(k)
}

// Active reports whether key currently has a live expiration.
func (e *Expirations[K]) Active(k K) bool {
	return e.states[e.idx(k)].active
}

// NextExpired implements the §4.2 next_expired loop: it pops queue entries,
// discards stale ones, re-enqueues entries that were merely extended, and
// returns the first key whose deadline has genuinely passed.
func (e *Expirations[K]) NextExpired(now GameTime) (K, bool) {
	for {
		qv, gen, ok := e.queue.Pop(now)
		if !ok {
			var zero K
			return zero, false
		}
		i := e.idx(qv.key)
		st := &e.states[i]
		if gen != st.gen {
			continue // stale: cancelled or rebound since this entry was queued
		}
		if st.deadline > now {
			if st.extended {
				st.extended = false
				e.queue.Push(qv, st.deadline, st.gen)
				continue
			}
			// Not actually due yet (can happen if Pop's deadline test used a
			// stale heap ordering after an extend); push back and stop.
			e.queue.Push(qv, st.deadline, st.gen)
			var zero K
			return zero, false
		}
		return qv.key, true
	}
}

// TakeUpdated returns the set of buff keys whose values must be
// re-broadcast this tick. Expirations keeps no per-key dirty tracking,
// so the returned set is always empty.
func (e *Expirations[K]) TakeUpdated() *Flags[K] {
	return NewFlags[K](e.flags.Len())
}

// UpdateExpirations drains every expiration due at or before now, clears
// the corresponding flags, and returns the bitset of keys that just
// expired so removal packets can be emitted.
func (e *Expirations[K]) UpdateExpirations(now GameTime) *Flags[K] {
	expired := NewFlags[K](e.flags.Len())
	for {
		k, ok := e.NextExpired(now)
		if !ok {
			break
		}
		e.states[e.idx(k)].active = false
		e.flags.Clear(k)
		expired.Set(k)
	}
	return expired
}
