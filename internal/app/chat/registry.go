package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/metrics"
)

// membership is the registry entry of one room.
// A room is ACTIVE when count > 0, IDLE when count == 0 with a live timer and
// DELETED once deleted is set. timer != nil implies count == 0.
type membership struct {
	mu sync.Mutex

	count int
	timer *time.Timer

	// gen is bumped on every schedule and cancel; a timer callback carrying
	// an older generation lost a race and must do nothing.
	gen uint64

	deleted bool

	// tearingDown is set while the store delete and the lobby notice of a
	// deleted room are still running. The entry cannot be purged meanwhile.
	tearingDown bool

	// revive records a purge requested during teardown; it is carried out
	// as soon as the teardown ends.
	revive bool

	// removed is set once the entry is unlinked from the registry map.
	removed bool
}

// stopTimer cancels a pending deletion. Caller holds m.mu.
func (m *membership) stopTimer() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
	m.gen++
	metrics.PendingDeletions.Dec()
}

// Registry tracks live member counts and pending deletion timers per room.
// Each room has its own lock; the map lock is held only for lookups.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*membership

	// onExpire runs, outside any lock, when a deletion timer fires and the
	// room is still empty. The entry is already tombstoned at that point.
	onExpire func(room string)

	logger zerolog.Logger
}

// NewRegistry creates an empty registry. onExpire may be nil.
func NewRegistry(onExpire func(room string)) *Registry {
	return &Registry{
		rooms:    make(map[string]*membership),
		onExpire: onExpire,
		logger:   logx.Component("registry"),
	}
}

// lock returns the locked entry for room, creating it when create is set.
// It returns nil when the room has no entry and create is false.
func (r *Registry) lock(room string, create bool) *membership {
	for {
		r.mu.Lock()
		m, ok := r.rooms[room]
		if !ok {
			if !create {
				r.mu.Unlock()
				return nil
			}
			m = &membership{}
			r.rooms[room] = m
		}
		r.mu.Unlock()

		m.mu.Lock()
		if !m.removed {
			return m
		}
		// purged between lookup and lock; look again
		m.mu.Unlock()
	}
}

// Enter adds a member and cancels any pending deletion. It fails with
// ErrRoomNotFound while the room is being torn down.
func (r *Registry) Enter(room string) (int, error) {
	m := r.lock(room, true)
	defer m.mu.Unlock()

	if m.deleted {
		return 0, errs.NewError(errs.ErrRoomNotFound)
	}

	if m.timer != nil {
		r.logger.Debug().Str("room", room).Msg("Rejoin before expiry, deletion cancelled.")
	}
	m.stopTimer()
	m.count++
	return m.count, nil
}

// Leave removes a member, never going below zero. Unknown and tombstoned
// rooms report zero.
func (r *Registry) Leave(room string) int {
	m := r.lock(room, false)
	if m == nil {
		return 0
	}
	defer m.mu.Unlock()

	if m.count > 0 {
		m.count--
	}
	if m.deleted {
		return 0
	}
	return m.count
}

// Count returns the current member count of room.
func (r *Registry) Count(room string) int {
	m := r.lock(room, false)
	if m == nil {
		return 0
	}
	defer m.mu.Unlock()

	if m.deleted {
		return 0
	}
	return m.count
}

// CancelPendingDeletion stops the room's deletion timer, if any.
func (r *Registry) CancelPendingDeletion(room string) {
	m := r.lock(room, false)
	if m == nil {
		return
	}
	defer m.mu.Unlock()

	m.stopTimer()
}

// ScheduleDeletion arms the room's deletion timer. It does nothing and
// returns false unless the room is empty, not deleted and has no live timer.
func (r *Registry) ScheduleDeletion(room string, after time.Duration) bool {
	m := r.lock(room, false)
	if m == nil {
		return false
	}
	defer m.mu.Unlock()

	if m.deleted || m.count != 0 || m.timer != nil {
		return false
	}

	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(after, func() { r.expire(room, m, gen) })
	metrics.PendingDeletions.Inc()
	return true
}

// Pending reports whether the room has a live deletion timer.
func (r *Registry) Pending(room string) bool {
	m := r.lock(room, false)
	if m == nil {
		return false
	}
	defer m.mu.Unlock()

	return m.timer != nil
}

// expire is the timer callback: it re-checks the entry at fire time.
func (r *Registry) expire(room string, m *membership, gen uint64) {
	m.mu.Lock()
	if m.removed || m.deleted || m.gen != gen || m.count != 0 {
		m.mu.Unlock()
		r.logger.Debug().Str("room", room).Msg("Stale deletion timer ignored.")
		return
	}
	m.deleted = true
	m.tearingDown = true
	m.timer = nil
	metrics.PendingDeletions.Dec()
	m.mu.Unlock()

	r.logger.Info().Str("room", room).Msg("Deletion timer fired on an empty room.")

	if r.onExpire != nil {
		r.onExpire(room)
	}
}

// Tombstone starts an explicit deletion: the room is marked deleted and
// joins fail until the teardown ends and the tombstone is purged. It returns
// the member count and false if the room is already deleted.
func (r *Registry) Tombstone(room string) (int, bool) {
	m := r.lock(room, true)
	defer m.mu.Unlock()

	if m.deleted {
		return 0, false
	}
	m.stopTimer()
	m.deleted = true
	m.tearingDown = true
	return m.count, true
}

// Restore rolls back a Tombstone whose store delete failed and returns the
// current member count.
func (r *Registry) Restore(room string) int {
	m := r.lock(room, false)
	if m == nil {
		return 0
	}
	defer m.mu.Unlock()

	if m.tearingDown {
		m.deleted = false
		m.tearingDown = false
		m.revive = false
	}
	return m.count
}

// EndTeardown marks the teardown of a deleted room finished. The tombstone is
// dropped at once if the room was created again meanwhile, otherwise after
// purgeAfter.
func (r *Registry) EndTeardown(room string, purgeAfter time.Duration) {
	m := r.lock(room, false)
	if m == nil {
		return
	}
	if !m.tearingDown {
		m.mu.Unlock()
		return
	}
	m.tearingDown = false
	revive := m.revive
	m.mu.Unlock()

	if revive {
		r.logger.Debug().Str("room", room).Msg("Room recreated during teardown, tombstone dropped.")
		r.purgeEntry(room, m)
		return
	}
	time.AfterFunc(purgeAfter, func() { r.purgeEntry(room, m) })
}

// Purge drops the room's tombstone. Live entries are left alone; a tombstone
// whose teardown is still running is dropped when the teardown ends.
func (r *Registry) Purge(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.rooms[room]
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.deleted && m.tearingDown:
		m.revive = true
	case m.deleted:
		m.removed = true
		delete(r.rooms, room)
	}
}

// purgeEntry unlinks m if it is still the entry of room and a finished tombstone.
func (r *Registry) purgeEntry(room string, m *membership) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[room] != m {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted && !m.tearingDown {
		m.removed = true
		delete(r.rooms, room)
	}
}

// Close cancels every pending deletion timer.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*membership, 0, len(r.rooms))
	for _, m := range r.rooms {
		entries = append(entries, m)
	}
	r.mu.Unlock()

	for _, m := range entries {
		m.mu.Lock()
		m.stopTimer()
		m.mu.Unlock()
	}
}
