package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/metrics"
)

// teardownTimeout bounds the store and archive calls of one teardown.
const teardownTimeout = 10 * time.Second

// Archiver keeps a copy of a room's history before it is deleted.
type Archiver interface {
	ArchiveRoom(ctx context.Context, room string, messages []store.Message) error
}

// Reaper deletes rooms that stayed empty for the whole grace period.
type Reaper struct {
	store    store.Store
	registry *Registry
	router   *Router
	archiver Archiver
	grace    time.Duration

	// mu orders wg.Add against Close so no teardown starts after Close waits.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	logger zerolog.Logger
}

func newReaper(st store.Store, router *Router, archiver Archiver, grace time.Duration) *Reaper {
	rp := &Reaper{
		store:    st,
		router:   router,
		archiver: archiver,
		grace:    grace,
		logger:   logx.Component("reaper"),
	}
	rp.registry = NewRegistry(rp.expired)
	return rp
}

// RoomEmptied starts the grace period of a room whose last member left.
func (rp *Reaper) RoomEmptied(room string) {
	if rp.registry.ScheduleDeletion(room, rp.grace) {
		rp.logger.Info().Str("room", room).Dur("grace_period", rp.grace).Msg("Room is empty, deletion scheduled.")
	}
}

// expired is the registry's expiry callback. The room is already tombstoned.
func (rp *Reaper) expired(room string) {
	rp.mu.Lock()
	if rp.closed {
		rp.mu.Unlock()
		rp.logger.Debug().Str("room", room).Msg("Reaper closed, expiry ignored.")
		return
	}
	rp.wg.Add(1)
	rp.mu.Unlock()
	defer rp.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	rp.teardown(ctx, room)
	metrics.RoomsDeleted.WithLabelValues("expired").Inc()
}

// teardown archives and deletes the room, then finishes it. Store failures are logged and absorbed; deletion is not retried.
func (rp *Reaper) teardown(ctx context.Context, room string) {
	logger := rp.logger.With().Str("room", room).Logger()

	if rp.archiver != nil {
		rp.archive(ctx, room, logger)
	}

	if err := rp.store.DeleteMessages(ctx, room); err != nil {
		metrics.StoreDeleteFailures.Inc()
		logger.Error().Err(err).Msg("Failed to delete room messages, dropping registry entry anyway.")
	}
	if err := rp.store.DeleteRoom(ctx, room); err != nil {
		metrics.StoreDeleteFailures.Inc()
		logger.Error().Err(err).Msg("Failed to delete room, dropping registry entry anyway.")
	}

	rp.finish(room)
	logger.Info().Msg("Room deleted.")
}

// finish notifies the lobby, drops the room channel and ends the teardown.
// The tombstone lingers for one more grace period, which covers joins that
// looked the room up before it was deleted, unless the room was created again.
func (rp *Reaper) finish(room string) {
	rp.router.Publish(LobbyChannel, Event{
		Type:    EventRoomDeleted,
		Payload: RoomDeletedPayload{RoomName: room},
	})
	rp.router.Drop(RoomChannel(room))

	rp.registry.EndTeardown(room, rp.grace)
}

func (rp *Reaper) archive(ctx context.Context, room string, logger zerolog.Logger) {
	history, err := rp.store.ListMessages(ctx, room)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not load history for archiving.")
		return
	}
	if len(history) == 0 {
		return
	}
	if err := rp.archiver.ArchiveRoom(ctx, room, history); err != nil {
		logger.Warn().Err(err).Msg("Archiving failed, deleting anyway.")
		return
	}
	logger.Info().Int("messages", len(history)).Msg("Room history archived.")
}

// Close stops accepting expiries and waits for in-flight teardowns.
func (rp *Reaper) Close() {
	rp.mu.Lock()
	rp.closed = true
	rp.mu.Unlock()

	rp.wg.Wait()
}
