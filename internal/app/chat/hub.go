package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/metrics"
	"roomchat/internal/pkg/randx"
)

// DefaultGracePeriod is how long an empty room survives before deletion.
const DefaultGracePeriod = 60 * time.Second

// Options configures a Hub.
type Options struct {
	// GracePeriod is the delay between a room emptying and its deletion.
	// Zero or negative values select DefaultGracePeriod.
	GracePeriod time.Duration

	// Archiver, when set, receives the history of every room before it is deleted.
	Archiver Archiver
}

// RoomSummary is the public view of a room. Passwords never leave the server.
type RoomSummary struct {
	Name      string    `json:"name"`
	Protected bool      `json:"protected"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// Hub owns the membership registry, the broadcast router and the reaper,
// and hands out one Session per client connection.
type Hub struct {
	store    store.Store
	registry *Registry
	router   *Router
	reaper   *Reaper

	logger zerolog.Logger
}

// NewHub wires the core around st.
func NewHub(st store.Store, opts Options) *Hub {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	router := NewRouter()
	reaper := newReaper(st, router, opts.Archiver, grace)

	h := &Hub{
		store:    st,
		registry: reaper.registry,
		router:   router,
		reaper:   reaper,
		logger:   logx.Component("hub"),
	}

	h.logger.Info().Dur("grace_period", grace).Bool("archive", opts.Archiver != nil).Msg("Hub started.")
	return h
}

// NewSession binds conn to a new session in the lobby. An empty displayName
// is replaced by a generated guest name.
func (h *Hub) NewSession(conn Conn, displayName string) *Session {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = randx.DisplayName()
	}

	s := &Session{
		hub:         h,
		conn:        conn,
		displayName: name,
		subs:        make(map[subscriptionKind]string),
		logger: h.logger.With().
			Str("component", "session").
			Str("conn_id", conn.ID()).
			Logger(),
	}

	s.mu.Lock()
	s.subscribe(subLobby, LobbyChannel, s.onLobbyEvent)
	s.mu.Unlock()

	return s
}

// CreateRoom registers a new room. Names are trimmed and must be unique.
func (h *Hub) CreateRoom(ctx context.Context, name, password string) (store.Room, error) {
	name, verr := store.NormalizeRoomName(name)
	if verr != nil {
		return store.Room{}, verr
	}

	room, err := h.store.CreateRoom(ctx, name, password)
	if err != nil {
		return store.Room{}, err
	}

	// a previous room of the same name may still be tombstoned, or even
	// tearing down; then the tombstone goes once that teardown ends
	h.registry.Purge(name)

	h.logger.Info().Str("room", name).Bool("protected", room.Protected()).Msg("Room created.")
	return room, nil
}

// DeleteRoom removes a room on request. Members are moved back to the lobby.
// Unlike expiry, a store failure is reported and the room stays intact.
// Deleting a missing room succeeds.
func (h *Hub) DeleteRoom(ctx context.Context, name string) error {
	name, verr := store.NormalizeRoomName(name)
	if verr != nil {
		return verr
	}

	if _, err := h.store.FindRoom(ctx, name); err != nil {
		if errs.HasCode(err, errs.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	members, ok := h.registry.Tombstone(name)
	if !ok {
		h.logger.Debug().Str("room", name).Msg("Room already being deleted.")
		return nil
	}

	if err := h.deleteStored(ctx, name); err != nil {
		if h.registry.Restore(name) == 0 {
			h.reaper.RoomEmptied(name)
		}
		return err
	}

	h.reaper.finish(name)
	metrics.RoomsDeleted.WithLabelValues("explicit").Inc()

	h.logger.Info().Str("room", name).Int("evicted", members).Msg("Room deleted on request.")
	return nil
}

func (h *Hub) deleteStored(ctx context.Context, name string) error {
	if err := h.store.DeleteMessages(ctx, name); err != nil {
		return err
	}
	return h.store.DeleteRoom(ctx, name)
}

// ListRooms returns every stored room with its live member count.
func (h *Hub) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			Name:      room.Name,
			Protected: room.Protected(),
			Members:   h.registry.Count(room.Name),
			CreatedAt: room.CreatedAt,
		})
	}
	return summaries, nil
}

// History returns the stored messages of an existing room.
func (h *Hub) History(ctx context.Context, name string) ([]store.Message, error) {
	name, verr := store.NormalizeRoomName(name)
	if verr != nil {
		return nil, verr
	}
	if _, err := h.store.FindRoom(ctx, name); err != nil {
		return nil, err
	}
	return h.store.ListMessages(ctx, name)
}

// RoomHistory is the stored history of one room.
type RoomHistory struct {
	Room     string          `json:"room"`
	Messages []store.Message `json:"messages"`
}

// AllHistory returns the history of every stored room.
func (h *Hub) AllHistory(ctx context.Context) ([]RoomHistory, error) {
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RoomHistory, 0, len(rooms))
	for _, room := range rooms {
		msgs, err := h.store.ListMessages(ctx, room.Name)
		if err != nil {
			if errs.HasCode(err, errs.ErrRoomNotFound) {
				// deleted while we were reading
				continue
			}
			return nil, err
		}
		out = append(out, RoomHistory{Room: room.Name, Messages: msgs})
	}
	return out, nil
}

// Members returns the live member count of a room.
func (h *Hub) Members(room string) int {
	return h.registry.Count(room)
}

// PendingDeletion reports whether the room is waiting out its grace period.
func (h *Hub) PendingDeletion(room string) bool {
	return h.registry.Pending(room)
}

// Shutdown cancels pending deletions and waits for running teardowns.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	h.registry.Close()
	h.reaper.Close()

	h.logger.Info().Msg("Hub shutdown complete.")
}
