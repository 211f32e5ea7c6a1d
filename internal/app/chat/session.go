package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/metrics"
)

// Conn is what the core needs from a client connection.
type Conn interface {
	// ID identifies the connection; it keys the connection's subscriptions.
	ID() string

	// Send queues evt for this connection without blocking.
	Send(evt Event) error
}

type subscriptionKind int

const (
	subRoomMessages subscriptionKind = iota
	subLobby
)

// Session binds one connection to at most one room. It is either in the
// lobby (room == "") or in a room.
type Session struct {
	hub  *Hub
	conn Conn

	mu          sync.Mutex
	room        string
	displayName string
	closed      bool

	// subs maps each subscription kind to the channel it is bound to.
	// Subscribing again replaces, so a connection never receives an event twice.
	subs map[subscriptionKind]string

	logger zerolog.Logger
}

// Room returns the current room, or "" in the lobby.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// DisplayName returns the name used as author of this session's messages.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// errLeftRoom aborts a send whose session left the room before its turn came.
var errLeftRoom = errors.New("session left the room")

// Join moves the session into roomName. On failure the session is unchanged.
// Store reads happen before the session lock is taken, so a slow store never
// holds up lobby delivery to this session.
func (s *Session) Join(ctx context.Context, roomName, password, displayName string) error {
	name, verr := store.NormalizeRoomName(roomName)
	if verr != nil {
		return verr
	}

	room, err := s.hub.store.FindRoom(ctx, name)
	if err != nil {
		return err
	}
	if room.Protected() && subtle.ConstantTimeCompare([]byte(room.Password), []byte(password)) != 1 {
		s.logger.Info().Str("room", name).Msg("Join rejected: wrong password.")
		return errs.NewError(errs.ErrRoomPasswordInvalid)
	}

	history, err := s.hub.store.ListMessages(ctx, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var members int
	if s.room == name {
		members = s.hub.registry.Count(name)
	} else {
		if members, err = s.hub.registry.Enter(name); err != nil {
			return err
		}
		metrics.Members.Inc()

		if s.room != "" {
			s.leaveLocked()
		}
		s.room = name
	}

	s.rename(displayName)
	s.subscribe(subRoomMessages, RoomChannel(name), s.conn.Send)

	s.logger.Info().
		Str("room", name).
		Str("display_name", s.displayName).
		Int("members", members).
		Msg("Session joined room.")

	if err := s.conn.Send(Event{
		Type: EventRoomJoined,
		Payload: RoomJoinedPayload{
			RoomName: name,
			Messages: history,
			Members:  members,
		},
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to deliver room history.")
	}
	return nil
}

// Send persists body as a message in the current room and broadcasts it.
// It is silently ignored in the lobby, for blank bodies and for a roomName
// other than the current room. The store write runs without the session lock.
func (s *Session) Send(ctx context.Context, roomName, body, displayName string) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	s.mu.Lock()
	if s.room == "" {
		s.mu.Unlock()
		return nil
	}
	if roomName != "" && roomName != s.room {
		s.mu.Unlock()
		s.logger.Debug().Str("room", roomName).Msg("Message for a room the session is not in ignored.")
		return nil
	}
	if len(body) > store.MaxMessageBytes {
		s.mu.Unlock()
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	s.rename(displayName)
	room, author := s.room, s.displayName
	s.mu.Unlock()

	err := s.hub.router.Accept(RoomChannel(room), func() (Event, error) {
		if s.Room() != room {
			return Event{}, errLeftRoom
		}
		msg, err := s.hub.store.AppendMessage(ctx, room, author, body)
		if err != nil {
			return Event{}, err
		}
		metrics.MessagesAccepted.Inc()
		return Event{Type: EventNewMessage, Payload: NewMessagePayload{Message: msg}}, nil
	})
	if errors.Is(err, errLeftRoom) {
		s.logger.Debug().Str("room", room).Msg("Session left the room before its message was stored, dropped.")
		return nil
	}
	return err
}

// Leave returns the session to the lobby. roomName, when given, must name the
// current room.
func (s *Session) Leave(roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == "" || (roomName != "" && roomName != s.room) {
		return
	}
	s.leaveLocked()
}

// Disconnect leaves the current room and drops every subscription. Safe to
// call more than once.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.room != "" {
		s.leaveLocked()
	}
	s.unsubscribe(subLobby)
	s.logger.Debug().Msg("Session disconnected.")
}

// leaveLocked leaves s.room. Caller holds s.mu and s.room != "".
func (s *Session) leaveLocked() {
	room := s.room

	s.unsubscribe(subRoomMessages)
	s.room = ""
	metrics.Members.Dec()

	remaining := s.hub.registry.Leave(room)
	s.logger.Info().Str("room", room).Int("members", remaining).Msg("Session left room.")

	if remaining == 0 {
		s.hub.reaper.RoomEmptied(room)
	}
}

// onLobbyEvent forwards lobby broadcasts and moves the session out of a
// room that was deleted underneath it.
func (s *Session) onLobbyEvent(evt Event) error {
	if payload, ok := evt.Payload.(RoomDeletedPayload); ok && evt.Type == EventRoomDeleted {
		s.evict(payload.RoomName)
	}
	return s.conn.Send(evt)
}

func (s *Session) evict(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room != room {
		return
	}
	s.logger.Info().Str("room", room).Msg("Room deleted, session moved to lobby.")
	s.leaveLocked()
}

func (s *Session) rename(displayName string) {
	if name := strings.TrimSpace(displayName); name != "" {
		s.displayName = name
	}
}

// subscribe binds kind to channel, tearing down the previous binding first.
func (s *Session) subscribe(kind subscriptionKind, channel string, handler Handler) {
	if prev, ok := s.subs[kind]; ok && prev != channel {
		s.hub.router.Unsubscribe(prev, s.conn.ID())
	}
	s.hub.router.Subscribe(channel, s.conn.ID(), handler)
	s.subs[kind] = channel
}

func (s *Session) unsubscribe(kind subscriptionKind) {
	if channel, ok := s.subs[kind]; ok {
		s.hub.router.Unsubscribe(channel, s.conn.ID())
		delete(s.subs, kind)
	}
}
