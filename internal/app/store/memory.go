package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/randx"
)

// Memory is a process-local Store used in development and tests.
type Memory struct {
	mu       sync.RWMutex
	rooms    map[string]Room
	messages map[string][]Message
	users    map[string]User

	// now is swappable so tests can drive the clock.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[string]Room),
		messages: make(map[string][]Message),
		users:    make(map[string]User),
		now:      time.Now,
	}
}

func (m *Memory) FindRoom(ctx context.Context, name string) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[name]
	if !ok {
		return Room{}, errs.NewError(errs.ErrRoomNotFound)
	}
	return room, nil
}

func (m *Memory) ListRooms(ctx context.Context) ([]Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

func (m *Memory) CreateRoom(ctx context.Context, name, password string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[name]; exists {
		return Room{}, errs.NewError(errs.ErrRoomNameExists)
	}

	room := Room{Name: name, Password: password, CreatedAt: m.now()}
	m.rooms[name] = room
	return room, nil
}

func (m *Memory) DeleteRoom(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, name)
	return nil
}

func (m *Memory) AppendMessage(ctx context.Context, roomName, author, body string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomName]; !ok {
		return Message{}, errs.NewError(errs.ErrRoomNotFound)
	}

	createdAt := m.now()
	history := m.messages[roomName]
	if n := len(history); n > 0 && createdAt.Before(history[n-1].CreatedAt) {
		createdAt = history[n-1].CreatedAt
	}

	msg := Message{
		ID:        randx.MessageID(),
		RoomName:  roomName,
		Author:    author,
		Body:      body,
		CreatedAt: createdAt,
	}
	m.messages[roomName] = append(history, msg)
	return msg, nil
}

func (m *Memory) ListMessages(ctx context.Context, roomName string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.messages[roomName]
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (m *Memory) DeleteMessages(ctx context.Context, roomName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.messages, roomName)
	return nil
}

func (m *Memory) FindUser(ctx context.Context, name string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[name]
	if !ok {
		return User{}, errs.NewError(errs.ErrUserNotFound)
	}
	return user, nil
}

func (m *Memory) CreateUser(ctx context.Context, name string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[name]; exists {
		return User{}, errs.NewError(errs.ErrUserNameTaken)
	}

	user := User{Name: name, CreatedAt: m.now()}
	m.users[name] = user
	return user, nil
}

// RenameUser checks and swaps under one lock, so no other registration can
// observe the old name freed before the new one is claimed.
func (m *Memory) RenameUser(ctx context.Context, oldName, newName string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[oldName]
	if !ok {
		return User{}, errs.NewError(errs.ErrUserNotFound)
	}
	if oldName == newName {
		return user, nil
	}
	if _, taken := m.users[newName]; taken {
		return User{}, errs.NewError(errs.ErrUserNameTaken)
	}

	delete(m.users, oldName)
	user.Name = newName
	m.users[newName] = user
	return user, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}
