/*
Package store defines the persistence contract the chat core depends on and
the records it exchanges: rooms, their messages and registered users.

Implementations report failures as *errs.CustomError: ErrRoomNotFound /
ErrUserNotFound for missing records, ErrRoomNameExists / ErrUserNameTaken for
uniqueness violations and ErrStoreUnavailable (with the driver error as Cause)
for everything else.
*/
package store

import (
	"context"
	"strings"
	"time"

	"roomchat/internal/pkg/errs"
)

const (
	// MaxRoomNameBytes bounds room names.
	MaxRoomNameBytes = 64

	// MaxUserNameBytes bounds registered display names.
	MaxUserNameBytes = 32

	// MaxMessageBytes bounds message bodies.
	MaxMessageBytes = 5000
)

// Room is a named, optionally password-protected chat room.
type Room struct {
	Name string `json:"name"`

	// Password is compared in plaintext; empty means the room is public.
	Password string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// Protected reports whether joining requires a password.
func (r Room) Protected() bool {
	return r.Password != ""
}

// Message is an immutable chat message owned by a room.
type Message struct {
	ID        string    `json:"id"`
	RoomName  string    `json:"roomName"`
	Author    string    `json:"user"`
	Body      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// User is a registered display name.
type User struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the durable CRUD surface for rooms, messages and users.
// DeleteRoom and DeleteMessages are idempotent.
type Store interface {
	FindRoom(ctx context.Context, name string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	CreateRoom(ctx context.Context, name, password string) (Room, error)
	DeleteRoom(ctx context.Context, name string) error

	// AppendMessage assigns the message ID and timestamp. Timestamps never
	// decrease within a room.
	AppendMessage(ctx context.Context, roomName, author, body string) (Message, error)
	// ListMessages returns the room's messages oldest first.
	ListMessages(ctx context.Context, roomName string) ([]Message, error)
	DeleteMessages(ctx context.Context, roomName string) error

	FindUser(ctx context.Context, name string) (User, error)
	CreateUser(ctx context.Context, name string) (User, error)
	// RenameUser atomically replaces oldName with newName.
	RenameUser(ctx context.Context, oldName, newName string) (User, error)

	Close()
}

// NormalizeRoomName trims the name and checks it is non-empty and bounded.
func NormalizeRoomName(name string) (string, *errs.CustomError) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxRoomNameBytes {
		return "", errs.NewError(errs.ErrRoomNameInvalid, MaxRoomNameBytes)
	}
	return name, nil
}

// NormalizeUserName trims the name and checks it is non-empty and bounded.
func NormalizeUserName(name string) (string, *errs.CustomError) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxUserNameBytes {
		return "", errs.NewError(errs.ErrUserNameInvalid, MaxUserNameBytes)
	}
	return name, nil
}
