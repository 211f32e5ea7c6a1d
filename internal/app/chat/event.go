/*
Package chat contains the room lifecycle and broadcast coordination engine.

This file defines the events exchanged with clients: the inbound requests a
connection can make and the outbound notifications the core emits.
*/
package chat

import (
	"encoding/json"

	"roomchat/internal/app/store"
)

// EventType names an event on the wire.
type EventType string

const (
	// inbound
	EventJoinRoom    EventType = "joinRoom"
	EventSendMessage EventType = "sendMessage"
	EventLeaveRoom   EventType = "leaveRoom"

	// outbound
	EventRoomJoined  EventType = "roomJoined"
	EventNewMessage  EventType = "newMessage"
	EventRoomDeleted EventType = "roomDeleted"
	EventError       EventType = "error"
)

// Event is the envelope for every frame sent to a client.
type Event struct {
	Type    EventType `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

// InboundEvent is the envelope of a frame received from a client.
type InboundEvent struct {
	Type    EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoomPayload asks to enter a room.
type JoinRoomPayload struct {
	RoomName    string `json:"roomName"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// SendMessagePayload submits a message to the current room.
type SendMessagePayload struct {
	RoomName    string `json:"roomName,omitempty"`
	Body        string `json:"body"`
	DisplayName string `json:"displayName,omitempty"`
}

// LeaveRoomPayload asks to leave the current room.
type LeaveRoomPayload struct {
	RoomName    string `json:"roomName,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// RoomJoinedPayload carries the room history, sent once per successful join.
type RoomJoinedPayload struct {
	RoomName string          `json:"roomName"`
	Messages []store.Message `json:"messages"`
	Members  int             `json:"members"`
}

// NewMessagePayload carries one broadcast message.
type NewMessagePayload struct {
	Message store.Message `json:"message"`
}

// RoomDeletedPayload announces that a room was torn down.
type RoomDeletedPayload struct {
	RoomName string `json:"roomName"`
}

// ErrorPayload reports a rejected request to the originating client.
type ErrorPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}
