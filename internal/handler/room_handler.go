/*
Package handler provides HTTP handler functions for room management and history.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomchat/internal/pkg/req"
	"roomchat/internal/pkg/resp"
)

type CreateRoomInput struct {
	Name string `json:"name"`
	// Password is optional; an empty password makes the room public.
	Password string `json:"password,omitempty"`
}

// HandleListRooms returns every room with its live member count.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := deps.Hub.ListRooms(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, rooms)
	}
}

// HandleCreateRoom creates a room from a name and an optional password.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Hub.CreateRoom(r.Context(), input.Name, input.Password)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondCreated(w, r, map[string]any{
			"name":      room.Name,
			"protected": room.Protected(),
			"createdAt": room.CreatedAt,
		})
	}
}

// HandleDeleteRoom deletes a room and moves its members back to the lobby.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		if err := deps.Hub.DeleteRoom(r.Context(), name); err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleRoomMessages returns the history of one room.
func HandleRoomMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := deps.Hub.History(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, messages)
	}
}

// HandleAllMessages returns the history of every room.
func HandleAllMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		histories, err := deps.Hub.AllHistory(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, histories)
	}
}
