/*
Package handler provides HTTP handler functions for registered display names.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/req"
	"roomchat/internal/pkg/resp"
)

type CreateUserInput struct {
	Name string `json:"name"`
}

type RenameUserInput struct {
	NewName string `json:"newName"`
}

// HandleCreateUser registers a display name.
func HandleCreateUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateUserInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		name, verr := store.NormalizeUserName(input.Name)
		if verr != nil {
			resp.RespondError(w, r, verr)
			return
		}

		user, err := deps.Store.CreateUser(r.Context(), name)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		logx.Info("User registered", "name", user.Name)
		resp.RespondCreated(w, r, user)
	}
}

// HandleGetUser looks up a registered display name.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, verr := store.NormalizeUserName(chi.URLParam(r, "name"))
		if verr != nil {
			resp.RespondError(w, r, verr)
			return
		}

		user, err := deps.Store.FindUser(r.Context(), name)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, user)
	}
}

// HandleRenameUser replaces a registered display name in one step.
func HandleRenameUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oldName, verr := store.NormalizeUserName(chi.URLParam(r, "name"))
		if verr != nil {
			resp.RespondError(w, r, verr)
			return
		}

		var input RenameUserInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		newName, verr := store.NormalizeUserName(input.NewName)
		if verr != nil {
			resp.RespondError(w, r, verr)
			return
		}

		user, err := deps.Store.RenameUser(r.Context(), oldName, newName)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		logx.Info("User renamed", "from", oldName, "to", user.Name)
		resp.RespondSuccess(w, r, user)
	}
}
