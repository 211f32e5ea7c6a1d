package handler

import (
	"roomchat/internal/app/chat"
	"roomchat/internal/app/store"
	"roomchat/internal/configs"
)

// AppDeps are the services shared by every handler.
type AppDeps struct {
	Hub    *chat.Hub
	Store  store.Store
	Config *configs.AppConfig
}
