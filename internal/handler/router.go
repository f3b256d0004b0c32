package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/luxbus/backend/internal/config"
	busHandler "github.com/zhouzirui/luxbus/backend/internal/handler/bus"
	"github.com/zhouzirui/luxbus/backend/internal/handler/chat"
	"github.com/zhouzirui/luxbus/backend/internal/handler/health"
	"github.com/zhouzirui/luxbus/backend/internal/handler/live"
	"github.com/zhouzirui/luxbus/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/luxbus/backend/internal/middleware"
	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	chatService "github.com/zhouzirui/luxbus/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services. db may be nil when the
// in-memory store is used.
func NewRouter(buses bus.Store, chatSvc *chatService.Service, db health.Pinger, serverCfg config.ServerConfig, liveCfg config.LiveConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigins))

	health.New(db).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		busHandler.New(buses).RegisterRoutes(api)
		live.New(buses, liveCfg.Interval, serverCfg.AllowedOrigins).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
