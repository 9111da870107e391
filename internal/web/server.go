package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"

	"homepanel/internal/log"
	"homepanel/internal/panel"
	"homepanel/internal/realtime"
)

// Server is the local HTTP server the panel UI talks to
type Server struct {
	port      int
	panel     *panel.Service
	channel   *realtime.Channel
	router    *mux.Router
	hub       *Hub
	respCache *gocache.Cache
}

// NewServer creates a new HTTP server
func NewServer(port int, svc *panel.Service, channel *realtime.Channel) *Server {
	s := &Server{
		port:      port,
		panel:     svc,
		channel:   channel,
		router:    mux.NewRouter(),
		hub:       NewHub(),
		respCache: gocache.New(30*time.Second, time.Minute),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/auth/session", s.handleSession).Methods("GET")

	api.HandleFunc("/devices", s.handleDevices).Methods("GET")
	api.HandleFunc("/devices/{name}/state", s.handleSetDevice).Methods("POST")
	api.HandleFunc("/devices/{name}/power", s.handleSetPower).Methods("POST")
	api.HandleFunc("/devices/{name}/adjust", s.handleAdjustDevice).Methods("POST")
	api.HandleFunc("/registry", cached(s.respCache, time.Hour, s.handleRegistry)).Methods("GET")

	api.HandleFunc("/scenes", s.handleScenes).Methods("GET")
	api.HandleFunc("/scenes", s.handleCreateScene).Methods("POST")
	api.HandleFunc("/scenes/{id}", s.handleDeleteScene).Methods("DELETE")
	api.HandleFunc("/scenes/{id}/field", s.handlePatchScene).Methods("PATCH")
	api.HandleFunc("/scenes/{id}/activate", s.handleActivateScene).Methods("POST")
	api.HandleFunc("/scenes/deactivate", s.handleDeactivateScene).Methods("POST")

	api.HandleFunc("/rules", s.handleRules).Methods("GET")
	api.HandleFunc("/rules", s.handleCreateRule).Methods("POST")
	api.HandleFunc("/rules/{id}", s.handleDeleteRule).Methods("DELETE")
	api.HandleFunc("/rules/save", s.handleSaveRules).Methods("POST")

	api.HandleFunc("/recommendations", cached(s.respCache, 30*time.Second, s.handleRecommendations)).Methods("GET")
	api.HandleFunc("/recommendations/{id}/accept", s.handleAcceptRecommendation).Methods("POST")
	api.HandleFunc("/recommendations/{id}/discard", s.handleDiscardRecommendation).Methods("POST")

	api.HandleFunc("/recycle", s.handleRecycleBin).Methods("GET")
	api.HandleFunc("/recycle/{id}/recover", s.handleRecoverScene).Methods("POST")
	api.HandleFunc("/recycle", s.handleClearRecycleBin).Methods("DELETE")

	api.HandleFunc("/environment", s.handleEnvironment).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/ws", s.handleWebSocket)
}

// Run starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.forwardEvents(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("panel server listening on port %d", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// forwardEvents relays realtime channel events to websocket clients
func (s *Server) forwardEvents(ctx context.Context) {
	events, cancel := s.channel.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.hub.Broadcast(ev)
		}
	}
}

// GetHub returns the websocket hub
func (s *Server) GetHub() *Hub {
	return s.hub
}
