package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storevoice/storevoice/internal/handler/admin"
	"github.com/storevoice/storevoice/internal/handler/voice"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(conversation voice.Conversation, recorder voice.Recorder, behavior admin.BehaviorRefresher, knowledge admin.KnowledgeRebuilder, recordingsDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Create handlers
	voiceHandler := voice.New(conversation, recorder)
	adminHandler := admin.New(behavior, knowledge)

	voiceHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// Merged call recordings are served back to the store platform.
	fileServer := http.FileServer(http.Dir(recordingsDir))
	r.Get("/recordings/*", http.StripPrefix("/recordings/", fileServer).ServeHTTP)

	return r
}
