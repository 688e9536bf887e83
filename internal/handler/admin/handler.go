package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BehaviorRefresher reloads the store behavior configuration.
type BehaviorRefresher interface {
	Refresh(ctx context.Context) error
}

// KnowledgeRebuilder re-fetches pricing data and re-embeds the knowledge index.
type KnowledgeRebuilder interface {
	Rebuild(ctx context.Context) error
}

// Handler serves the operator-facing refresh endpoints.
type Handler struct {
	behavior  BehaviorRefresher
	knowledge KnowledgeRebuilder
}

// New creates an admin handler.
func New(behavior BehaviorRefresher, knowledge KnowledgeRebuilder) *Handler {
	return &Handler{
		behavior:  behavior,
		knowledge: knowledge,
	}
}

// RegisterRoutes registers the refresh routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/update-system", h.handleUpdateSystem)
	r.Post("/update-rag", h.handleUpdateRAG)
}

// handleUpdateSystem re-fetches the store behavior snapshot.
func (h *Handler) handleUpdateSystem(w http.ResponseWriter, r *http.Request) {
	if err := h.behavior.Refresh(r.Context()); err != nil {
		log.Printf("[admin] behavior refresh failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "behavior configuration reloaded",
	})
}

// handleUpdateRAG rebuilds the knowledge index from the current price list.
func (h *Handler) handleUpdateRAG(w http.ResponseWriter, r *http.Request) {
	if err := h.knowledge.Rebuild(r.Context()); err != nil {
		log.Printf("[admin] knowledge rebuild failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "knowledge index rebuilt",
	})
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
