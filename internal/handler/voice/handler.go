package voice

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storevoice/storevoice/internal/telephony"
)

// Conversation drives one speech turn and call-end handling.
type Conversation interface {
	HandleTurn(ctx context.Context, callID, callerNumber, speech string) *telephony.VoiceResponse
	FinishCall(callID string)
}

// Recorder receives carrier recording callbacks.
type Recorder interface {
	OnSegmentReady(ctx context.Context, callID, recordingURL string)
	OnRecordingComplete(callID string) (string, error)
}

// Handler serves the carrier-facing webhook endpoints.
type Handler struct {
	conversation Conversation
	recorder     Recorder
}

// New creates a voice webhook handler.
func New(conversation Conversation, recorder Recorder) *Handler {
	return &Handler{
		conversation: conversation,
		recorder:     recorder,
	}
}

// RegisterRoutes registers the webhook routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.handleVoice)
	r.Post("/voice", h.handleVoice)
	r.Post("/recording-status", h.handleRecordingStatus)
	r.Post("/recording-complete", h.handleRecordingComplete)
}

// handleVoice answers every conversational webhook, both the initial call
// and each speech gather result.
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	caller := r.PostFormValue("From")
	speech := r.PostFormValue("SpeechResult")

	resp := h.conversation.HandleTurn(r.Context(), callID, caller, speech)
	writeTwiML(w, resp)
}

// handleRecordingStatus captures one finished recording segment. The carrier
// retries on non-2xx, so every callback is acknowledged with 200; a malformed
// one is logged and otherwise ignored.
func (h *Handler) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Printf("[voice] recording-status with invalid form body: %v", err)
		acknowledge(w)
		return
	}

	callID := r.PostFormValue("CallSid")
	recordingURL := r.PostFormValue("RecordingUrl")
	if callID == "" || recordingURL == "" {
		log.Printf("[voice] recording-status missing fields: CallSid=%q RecordingUrl=%q", callID, recordingURL)
		acknowledge(w)
		return
	}

	h.recorder.OnSegmentReady(r.Context(), callID, recordingURL)
	acknowledge(w)
}

// handleRecordingComplete fires when the call leaves the carrier. It merges
// the captured segments and closes out the session.
func (h *Handler) handleRecordingComplete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	if _, err := h.recorder.OnRecordingComplete(callID); err != nil {
		log.Printf("[voice] merge recording for call=%s: %v", callID, err)
	}

	h.conversation.FinishCall(callID)
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeTwiML(w http.ResponseWriter, resp *telephony.VoiceResponse) {
	body, err := resp.Render()
	if err != nil {
		log.Printf("[voice] render response: %v", err)
		http.Error(w, "response rendering failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
