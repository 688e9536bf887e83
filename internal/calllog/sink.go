// Package calllog persists completed-call summaries: appended to a local
// JSON artifact and POSTed to the platform's call-log collector.
package calllog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/storevoice/storevoice/internal/platform"
	"github.com/storevoice/storevoice/internal/session"
)

// Entry is one completed-call summary in the platform's schema.
type Entry struct {
	PhoneNumber string           `json:"phone_number"`
	Issue       string           `json:"issue"`
	Store       string           `json:"store"`
	CallType    session.CallType `json:"call_type"`
	Outcome     session.Outcome  `json:"outcome"`
	Duration    string           `json:"duration"`
	StartedAt   string           `json:"started_at"`
	EndedAt     string           `json:"ended_at"`
	AudioURL    string           `json:"audio_url"`
	Transcripts []session.Turn   `json:"transcripts"`
}

// Sink writes call summaries. One flush attempt per terminal transition;
// callers do not retry.
type Sink struct {
	client       *platform.Client
	filePath     string
	audioBaseURL string

	mu sync.Mutex
}

// NewSink creates a sink appending to filePath and posting to the platform.
func NewSink(client *platform.Client, filePath, audioBaseURL string) *Sink {
	return &Sink{
		client:       client,
		filePath:     filePath,
		audioBaseURL: audioBaseURL,
	}
}

// Flush records the call summary. The local artifact is best-effort (a
// failure there is logged but does not stop the remote POST); the remote
// POST outcome decides the returned error.
func (s *Sink) Flush(ctx context.Context, call session.Call) error {
	entry := s.buildEntry(call)

	if err := s.appendLocal(entry); err != nil {
		log.Printf("[calllog] local save failed for call %s: %v", call.ID, err)
	}

	if err := s.client.PostJSON(ctx, "/api/v1/call/details/", entry, nil); err != nil {
		return fmt.Errorf("post call log: %w", err)
	}

	log.Printf("[calllog] call %s logged: outcome=%s", call.ID, call.Outcome)
	return nil
}

func (s *Sink) buildEntry(call session.Call) Entry {
	endedAt := call.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	transcripts := call.Turns
	if transcripts == nil {
		transcripts = []session.Turn{}
	}

	return Entry{
		PhoneNumber: call.CallerNumber,
		Issue:       call.Issue,
		Store:       call.StoreID,
		CallType:    call.CallType,
		Outcome:     call.Outcome,
		Duration:    fmt.Sprintf("%d", int(endedAt.Sub(call.StartedAt).Seconds())),
		StartedAt:   call.StartedAt.Format(time.RFC3339),
		EndedAt:     endedAt.Format(time.RFC3339),
		AudioURL:    fmt.Sprintf("%s/%s.mp3", s.audioBaseURL, call.ID),
		Transcripts: transcripts,
	}
}

// appendLocal appends the entry to the on-disk JSON array, tolerating a
// missing, corrupt or object-valued file.
func (s *Sink) appendLocal(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readLocal()
	entries = append(entries, entry)

	payload, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode call log file: %w", err)
	}
	if err := os.WriteFile(s.filePath, payload, 0o644); err != nil {
		return fmt.Errorf("write call log file: %w", err)
	}
	return nil
}

func (s *Sink) readLocal() []Entry {
	payload, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err == nil {
		return entries
	}

	// Historical artifacts sometimes hold a single object.
	var single Entry
	if err := json.Unmarshal(payload, &single); err == nil {
		return []Entry{single}
	}

	log.Printf("[calllog] discarding unreadable call log file %s", s.filePath)
	return nil
}
