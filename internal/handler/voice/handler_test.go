package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/storevoice/storevoice/internal/telephony"
)

type fakeConversation struct {
	lastCallID string
	lastCaller string
	lastSpeech string
	finished   []string
}

func (f *fakeConversation) HandleTurn(ctx context.Context, callID, callerNumber, speech string) *telephony.VoiceResponse {
	f.lastCallID = callID
	f.lastCaller = callerNumber
	f.lastSpeech = speech
	return telephony.NewVoiceResponse().Say("Hello.", "alice", "en-US")
}

func (f *fakeConversation) FinishCall(callID string) {
	f.finished = append(f.finished, callID)
}

type fakeRecorder struct {
	segments  []string
	completed []string
	mergeErr  error
}

func (f *fakeRecorder) OnSegmentReady(ctx context.Context, callID, recordingURL string) {
	f.segments = append(f.segments, callID+"|"+recordingURL)
}

func (f *fakeRecorder) OnRecordingComplete(callID string) (string, error) {
	f.completed = append(f.completed, callID)
	return callID + "_full.mp3", f.mergeErr
}

func newTestRouter(conv *fakeConversation, rec *fakeRecorder) http.Handler {
	r := chi.NewRouter()
	New(conv, rec).RegisterRoutes(r)
	return r
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestVoiceWebhookReturnsTwiML(t *testing.T) {
	conv := &fakeConversation{}
	handler := newTestRouter(conv, &fakeRecorder{})

	rr := postForm(t, handler, "/voice", url.Values{
		"CallSid":      {"CA100"},
		"From":         {"+15550001111"},
		"SpeechResult": {"my screen is cracked"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("expected text/xml content type, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<Say") {
		t.Fatalf("expected TwiML body, got %q", rr.Body.String())
	}
	if conv.lastCallID != "CA100" || conv.lastCaller != "+15550001111" || conv.lastSpeech != "my screen is cracked" {
		t.Fatalf("unexpected turn parameters: %q %q %q", conv.lastCallID, conv.lastCaller, conv.lastSpeech)
	}
}

func TestVoiceWebhookRootAlias(t *testing.T) {
	conv := &fakeConversation{}
	handler := newTestRouter(conv, &fakeRecorder{})

	rr := postForm(t, handler, "/", url.Values{"CallSid": {"CA101"}})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if conv.lastCallID != "CA101" {
		t.Fatalf("expected turn for CA101, got %q", conv.lastCallID)
	}
	if conv.lastSpeech != "" {
		t.Fatalf("expected empty speech on initial webhook, got %q", conv.lastSpeech)
	}
}

func TestVoiceWebhookRequiresCallSid(t *testing.T) {
	handler := newTestRouter(&fakeConversation{}, &fakeRecorder{})

	rr := postForm(t, handler, "/voice", url.Values{"From": {"+15550001111"}})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRecordingStatusCapturesSegment(t *testing.T) {
	rec := &fakeRecorder{}
	handler := newTestRouter(&fakeConversation{}, rec)

	rr := postForm(t, handler, "/recording-status", url.Values{
		"CallSid":      {"CA100"},
		"RecordingUrl": {"https://api.example.com/rec/RE1"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "OK" {
		t.Fatalf("expected OK body, got %q", got)
	}
	if len(rec.segments) != 1 || rec.segments[0] != "CA100|https://api.example.com/rec/RE1" {
		t.Fatalf("unexpected segments: %v", rec.segments)
	}
}

func TestRecordingStatusAcknowledgesMissingFields(t *testing.T) {
	rec := &fakeRecorder{}
	handler := newTestRouter(&fakeConversation{}, rec)

	// A malformed callback is acknowledged so the carrier does not retry it.
	rr := postForm(t, handler, "/recording-status", url.Values{"CallSid": {"CA100"}})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "OK" {
		t.Fatalf("expected OK body, got %q", got)
	}
	if len(rec.segments) != 0 {
		t.Fatalf("expected no segment capture, got %v", rec.segments)
	}
}

func TestRecordingCompleteMergesAndFinishes(t *testing.T) {
	conv := &fakeConversation{}
	rec := &fakeRecorder{}
	handler := newTestRouter(conv, rec)

	rr := postForm(t, handler, "/recording-complete", url.Values{"CallSid": {"CA100"}})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(rec.completed) != 1 || rec.completed[0] != "CA100" {
		t.Fatalf("unexpected merge calls: %v", rec.completed)
	}
	if len(conv.finished) != 1 || conv.finished[0] != "CA100" {
		t.Fatalf("unexpected finish calls: %v", conv.finished)
	}
}

func TestRecordingCompleteFinishesDespiteMergeError(t *testing.T) {
	conv := &fakeConversation{}
	rec := &fakeRecorder{mergeErr: errors.New("no segments captured")}
	handler := newTestRouter(conv, rec)

	rr := postForm(t, handler, "/recording-complete", url.Values{"CallSid": {"CA200"}})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 even when merge fails, got %d", rr.Code)
	}
	if len(conv.finished) != 1 || conv.finished[0] != "CA200" {
		t.Fatalf("expected finish despite merge error, got %v", conv.finished)
	}
}
