package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) error {
	f.calls++
	return f.err
}

func newTestRouter(behavior *fakeRefresher, knowledge *fakeRebuilder) http.Handler {
	r := chi.NewRouter()
	New(behavior, knowledge).RegisterRoutes(r)
	return r
}

func post(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestUpdateSystemReloadsBehavior(t *testing.T) {
	behavior := &fakeRefresher{}
	handler := newTestRouter(behavior, &fakeRebuilder{})

	rr := post(handler, "/update-system")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if behavior.calls != 1 {
		t.Fatalf("expected one refresh call, got %d", behavior.calls)
	}

	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected response body: %v", body)
	}
}

func TestUpdateSystemReportsFailure(t *testing.T) {
	behavior := &fakeRefresher{err: errors.New("platform unreachable")}
	handler := newTestRouter(behavior, &fakeRebuilder{})

	rr := post(handler, "/update-system")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "platform unreachable" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestUpdateRAGRebuildsIndex(t *testing.T) {
	knowledge := &fakeRebuilder{}
	handler := newTestRouter(&fakeRefresher{}, knowledge)

	rr := post(handler, "/update-rag")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if knowledge.calls != 1 {
		t.Fatalf("expected one rebuild call, got %d", knowledge.calls)
	}
}

func TestUpdateRAGReportsFailure(t *testing.T) {
	knowledge := &fakeRebuilder{err: errors.New("embedding backend down")}
	handler := newTestRouter(&fakeRefresher{}, knowledge)

	rr := post(handler, "/update-rag")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if knowledge.calls != 1 {
		t.Fatalf("expected one rebuild call, got %d", knowledge.calls)
	}
}
