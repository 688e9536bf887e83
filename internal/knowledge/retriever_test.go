package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storevoice/storevoice/internal/platform"
)

// fakeEmbedder maps known substrings to fixed vectors so similarity is
// fully deterministic.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	switch {
	case strings.Contains(strings.ToLower(text), "battery"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(strings.ToLower(text), "screen"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func newPlatformServer(t *testing.T, rows any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tokens": map[string]string{"access": "tok"}})
	})
	mux.HandleFunc("/api/v1/services/price-list/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("store") != "42" {
			http.Error(w, "unknown store", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(rows)
	})
	return httptest.NewServer(mux)
}

func priceRows() []map[string]any {
	return []map[string]any{
		{"store_name": "Fix It Fast", "brand_name": "Apple", "device_model_name": "iPhone 13", "repair_type_name": "Battery", "category_name": "Phone", "price": 79},
		{"store_name": "Fix It Fast", "brand_name": "Apple", "device_model_name": "iPhone 13", "repair_type_name": "LCD", "category_name": "Phone", "price": 129},
	}
}

func newTestRetriever(t *testing.T, srvURL string) (*Retriever, *fakeEmbedder) {
	t.Helper()
	client, err := platform.NewClient(platform.Config{BaseURL: srvURL, AdminEmail: "a@b.c", AdminPass: "pw"})
	if err != nil {
		t.Fatalf("platform client err: %v", err)
	}
	embedder := &fakeEmbedder{}
	return NewRetriever(client, "42", embedder, t.TempDir()), embedder
}

func TestBuildAndRetrieve(t *testing.T) {
	srv := newPlatformServer(t, priceRows())
	defer srv.Close()

	r, _ := newTestRetriever(t, srv.URL)
	if r.Ready() {
		t.Fatal("retriever must not be ready before Build")
	}

	if err := r.Build(context.Background()); err != nil {
		t.Fatalf("Build err: %v", err)
	}
	if !r.Ready() {
		t.Fatal("retriever should be ready after Build")
	}

	snippets, err := r.Retrieve(context.Background(), "how much is a battery swap")
	if err != nil {
		t.Fatalf("Retrieve err: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("expected both documents, got %d", len(snippets))
	}
	if !strings.Contains(snippets[0], "Battery") {
		t.Fatalf("best match should be the battery row, got:\n%s", snippets[0])
	}
}

func TestBuildUsesEmbeddingCache(t *testing.T) {
	srv := newPlatformServer(t, priceRows())
	defer srv.Close()

	r, embedder := newTestRetriever(t, srv.URL)
	if err := r.Build(context.Background()); err != nil {
		t.Fatalf("Build err: %v", err)
	}
	firstBuildCalls := embedder.calls

	// Second build of the same corpus should reuse the disk cache.
	if err := r.Build(context.Background()); err != nil {
		t.Fatalf("second Build err: %v", err)
	}
	if embedder.calls != firstBuildCalls {
		t.Fatalf("cache not used: %d extra embed calls", embedder.calls-firstBuildCalls)
	}

	// Rebuild drops the cache and re-embeds.
	if err := r.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild err: %v", err)
	}
	if embedder.calls == firstBuildCalls {
		t.Fatal("Rebuild should re-embed after dropping the cache")
	}
}

func TestBuildWrappedResponse(t *testing.T) {
	srv := newPlatformServer(t, map[string]any{"results": priceRows()})
	defer srv.Close()

	r, _ := newTestRetriever(t, srv.URL)
	if err := r.Build(context.Background()); err != nil {
		t.Fatalf("Build err: %v", err)
	}
	if !r.Ready() {
		t.Fatal("wrapped price list should still build an index")
	}
}

func TestBuildEmptyKeepsPreviousIndex(t *testing.T) {
	srv := newPlatformServer(t, priceRows())
	r, _ := newTestRetriever(t, srv.URL)
	if err := r.Build(context.Background()); err != nil {
		t.Fatalf("Build err: %v", err)
	}
	srv.Close()

	empty := newPlatformServer(t, []map[string]any{})
	defer empty.Close()
	client, err := platform.NewClient(platform.Config{BaseURL: empty.URL, AdminEmail: "a", AdminPass: "b"})
	if err != nil {
		t.Fatalf("platform client err: %v", err)
	}
	r.client = client

	if err := r.Build(context.Background()); err != nil {
		t.Fatalf("empty Build err: %v", err)
	}
	if !r.Ready() {
		t.Fatal("empty price list must not clobber the previous index")
	}
}

func TestRetrieveBeforeBuildFails(t *testing.T) {
	srv := newPlatformServer(t, priceRows())
	defer srv.Close()

	r, _ := newTestRetriever(t, srv.URL)
	if _, err := r.Retrieve(context.Background(), "battery"); err == nil {
		t.Fatal("expected error before index build")
	}
}
