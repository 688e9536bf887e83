package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/storevoice/storevoice/internal/platform"
)

// TopK is the number of context snippets returned per query.
const TopK = 3

// embedConcurrency bounds parallel embedding calls during an index build so
// a large price list does not hammer the API.
const embedConcurrency = 3

// Retriever owns the active index and answers similarity queries. The index
// pointer is swapped atomically on rebuild, so queries never observe a
// half-built index.
type Retriever struct {
	client   *platform.Client
	storeID  string
	embedder Embedder
	cacheDir string

	current atomic.Pointer[Index]
}

// NewRetriever creates a retriever with no index yet; call Build before
// serving queries.
func NewRetriever(client *platform.Client, storeID string, embedder Embedder, cacheDir string) *Retriever {
	return &Retriever{
		client:   client,
		storeID:  storeID,
		embedder: embedder,
		cacheDir: cacheDir,
	}
}

// Ready reports whether an index is available for queries.
func (r *Retriever) Ready() bool {
	idx := r.current.Load()
	return idx != nil && idx.Len() > 0
}

// Retrieve returns up to TopK context snippets ranked by similarity to the
// utterance.
func (r *Retriever) Retrieve(ctx context.Context, utterance string) ([]string, error) {
	idx := r.current.Load()
	if idx == nil || idx.Len() == 0 {
		return nil, fmt.Errorf("knowledge index not built")
	}

	queryVec, err := r.embedder.Embed(ctx, utterance)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return idx.Search(queryVec, TopK), nil
}

// Build fetches the price list, embeds it (reusing the on-disk embedding
// cache when it matches) and swaps the result in.
func (r *Retriever) Build(ctx context.Context) error {
	return r.build(ctx, false)
}

// Rebuild drops the embedding cache and builds a fresh index.
func (r *Retriever) Rebuild(ctx context.Context) error {
	return r.build(ctx, true)
}

func (r *Retriever) build(ctx context.Context, dropCache bool) error {
	docs, err := r.fetchPricingDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		log.Printf("[rag] no pricing documents returned, keeping previous index")
		return nil
	}

	cachePath := filepath.Join(r.cacheDir, "embeddings.json")
	if dropCache {
		if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
			log.Printf("[rag] failed to drop embedding cache: %v", err)
		}
	}

	vectors, err := r.loadCachedEmbeddings(cachePath, len(docs))
	if err != nil {
		vectors, err = r.embedDocuments(ctx, docs)
		if err != nil {
			return err
		}
		r.saveEmbeddingCache(cachePath, vectors)
	}

	r.current.Store(newIndex(docs, vectors))
	log.Printf("[rag] index ready: %d documents", len(docs))
	return nil
}

// pricingRow mirrors the platform's price-list schema.
type pricingRow struct {
	StoreName       string `json:"store_name"`
	BrandName       string `json:"brand_name"`
	DeviceModelName string `json:"device_model_name"`
	RepairTypeName  string `json:"repair_type_name"`
	CategoryName    string `json:"category_name"`
	Price           any    `json:"price"`
}

func (r *Retriever) fetchPricingDocuments(ctx context.Context) ([]Document, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/api/v1/services/price-list/?store=%s", r.storeID)
	if err := r.client.GetJSON(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("fetch price list: %w", err)
	}

	rows, err := decodePricingRows(raw)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{Content: row.render()})
	}
	return docs, nil
}

// decodePricingRows accepts either a bare list or a {results: [...]} /
// {data: [...]} wrapper.
func decodePricingRows(raw json.RawMessage) ([]pricingRow, error) {
	var rows []pricingRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var wrapper struct {
		Results []pricingRow `json:"results"`
		Data    []pricingRow `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}
	if wrapper.Results != nil {
		return wrapper.Results, nil
	}
	return wrapper.Data, nil
}

func (row pricingRow) render() string {
	return fmt.Sprintf(
		"Repair pricing:\nStore: %s\nDevice: %s %s\nRepair: %s\nCategory: %s\nPrice: $%v",
		row.StoreName, row.BrandName, row.DeviceModelName, row.RepairTypeName, row.CategoryName, row.Price,
	)
}

// embedDocuments embeds all documents with bounded concurrency, keeping
// result order aligned with the document order.
func (r *Retriever) embedDocuments(ctx context.Context, docs []Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			vec, err := r.embedder.Embed(gctx, doc.Content)
			if err != nil {
				return fmt.Errorf("embed document %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (r *Retriever) loadCachedEmbeddings(path string, wantLen int) ([][]float32, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	if err := json.Unmarshal(payload, &vectors); err != nil {
		return nil, fmt.Errorf("decode embedding cache: %w", err)
	}
	if len(vectors) != wantLen {
		return nil, fmt.Errorf("embedding cache has %d rows, want %d", len(vectors), wantLen)
	}

	log.Printf("[rag] loaded %d cached embeddings", len(vectors))
	return vectors, nil
}

func (r *Retriever) saveEmbeddingCache(path string, vectors [][]float32) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[rag] failed to create cache dir: %v", err)
		return
	}

	payload, err := json.Marshal(vectors)
	if err != nil {
		log.Printf("[rag] failed to encode embedding cache: %v", err)
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Printf("[rag] failed to write embedding cache: %v", err)
	}
}
