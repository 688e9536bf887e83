package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/storevoice/storevoice/internal/platform"
)

// Loader fetches behavior settings from the platform and publishes them as
// an atomically swapped snapshot, so readers never see a half-applied
// refresh.
type Loader struct {
	client  *platform.Client
	storeID string
	current atomic.Pointer[Snapshot]
}

// NewLoader creates a loader bound to one store. The initial snapshot is
// empty until Refresh succeeds.
func NewLoader(client *platform.Client, storeID string) *Loader {
	l := &Loader{client: client, storeID: storeID}
	l.current.Store(&Snapshot{})
	return l
}

// Current returns the active snapshot. Never nil.
func (l *Loader) Current() *Snapshot {
	return l.current.Load()
}

// Refresh fetches the behavior settings and swaps them in. On failure the
// previous snapshot stays active.
func (l *Loader) Refresh(ctx context.Context) error {
	var raw json.RawMessage
	path := fmt.Sprintf("/api/v1/stores/%s/ai-behavior", l.storeID)
	if err := l.client.GetJSON(ctx, path, &raw); err != nil {
		return fmt.Errorf("fetch ai behavior: %w", err)
	}

	snapshot, err := decodeSnapshot(raw)
	if err != nil {
		return err
	}

	l.current.Store(snapshot)
	log.Printf("[behavior] snapshot refreshed: %d hours entries, %d transfer keywords",
		len(snapshot.BusinessHours), len(snapshot.TransferKeywords))
	return nil
}

// decodeSnapshot tolerates the platform's list-wrapped responses by
// unwrapping to the first element until an object remains.
func decodeSnapshot(raw json.RawMessage) (*Snapshot, error) {
	for {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			break
		}
		if len(list) == 0 {
			return &Snapshot{}, nil
		}
		raw = list[0]
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode ai behavior: %w", err)
	}
	return &snapshot, nil
}
