// Package recording captures call-audio segments delivered by the carrier
// and merges them into one artifact per call.
package recording

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/storevoice/storevoice/internal/session"
)

// Downloader fetches segment media from the carrier.
type Downloader interface {
	DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

// Pipeline stores segments on disk as they arrive and concatenates them in
// arrival order when the carrier reports the recording complete.
type Pipeline struct {
	store      *session.Store
	downloader Downloader
	dir        string
}

// NewPipeline creates a pipeline writing segment files under dir.
func NewPipeline(store *session.Store, downloader Downloader, dir string) (*Pipeline, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Pipeline{store: store, downloader: downloader, dir: dir}, nil
}

// Dir returns the directory holding segment and merged files.
func (p *Pipeline) Dir() string {
	return p.dir
}

// OnSegmentReady appends the segment to the call's session (creating a
// minimal session for an unknown id) and downloads its media to
// {callID}_{n}.mp3. Download failures are logged, never raised: the carrier
// callback must always be acknowledged.
func (p *Pipeline) OnSegmentReady(ctx context.Context, callID, recordingURL string) {
	p.store.CreateIfAbsent(callID, nil)

	var index int
	p.store.Mutate(callID, func(c *session.Call) {
		c.RecordingSegments = append(c.RecordingSegments, recordingURL)
		index = len(c.RecordingSegments)
	})

	payload, err := p.downloader.DownloadRecording(ctx, recordingURL)
	if err != nil {
		log.Printf("[recording] download segment %d of call %s failed: %v", index, callID, err)
		return
	}

	path := p.segmentPath(callID, index)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Printf("[recording] save segment %d of call %s failed: %v", index, callID, err)
		return
	}
	log.Printf("[recording] segment %d of call %s saved to %s", index, callID, path)
}

// OnRecordingComplete concatenates the call's segments, in arrival order,
// into {callID}_full.mp3 and records the merged path on the session. A
// missing segment file is reported and skipped; the merge continues with
// what is on disk. MP3 frames are self-delimiting, so plain byte
// concatenation plays back in segment order.
func (p *Pipeline) OnRecordingComplete(callID string) (string, error) {
	call, ok := p.store.Get(callID)
	if !ok || len(call.RecordingSegments) == 0 {
		return "", nil
	}

	mergedPath := filepath.Join(p.dir, callID+"_full.mp3")
	out, err := os.Create(mergedPath)
	if err != nil {
		return "", fmt.Errorf("create merged recording: %w", err)
	}
	defer out.Close()

	merged := 0
	for i := 1; i <= len(call.RecordingSegments); i++ {
		segment, err := os.ReadFile(p.segmentPath(callID, i))
		if err != nil {
			log.Printf("[recording] segment %d of call %s missing, skipping: %v", i, callID, err)
			continue
		}
		if _, err := out.Write(segment); err != nil {
			return "", fmt.Errorf("write merged recording: %w", err)
		}
		merged++
	}

	if merged == 0 {
		return "", fmt.Errorf("no segment files available for call %s", callID)
	}

	p.store.Mutate(callID, func(c *session.Call) {
		c.MergedRecordingPath = mergedPath
	})

	log.Printf("[recording] call %s merged: %d/%d segments -> %s", callID, merged, len(call.RecordingSegments), mergedPath)
	return mergedPath, nil
}

func (p *Pipeline) segmentPath(callID string, index int) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s_%d.mp3", callID, index))
}
