package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"github.com/timmy/matchsync/internal/domain"
)

// PayloadArchive stores raw bulk responses as JSON objects under
// <prefix>/<run id>/<chunk>.json so the operator API can show what a run
// received.
type PayloadArchive struct {
	store  ObjectStore
	prefix string
}

// NewPayloadArchive creates a new archive on top of store.
func NewPayloadArchive(store ObjectStore, prefix string) *PayloadArchive {
	return &PayloadArchive{store: store, prefix: prefix}
}

// Key returns the object key for one chunk of a run.
func (a *PayloadArchive) Key(runID, chunk string) string {
	return path.Join(a.prefix, runID, chunk+".json")
}

// Archive uploads payloads keyed by source id.
func (a *PayloadArchive) Archive(ctx context.Context, runID, chunk string, payloads map[int64]domain.Payload) error {
	if len(payloads) == 0 {
		return nil
	}
	doc := make(map[string]domain.Payload, len(payloads))
	for id, p := range payloads {
		doc[strconv.FormatInt(id, 10)] = p
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode archive chunk %s: %w", chunk, err)
	}
	return a.store.Put(ctx, a.Key(runID, chunk), body, "application/json")
}

// Load reads an archived chunk back.
func (a *PayloadArchive) Load(ctx context.Context, runID, chunk string) (map[int64]domain.Payload, error) {
	body, err := a.store.Get(ctx, a.Key(runID, chunk))
	if err != nil {
		return nil, err
	}

	var doc map[string]domain.Payload
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode archive chunk %s: %w", chunk, err)
	}
	out := make(map[int64]domain.Payload, len(doc))
	for key, p := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("archive chunk %s: bad key %q", chunk, key)
		}
		out[id] = p
	}
	return out, nil
}
