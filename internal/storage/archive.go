package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/timmy/jobimport/internal/source"
	"github.com/timmy/jobimport/internal/source/snapshot"
)

const snapshotContentType = "application/x-ndjson"

// SnapshotArchive stores fetched vacancies as JSON Lines objects so a run
// can be replayed later. Keys sort chronologically per source:
//
//	<prefix>/<source>/20261019T120000Z-<runID>.jsonl
type SnapshotArchive struct {
	store  ObjectStorage
	prefix string
}

func NewSnapshotArchive(store ObjectStorage, prefix string) *SnapshotArchive {
	return &SnapshotArchive{store: store, prefix: strings.Trim(prefix, "/")}
}

func (a *SnapshotArchive) sourcePrefix(sourceName string) string {
	if a.prefix == "" {
		return sourceName + "/"
	}
	return a.prefix + "/" + sourceName + "/"
}

// Save uploads one snapshot and returns its key.
func (a *SnapshotArchive) Save(ctx context.Context, sourceName, runID string, fetchedAt time.Time, vacancies []*source.Vacancy) (string, error) {
	var buf bytes.Buffer
	if _, err := snapshot.Write(&buf, sourceName, fetchedAt, vacancies); err != nil {
		return "", err
	}

	key := a.sourcePrefix(sourceName) + fetchedAt.UTC().Format("20060102T150405Z") + "-" + runID + ".jsonl"
	if err := a.store.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), snapshotContentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open downloads a snapshot and serves it as a source.
func (a *SnapshotArchive) Open(ctx context.Context, key string, pageSize int) (*snapshot.Reader, error) {
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := snapshot.Read(rc, pageSize)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	return r, nil
}

// Latest returns the newest snapshot key for a source.
func (a *SnapshotArchive) Latest(ctx context.Context, sourceName string) (string, error) {
	keys, err := a.keys(ctx, sourceName)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("%w: no snapshots for %s", ErrObjectNotFound, sourceName)
	}
	return keys[len(keys)-1], nil
}

// Prune deletes all but the newest keep snapshots of a source and returns
// how many were removed. keep <= 0 removes nothing.
func (a *SnapshotArchive) Prune(ctx context.Context, sourceName string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	keys, err := a.keys(ctx, sourceName)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys[:max(len(keys)-keep, 0)] {
		if err := a.store.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// keys lists the snapshot keys of a source, oldest first.
func (a *SnapshotArchive) keys(ctx context.Context, sourceName string) ([]string, error) {
	all, err := a.store.List(ctx, a.sourcePrefix(sourceName))
	if err != nil {
		return nil, err
	}
	keys := all[:0]
	for _, k := range all {
		if path.Ext(k) == ".jsonl" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
