package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const loadKey = "dataset"

// Source describes where the archive lives and where it is unpacked.
type Source struct {
	URL string
	// DataDir receives the extracted archive.
	DataDir string
	// Folder is the directory inside the archive that holds the station CSVs.
	Folder string
}

// FolderPath returns the on-disk location of the station CSVs.
func (s Source) FolderPath() string {
	return filepath.Join(s.DataDir, s.Folder)
}

// Load downloads, extracts and merges the dataset. Nothing is cached.
func Load(ctx context.Context, client *http.Client, src Source) (*Dataset, error) {
	data, err := FetchArchive(ctx, client, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}

	if err := ExtractArchive(data, src.DataDir); err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	ds, err := ReadFolder(src.FolderPath())
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Loader memoises the merged dataset for the life of the process.
// The cache key is constant; Invalidate is the only way to force a reload.
type Loader struct {
	client *http.Client
	src    Source
	logger *slog.Logger

	group   singleflight.Group
	current atomic.Pointer[Dataset]
}

// NewLoader builds a Loader. A nil logger falls back to slog.Default().
func NewLoader(client *http.Client, src Source, logger *slog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: client, src: src, logger: logger}
}

// Load returns the cached dataset, loading it first if needed. Concurrent
// callers share one load; a failed load is not cached. A caller whose ctx ends
// stops waiting, while the shared load keeps running for the others.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	if ds := l.current.Load(); ds != nil {
		return ds, nil
	}

	ch := l.group.DoChan(loadKey, func() (any, error) {
		return l.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

func (l *Loader) load(ctx context.Context) (*Dataset, error) {
	if ds := l.current.Load(); ds != nil {
		return ds, nil
	}

	start := time.Now()
	l.logger.Info("loading dataset", "url", l.src.URL, "dir", l.src.DataDir)

	ds, err := Load(ctx, l.client, l.src)
	if err != nil {
		l.logger.Error("dataset load failed", "error", err)
		return nil, err
	}

	l.logger.Info("dataset loaded",
		"files", len(ds.Files),
		"rows", ds.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	l.current.Store(ds)
	return ds, nil
}

// Invalidate drops the cached dataset so the next Load fetches again.
func (l *Loader) Invalidate() {
	if l.current.Swap(nil) != nil {
		l.logger.Info("dataset cache cleared")
	}
}

// Loaded reports whether a dataset is cached.
func (l *Loader) Loaded() bool {
	return l.current.Load() != nil
}
