package bridge

import (
	"context"
	"sync"
)

// sourceIndex is the shared owner-set over the external source registry.
// All threads of one Manager acquire and release through it, so
// add-if-absent lookup and reference-count-to-zero retirement are atomic
// with respect to each other.
type sourceIndex struct {
	container SourceContainer

	mu      sync.Mutex
	entries map[string]*sourceEntry
}

type sourceEntry struct {
	source Source
	refs   int
}

func newSourceIndex(container SourceContainer) *sourceIndex {
	return &sourceIndex{
		container: container,
		entries:   make(map[string]*sourceEntry),
	}
}

// acquire returns the shared source for req.URL, creating it through the
// container if no script references it yet, and takes one reference.
func (x *sourceIndex) acquire(ctx context.Context, req AddSourceRequest) (Source, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.entries[req.URL]
	if !ok {
		src := x.container.SourceByURL(req.URL)
		if src == nil {
			var err error
			src, err = x.container.AddSource(ctx, req)
			if err != nil {
				return nil, err
			}
		}
		entry = &sourceEntry{source: src}
		x.entries[req.URL] = entry
	}
	entry.refs++
	return entry.source, nil
}

// release drops one reference to the source for url. When the last
// reference goes, the source is retired through the container exactly once.
func (x *sourceIndex) release(url string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.entries[url]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(x.entries, url)
	x.container.RemoveSource(entry.source)
}

// refs reports the live reference count for url, for tests.
func (x *sourceIndex) refCount(url string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if entry, ok := x.entries[url]; ok {
		return entry.refs
	}
	return 0
}
