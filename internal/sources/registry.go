// Package sources provides the default source registry: a URL-keyed store
// of de-duplicated script sources with lazy content fetch and deferred
// source map resolution.
package sources

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// Source is one registered script source. Content is fetched on first use
// and cached; source map sources appear once ResolveSourceMap is called.
type Source struct {
	url          string
	sourceMapURL string
	inlineOffset *cdp.Location
	fetch        func(ctx context.Context) (string, error)

	contentMu  sync.Mutex
	content    string
	hasContent bool

	mapOnce    sync.Once
	mapDone    chan struct{}
	mapSources []bridge.Source
	mapErr     error
}

// URL returns the canonical source URL.
func (s *Source) URL() string { return s.url }

// SourceMapURL returns the absolute source map URL, empty when the script
// carries none.
func (s *Source) SourceMapURL() string { return s.sourceMapURL }

// InlineOffset returns the position of an inline script within its
// document, or nil.
func (s *Source) InlineOffset() *cdp.Location { return s.inlineOffset }

// Content returns the script text, fetching it on first call.
func (s *Source) Content(ctx context.Context) (string, error) {
	s.contentMu.Lock()
	defer s.contentMu.Unlock()
	if s.hasContent {
		return s.content, nil
	}
	if s.fetch == nil {
		return "", nil
	}
	text, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.content = text
	s.hasContent = true
	return text, nil
}

// resolveMap completes the source map wait. Safe to call more than once;
// only the first call wins.
func (s *Source) resolveMap(sources []bridge.Source, err error) {
	s.mapOnce.Do(func() {
		s.mapSources = sources
		s.mapErr = err
		close(s.mapDone)
	})
}

// Registry is the default bridge.SourceContainer.
type Registry struct {
	log      *zap.Logger
	timeouts bridge.SourceMapTimeouts

	mu    sync.Mutex
	byURL map[string]*Source
}

// NewRegistry builds an empty registry with the given waiting budgets.
func NewRegistry(timeouts bridge.SourceMapTimeouts, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:      log.Named("sources"),
		timeouts: timeouts,
		byURL:    make(map[string]*Source),
	}
}

// SourceByURL returns the registered source for url, or nil.
func (r *Registry) SourceByURL(url string) bridge.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.byURL[url]; ok {
		return src
	}
	return nil
}

// AddSource registers a new source. A source without a map URL has its map
// wait completed immediately.
func (r *Registry) AddSource(_ context.Context, req bridge.AddSourceRequest) (bridge.Source, error) {
	src := &Source{
		url:          req.URL,
		sourceMapURL: req.SourceMapURL,
		inlineOffset: req.InlineOffset,
		fetch:        req.Content,
		mapDone:      make(chan struct{}),
	}
	if req.SourceMapURL == "" {
		src.resolveMap(nil, nil)
	}

	r.mu.Lock()
	r.byURL[req.URL] = src
	r.mu.Unlock()

	r.log.Debug("source registered",
		zap.String("url", req.URL), zap.String("sourceMapURL", req.SourceMapURL))
	return src, nil
}

// RemoveSource retires a source nothing references anymore. Pending map
// waiters are unblocked with an empty result.
func (r *Registry) RemoveSource(src bridge.Source) {
	r.mu.Lock()
	delete(r.byURL, src.URL())
	r.mu.Unlock()

	if s, ok := src.(*Source); ok {
		s.resolveMap(nil, nil)
	}
	r.log.Debug("source retired", zap.String("url", src.URL()))
}

// ResolveSourceMap marks a source's map as resolved, unblocking waiters.
func (r *Registry) ResolveSourceMap(src bridge.Source, sources []bridge.Source, err error) {
	if s, ok := src.(*Source); ok {
		s.resolveMap(sources, err)
	}
}

// WaitForSourceMapSources blocks until the source's map has been resolved
// or ctx ends. A source without a map returns immediately with no sources.
func (r *Registry) WaitForSourceMapSources(ctx context.Context, src bridge.Source) ([]bridge.Source, error) {
	s, ok := src.(*Source)
	if !ok {
		return nil, nil
	}
	select {
	case <-s.mapDone:
		return s.mapSources, s.mapErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SourceMapTimeouts reports the configured waiting budgets.
func (r *Registry) SourceMapTimeouts() bridge.SourceMapTimeouts {
	return r.timeouts
}
