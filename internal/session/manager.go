package session

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/catalog"
	"github.com/ctagard/cdp-bridge/internal/cdp"
	"github.com/ctagard/cdp-bridge/internal/config"
	"github.com/ctagard/cdp-bridge/internal/dapout"
	"github.com/ctagard/cdp-bridge/internal/errors"
	"github.com/ctagard/cdp-bridge/internal/ids"
	"github.com/ctagard/cdp-bridge/internal/profiles"
	"github.com/ctagard/cdp-bridge/internal/render"
	"github.com/ctagard/cdp-bridge/internal/sources"
	"github.com/ctagard/cdp-bridge/internal/transport"
	"github.com/ctagard/cdp-bridge/pkg/types"
)

// Conn is what the manager needs from a protocol connection. *cdp.Conn
// implements it; tests inject fakes through a Dialer.
type Conn interface {
	Call(ctx context.Context, method string, params, result interface{}) error
	On(method string, handler func(params json.RawMessage)) func()
	Done() <-chan struct{}
	Close() error
}

// Dialer opens a protocol connection to a WebSocket debugger URL.
type Dialer interface {
	Dial(ctx context.Context, wsURL string) (Conn, error)
}

// websocketDialer is the production dialer: retrying transport connect plus
// a CDP connection on top.
type websocketDialer struct {
	cfg *config.Config
	log *zap.Logger
}

func (d *websocketDialer) Dial(ctx context.Context, wsURL string) (Conn, error) {
	tr, err := transport.Dial(ctx, wsURL, transport.Options{
		AttemptTimeout: d.cfg.Connect.AttemptTimeout,
		RetryInterval:  d.cfg.Connect.RetryInterval,
		Logger:         d.log,
	})
	if err != nil {
		return nil, err
	}
	return cdp.NewConn(tr, cdp.WithLogger(d.log), cdp.WithCallTimeout(d.cfg.CallTimeout)), nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the production dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

// Manager owns every attached session: creation against the session limit,
// idle cleanup on a ticker, auto-detach when a connection drops, and
// shutdown.
type Manager struct {
	cfg        *config.Config
	log        *zap.Logger
	clk        clock.Clock
	dialer     Dialer
	launcher   *Launcher
	discoverer *Discoverer
	catalog    *catalog.Catalog
	threadIDs  *ids.Sequence

	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a session manager and starts its cleanup loop.
func NewManager(cfg *config.Config, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg,
		log:       log.Named("session"),
		clk:       clock.New(),
		catalog:   catalog.Default(),
		threadIDs: &ids.Sequence{},
		sessions:  make(map[string]*Session),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = &websocketDialer{cfg: cfg, log: m.log}
	}
	m.launcher = NewLauncher(m.log)
	m.discoverer = NewDiscoverer(cfg.Discovery.HTTPTimeout, m.log)

	m.wg.Add(1)
	go m.cleanupLoop()
	return m
}

// Catalog returns the custom-breakpoint catalog shared by all sessions.
func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// Discoverer returns the target discoverer.
func (m *Manager) Discoverer() *Discoverer { return m.discoverer }

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := m.clk.Ticker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupIdle()
		}
	}
}

func (m *Manager) cleanupIdle() {
	now := m.clk.Now()
	m.mu.Lock()
	var expired []string
	for id, sess := range m.sessions {
		if now.Sub(sess.idleSince()) > m.cfg.SessionIdleTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.log.Info("detaching idle session", zap.String("sessionID", id))
		if err := m.Detach(id); err != nil {
			m.log.Warn("idle detach failed", zap.String("sessionID", id), zap.Error(err))
		}
	}
}

// AttachOptions describe one attach request. Exactly one of WSURL or
// Address is needed; a Profile refines both cases.
type AttachOptions struct {
	// WSURL is an explicit WebSocket debugger URL, skipping discovery.
	WSURL string

	// Address is a host:port whose /json/list is consulted.
	Address string

	// Selector narrows the discovered target list.
	Selector TargetSelector

	// Profile carries the originating profile, if any.
	Profile *profiles.Profile
}

// Attach connects to a target and builds a full session around it.
func (m *Manager) Attach(ctx context.Context, opts AttachOptions) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, errors.SessionLimitReached(m.cfg.MaxSessions)
	}
	m.mu.Unlock()

	wsURL := opts.WSURL
	endpoint := wsURL
	if wsURL == "" {
		if opts.Address == "" {
			return nil, errors.MissingParameter("address", "host:port of the inspector endpoint")
		}
		targets, err := m.discoverer.ListTargets(ctx, opts.Address)
		if err != nil {
			return nil, err
		}
		target, err := PickTarget(targets, opts.Selector)
		if err != nil {
			return nil, err
		}
		wsURL = target.WebSocketDebuggerURL
		endpoint = opts.Address
	}

	conn, err := m.dialer.Dial(ctx, wsURL)
	if err != nil {
		return nil, errors.ConnectFailed(wsURL, err)
	}

	sess, err := m.buildSession(ctx, conn, endpoint, opts.Profile)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sess, nil
}

// Launch spawns the runtime a launch profile describes, waits for its
// inspector endpoint to come up, and attaches to it. The process is killed
// when the session detaches.
func (m *Manager) Launch(ctx context.Context, p *profiles.Profile) (*Session, error) {
	launched, err := m.launcher.Launch(ctx, p)
	if err != nil {
		return nil, err
	}

	target, err := m.awaitTarget(ctx, launched.Address, TargetSelector{URLPattern: p.URLPattern})
	if err != nil {
		_ = killProcessGroup(launched.PID, launched.Cmd)
		return nil, errors.LaunchFailed(p.Name, err)
	}

	conn, err := m.dialer.Dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		_ = killProcessGroup(launched.PID, launched.Cmd)
		return nil, errors.ConnectFailed(target.WebSocketDebuggerURL, err)
	}

	sess, err := m.buildSession(ctx, conn, launched.Address, p)
	if err != nil {
		_ = conn.Close()
		_ = killProcessGroup(launched.PID, launched.Cmd)
		return nil, err
	}
	sess.proc = launched.Cmd
	sess.pid = launched.PID
	return sess, nil
}

// awaitTarget polls discovery until the freshly launched runtime answers.
func (m *Manager) awaitTarget(ctx context.Context, address string, sel TargetSelector) (*types.TargetInfo, error) {
	deadline := m.clk.Now().Add(m.cfg.Connect.AttemptTimeout)
	var lastErr error
	for {
		targets, err := m.discoverer.ListTargets(ctx, address)
		if err == nil {
			target, pickErr := PickTarget(targets, sel)
			if pickErr == nil {
				return target, nil
			}
			lastErr = pickErr
		} else {
			lastErr = err
		}

		if m.clk.Now().After(deadline) {
			return nil, lastErr
		}
		timer := m.clk.Timer(m.cfg.Connect.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, lastErr
		case <-timer.C:
		}
	}
}

func (m *Manager) buildSession(ctx context.Context, conn Conn, endpoint string, p *profiles.Profile) (*Session, error) {
	id := uuid.New().String()
	log := m.log.With(zap.String("sessionID", id))

	buffer := dapout.NewBuffer(m.cfg.OutputBufferSize)
	registry := sources.NewRegistry(bridge.SourceMapTimeouts{
		ScriptPaused: m.cfg.SourceMap.ScriptPausedTimeout,
		Output:       m.cfg.SourceMap.OutputTimeout,
	}, log)

	bm := bridge.NewManager(bridge.Options{
		Container: registry,
		Sink:      buffer,
		Catalog:   m.catalog,
		Renderer:  render.New(log),
		Sequence:  m.threadIDs,
		Clock:     m.clk,
		Logger:    log,
	})

	name := endpoint
	baseURL := ""
	pauseForSourceMaps := m.cfg.SourceMap.PauseForScripts
	profileName := ""
	if p != nil {
		name = p.Name
		baseURL = p.BaseURL
		pauseForSourceMaps = p.PauseForSourceMaps
		profileName = p.Name
	}

	root, err := bm.CreateThread(ctx, conn, bridge.ThreadOptions{
		Name:               name,
		BaseURL:            baseURL,
		PauseForSourceMaps: pauseForSourceMaps,
	})
	if err != nil {
		bm.DisposeAll()
		return nil, err
	}

	now := m.clk.Now()
	sess := &Session{
		ID:           id,
		Profile:      profileName,
		Endpoint:     endpoint,
		conn:         conn,
		bridge:       bm,
		registry:     registry,
		buffer:       buffer,
		root:         root,
		createdAt:    now,
		status:       types.SessionStatusAttached,
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.wg.Add(1)
	go m.watch(sess)

	log.Info("session attached", zap.String("endpoint", endpoint))
	return sess, nil
}

// watch auto-detaches the session when the connection drops.
func (m *Manager) watch(sess *Session) {
	defer m.wg.Done()
	select {
	case <-m.ctx.Done():
	case <-sess.conn.Done():
		m.mu.Lock()
		_, live := m.sessions[sess.ID]
		m.mu.Unlock()
		if live {
			m.log.Info("connection closed, detaching session", zap.String("sessionID", sess.ID))
			_ = m.Detach(sess.ID)
		}
	}
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, errors.SessionNotFound(id)
	}
	return sess, nil
}

// List returns all sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].createdAt.Before(out[j].createdAt) })
	return out
}

// Touch records activity on a session.
func (m *Manager) Touch(sess *Session) {
	sess.Touch(m.clk.Now())
}

// Detach tears a session down: threads disposed, connection closed, any
// launched process group killed.
func (m *Manager) Detach(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return errors.SessionNotFound(id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	sess.bridge.DisposeAll()
	if err := sess.conn.Close(); err != nil {
		m.log.Warn("connection close failed", zap.String("sessionID", id), zap.Error(err))
	}
	if err := killProcessGroup(sess.pid, sess.proc); err != nil {
		m.log.Warn("process group kill failed",
			zap.String("sessionID", id), zap.Int("pid", sess.pid), zap.Error(err))
	}
	sess.setStatus(types.SessionStatusDetached)

	m.log.Info("session detached", zap.String("sessionID", id))
	return nil
}

// Close detaches every session and stops the cleanup loop.
func (m *Manager) Close() {
	m.cancel()
	for _, sess := range m.List() {
		_ = m.Detach(sess.ID)
	}
	m.wg.Wait()
}

// FindThread locates a thread across a session.
func (m *Manager) FindThread(sessionID string, threadID int) (*Session, *bridge.Thread, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	t := sess.Bridge().Thread(threadID)
	if t == nil {
		return nil, nil, errors.ThreadNotFound(threadID)
	}
	return sess, t, nil
}

var _ Conn = (*cdp.Conn)(nil)
