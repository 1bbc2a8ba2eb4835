// Package session owns the lifecycle of attached debug targets: dialing or
// launching an endpoint, wiring the protocol connection into a bridge
// manager, enforcing session limits and idle cleanup, and tearing
// everything down on detach.
package session

import (
	"os/exec"
	"sync"
	"time"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/dapout"
	"github.com/ctagard/cdp-bridge/internal/sources"
	"github.com/ctagard/cdp-bridge/pkg/types"
)

// Session is one attached CDP endpoint with its bridge state.
type Session struct {
	ID       string
	Profile  string
	Endpoint string

	conn     Conn
	bridge   *bridge.Manager
	registry *sources.Registry
	buffer   *dapout.Buffer
	root     *bridge.Thread

	proc *exec.Cmd
	pid  int

	createdAt time.Time

	mu           sync.Mutex
	status       types.SessionStatus
	lastActivity time.Time
}

// Bridge returns the session's thread manager.
func (s *Session) Bridge() *bridge.Manager { return s.bridge }

// Buffer returns the ring of recent client-facing events.
func (s *Session) Buffer() *dapout.Buffer { return s.buffer }

// Registry returns the session's source registry.
func (s *Session) Registry() *sources.Registry { return s.registry }

// RootThread returns the thread created at attach time.
func (s *Session) RootThread() *bridge.Thread { return s.root }

// Touch records activity, deferring idle cleanup.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// Status returns the current lifecycle state.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(status types.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Info returns the session's listing entry.
func (s *Session) Info() types.SessionInfo {
	s.mu.Lock()
	status := s.status
	last := s.lastActivity
	s.mu.Unlock()

	return types.SessionInfo{
		SessionID:    s.ID,
		Profile:      s.Profile,
		Endpoint:     s.Endpoint,
		Status:       status,
		PID:          s.pid,
		CreatedAt:    s.createdAt,
		LastActivity: last,
		Threads:      len(s.bridge.Threads()),
	}
}
