package bridge

import (
	"sync"

	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// VariableStore holds the remote objects referenced by the client while a
// thread is paused. It lives exactly as long as the pause: a resume or
// context clear throws the whole store away, which also invalidates every
// variables reference handed out for it.
type VariableStore struct {
	mu      sync.Mutex
	nextRef int
	objects map[int]*cdp.RemoteObject
}

// NewVariableStore returns an empty store.
func NewVariableStore() *VariableStore {
	return &VariableStore{objects: make(map[int]*cdp.RemoteObject)}
}

// Add registers obj and returns its variables reference.
func (s *VariableStore) Add(obj *cdp.RemoteObject) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRef++
	s.objects[s.nextRef] = obj
	return s.nextRef
}

// Get returns the object behind ref, or nil.
func (s *VariableStore) Get(ref int) *cdp.RemoteObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[ref]
}

// Len reports the number of stored objects.
func (s *VariableStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
