// Package ids provides process-lifetime unique id allocation.
//
// Thread ids and source reference ids must stay strictly increasing and
// never repeat for the lifetime of the process, even when allocated from
// multiple goroutines. A Sequence is injected wherever ids are handed out
// so tests can observe allocation without global state.
package ids

import "sync/atomic"

// Sequence hands out strictly increasing integer ids starting at 1.
// The zero value is ready to use.
type Sequence struct {
	last atomic.Int64
}

// Next returns the next id in the sequence.
func (s *Sequence) Next() int {
	return int(s.last.Add(1))
}

// Last returns the most recently allocated id, or 0 if none was allocated.
func (s *Sequence) Last() int {
	return int(s.last.Load())
}
