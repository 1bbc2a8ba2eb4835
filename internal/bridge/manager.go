package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/go-dap"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/ids"
	"github.com/ctagard/cdp-bridge/internal/pubsub"
)

// ExceptionPolicy selects which thrown exceptions pause execution.
type ExceptionPolicy string

const (
	ExceptionPolicyNone     ExceptionPolicy = "none"
	ExceptionPolicyUncaught ExceptionPolicy = "uncaught"
	ExceptionPolicyAll      ExceptionPolicy = "all"
)

// ValidExceptionPolicy reports whether p is one of the three known values.
func ValidExceptionPolicy(p ExceptionPolicy) bool {
	return p == ExceptionPolicyNone || p == ExceptionPolicyUncaught || p == ExceptionPolicyAll
}

// ContextNode is one node of the execution-context forest.
type ContextNode struct {
	ThreadID int               `json:"threadId"`
	Label    string            `json:"label"`
	Context  *ExecutionContext `json:"context,omitempty"`
	Children []*ContextNode    `json:"children,omitempty"`
}

// ForestFunc aggregates the live threads into a context forest. Threads are
// passed in creation order.
type ForestFunc func(threads []*Thread) []*ContextNode

// Options configure a Manager. Zero-value fields get defaults.
type Options struct {
	Container SourceContainer
	Sink      EventSink
	Resolver  PathResolver
	Catalog   BreakpointCatalog
	Renderer  Renderer
	Sequence  *ids.Sequence
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Manager owns every thread of one debug session: it allocates ids, links
// the thread tree, and broadcasts exception policy and custom breakpoint
// changes to all live threads. Configuration set before a thread exists is
// applied to it at creation time.
type Manager struct {
	container SourceContainer
	sink      EventSink
	resolver  PathResolver
	catalog   BreakpointCatalog
	renderer  Renderer
	seq       *ids.Sequence
	clk       clock.Clock
	log       *zap.Logger
	index     *sourceIndex

	added   *pubsub.Hub[*Thread]
	removed *pubsub.Hub[*Thread]

	mu      sync.Mutex
	threads map[int]*Thread
	order   []int
	policy  ExceptionPolicy
	enabled []string
}

// NewManager builds a manager over the given collaborators. Container and
// Sink are required; the rest default to identity/nil/real-clock behavior.
func NewManager(opts Options) *Manager {
	if opts.Container == nil {
		panic("bridge: Manager requires a SourceContainer")
	}
	if opts.Sink == nil {
		panic("bridge: Manager requires an EventSink")
	}
	if opts.Resolver == nil {
		opts.Resolver = IdentityResolver{}
	}
	if opts.Sequence == nil {
		opts.Sequence = &ids.Sequence{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		container: opts.Container,
		sink:      opts.Sink,
		resolver:  opts.Resolver,
		catalog:   opts.Catalog,
		renderer:  opts.Renderer,
		seq:       opts.Sequence,
		clk:       opts.Clock,
		log:       opts.Logger.Named("bridge"),
		index:     newSourceIndex(opts.Container),
		added:     pubsub.NewHub[*Thread](),
		removed:   pubsub.NewHub[*Thread](),
		threads:   make(map[int]*Thread),
		policy:    ExceptionPolicyNone,
	}
}

// CreateThread allocates an id, attaches to the session, registers the
// thread, applies the current exception policy and every enabled custom
// breakpoint, and announces it. A duplicate id is a programming error and
// panics.
func (m *Manager) CreateThread(ctx context.Context, sess ProtocolSession, opts ThreadOptions) (*Thread, error) {
	id := m.seq.Next()
	t := newThread(m, id, sess, opts)

	if err := t.attach(ctx); err != nil {
		t.cancel()
		for _, unsub := range t.unsubs {
			unsub()
		}
		return nil, err
	}

	m.mu.Lock()
	if _, dup := m.threads[id]; dup {
		m.mu.Unlock()
		panic(fmt.Sprintf("bridge: duplicate thread id %d", id))
	}
	m.threads[id] = t
	m.order = append(m.order, id)
	if t.parent != nil {
		t.parent.children = append(t.parent.children, t)
	}
	policy := m.policy
	enabled := append([]string(nil), m.enabled...)
	m.mu.Unlock()

	if policy != ExceptionPolicyNone {
		if err := t.applyExceptionPolicy(ctx, policy); err != nil {
			m.log.Warn("exception policy not applied to new thread",
				zap.Int("threadID", id), zap.Error(err))
		}
	}
	for _, bpID := range enabled {
		_ = t.applyCustomBreakpoint(ctx, bpID, true)
	}

	m.added.Publish(t)
	m.sink.ThreadEvent(&dap.ThreadEventBody{Reason: "started", ThreadId: id})
	return t, nil
}

// removeThread unregisters t and splices its children into the parent's
// child list at t's position, preserving order. Removing a thread that is
// not registered is a programming error.
func (m *Manager) removeThread(t *Thread) {
	m.mu.Lock()
	if _, ok := m.threads[t.id]; !ok {
		m.mu.Unlock()
		panic(fmt.Sprintf("bridge: removing unregistered thread %d", t.id))
	}
	delete(m.threads, t.id)
	for i, id := range m.order {
		if id == t.id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	children := t.children
	t.children = nil
	if t.parent != nil {
		siblings := t.parent.children
		at := len(siblings)
		for i, sib := range siblings {
			if sib == t {
				at = i
				break
			}
		}
		spliced := make([]*Thread, 0, len(siblings)-1+len(children))
		spliced = append(spliced, siblings[:at]...)
		spliced = append(spliced, children...)
		if at < len(siblings) {
			spliced = append(spliced, siblings[at+1:]...)
		}
		t.parent.children = spliced
	}
	for _, child := range children {
		child.parent = t.parent
	}
	t.parent = nil
	m.mu.Unlock()

	m.removed.Publish(t)
}

// Thread returns the registered thread for id, or nil.
func (m *Manager) Thread(id int) *Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threads[id]
}

// Threads lists the live threads in creation order.
func (m *Manager) Threads() []*Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Map(m.order, func(id int, _ int) *Thread { return m.threads[id] })
}

// Parent returns t's current parent, nil for roots.
func (m *Manager) Parent(t *Thread) *Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t.parent
}

// Children lists t's current children in order.
func (m *Manager) Children(t *Thread) []*Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Thread(nil), t.children...)
}

// SetExceptionPolicy stores the policy and broadcasts it concurrently to
// every live thread. One thread failing does not stop the others; all
// failures are joined into the returned error.
func (m *Manager) SetExceptionPolicy(ctx context.Context, policy ExceptionPolicy) error {
	if !ValidExceptionPolicy(policy) {
		return fmt.Errorf("bridge: unknown exception policy %q", policy)
	}
	m.mu.Lock()
	m.policy = policy
	threads := lo.Map(m.order, func(id int, _ int) *Thread { return m.threads[id] })
	m.mu.Unlock()

	return m.broadcast(threads, func(t *Thread) error {
		return t.applyExceptionPolicy(ctx, policy)
	})
}

// ExceptionPolicy returns the current stored policy.
func (m *Manager) ExceptionPolicy() ExceptionPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// EnableCustomBreakpoint adds id to the enabled set and applies it to every
// live thread. Threads that do not recognize the id report success.
func (m *Manager) EnableCustomBreakpoint(ctx context.Context, id string) error {
	m.mu.Lock()
	if !lo.Contains(m.enabled, id) {
		m.enabled = append(m.enabled, id)
	}
	threads := lo.Map(m.order, func(tid int, _ int) *Thread { return m.threads[tid] })
	m.mu.Unlock()

	return m.broadcast(threads, func(t *Thread) error {
		return t.applyCustomBreakpoint(ctx, id, true)
	})
}

// DisableCustomBreakpoint removes id from the enabled set and removes the
// trigger from every live thread.
func (m *Manager) DisableCustomBreakpoint(ctx context.Context, id string) error {
	m.mu.Lock()
	m.enabled = lo.Without(m.enabled, id)
	threads := lo.Map(m.order, func(tid int, _ int) *Thread { return m.threads[tid] })
	m.mu.Unlock()

	return m.broadcast(threads, func(t *Thread) error {
		return t.applyCustomBreakpoint(ctx, id, false)
	})
}

// EnabledCustomBreakpoints lists the currently enabled breakpoint ids.
func (m *Manager) EnabledCustomBreakpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.enabled...)
}

func (m *Manager) broadcast(threads []*Thread, apply func(*Thread) error) error {
	errs := make([]error, len(threads))
	var wg sync.WaitGroup
	for i, t := range threads {
		wg.Add(1)
		go func(i int, t *Thread) {
			defer wg.Done()
			errs[i] = apply(t)
		}(i, t)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ContextForest aggregates the live threads' execution contexts. A nil fn
// uses DefaultForest.
func (m *Manager) ContextForest(fn ForestFunc) []*ContextNode {
	if fn == nil {
		fn = DefaultForest
	}
	return fn(m.Threads())
}

// DefaultForest builds one root node per thread with its execution contexts
// as children, contexts ordered by id.
func DefaultForest(threads []*Thread) []*ContextNode {
	return lo.Map(threads, func(t *Thread, _ int) *ContextNode {
		contexts := t.ExecutionContexts()
		sort.Slice(contexts, func(i, j int) bool { return contexts[i].ID < contexts[j].ID })
		node := &ContextNode{ThreadID: t.ID(), Label: t.Name()}
		node.Children = lo.Map(contexts, func(c ExecutionContext, _ int) *ContextNode {
			ctx := c
			return &ContextNode{ThreadID: t.ID(), Label: c.Name, Context: &ctx}
		})
		return node
	})
}

// Labels renders the thread tree as a depth-first indented list, children
// in insertion order.
func (m *Manager) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	var walk func(t *Thread, depth int)
	walk = func(t *Thread, depth int) {
		out = append(out, strings.Repeat("  ", depth)+t.name)
		for _, child := range t.children {
			walk(child, depth+1)
		}
	}
	for _, id := range m.order {
		t := m.threads[id]
		if t.parent == nil {
			walk(t, 0)
		}
	}
	return out
}

// OnThreadAdded subscribes to thread creation; the returned function
// unsubscribes.
func (m *Manager) OnThreadAdded(fn func(*Thread)) func() {
	return m.added.Subscribe(fn)
}

// OnThreadRemoved subscribes to thread removal.
func (m *Manager) OnThreadRemoved(fn func(*Thread)) func() {
	return m.removed.Subscribe(fn)
}

// DisposeAll disposes every live thread, roots last so children splice
// through naturally.
func (m *Manager) DisposeAll() {
	for {
		m.mu.Lock()
		var t *Thread
		if len(m.order) > 0 {
			t = m.threads[m.order[len(m.order)-1]]
		}
		m.mu.Unlock()
		if t == nil {
			return
		}
		t.Dispose()
	}
}
