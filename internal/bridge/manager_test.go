package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCreate(t *testing.T, env *testEnv, sess ProtocolSession, opts ThreadOptions) *Thread {
	t.Helper()
	thread, err := env.mgr.CreateThread(context.Background(), sess, opts)
	require.NoError(t, err)
	return thread
}

func TestManager_PolicyAppliedToLateThreads(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.mgr.SetExceptionPolicy(context.Background(), ExceptionPolicyAll))

	sess := newFakeSession()
	mustCreate(t, env, sess, ThreadOptions{Name: "late"})

	calls := sess.callsTo("Debugger.setPauseOnExceptions")
	require.Len(t, calls, 1)
	params := calls[0].Params.(struct {
		State string `json:"state"`
	})
	assert.Equal(t, "all", params.State)
}

func TestManager_PolicyBroadcastJoinsErrors(t *testing.T) {
	env := newTestEnv(t)
	good := newFakeSession()
	bad := newFakeSession()
	bad.respond = func(method string, _, _ interface{}) error {
		if method == "Debugger.setPauseOnExceptions" {
			return errors.New("target gone")
		}
		return nil
	}
	mustCreate(t, env, good, ThreadOptions{Name: "good"})
	mustCreate(t, env, bad, ThreadOptions{Name: "bad"})

	err := env.mgr.SetExceptionPolicy(context.Background(), ExceptionPolicyUncaught)
	require.Error(t, err)

	// The failure did not stop the broadcast to the healthy thread.
	assert.Len(t, good.callsTo("Debugger.setPauseOnExceptions"), 1)
	assert.Len(t, bad.callsTo("Debugger.setPauseOnExceptions"), 1)
	assert.Equal(t, ExceptionPolicyUncaught, env.mgr.ExceptionPolicy())
}

func TestManager_RejectsUnknownPolicy(t *testing.T) {
	env := newTestEnv(t)
	assert.Error(t, env.mgr.SetExceptionPolicy(context.Background(), ExceptionPolicy("sometimes")))
}

func TestManager_CustomBreakpointLifecycle(t *testing.T) {
	env := newTestEnv(t)
	bp := &fakeBreakpoint{}
	env.catalog.breakpoints["listener:click"] = bp

	require.NoError(t, env.mgr.EnableCustomBreakpoint(context.Background(), "listener:click"))
	assert.Equal(t, []string{"listener:click"}, env.mgr.EnabledCustomBreakpoints())

	// Pre-enabled breakpoints reach threads created later.
	sess := newFakeSession()
	mustCreate(t, env, sess, ThreadOptions{Name: "main"})
	assert.Equal(t, []bool{true}, bp.applyCalls())

	require.NoError(t, env.mgr.DisableCustomBreakpoint(context.Background(), "listener:click"))
	assert.Empty(t, env.mgr.EnabledCustomBreakpoints())
	assert.Equal(t, []bool{true, false}, bp.applyCalls())
}

func TestManager_EnableTwiceKeepsOneEntry(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.breakpoints["listener:click"] = &fakeBreakpoint{}

	require.NoError(t, env.mgr.EnableCustomBreakpoint(context.Background(), "listener:click"))
	require.NoError(t, env.mgr.EnableCustomBreakpoint(context.Background(), "listener:click"))
	assert.Equal(t, []string{"listener:click"}, env.mgr.EnabledCustomBreakpoints())
}

func TestManager_UnknownBreakpointReportsSuccess(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	mustCreate(t, env, sess, ThreadOptions{Name: "main"})

	assert.NoError(t, env.mgr.EnableCustomBreakpoint(context.Background(), "listener:nosuch"))
	assert.NoError(t, env.mgr.DisableCustomBreakpoint(context.Background(), "listener:nosuch"))
}

func TestManager_RejectedBreakpointReportsSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.breakpoints["instrumentation:x"] = &fakeBreakpoint{
		applyErr: errors.New("unsupported"),
	}
	sess := newFakeSession()
	mustCreate(t, env, sess, ThreadOptions{Name: "main"})

	assert.NoError(t, env.mgr.EnableCustomBreakpoint(context.Background(), "instrumentation:x"))
}

func TestManager_DisposeReparentsChildren(t *testing.T) {
	env := newTestEnv(t)
	root := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "root"})
	before := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "before", Parent: root})
	mid := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "mid", Parent: root})
	childA := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "a", Parent: mid})
	childB := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "b", Parent: mid})
	after := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "after", Parent: root})

	mid.Dispose()

	children := env.mgr.Children(root)
	require.Len(t, children, 4)
	assert.Equal(t, []*Thread{before, childA, childB, after}, children)
	assert.Same(t, root, env.mgr.Parent(childA))
	assert.Same(t, root, env.mgr.Parent(childB))
}

func TestManager_ReparentingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("children splice into the parent at the disposed position", prop.ForAll(
		func(npre, nchild, npost int) bool {
			env := newTestEnv(t)
			root := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "root"})

			var want []string
			for i := 0; i < npre; i++ {
				name := fmt.Sprintf("pre-%d", i)
				mustCreate(t, env, newFakeSession(), ThreadOptions{Name: name, Parent: root})
				want = append(want, name)
			}
			mid := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "mid", Parent: root})
			for i := 0; i < nchild; i++ {
				name := fmt.Sprintf("child-%d", i)
				mustCreate(t, env, newFakeSession(), ThreadOptions{Name: name, Parent: mid})
				want = append(want, name)
			}
			for i := 0; i < npost; i++ {
				name := fmt.Sprintf("post-%d", i)
				mustCreate(t, env, newFakeSession(), ThreadOptions{Name: name, Parent: root})
				want = append(want, name)
			}

			mid.Dispose()

			children := env.mgr.Children(root)
			if len(children) != len(want) {
				return false
			}
			for i, child := range children {
				if child.Name() != want[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

func TestManager_RemoveUnregisteredPanics(t *testing.T) {
	env := newTestEnv(t)
	thread := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "main"})
	thread.Dispose()

	assert.Panics(t, func() { env.mgr.removeThread(thread) })
}

func TestManager_Labels(t *testing.T) {
	env := newTestEnv(t)
	root := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "main"})
	worker := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "worker", Parent: root})
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "nested", Parent: worker})
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "service", Parent: root})
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "other root"})

	assert.Equal(t, []string{
		"main",
		"  worker",
		"    nested",
		"  service",
		"other root",
	}, env.mgr.Labels())
}

func TestManager_DefaultForest(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	thread := mustCreate(t, env, sess, ThreadOptions{Name: "main"})

	sess.emit(t, "Runtime.executionContextCreated", map[string]interface{}{
		"context": map[string]interface{}{"id": 2, "name": "iframe"},
	})
	sess.emit(t, "Runtime.executionContextCreated", map[string]interface{}{
		"context": map[string]interface{}{"id": 1, "name": "top", "auxData": map[string]bool{"isDefault": true}},
	})

	forest := env.mgr.ContextForest(nil)
	require.Len(t, forest, 1)
	assert.Equal(t, thread.ID(), forest[0].ThreadID)
	assert.Equal(t, "main", forest[0].Label)
	require.Len(t, forest[0].Children, 2)
	assert.Equal(t, "top", forest[0].Children[0].Label)
	assert.Equal(t, "iframe", forest[0].Children[1].Label)
	assert.True(t, forest[0].Children[0].Context.IsDefault)
}

func TestManager_CustomForest(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "a"})
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "b"})

	forest := env.mgr.ContextForest(func(threads []*Thread) []*ContextNode {
		return []*ContextNode{{Label: fmt.Sprintf("%d threads", len(threads))}}
	})
	require.Len(t, forest, 1)
	assert.Equal(t, "2 threads", forest[0].Label)
}

func TestManager_HubsNotify(t *testing.T) {
	env := newTestEnv(t)

	var added, removed []int
	unsubAdd := env.mgr.OnThreadAdded(func(t *Thread) { added = append(added, t.ID()) })
	env.mgr.OnThreadRemoved(func(t *Thread) { removed = append(removed, t.ID()) })

	thread := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "main"})
	require.Equal(t, []int{thread.ID()}, added)

	unsubAdd()
	second := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "second"})
	assert.Equal(t, []int{thread.ID()}, added)

	thread.Dispose()
	second.Dispose()
	assert.Equal(t, []int{thread.ID(), second.ID()}, removed)
}

func TestManager_DisposeAll(t *testing.T) {
	env := newTestEnv(t)
	root := mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "root"})
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "child", Parent: root})
	mustCreate(t, env, newFakeSession(), ThreadOptions{Name: "other"})

	env.mgr.DisposeAll()
	assert.Empty(t, env.mgr.Threads())
}
