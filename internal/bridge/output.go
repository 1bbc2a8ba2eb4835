package bridge

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-dap"
	"go.uber.org/zap"
)

// clearConsoleOutput is the payload text of a "clear the client console"
// output event.
const clearConsoleOutput = "\x1b[2J"

// ClearOutput returns the output body that asks the client to clear its
// console. The output queue suppresses it when the console is already clean.
func ClearOutput() *dap.OutputEventBody {
	return &dap.OutputEventBody{
		Category: "console",
		Output:   clearConsoleOutput,
	}
}

func isClearOutput(body *dap.OutputEventBody) bool {
	return body.Category == "console" && body.Output == clearConsoleOutput
}

// outputQueue serializes asynchronous output payloads into claim order.
//
// Claiming a slot reserves a delivery position and returns the delivery
// function for it. The caller computes its payload at its own pace and
// invokes the function once; the payload is emitted after every earlier
// slot has completed, keeping delivery strictly FIFO regardless of
// completion order. Each slot carries an independent timeout from claim
// time: a slot whose delivery function is never invoked auto-completes
// empty, so a stalled producer cannot block later slots forever. A delivery
// arriving after the timeout is dropped.
type outputQueue struct {
	sink    EventSink
	clk     clock.Clock
	timeout time.Duration
	log     *zap.Logger

	mu    sync.Mutex
	tail  chan struct{}
	clean bool
}

func newOutputQueue(sink EventSink, clk clock.Clock, timeout time.Duration, log *zap.Logger) *outputQueue {
	return &outputQueue{
		sink:    sink,
		clk:     clk,
		timeout: timeout,
		log:     log,
		clean:   true,
	}
}

// Claim reserves the next delivery position and returns its delivery
// function. The function is safe to call at most effectively-once; repeat
// invocations are ignored.
func (q *outputQueue) Claim() func(body *dap.OutputEventBody) {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	ready := make(chan *dap.OutputEventBody, 1)
	timer := q.clk.Timer(q.timeout)

	go func() {
		defer close(done)

		var body *dap.OutputEventBody
		select {
		case body = <-ready:
			timer.Stop()
		case <-timer.C:
			q.log.Debug("output slot timed out with no payload")
		}

		if prev != nil {
			<-prev
		}
		if body == nil {
			return
		}
		q.emit(body)
	}()

	var once sync.Once
	return func(body *dap.OutputEventBody) {
		once.Do(func() {
			ready <- body
		})
	}
}

func (q *outputQueue) emit(body *dap.OutputEventBody) {
	q.mu.Lock()
	if isClearOutput(body) {
		if q.clean {
			q.mu.Unlock()
			return
		}
		q.clean = true
	} else {
		q.clean = false
	}
	q.mu.Unlock()

	q.sink.Output(body)
}

// drain waits until every slot claimed so far has completed. Tests use it
// to observe a settled queue.
func (q *outputQueue) drain() {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()
	if tail != nil {
		<-tail
	}
}
