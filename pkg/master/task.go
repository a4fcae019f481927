// Package master implements the DNP3 master (client) role: the task
// engine that schedules reads, commands, time-sync, and restarts over a
// single association, and the association controller that drives the
// startup-integrity lifecycle, auto-time-sync, keep-alive, and
// auto-integrity-on-overflow behaviors. Generalizes a single-request-
// in-flight client model to a priority-queued task model.
package master

import (
	"container/heap"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
)

// Priority orders pending tasks; lower numeric value runs first:
// system tasks, then user reads/operates, then periodic polls, then
// keep-alive.
type Priority int

const (
	PrioritySystem Priority = iota
	PriorityUser
	PriorityPoll
	PriorityKeepAlive
)

// TaskError is the typed failure set a task can report.
type TaskError struct {
	Kind string // "NoConnection" | "Timeout" | "TaskCancelled" | "BadResponse" | "IINError" | "Rejected"
	IIN  app.IIN
}

func (e *TaskError) Error() string { return e.Kind }

// Task is one unit of work the engine executes over the association's
// application layer. BuildRequest produces the wire bytes to send (the
// engine assigns the application sequence number); OnResponse is called
// once per received fragment (possibly several times for a multi-fragment
// read) and returns whether the task is complete.
type Task interface {
	Priority() Priority
	BuildRequest(seq uint8) []byte
	OnResponse(header app.ResponseHeader, objectBody []byte) (done bool, err error)
	OnError(err error)
	Timeout() time.Duration
}

// pendingTask wraps a Task with its queue metadata for the heap.
type pendingTask struct {
	task     Task
	enqueued time.Time
	index    int
}

// taskQueue is a priority queue ordered by (Priority, enqueue time): a
// fair-share-by-arrival tiebreak within one association's tasks.
type taskQueue []*pendingTask

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].task.Priority() != q[j].task.Priority() {
		return q[i].task.Priority() < q[j].task.Priority()
	}
	return q[i].enqueued.Before(q[j].enqueued)
}
func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *taskQueue) Push(x any) {
	t := x.(*pendingTask)
	t.index = len(*q)
	*q = append(*q, t)
}
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// Engine arbitrates task execution over one association's application
// layer. It does not own the byte transport directly; Send is provided
// by the owning channel/association glue.
type Engine struct {
	queue taskQueue
	seq   app.Sequencer
	Send  func(fragment []byte) error
}

func NewEngine(send func(fragment []byte) error) *Engine {
	e := &Engine{Send: send}
	heap.Init(&e.queue)
	return e
}

// Enqueue schedules t for execution; tasks of equal priority run in
// arrival order.
func (e *Engine) Enqueue(t Task) {
	heap.Push(&e.queue, &pendingTask{task: t, enqueued: now()})
}

// Len reports how many tasks are waiting in the queue. A task handed out
// by RunNext has already been removed and is not counted.
func (e *Engine) Len() int { return e.queue.Len() }

// RunNext pops and fully drives the highest-priority pending task: builds
// its request, sends it, and returns — the caller (association/channel
// loop) is responsible for feeding the resulting response fragment(s)
// back via the returned *InFlight's Feed method until it reports done.
func (e *Engine) RunNext() (*InFlight, bool) {
	if e.queue.Len() == 0 {
		return nil, false
	}
	pt := heap.Pop(&e.queue).(*pendingTask)
	seq := e.seq.Next()
	req := pt.task.BuildRequest(seq)
	if err := e.Send(req); err != nil {
		pt.task.OnError(err)
		return nil, true
	}
	return &InFlight{task: pt.task, seq: seq, timeout: pt.task.Timeout()}, true
}

// PeekLinkStatus pops and returns the head task if it is a
// *LinkStatusTask, so the channel driver can issue REQUEST_LINK_STATUS at
// the link layer directly instead of through the application sequencer.
func (e *Engine) PeekLinkStatus() (*LinkStatusTask, bool) {
	if e.queue.Len() == 0 {
		return nil, false
	}
	if t, ok := e.queue[0].task.(*LinkStatusTask); ok {
		heap.Pop(&e.queue)
		return t, true
	}
	return nil, false
}

// InFlight tracks the task currently awaiting a response.
type InFlight struct {
	task    Task
	seq     uint8
	timeout time.Duration
}

func (f *InFlight) Seq() uint8              { return f.seq }
func (f *InFlight) Timeout() time.Duration  { return f.timeout }

// Feed delivers one received response fragment to the in-flight task. A
// task that needs another request/response round (Select-before-Operate's
// OPERATE phase) returns done=false; the driver must call Resend with the
// next application sequence number before awaiting the next response.
func (f *InFlight) Feed(header app.ResponseHeader, objectBody []byte) (done bool, err error) {
	return f.task.OnResponse(header, objectBody)
}

// Resend re-invokes BuildRequest with a fresh sequence number, for tasks
// that span more than one request/response round.
func (f *InFlight) Resend(seq uint8) []byte {
	f.seq = seq
	return f.task.BuildRequest(seq)
}

// Resend advances the engine's application sequence counter and rebuilds
// f's request for another round (Select-before-Operate's OPERATE phase).
func (e *Engine) Resend(f *InFlight) []byte {
	return f.Resend(e.seq.Next())
}

func (f *InFlight) Fail(err error) { f.task.OnError(err) }

// now is a package-level indirection so tests can control enqueue
// ordering deterministically without depending on wall-clock resolution.
var now = time.Now
