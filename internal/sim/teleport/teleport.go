package teleport

import (
	"sync"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
)

// Task is a queued player teleport. Players are never moved from inside the
// collision handler that found the destination; the move happens on a later
// tick boundary of the owning session.
type Task struct {
	Session   string
	Created   uint64
	Entity    uuid.UUID
	Dimension string
	Pos       cube.Pos
	Facing    cube.Face
}

// Due reports whether the task may run at tick.
func (t Task) Due(tick uint64, delay int) bool {
	return tick > t.Created+uint64(max(delay, 0))
}

// Clock is the tick source draining the queue.
type Clock struct {
	Session string
	Tick    uint64
}

// Directory reports which sessions still exist.
type Directory interface {
	Alive(session string) bool
}

// DirectoryFunc adapts a plain function to Directory.
type DirectoryFunc func(session string) bool

func (f DirectoryFunc) Alive(session string) bool { return f(session) }

// Report lists what one Drain call did, in queue order.
type Report struct {
	Executed  []Task
	Discarded []Task
}

// Queue is a FIFO of teleport tasks ordered by creation tick. One queue may
// be shared by several sessions.
type Queue struct {
	mu    sync.Mutex
	delay int
	tasks []Task
}

func NewQueue(delay int) *Queue {
	return &Queue{delay: max(delay, 0)}
}

func (q *Queue) Delay() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delay
}

func (q *Queue) SetDelay(delay int) {
	q.mu.Lock()
	q.delay = max(delay, 0)
	q.mu.Unlock()
}

func (q *Queue) Push(t Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Pending returns a copy of the queued tasks, oldest first.
func (q *Queue) Pending() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.tasks...)
}

// Drain runs at a tick boundary of clock.Session. Starting at the head it
// discards tasks of sessions the directory no longer knows, stops at a task
// owned by another session, runs and removes due tasks, and stops at the
// first task that is not due yet. exec is called without the queue lock
// held, in queue order.
func (q *Queue) Drain(clock Clock, dir Directory, exec func(Task)) Report {
	var rep Report

	q.mu.Lock()
	n := 0
loop:
	for ; n < len(q.tasks); n++ {
		t := q.tasks[n]
		switch {
		case dir != nil && !dir.Alive(t.Session):
			rep.Discarded = append(rep.Discarded, t)
		case t.Session != clock.Session:
			break loop
		case t.Due(clock.Tick, q.delay):
			rep.Executed = append(rep.Executed, t)
		default:
			break loop
		}
	}
	if n > 0 {
		rest := copy(q.tasks, q.tasks[n:])
		clear(q.tasks[rest:])
		q.tasks = q.tasks[:rest]
	}
	q.mu.Unlock()

	if exec != nil {
		for _, t := range rep.Executed {
			exec(t)
		}
	}
	return rep
}
