// Async provides tools for asynchronous callback processing using Goroutines
package async

import (
	"context"
	"sync"
)

// A Loop is a queue of deferred tasks that is drained by a single goroutine.
//
// Often we want to spawn goroutines to do blocking work (wait on a process,
// dial a device) but keep all the bookkeeping that reacts to that work on one
// goroutine, so the bookkeeping needs no locks.  Loop provides a construct to
// do this: blocking work goes through RunAsync, and its callback is posted back
// onto the Loop.
//
// Post never runs a task synchronously. A task that posts another task only
// enqueues it, so a chain of callbacks that each finish immediately is unrolled
// iteratively by ProcessMessages instead of growing the call stack.
//
//	loop := NewLoop()
//	started := false
//	loop.RunAsync(func() error { return dial(addr) }, func(err error) {
//	  started = err == nil
//	})
//	loop.RunUntil(ctx, func() bool { return started })
//
// Post and RunAsync may be called from any goroutine.  ProcessMessages,
// RunUntil and Run must only ever be called from one goroutine at a time;
// that goroutine is the one all tasks run on.
type Loop struct {
	mu       sync.Mutex
	tasks    []func()
	inflight int
	wakeCh   chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wakeCh: make(chan struct{}, 1)}
}

// Post enqueues f to run on the Loop's goroutine after every task already queued.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, f)
	l.mu.Unlock()

	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// RunAsync creates a go routine to run the specified function f.
// The callback, cb, is posted to the Loop once f is completed.
func (l *Loop) RunAsync(f func() error, cb func(error)) {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()

	go func() {
		err := f()
		l.Post(func() {
			l.mu.Lock()
			l.inflight--
			l.mu.Unlock()
			if cb != nil {
				cb(err)
			}
		})
	}()
}

// Pending returns the number of queued tasks plus RunAsync calls whose callback has not run yet.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) + l.inflight
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil
	}
	f := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return f
}

// ProcessMessages runs queued tasks, including the ones they post, until the
// queue is empty. It does not wait for outstanding RunAsync work.
// Returns the number of tasks run.
func (l *Loop) ProcessMessages() int {
	n := 0
	for f := l.next(); f != nil; f = l.next() {
		f()
		n++
	}
	return n
}

// RunUntil runs tasks as they arrive until done returns true or ctx is done.
// done is checked before the first task and after every task, on the Loop's goroutine.
// A nil done never returns true.
func (l *Loop) RunUntil(ctx context.Context, done func() bool) error {
	for {
		if done != nil && done() {
			return nil
		}
		if f := l.next(); f != nil {
			f()
			continue
		}
		select {
		case <-l.wakeCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run runs tasks as they arrive until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	return l.RunUntil(ctx, nil)
}
