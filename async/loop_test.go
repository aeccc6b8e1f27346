package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoop_RunsInPostOrder(t *testing.T) {
	loop := NewLoop()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { order = append(order, i) })
	}
	assert.Equal(t, 0, len(order), "Post must not run tasks synchronously")
	assert.Equal(t, 5, loop.ProcessMessages())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, loop.Pending())
}

// A task that posts a task must not run it on its own stack.
func TestLoop_PostFromTaskIsDeferred(t *testing.T) {
	loop := NewLoop()
	var order []string
	loop.Post(func() {
		loop.Post(func() { order = append(order, "inner") })
		order = append(order, "outer")
	})
	loop.ProcessMessages()
	assert.Equal(t, []string{"outer", "inner"}, order)
}

// Long chains of immediately-completing callbacks unroll without recursion.
func TestLoop_LongChainDoesNotRecurse(t *testing.T) {
	loop := NewLoop()
	const depth = 200000
	count := 0
	var step func()
	step = func() {
		count++
		if count < depth {
			loop.Post(step)
		}
	}
	loop.Post(step)
	assert.Equal(t, depth, loop.ProcessMessages())
	assert.Equal(t, depth, count)
}

func TestLoop_RunAsyncDeliversCallbackOnLoop(t *testing.T) {
	loop := NewLoop()
	testErr := errors.New("Test Error!")
	var got error
	invoked := false

	loop.RunAsync(func() error { return testErr }, func(err error) {
		got = err
		invoked = true
	})
	assert.Equal(t, 1, loop.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loop.RunUntil(ctx, func() bool { return invoked }); err != nil {
		t.Fatalf("callback never ran: %v", err)
	}
	assert.Equal(t, testErr, got)
	assert.Equal(t, 0, loop.Pending())
}

// Durable-store example: return once two of three replicas acknowledged.
func TestLoop_QuorumExample(t *testing.T) {
	loop := NewLoop()
	successfulWrites, returnedWrites := 0, 0
	writeCb := func(err error) {
		if err == nil {
			successfulWrites++
		}
		returnedWrites++
	}
	loop.RunAsync(func() error { return nil }, writeCb)
	loop.RunAsync(func() error { return errors.New("replica down") }, writeCb)
	loop.RunAsync(func() error { return nil }, writeCb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := loop.RunUntil(ctx, func() bool { return successfulWrites >= 2 || returnedWrites == 3 })
	assert.NoError(t, err)
	assert.True(t, successfulWrites >= 2)

	// drain the remaining callback so no goroutine is left behind
	assert.NoError(t, loop.RunUntil(ctx, func() bool { return loop.Pending() == 0 }))
}

func TestLoop_RunStopsOnContext(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestLoop_PostFromOtherGoroutineWakesRun(t *testing.T) {
	loop := NewLoop()
	done := false
	go func() {
		time.Sleep(10 * time.Millisecond)
		loop.Post(func() { done = true })
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, loop.RunUntil(ctx, func() bool { return done }))
}
