package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestPoolProcessesReservedTask(t *testing.T) {
	done := make(chan Task, 1)
	p := NewPool(2, 4, func(ctx context.Context, task Task) error {
		done <- task
		return nil
	}, quietLogger())
	defer p.Stop(context.Background())

	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "t1", SubscriberID: "233200000001", MessageID: "wamid.1", Text: "hi"})

	select {
	case task := <-done:
		require.Equal(t, "t1", task.ID)
		require.False(t, task.EnqueuedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("task was never processed")
	}

	require.Eventually(t, func() bool {
		return p.Stats().Completed == 1
	}, 2*time.Second, 10*time.Millisecond)

	stats := p.Stats()
	require.Equal(t, 2, stats.Workers)
	require.Equal(t, 4, stats.MaxInFlight)
	require.Equal(t, int64(1), stats.Accepted)
}

func TestTryReserveRejectsWhenSaturated(t *testing.T) {
	gate := make(chan struct{})
	p := NewPool(1, 1, func(ctx context.Context, task Task) error {
		<-gate
		return nil
	}, quietLogger())

	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "t1"})
	require.False(t, p.TryReserve(), "capacity is held until the task completes")

	close(gate)
	require.Eventually(t, func() bool { return p.TryReserve() }, 2*time.Second, 10*time.Millisecond)
	p.Release()

	require.GreaterOrEqual(t, p.Stats().Rejected, int64(1))
	require.NoError(t, p.Stop(context.Background()))
}

func TestCapacityCoversQueuedAndRunning(t *testing.T) {
	gate := make(chan struct{})
	p := NewPool(1, 2, func(ctx context.Context, task Task) error {
		<-gate
		return nil
	}, quietLogger())

	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "running"})
	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "queued"})

	require.False(t, p.TryReserve(), "queued work counts against capacity too")

	close(gate)
	require.NoError(t, p.Stop(context.Background()))
	require.Equal(t, int64(2), p.Stats().Completed)
}

func TestNoteDuplicateFreesCapacity(t *testing.T) {
	p := NewPool(1, 1, func(ctx context.Context, task Task) error { return nil }, quietLogger())
	defer p.Stop(context.Background())

	require.True(t, p.TryReserve())
	require.False(t, p.TryReserve())
	p.NoteDuplicate()

	require.True(t, p.TryReserve())
	p.Release()

	stats := p.Stats()
	require.Equal(t, int64(1), stats.Duplicates)
	require.Equal(t, int64(1), stats.Rejected)
}

func TestHandlerErrorCountsFailed(t *testing.T) {
	p := NewPool(1, 2, func(ctx context.Context, task Task) error {
		return errors.New("boom")
	}, quietLogger())
	defer p.Stop(context.Background())

	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "t1"})

	require.Eventually(t, func() bool { return p.Stats().Failed == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(0), p.Stats().Completed)
}

func TestHandlerPanicIsContained(t *testing.T) {
	p := NewPool(1, 1, func(ctx context.Context, task Task) error {
		panic("kaboom")
	}, quietLogger())
	defer p.Stop(context.Background())

	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "t1"})

	require.Eventually(t, func() bool { return p.Stats().Failed == 1 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, p.TryReserve(), "capacity should come back after a panic")
	p.Release()
}

func TestStopDrainsAndRefusesNewWork(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	p := NewPool(2, 8, func(ctx context.Context, task Task) error {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		handled = append(handled, task.ID)
		mu.Unlock()
		return nil
	}, quietLogger())

	for i := 0; i < 5; i++ {
		require.True(t, p.TryReserve())
		p.Enqueue(Task{ID: fmt.Sprintf("t%d", i)})
	}

	require.NoError(t, p.Stop(context.Background()))

	mu.Lock()
	require.Len(t, handled, 5)
	mu.Unlock()
	require.False(t, p.TryReserve(), "stopped pool refuses reservations")
	require.NoError(t, p.Stop(context.Background()), "second stop is a no-op")
}

func TestStopDeadlineInterruptsDrain(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	p := NewPool(1, 1, func(ctx context.Context, task Task) error {
		<-gate
		return nil
	}, quietLogger())

	require.True(t, p.TryReserve())
	p.Enqueue(Task{ID: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, p.Stop(ctx))
}

func TestNewPoolClampsSizes(t *testing.T) {
	p := NewPool(0, 0, func(ctx context.Context, task Task) error { return nil }, nil)
	defer p.Stop(context.Background())

	stats := p.Stats()
	require.Equal(t, 1, stats.Workers)
	require.Equal(t, 1, stats.MaxInFlight)
}
