package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/jawtalk/internal/logic"
)

func reading(i int) logic.Reading {
	return logic.Reading{Time: base.Add(time.Duration(i) * 10 * time.Millisecond), Value: float64(i)}
}

func TestQueueEmptyDrain(t *testing.T) {
	q := NewQueue(10)
	assert.Nil(t, q.Drain())
}

func TestQueuePushAndDrain(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		assert.False(t, q.Push(reading(i)))
	}
	got := q.Drain()
	require.Len(t, got, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, float64(i), got[i].Value)
	}
	assert.Nil(t, q.Drain(), "second drain should be empty")
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	capacity := 5
	q := NewQueue(capacity)

	// Push 0..7, queue keeps the most recent 5 (3..7)
	for i := 0; i < capacity+3; i++ {
		q.Push(reading(i))
	}
	assert.Equal(t, uint64(3), q.Dropped())

	got := q.Drain()
	require.Len(t, got, capacity)
	for i := 0; i < capacity; i++ {
		assert.Equal(t, float64(i+3), got[i].Value)
	}
}

func TestQueueMultipleCycles(t *testing.T) {
	q := NewQueue(5)
	for i := 0; i < 3; i++ {
		q.Push(reading(i))
	}
	require.Len(t, q.Drain(), 3)

	for i := 10; i < 14; i++ {
		q.Push(reading(i))
	}
	got := q.Drain()
	require.Len(t, got, 4)
	for i, r := range got {
		assert.Equal(t, float64(10+i), r.Value)
	}
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestQueueLenAndCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, 1, q.Capacity())

	q = NewQueue(10)
	assert.Equal(t, 0, q.Len())
	q.Push(reading(0))
	q.Push(reading(1))
	assert.Equal(t, 2, q.Len())
	q.Drain()
	assert.Equal(t, 0, q.Len())
}

func TestQueueReadySignal(t *testing.T) {
	q := NewQueue(4)
	select {
	case <-q.Ready():
		t.Fatal("ready before any push")
	default:
	}

	q.Push(reading(0))
	q.Push(reading(1))
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("expected ready signal")
	}
	assert.Len(t, q.Drain(), 2)
}

func TestQueueFloodNeverBlocks(t *testing.T) {
	q := NewQueue(16)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Push(reading(i))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producers blocked")
	}

	remaining := len(q.Drain())
	assert.Equal(t, 16, remaining)
	assert.Equal(t, uint64(4000-16), q.Dropped())
}
