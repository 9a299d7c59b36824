package rcu

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePublishesNewValue(t *testing.T) {
	r := New[int](2)
	require.Equal(t, 2, r.NumWorkers())

	var field atomic.Pointer[int]
	first := 1
	field.Store(&first)

	second := 2
	r.Update(&field, &second)

	got := r.ReadBegin(0, &field)
	assert.Equal(t, 2, *got)
	r.ReadEnd(0)
}

func TestUpdateWaitsForActiveReaderToFinish(t *testing.T) {
	r := New[int](1)

	var field atomic.Pointer[int]
	first := 1
	field.Store(&first)

	got := r.ReadBegin(0, &field)
	assert.Equal(t, 1, *got)

	done := make(chan struct{})
	go func() {
		second := 2
		r.Update(&field, &second)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Update returned while a reader was still active")
	case <-time.After(20 * time.Millisecond):
	}

	r.ReadEnd(0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Update did not return after the reader finished")
	}

	assert.Equal(t, 2, *field.Load())
}

func TestReadBeginReadEndWithoutUpdate(t *testing.T) {
	r := New[string](3)

	var field atomic.Pointer[string]
	v := "hello"
	field.Store(&v)

	for worker := 0; worker < 3; worker++ {
		got := r.ReadBegin(worker, &field)
		assert.Equal(t, "hello", *got)
		r.ReadEnd(worker)
	}
}
