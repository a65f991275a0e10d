package workerpool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engineerrors "github.com/athena-engine/athena/internal/errors"
)

func TestNewRejectsZeroSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		p, err := New(size, 4)

		assert.Nil(t, p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSize))
		assert.True(t, engineerrors.IsPrecondition(err))
	}
}

func TestExecuteRunsEveryJob(t *testing.T) {
	p, err := New(4, 100)
	require.NoError(t, err)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, p.Execute(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	p.Shutdown()

	assert.EqualValues(t, 50, count.Load())
	stats := p.Stats()
	assert.EqualValues(t, 50, stats.Submitted)
	assert.EqualValues(t, 50, stats.Completed)
	assert.Equal(t, 4, stats.Workers)
}

func TestShutdownDrainsQueuedJobs(t *testing.T) {
	p, err := New(1, 10)
	require.NoError(t, err)

	release := make(chan struct{})
	var ran atomic.Int64
	require.NoError(t, p.Execute(func() {
		<-release
		ran.Add(1)
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Execute(func() { ran.Add(1) }))
	}

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	// Shutdown waits for the blocked job.
	select {
	case <-done:
		t.Fatal("shutdown returned before in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.EqualValues(t, 6, ran.Load())
}

func TestExecuteAfterShutdown(t *testing.T) {
	p, err := New(2, 2)
	require.NoError(t, err)
	p.Shutdown()
	p.Shutdown()

	err = p.Execute(func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.EqualValues(t, 1, p.Stats().Rejected)
}

func TestExecuteQueueFull(t *testing.T) {
	p, err := New(1, 1)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Execute(func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, p.Execute(func() {}))
	err = p.Execute(func() {})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	p.Shutdown()
}

func TestZeroQueueSizeIsUnbounded(t *testing.T) {
	p, err := New(1, 0)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Execute(func() {
		close(started)
		<-release
	}))
	<-started

	var ran atomic.Int64
	for i := 0; i < 500; i++ {
		require.NoError(t, p.Execute(func() { ran.Add(1) }))
	}
	assert.Equal(t, 500, p.Stats().Queued)

	close(release)
	p.Shutdown()

	assert.EqualValues(t, 500, ran.Load())
	stats := p.Stats()
	assert.Zero(t, stats.Rejected)
	assert.Zero(t, stats.Queued)
	assert.EqualValues(t, 501, stats.Completed)
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	var recovered atomic.Value
	p, err := New(1, 4, WithPanicHandler(func(r interface{}) { recovered.Store(r) }))
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, p.Execute(func() { panic("boom") }))
	require.NoError(t, p.Execute(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
	p.Shutdown()

	assert.Equal(t, "boom", recovered.Load())
	stats := p.Stats()
	assert.EqualValues(t, 1, stats.Panicked)
	assert.EqualValues(t, 1, stats.Completed)
}

func TestNilJobIgnored(t *testing.T) {
	p, err := New(1, 1)
	require.NoError(t, err)
	defer p.Shutdown()

	assert.NoError(t, p.Execute(nil))
	assert.EqualValues(t, 0, p.Stats().Submitted)
}
