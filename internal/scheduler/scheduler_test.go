package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/JuventudHub/internal/ingest"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubRunner struct {
	calls atomic.Int32
	err   error
}

func (r *stubRunner) Run(context.Context) (*ingest.Report, error) {
	n := r.calls.Add(1)
	return &ingest.Report{Added: int(n), Total: 10}, r.err
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a cron spec", &stubRunner{}, nil)
	assert.Error(t, err)
}

func TestRunOnceStoresLastReport(t *testing.T) {
	runner := &stubRunner{}
	s, err := New("0 */6 * * *", runner, nil)
	require.NoError(t, err)

	last, lastErr := s.LastReport()
	assert.Nil(t, last)
	assert.NoError(t, lastErr)

	r, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Added)

	last, _ = s.LastReport()
	assert.Same(t, r, last)
}

func TestRunOnceKeepsError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	runner := &stubRunner{err: errors.New("persist articles failed")}
	s, err := New("@every 1h", runner, logger.FromZap(zap.New(core)))
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
	_, lastErr := s.LastReport()
	assert.Equal(t, err, lastErr)
	assert.Equal(t, 1, logs.FilterMessage("collect job failed").Len())
}

func TestStartRunsAfterStartupDelay(t *testing.T) {
	runner := &stubRunner{}
	s, err := New("@every 1h", runner, nil)
	require.NoError(t, err)
	s.StartupDelay = 10 * time.Millisecond

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStopCancelsPendingStartupRun(t *testing.T) {
	runner := &stubRunner{}
	s, err := New("@every 1h", runner, nil)
	require.NoError(t, err)
	s.StartupDelay = 50 * time.Millisecond

	s.Start()
	s.Stop(context.Background())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), runner.calls.Load())
}

type blockingRunner struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (r *blockingRunner) Run(context.Context) (*ingest.Report, error) {
	close(r.started)
	<-r.release
	r.finished.Store(true)
	return &ingest.Report{}, nil
}

func TestStopWaitsForStartupRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s, err := New("@every 1h", runner, nil)
	require.NoError(t, err)
	s.StartupDelay = time.Millisecond

	s.Start()
	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("startup run did not begin")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the startup run was still in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
	assert.True(t, runner.finished.Load())
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 3, "next", "soon", "dangling"})
	require.Len(t, fields, 2)
	assert.Equal(t, "entry", fields[0].Key)
	assert.Equal(t, "next", fields[1].Key)
}
