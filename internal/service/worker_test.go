package service

import (
	"context"
	"testing"
	"time"

	"GameSync/internal/model"
	"GameSync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	ran chan string
}

func (r *recordingRunner) Run(_ context.Context, jobID string) error {
	r.ran <- jobID
	return nil
}

func TestWorkerRejectsWhenQueueFull(t *testing.T) {
	tracker := NewJobTracker(testutil.OpenTestDB(t), quietLogger())
	w := NewWorker(&recordingRunner{ran: make(chan string, 4)}, tracker, 1, quietLogger())
	ctx := context.Background()

	first, err := w.Submit(ctx, "u1", model.PlatformSteam)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, first.Status)

	_, err = w.Submit(ctx, "u1", model.PlatformSteam)
	require.ErrorIs(t, err, ErrQueueFull)

	jobs, err := tracker.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	statuses := map[model.JobStatus]int{}
	for _, j := range jobs {
		statuses[j.Status]++
	}
	assert.Equal(t, map[model.JobStatus]int{model.JobStatusQueued: 1, model.JobStatusFail: 1}, statuses)
}

func TestWorkerServesInOrderAndStops(t *testing.T) {
	tracker := NewJobTracker(testutil.OpenTestDB(t), quietLogger())
	runner := &recordingRunner{ran: make(chan string, 4)}
	w := NewWorker(runner, tracker, 4, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	a, err := w.Submit(ctx, "u1", model.PlatformSteam)
	require.NoError(t, err)
	b, err := w.Submit(ctx, "u2", model.PlatformPSN)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	for _, want := range []string{a.JobID, b.JobID} {
		select {
		case got := <-runner.ran:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatal("job was not run")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, "sync-worker", w.String())
}

func TestWorkerFailsQueuedJobsOnShutdown(t *testing.T) {
	tracker := NewJobTracker(testutil.OpenTestDB(t), quietLogger())
	w := NewWorker(&recordingRunner{ran: make(chan string, 4)}, tracker, 4, quietLogger())

	job, err := w.Submit(context.Background(), "u1", model.PlatformSteam)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Serve(ctx), context.Canceled)

	got, err := tracker.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFail, got.Status)
}
