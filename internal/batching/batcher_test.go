package batching_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transponster/internal/batching"
)

const testWindow = 120 * time.Millisecond

type recorder struct {
	batches chan batching.Batch
}

func newRecorder() *recorder {
	return &recorder{batches: make(chan batching.Batch, 16)}
}

func (r *recorder) action(_ context.Context, b batching.Batch) error {
	r.batches <- b
	return nil
}

func (r *recorder) next(t *testing.T) batching.Batch {
	t.Helper()
	select {
	case b := <-r.batches:
		return b
	case <-time.After(5 * testWindow):
		t.Fatal("timed out waiting for batch")
		return batching.Batch{}
	}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case b := <-r.batches:
		t.Fatalf("unexpected batch %v", b.FileIDs())
	case <-time.After(wait):
	}
}

func startBatcher(t *testing.T, action batching.Action, opts ...batching.Option) *batching.Batcher {
	t.Helper()
	b := batching.New(testWindow, action, opts...)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b
}

func upload(id string) batching.UploadEvent {
	return batching.UploadEvent{FileID: id, ChannelID: "C1", ThreadTS: "111.222", UserID: "U1"}
}

func TestDuplicateIDInOpenBatchIsAbsorbed(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action)

	assert.True(t, b.Submit(upload("F1")))
	assert.False(t, b.Submit(upload("F1")))
	assert.False(t, b.Submit(upload("F1")))

	batch := rec.next(t)
	assert.Equal(t, []string{"F1"}, batch.FileIDs())
	rec.none(t, 2*testWindow)
}

func TestBurstCoalescesInArrivalOrder(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action)

	for _, id := range []string{"F3", "F1", "F2"} {
		require.True(t, b.Submit(upload(id)))
	}
	assert.Equal(t, 1, b.Pending())

	batch := rec.next(t)
	assert.Equal(t, []string{"F3", "F1", "F2"}, batch.FileIDs())
	assert.Equal(t, batching.Key{ChannelID: "C1", ThreadTS: "111.222"}, batch.Key)
	assert.Equal(t, "U1", batch.UserID())
	assert.False(t, batch.FlushedAt.Before(batch.FirstSeen))
	assert.Equal(t, 0, b.Pending())
}

func TestNewEventRestartsWindow(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action)

	require.True(t, b.Submit(upload("A")))
	time.Sleep(testWindow / 3)
	require.True(t, b.Submit(upload("B")))
	lastAt := time.Now()

	batch := rec.next(t)
	assert.GreaterOrEqual(t, time.Since(lastAt), testWindow-10*time.Millisecond)
	assert.Equal(t, []string{"A", "B"}, batch.FileIDs())
	rec.none(t, 2*testWindow)
}

func TestKeysFlushIndependently(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action)

	other := upload("G1")
	other.ThreadTS = "333.444"
	require.True(t, b.Submit(upload("F1")))
	require.True(t, b.Submit(other))
	assert.Equal(t, 2, b.Pending())

	got := map[string][]string{}
	for range 2 {
		batch := rec.next(t)
		got[batch.Key.String()] = batch.FileIDs()
	}
	assert.Equal(t, map[string][]string{
		"C1/111.222": {"F1"},
		"C1/333.444": {"G1"},
	}, got)
}

func TestFlushedIDsKeepAbsorbingDuplicates(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action)

	require.True(t, b.Submit(upload("F1")))
	rec.next(t)

	assert.False(t, b.Submit(upload("F1")))
	rec.none(t, 2*testWindow)
}

func TestZeroRetentionForgetsFlushedIDs(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action, batching.WithRetention(0))

	require.True(t, b.Submit(upload("F1")))
	rec.next(t)

	assert.True(t, b.Submit(upload("F1")))
	assert.Equal(t, []string{"F1"}, rec.next(t).FileIDs())
}

func TestNewIDAfterFlushStartsNewBatch(t *testing.T) {
	rec := newRecorder()
	b := startBatcher(t, rec.action)

	require.True(t, b.Submit(upload("F1")))
	assert.Equal(t, []string{"F1"}, rec.next(t).FileIDs())

	require.True(t, b.Submit(upload("F2")))
	assert.Equal(t, []string{"F2"}, rec.next(t).FileIDs())
}

func TestActionErrorDoesNotStopBatcher(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	b := startBatcher(t, func(context.Context, batching.Batch) error {
		calls.Add(1)
		done <- struct{}{}
		return errors.New("upload failed")
	})

	require.True(t, b.Submit(upload("F1")))
	<-done
	require.True(t, b.Submit(upload("F2")))
	<-done
	assert.Equal(t, int32(2), calls.Load())
}

func TestActionPanicIsContained(t *testing.T) {
	rec := newRecorder()
	var first atomic.Bool
	b := startBatcher(t, func(ctx context.Context, batch batching.Batch) error {
		if first.CompareAndSwap(false, true) {
			panic("boom")
		}
		return rec.action(ctx, batch)
	})

	require.True(t, b.Submit(upload("F1")))
	time.Sleep(2 * testWindow)
	require.True(t, b.Submit(upload("F2")))
	assert.Equal(t, []string{"F2"}, rec.next(t).FileIDs())
}

func TestStopCancelsRunningActions(t *testing.T) {
	started := make(chan struct{})
	canceled := make(chan struct{})
	b := batching.New(testWindow, func(ctx context.Context, _ batching.Batch) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	})
	require.NoError(t, b.Start(context.Background()))

	require.True(t, b.Submit(upload("F1")))
	<-started
	b.Stop()

	select {
	case <-canceled:
	default:
		t.Fatal("Stop returned before the action observed cancellation")
	}
	assert.False(t, b.Submit(upload("F2")))
}

func TestStopFlushesCollectingBatchesCancelled(t *testing.T) {
	type flushed struct {
		ids []string
		err error
	}
	got := make(chan flushed, 4)
	b := batching.New(time.Hour, func(ctx context.Context, batch batching.Batch) error {
		got <- flushed{ids: batch.FileIDs(), err: ctx.Err()}
		return nil
	})
	require.NoError(t, b.Start(context.Background()))

	require.True(t, b.Submit(upload("F1")))
	require.True(t, b.Submit(upload("F2")))
	b.Stop()

	select {
	case f := <-got:
		assert.Equal(t, []string{"F1", "F2"}, f.ids)
		assert.ErrorIs(t, f.err, context.Canceled)
	default:
		t.Fatal("Stop returned without flushing the collecting batch")
	}
	assert.Empty(t, got)
	assert.Equal(t, 0, b.Pending())
}

func TestSubmitRejectsInvalidEvents(t *testing.T) {
	rec := newRecorder()
	b := batching.New(testWindow, rec.action)
	assert.False(t, b.Submit(upload("F1")), "not started")

	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	assert.False(t, b.Submit(batching.UploadEvent{ChannelID: "C1"}))
	assert.False(t, b.Submit(batching.UploadEvent{FileID: "F1"}))
}

func TestStartValidates(t *testing.T) {
	assert.Error(t, batching.New(testWindow, nil).Start(context.Background()))
	assert.Error(t, batching.New(0, newRecorder().action).Start(context.Background()))

	b := batching.New(testWindow, newRecorder().action)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	assert.Error(t, b.Start(context.Background()))
}
