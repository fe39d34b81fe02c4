package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/voice2txt/internal/audio"
	"github.com/snarg/voice2txt/internal/checkpoint"
)

const (
	testRate   = 100
	testWindow = 1.0
)

// fakeModel reports the chunk index it was given. Every sample of chunk i
// holds the value i, so the window itself identifies the chunk.
type fakeModel struct {
	mu    sync.Mutex
	calls []int
	fail  map[int]error
	hook  func(ctx context.Context, idx int) error
}

func (m *fakeModel) Name() string  { return "fake" }
func (m *fakeModel) Model() string { return "fake-1" }

func (m *fakeModel) Transcribe(ctx context.Context, window []float32) (*Result, error) {
	idx := int(window[0])
	m.mu.Lock()
	m.calls = append(m.calls, idx)
	m.mu.Unlock()

	if m.hook != nil {
		if err := m.hook(ctx, idx); err != nil {
			return nil, err
		}
	}
	if err := m.fail[idx]; err != nil {
		return nil, err
	}
	return &Result{
		Language: "en",
		Text:     fmt.Sprintf("t%d", idx),
		Segments: []Segment{{ID: 0, Start: 0, End: float64(len(window)) / testRate, Text: fmt.Sprintf("t%d", idx)}},
	}, nil
}

func (m *fakeModel) called() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.calls...)
}

// indexedBuffer builds audio whose chunk i is filled with float32(i).
func indexedBuffer(samples int) audio.Buffer {
	win := int(testRate * testWindow)
	buf := make([]float32, samples)
	for i := range buf {
		buf[i] = float32(i / win)
	}
	return audio.Buffer{Samples: buf, SampleRate: testRate}
}

func newRunner(model Model, store checkpoint.Store) *Runner {
	return &Runner{
		Model:  model,
		Store:  store,
		Window: testWindow,
		Log:    zerolog.Nop(),
	}
}

func TestRunner_FreshRun(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	model := &fakeModel{}

	sum, err := newRunner(model, store).Run(ctx, indexedBuffer(350))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 0, sum.Resumed)
	assert.Equal(t, 4, sum.Transcribed)
	assert.Equal(t, 0, sum.Failed)
	assert.False(t, sum.AlreadyDone)
	assert.Equal(t, []int{0, 1, 2, 3}, model.called())

	text, err := Assemble(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "t0t1t2t3", text)

	recs, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":0,"start":0,"end":0.5,"text":"t3"}]`, string(recs[3].Segments))
}

func TestRunner_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	buf := indexedBuffer(300)

	_, err := newRunner(&fakeModel{}, store).Run(ctx, buf)
	require.NoError(t, err)

	again := &fakeModel{}
	sum, err := newRunner(again, store).Run(ctx, buf)
	require.NoError(t, err)
	assert.True(t, sum.AlreadyDone)
	assert.Equal(t, 3, sum.Resumed)
	assert.Empty(t, again.called(), "a finished log must not call the model")

	n, err := store.ResumeIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunner_Resume(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	require.NoError(t, store.Append(ctx, checkpoint.Record{Language: "en", Text: "t0"}))
	require.NoError(t, store.Append(ctx, checkpoint.Record{Language: "en", Text: "t1"}))

	model := &fakeModel{}
	sum, err := newRunner(model, store).Run(ctx, indexedBuffer(400))
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Resumed)
	assert.Equal(t, 2, sum.Transcribed)
	assert.Equal(t, []int{2, 3}, model.called())

	text, err := Assemble(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "t0t1t2t3", text)
}

func TestRunner_InterruptThenResume(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	buf := indexedBuffer(500)

	runCtx, cancel := context.WithCancel(ctx)
	first := &fakeModel{hook: func(ctx context.Context, idx int) error {
		if idx == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}}
	sum, err := newRunner(first, store).Run(runCtx, buf)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Transcribed)
	assert.Equal(t, 0, sum.Failed, "a cancelled call is not a model failure")

	second := &fakeModel{}
	sum, err = newRunner(second, store).Run(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, second.called())

	text, err := Assemble(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "t0t1t2t3t4", text)
}

func TestRunner_CancelAfterSuccessfulCallKeepsChunk(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	buf := indexedBuffer(400)

	runCtx, cancel := context.WithCancel(ctx)
	model := &fakeModel{hook: func(_ context.Context, idx int) error {
		if idx == 1 {
			cancel() // the call itself still succeeds
		}
		return nil
	}}
	sum, err := newRunner(model, store).Run(runCtx, buf)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Transcribed)
	assert.Equal(t, []int{0, 1}, model.called())

	n, err := store.ResumeIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "chunk finished before the cancel was noticed must be logged")
}

func TestRunner_SkipsFailedChunk(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	model := &fakeModel{fail: map[int]error{1: errors.New("server returned 500")}}

	var events []Event
	r := newRunner(model, store)
	r.OnEvent = func(e Event) { events = append(events, e) }

	sum, err := r.Run(ctx, indexedBuffer(400))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Transcribed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []int{0, 1, 2, 3}, model.called())

	// The skipped window leaves no row, so later rows shift down by one.
	text, err := Assemble(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "t0t2t3", text)

	var failed []Event
	for _, e := range events {
		if e.Type == EventChunkFailed {
			failed = append(failed, e)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
	assert.Contains(t, failed[0].Error, "500")
}

func TestRunner_Timeout(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	model := &fakeModel{hook: func(ctx context.Context, idx int) error {
		if idx == 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}}

	r := newRunner(model, store)
	r.Timeout = 20 * time.Millisecond
	sum, err := r.Run(ctx, indexedBuffer(200))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Transcribed)
}

type failingStore struct {
	checkpoint.Store
	appendErr error
}

func (s *failingStore) Append(context.Context, checkpoint.Record) error { return s.appendErr }

func TestRunner_StoreErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{
		Store:     checkpoint.NewCSVStore(t.TempDir(), "talk_fake"),
		appendErr: errors.New("disk full"),
	}
	model := &fakeModel{}

	_, err := newRunner(model, store).Run(ctx, indexedBuffer(300))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []int{0}, model.called(), "the run must stop at the first store error")
}

func TestRunner_EmptyAudio(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "silence_fake")
	model := &fakeModel{}

	sum, err := newRunner(model, store).Run(ctx, audio.Buffer{SampleRate: testRate})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Total)
	assert.Empty(t, model.called())

	text, err := Assemble(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestRunner_InvalidSampleRate(t *testing.T) {
	store := checkpoint.NewCSVStore(t.TempDir(), "x_fake")
	_, err := newRunner(&fakeModel{}, store).Run(context.Background(), audio.Buffer{Samples: make([]float32, 10)})
	require.Error(t, err)
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewCSVStore(t.TempDir(), "talk_fake")
	tracker := NewTracker()

	snap := tracker.Snapshot()
	assert.Equal(t, "idle", snap.State)

	r := newRunner(&fakeModel{fail: map[int]error{2: errors.New("boom")}}, store)
	r.OnEvent = tracker.Handle
	_, err := r.Run(ctx, indexedBuffer(400))
	require.NoError(t, err)

	snap = tracker.Snapshot()
	assert.Equal(t, "complete", snap.State)
	assert.Equal(t, "talk_fake", snap.Identity)
	assert.Equal(t, 3, snap.Logged)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 3, snap.LastChunk)

	done, total := tracker.Progress()
	assert.Equal(t, 3, done)
	assert.Equal(t, 4, total)
}
