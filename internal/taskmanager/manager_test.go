package taskmanager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/testutil"
	"github.com/aliskhannn/image-optimizer/internal/worker"
)

// fakeChannel hands posted requests to the test and lets it inject responses.
type fakeChannel struct {
	posted     chan worker.Request
	messages   chan worker.Response
	failures   chan error
	terminated atomic.Bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		posted:   make(chan worker.Request, 16),
		messages: make(chan worker.Response),
		failures: make(chan error, 1),
	}
}

func (f *fakeChannel) Post(ctx context.Context, req worker.Request) error {
	if f.terminated.Load() {
		return worker.ErrTerminated
	}

	select {
	case f.posted <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeChannel) Messages() <-chan worker.Response { return f.messages }
func (f *fakeChannel) Failures() <-chan error           { return f.failures }
func (f *fakeChannel) Terminate()                       { f.terminated.Store(true) }

func (f *fakeChannel) spawn() (Channel, error) { return f, nil }

func (f *fakeChannel) nextRequest(t *testing.T) worker.Request {
	t.Helper()

	select {
	case req := <-f.posted:
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("no request posted")
		return worker.Request{}
	}
}

func source(name string) model.SourceImage {
	return model.SourceImage{Name: name, Type: "image/png", Data: testutil.PNG(testutil.Gradient(24, 16))}
}

type result struct {
	res model.ProcessingResult
	err error
}

func startTask(m *Manager, ctx context.Context, name string) <-chan result {
	out := make(chan result, 1)
	go func() {
		res, err := m.ProcessImage(ctx, source(name), model.ProcessingOptions{}, model.KindConvert)
		out <- result{res, err}
	}()
	return out
}

func TestMainThreadWhenSpawnFails(t *testing.T) {
	m := New(canvas.NewEncoder(), func() (Channel, error) { return nil, errors.New("no workers here") })
	assert.Equal(t, ModeMainThread, m.Mode())

	res, err := m.ProcessImage(context.Background(), source("a.png"), model.ProcessingOptions{Width: 12}, model.KindConvert)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Width)
	assert.Equal(t, 8, res.Height)
	assert.Equal(t, "image/png", res.MIME)
	assert.False(t, m.IsProcessing())

	assert.Equal(t, ModeMainThread, New(canvas.NewEncoder(), nil).Mode())
}

func TestWorkerModeEndToEnd(t *testing.T) {
	enc := canvas.NewEncoder()
	m := New(enc, WorkerSpawner(enc, 4))
	defer m.Close()
	require.Equal(t, ModeWorker, m.Mode())

	res, err := m.ProcessImage(context.Background(), source("a.png"), model.ProcessingOptions{MaxWidth: 12, Format: "jpeg"}, model.KindCompress)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Width)
	assert.Equal(t, "image/jpeg", res.MIME)
	assert.Zero(t, m.Pending())
	assert.Empty(t, m.Progress())
}

func TestDecodeHappensBeforeDispatch(t *testing.T) {
	fc := newFakeChannel()
	m := New(canvas.NewEncoder(), fc.spawn)
	defer m.Close()

	_, err := m.ProcessImage(context.Background(), model.SourceImage{Name: "bad.png", Data: []byte("x")}, model.ProcessingOptions{}, model.KindConvert)
	require.ErrorIs(t, err, canvas.ErrDecode)
	assert.Empty(t, fc.posted)
}

func TestCorrelationByID(t *testing.T) {
	fc := newFakeChannel()
	m := New(canvas.NewEncoder(), fc.spawn)
	defer m.Close()

	done := startTask(m, context.Background(), "a.png")
	req := fc.nextRequest(t)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, 24, req.Pixels.Bounds().Dx())
	assert.True(t, m.IsProcessing())

	fc.messages <- worker.Response{Type: worker.TypeProgress, ID: "unknown", Progress: 10}
	fc.messages <- worker.Response{Type: worker.TypeSuccess, ID: "unknown"}
	fc.messages <- worker.Response{Type: worker.TypeProgress, ID: req.ID, Progress: 50}

	require.Eventually(t, func() bool { return m.Progress()[req.ID] == 50 }, time.Second, 5*time.Millisecond)
	assert.Len(t, m.Progress(), 1)
	assert.Equal(t, 1, m.Pending())

	fc.messages <- worker.Response{Type: worker.TypeSuccess, ID: req.ID, Result: &model.ProcessingResult{Width: 3, Height: 4, Size: 5}}

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, 3, got.res.Width)
	assert.Zero(t, m.Pending())
	assert.Empty(t, m.Progress())
}

func TestErrorMessageRejectsTask(t *testing.T) {
	fc := newFakeChannel()
	m := New(canvas.NewEncoder(), fc.spawn)
	defer m.Close()

	done := startTask(m, context.Background(), "a.png")
	req := fc.nextRequest(t)

	fc.messages <- worker.Response{Type: worker.TypeError, ID: req.ID, Error: "encoder exploded"}

	got := <-done
	require.ErrorContains(t, got.err, "encoder exploded")
	assert.False(t, m.IsProcessing())
}

func TestChannelFailureRejectsAllPending(t *testing.T) {
	fc := newFakeChannel()
	m := New(canvas.NewEncoder(), fc.spawn)

	const n = 3
	var results []<-chan result
	for i := 0; i < n; i++ {
		results = append(results, startTask(m, context.Background(), "a.png"))
	}
	for i := 0; i < n; i++ {
		req := fc.nextRequest(t)
		fc.messages <- worker.Response{Type: worker.TypeProgress, ID: req.ID, Progress: 50}
	}
	require.Eventually(t, func() bool { return len(m.Progress()) == n }, time.Second, 5*time.Millisecond)
	require.Equal(t, n, m.Pending())

	fc.failures <- errors.New("worker crashed")

	rejected := 0
	for _, ch := range results {
		got := <-ch
		require.ErrorIs(t, got.err, ErrChannelFailure)
		rejected++
	}
	assert.Equal(t, n, rejected)
	assert.Zero(t, m.Pending())
	assert.Empty(t, m.Progress())
	assert.True(t, fc.terminated.Load())

	_, err := m.ProcessImage(context.Background(), source("late.png"), model.ProcessingOptions{}, model.KindConvert)
	require.ErrorIs(t, err, ErrClosed)
}

func TestDeadlineWhilePostingForgetsTask(t *testing.T) {
	// nobody drains posted, so every Post blocks like a full worker queue
	fc := newFakeChannel()
	fc.posted = make(chan worker.Request)
	m := New(canvas.NewEncoder(), fc.spawn)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	select {
	case got := <-startTask(m, ctx, "stuck.png"):
		require.ErrorIs(t, got.err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessImage ignored its deadline")
	}

	assert.Zero(t, m.Pending())
	assert.False(t, m.IsProcessing())
	assert.Empty(t, m.Progress())
}

func TestCanceledContextForgetsTask(t *testing.T) {
	fc := newFakeChannel()
	m := New(canvas.NewEncoder(), fc.spawn)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := startTask(m, ctx, "a.png")
	req := fc.nextRequest(t)

	cancel()
	got := <-done
	require.ErrorIs(t, got.err, context.Canceled)
	assert.Zero(t, m.Pending())

	// a late answer is dropped
	fc.messages <- worker.Response{Type: worker.TypeSuccess, ID: req.ID}
	assert.Zero(t, m.Pending())
}

func TestCloseRejectsPending(t *testing.T) {
	fc := newFakeChannel()
	m := New(canvas.NewEncoder(), fc.spawn)

	done := startTask(m, context.Background(), "a.png")
	fc.nextRequest(t)

	m.Close()
	m.Close()

	got := <-done
	require.ErrorIs(t, got.err, ErrClosed)
	assert.True(t, fc.terminated.Load())
}

func TestProcessImagesAllOrNothing(t *testing.T) {
	enc := canvas.NewEncoder()
	m := New(enc, WorkerSpawner(enc, 4))
	defer m.Close()

	good := []model.SourceImage{source("a.png"), source("b.png")}
	res, err := m.ProcessImages(context.Background(), good, model.ProcessingOptions{}, model.KindCompress)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	mixed := []model.SourceImage{source("a.png"), {Name: "bad.png", Data: []byte("x")}}
	res, err = m.ProcessImages(context.Background(), mixed, model.ProcessingOptions{}, model.KindCompress)
	require.ErrorIs(t, err, canvas.ErrDecode)
	assert.Nil(t, res)
}

func TestProcessEachKeepsPartialResults(t *testing.T) {
	m := New(canvas.NewEncoder(), nil)

	mixed := []model.SourceImage{source("a.png"), {Name: "bad.png", Data: []byte("x")}, source("c.png")}
	items := m.ProcessEach(context.Background(), mixed, model.ProcessingOptions{}, model.KindConvert)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, canvas.ErrDecode)
	assert.NoError(t, items[2].Err)
	assert.Positive(t, items[2].Result.Size)
	require.ErrorIs(t, items.Err(), canvas.ErrDecode)
}
