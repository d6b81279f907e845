package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/worker"
)

var (
	// ErrChannelFailure rejects every pending task when the worker channel breaks.
	ErrChannelFailure = errors.New("worker error")
	// ErrClosed is returned by a manager whose channel is gone.
	ErrClosed = errors.New("task manager closed")
)

// Mode tells where tasks are processed.
type Mode string

const (
	ModeWorker     Mode = "worker"
	ModeMainThread Mode = "main-thread"
)

// Channel is the message link to a background worker.
type Channel interface {
	Post(ctx context.Context, req worker.Request) error
	Messages() <-chan worker.Response
	Failures() <-chan error
	Terminate()
}

// SpawnFunc starts a background worker.
type SpawnFunc func() (Channel, error)

// WorkerSpawner returns a SpawnFunc starting a worker.Worker on enc.
func WorkerSpawner(enc worker.Encoder, queueSize int) SpawnFunc {
	return func() (Channel, error) {
		w, err := worker.Spawn(enc, queueSize)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

type outcome struct {
	result model.ProcessingResult
	err    error
}

// Manager turns calls into worker messages and correlates the responses
// by task id.
type Manager struct {
	enc  worker.Encoder
	ch   Channel
	mode Mode

	mu       sync.Mutex
	pending  map[string]chan outcome
	progress map[string]int
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// New probes spawn once. If it is nil or fails, every task is processed on
// the calling goroutine with enc.
func New(enc worker.Encoder, spawn SpawnFunc) *Manager {
	m := &Manager{
		enc:      enc,
		mode:     ModeMainThread,
		pending:  make(map[string]chan outcome),
		progress: make(map[string]int),
		done:     make(chan struct{}),
	}

	if spawn == nil {
		return m
	}

	ch, err := spawn()
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("background worker not available, processing on the calling goroutine")
		return m
	}

	m.ch = ch
	m.mode = ModeWorker
	go m.listen()

	return m
}

// Mode reports how tasks are processed.
func (m *Manager) Mode() Mode {
	return m.mode
}

// IsProcessing reports whether any task is waiting for the worker.
func (m *Manager) IsProcessing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending) > 0
}

// Pending returns the number of tasks waiting for the worker.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending)
}

// Progress returns a snapshot of task id to progress percentage.
func (m *Manager) Progress() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Clone(m.progress)
}

// ProcessImage decodes src and has it processed as kind. In worker mode it
// waits for the matching terminal message.
func (m *Manager) ProcessImage(ctx context.Context, src model.SourceImage, opts model.ProcessingOptions, kind model.Kind) (model.ProcessingResult, error) {
	pixels, err := canvas.Decode(src)
	if err != nil {
		return model.ProcessingResult{}, fmt.Errorf("process %s: %w", src.Name, err)
	}

	req := worker.Request{Type: kind, Pixels: pixels, Options: opts}

	if m.mode == ModeMainThread {
		if m.isClosed() {
			return model.ProcessingResult{}, ErrClosed
		}

		res, err := worker.Process(ctx, m.enc, req, nil)
		if err != nil {
			return model.ProcessingResult{}, fmt.Errorf("process %s: %w", src.Name, err)
		}
		return res, nil
	}

	req.ID = uuid.NewString()
	result := make(chan outcome, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return model.ProcessingResult{}, ErrClosed
	}
	m.pending[req.ID] = result
	m.mu.Unlock()

	if err := m.ch.Post(ctx, req); err != nil {
		m.forget(req.ID)
		return model.ProcessingResult{}, fmt.Errorf("process %s: %w", src.Name, err)
	}

	select {
	case out := <-result:
		if out.err != nil {
			return model.ProcessingResult{}, fmt.Errorf("process %s: %w", src.Name, out.err)
		}
		return out.result, nil
	case <-ctx.Done():
		m.forget(req.ID)
		return model.ProcessingResult{}, ctx.Err()
	}
}

// Close terminates the worker and rejects pending tasks with ErrClosed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
	m.shutdown(ErrClosed)
}

func (m *Manager) listen() {
	for {
		select {
		case <-m.done:
			return
		case resp, ok := <-m.ch.Messages():
			if !ok {
				m.shutdown(ErrChannelFailure)
				return
			}
			m.dispatch(resp)
		case err := <-m.ch.Failures():
			zlog.Logger.Error().Err(err).Msg("worker channel failed, rejecting pending tasks")
			m.shutdown(fmt.Errorf("%w: %v", ErrChannelFailure, err))
			return
		}
	}
}

// dispatch routes resp to its pending task. Messages for unknown ids are dropped.
func (m *Manager) dispatch(resp worker.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.pending[resp.ID]
	if !ok {
		return
	}

	switch resp.Type {
	case worker.TypeSuccess:
		var res model.ProcessingResult
		if resp.Result != nil {
			res = *resp.Result
		}
		task <- outcome{result: res}
	case worker.TypeError:
		task <- outcome{err: errors.New(resp.Error)}
	case worker.TypeProgress:
		m.progress[resp.ID] = resp.Progress
		return
	default:
		return
	}

	delete(m.pending, resp.ID)
	delete(m.progress, resp.ID)
}

// shutdown rejects every pending task with err and refuses new ones.
func (m *Manager) shutdown(err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	m.closed = true
	rejected := len(m.pending)
	for id, task := range m.pending {
		task <- outcome{err: err}
		delete(m.pending, id)
	}
	clear(m.progress)
	m.mu.Unlock()

	if m.ch != nil {
		m.ch.Terminate()
	}

	zlog.Logger.Info().Int("rejected", rejected).Msg("task manager shut down")
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	delete(m.progress, id)
	m.mu.Unlock()
}
