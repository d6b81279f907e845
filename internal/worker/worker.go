package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

var (
	// ErrTerminated is returned when posting to a stopped worker.
	ErrTerminated = errors.New("worker terminated")
	// ErrCrashed is reported on Failures when the worker goroutine panics.
	ErrCrashed = errors.New("worker crashed")
)

// DefaultQueueSize is the request buffer of a worker.
const DefaultQueueSize = 64

// Worker processes requests on its own goroutine and talks to its owner
// only through messages.
type Worker struct {
	enc      Encoder
	inbox    chan Request
	outbox   chan Response
	failures chan error

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Spawn starts a worker. A non-positive queueSize uses DefaultQueueSize.
func Spawn(enc Encoder, queueSize int) (*Worker, error) {
	if enc == nil {
		return nil, errors.New("spawn worker: nil encoder")
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		enc:      enc,
		inbox:    make(chan Request, queueSize),
		outbox:   make(chan Response, queueSize),
		failures: make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	go w.run()

	return w, nil
}

// Post queues req. It blocks while the queue is full, until ctx is done.
func (w *Worker) Post(ctx context.Context, req Request) error {
	select {
	case <-w.ctx.Done():
		return ErrTerminated
	default:
	}

	select {
	case <-w.ctx.Done():
		return ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	case w.inbox <- req:
		return nil
	}
}

// Messages delivers the worker responses.
func (w *Worker) Messages() <-chan Response {
	return w.outbox
}

// Failures delivers at most one error when the worker itself breaks.
func (w *Worker) Failures() <-chan error {
	return w.failures
}

// Terminate stops the worker. Queued requests are dropped.
func (w *Worker) Terminate() {
	w.once.Do(w.cancel)
}

func (w *Worker) run() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrCrashed, r)
			zlog.Logger.Error().Err(err).Msg("worker stopped")

			w.failures <- err
			w.Terminate()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case req := <-w.inbox:
			w.handle(req)
		}
	}
}

func (w *Worker) handle(req Request) {
	res, err := Process(w.ctx, w.enc, req, func(p int) {
		w.emit(Response{Type: TypeProgress, ID: req.ID, Progress: p})
	})
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("task", req.ID).Msg("task failed")
		w.emit(Response{Type: TypeError, ID: req.ID, Error: err.Error()})
		return
	}

	w.emit(Response{Type: TypeSuccess, ID: req.ID, Result: &res})
}

func (w *Worker) emit(resp Response) {
	select {
	case w.outbox <- resp:
	case <-w.ctx.Done():
	}
}
