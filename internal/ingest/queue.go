package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/invoice-review/internal/invoice"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("ingest queue is shut down")

const (
	StateProcessing = "Processing"
	StateReady      = "Ready"
)

// Queue processes uploads one at a time, in the order they were enqueued.
// A failed upload is recorded and never stops the uploads behind it.
type Queue struct {
	proc      *Processor
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []invoice.Upload
	current   string
	processed int
	failed    int
	closed    bool
	aborted   bool

	done chan struct{}
}

type Option func(*Queue)

// WithLogger sets the queue's logger
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithProcessTimeout bounds the work on a single upload
func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue starts a queue with a single worker.
func NewQueue(proc *Processor, publisher Publisher, opts ...Option) *Queue {
	q := &Queue{
		proc:      proc,
		publisher: publisher,
		logger:    slog.Default(),
		timeout:   3 * time.Minute,
		done:      make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, o := range opts {
		o(q)
	}

	go q.run()
	return q
}

// Enqueue appends uploads to the queue without waiting for them to be processed.
func (q *Queue) Enqueue(uploads ...invoice.Upload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "count", len(uploads))
		return ErrQueueClosed
	}

	q.pending = append(q.pending, uploads...)
	for _, up := range uploads {
		q.logger.Info("queued upload for processing", "upload_id", up.ID, "name", up.Name)
	}
	q.cond.Signal()
	return nil
}

// Status returns a snapshot of the queue
func (q *Queue) Status() invoice.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	state := StateReady
	if q.current != "" || len(q.pending) > 0 {
		state = StateProcessing
	}
	return invoice.QueueStatus{
		State:     state,
		Current:   q.current,
		Pending:   len(q.pending),
		Processed: q.processed,
		Failed:    q.failed,
	}
}

// Shutdown stops accepting uploads and waits for the queued ones to finish.
// When ctx ends first, the upload in flight still completes but the rest are
// dropped, and ctx's error is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	select {
	case <-q.done:
		q.logger.Info("queue drained, shutdown complete")
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		q.aborted = true
		dropped := len(q.pending)
		q.mu.Unlock()
		q.logger.Warn("shutdown interrupted by context", "dropped", dropped)
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	q.logger.Info("ingest worker started")

	for {
		up, ok := q.next()
		if !ok {
			break
		}
		err := q.process(up)

		q.mu.Lock()
		q.current = ""
		if err != nil {
			q.failed++
		} else {
			q.processed++
		}
		q.mu.Unlock()
	}

	q.logger.Info("ingest worker stopped")
}

// next blocks until an upload is pending or the queue is closed.
func (q *Queue) next() (invoice.Upload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.aborted || len(q.pending) == 0 {
		return invoice.Upload{}, false
	}

	up := q.pending[0]
	q.pending = q.pending[1:]
	q.current = up.Name
	return up, true
}

func (q *Queue) process(up invoice.Upload) error {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	data, err := q.publisher.ReadUpload(up)
	if err != nil {
		return q.fail(up, err)
	}

	ex, err := q.proc.Process(ctx, data, up.ContentType)
	if err != nil {
		return q.fail(up, err)
	}

	doc, err := q.publisher.PublishDocument(up, *ex)
	if err != nil {
		q.logger.Error("publishing document failed", "upload_id", up.ID, "error", err)
		return err
	}

	q.logger.Info("processed upload successfully",
		"upload_id", up.ID,
		"name", up.Name,
		"method", doc.ScanMethod,
		"missing", doc.MissingFields,
		"duration", ex.Duration,
	)
	return nil
}

func (q *Queue) fail(up invoice.Upload, cause error) error {
	kind := failureKind(cause)
	q.logger.Error("processing failed", "upload_id", up.ID, "name", up.Name, "kind", kind, "error", cause)

	if err := q.publisher.PublishFailure(up, kind, cause); err != nil {
		q.logger.Error("recording failure failed", "upload_id", up.ID, "error", err)
	}
	return cause
}
