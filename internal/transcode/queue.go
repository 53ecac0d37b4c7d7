package transcode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lessonstream/internal/platform/metrics"
)

// DefaultAttempts is how many times a transcode task runs before the asset is
// left failed.
const DefaultAttempts = 3

// DefaultTimeout bounds a single transcode attempt.
const DefaultTimeout = time.Hour

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("transcode queue closed")

type task struct {
	lessonID   int64
	generation int64
	sourcePath string
}

// Queue dispatches transcode tasks to a pool of workers. Tasks for different
// lessons run concurrently; tasks for the same lesson are serialized by a
// keyed lock so an asset is never processed by two workers at once.
type Queue struct {
	proc     Processor
	tasks    chan task
	attempts int
	timeout  time.Duration
	log      *slog.Logger
	met      *metrics.Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	locks keyedLocks
}

// Processor runs one transcode attempt. *Worker implements it; queue tests
// substitute a ProcessFunc.
type Processor interface {
	Process(ctx context.Context, lessonID, generation int64, sourcePath string) error
}

// ProcessFunc adapts a function to the Processor contract.
type ProcessFunc func(ctx context.Context, lessonID, generation int64, sourcePath string) error

func (f ProcessFunc) Process(ctx context.Context, lessonID, generation int64, sourcePath string) error {
	return f(ctx, lessonID, generation, sourcePath)
}

// NewQueue returns a Queue feeding tasks to proc. attempts <= 0 and
// timeout <= 0 fall back to the defaults.
func NewQueue(proc Processor, workers, attempts int, timeout time.Duration, log *slog.Logger, met *metrics.Metrics) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	q := &Queue{
		proc:     proc,
		tasks:    make(chan task, 64),
		attempts: attempts,
		timeout:  timeout,
		log:      log,
		met:      met,
		locks:    keyedLocks{locks: make(map[int64]*lockEntry)},
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
	return q
}

// Enqueue schedules one transcode for (lessonID, generation).
func (q *Queue) Enqueue(lessonID, generation int64, sourcePath string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.tasks <- task{lessonID: lessonID, generation: generation, sourcePath: sourcePath}
	return nil
}

// Close stops accepting tasks and, after Wait, lets in-flight tasks finish.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Wait blocks until all workers have drained.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	unlock := q.locks.acquire(t.lessonID)
	defer unlock()

	if q.met != nil {
		q.met.TranscodeStarted()
		defer q.met.TranscodeFinished()
	}

	var err error
	for attempt := 1; attempt <= q.attempts; attempt++ {
		err = q.attempt(t)
		if err == nil {
			if q.met != nil {
				q.met.IncTranscodes("ready")
			}
			return
		}
		if errors.Is(err, ErrSuperseded) {
			if q.met != nil {
				q.met.IncTranscodes("superseded")
			}
			return
		}
		if errors.Is(err, ErrFatal) {
			q.log.Error("transcode aborted",
				"lesson_id", t.lessonID,
				"generation", t.generation,
				"attempt", attempt,
				"error", err,
			)
			break
		}
		q.log.Warn("transcode attempt failed",
			"lesson_id", t.lessonID,
			"generation", t.generation,
			"attempt", attempt,
			"attempts", q.attempts,
			"error", err,
		)
	}
	if q.met != nil {
		q.met.IncTranscodes("failed")
	}
	q.log.Error("transcode failed permanently",
		"lesson_id", t.lessonID,
		"generation", t.generation,
		"error", err,
	)
}

func (q *Queue) attempt(t task) error {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return q.proc.Process(ctx, t.lessonID, t.generation, t.sourcePath)
}

// keyedLocks serializes work per lesson. Entries are reference-counted so the
// map does not grow without bound.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) acquire(id int64) (release func()) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &lockEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
