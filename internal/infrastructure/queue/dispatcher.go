package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/api/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned by Do once the dispatcher has been shut down.
var ErrStopped = errors.New("dispatcher stopped")

// Job is a unit of work run on the worker that owns its key.
type Job func(ctx context.Context) error

type task struct {
	ctx  context.Context
	key  string
	fn   Job
	done chan error
}

// Dispatcher routes jobs to a fixed set of workers using consistent hashing
// on a key. Jobs sharing a key run one at a time in submission order.
type Dispatcher struct {
	workers []chan task
	quit    chan struct{}
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan task, numWorkers),
		quit:    make(chan struct{}),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan task, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// and later calls to Do fail with ErrStopped.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		close(d.quit)
	}()
}

// Do runs fn on the worker responsible for key and waits for its result.
// ctx only bounds the wait for a queue slot. Once queued, Do returns the
// job's own result; a job whose ctx is done by the time it is dequeued is
// skipped and reports ctx.Err().
func (d *Dispatcher) Do(ctx context.Context, key string, fn Job) error {
	idx := d.shardIndex(key)
	t := task{ctx: ctx, key: key, fn: fn, done: make(chan error, 1)}

	select {
	case <-d.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case d.workers[idx] <- t:
		metrics.DispatchQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	}

	select {
	case err := <-t.done:
		return err
	case <-d.quit:
		return ErrStopped
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan task) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ch:
			metrics.DispatchQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			if err := t.ctx.Err(); err != nil {
				t.done <- err
				continue
			}
			err := t.fn(t.ctx)
			if err != nil {
				d.log.Debug().Err(err).
					Str("key", t.key).
					Int("worker_id", id).
					Msg("job failed")
			}
			t.done <- err
		}
	}
}
