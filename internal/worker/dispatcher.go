package worker

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDispatcherBusy is returned when the intake queue is full.
	ErrDispatcherBusy = errors.New("dispatcher busy")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrJobCanceled is returned to callers whose job was dropped by CancelKey
	// before a worker started it.
	ErrJobCanceled = errors.New("job canceled")
)

const (
	jobPending int32 = iota
	jobStarted
	jobDropped
)

// waiter is the caller side of one Do. Exactly one of the worker or
// CancelKey moves it out of jobPending and writes done.
type waiter struct {
	state atomic.Int32
	done  chan error
}

type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher feeds a bounded worker pool from per-key queues, rotating keys
// so one busy caller cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // intake for outer jobs
	logger   *zap.Logger

	mu        sync.Mutex
	queues    map[string]*keyQueue
	ready     *list.List // round-robin order of keys with pending jobs
	positions map[string]*list.Element
	waiting   map[string]map[*waiter]struct{}

	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, logger)

	d := &Dispatcher{
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		waiting:   make(map[string]map[*waiter]struct{}),
		pool:      pool,
		JobQueue:  make(chan Job, queueSize),
		logger:    logger,
		quit:      make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			return
		default:
		}
	}
}

// Submit hands a job to the dispatcher without blocking.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case <-d.quit:
		return ErrDispatcherClosed
	default:
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Do runs fn on a pool worker under key and waits for it. A nil dispatcher
// runs fn inline. Cancelling ctx stops the wait; fn still observes ctx.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if d == nil {
		return fn(ctx)
	}
	w := &waiter{done: make(chan error, 1)}
	d.track(key, w)
	defer d.untrack(key, w)

	job := Job{
		Type: Run,
		Key:  key,
		Fn: func() {
			if !w.state.CompareAndSwap(jobPending, jobStarted) {
				return
			}
			defer func() {
				if r := recover(); r != nil {
					w.done <- fmt.Errorf("job panicked: %v", r)
				}
			}()
			if err := ctx.Err(); err != nil {
				w.done <- err
				return
			}
			w.done <- fn(ctx)
		},
	}
	if err := d.Submit(job); err != nil {
		return err
	}
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return ErrDispatcherClosed
	}
}

func (d *Dispatcher) track(key string, w *waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.waiting[key]
	if set == nil {
		set = make(map[*waiter]struct{})
		d.waiting[key] = set
	}
	set[w] = struct{}{}
}

func (d *Dispatcher) untrack(key string, w *waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set := d.waiting[key]; set != nil {
		delete(set, w)
		if len(set) == 0 {
			delete(d.waiting, key)
		}
	}
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, d *Dispatcher, key string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := d.Do(ctx, key, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		// the job may still be running after a cancelled wait
		var zero T
		return zero, err
	}
	return out, nil
}

// CancelKey drops every job under key that no worker has started yet and
// returns ErrJobCanceled to their callers. Running jobs are not interrupted.
func (d *Dispatcher) CancelKey(key string) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	delete(d.queues, key)
	if elem, ok := d.positions[key]; ok {
		d.ready.Remove(elem)
		delete(d.positions, key)
	}
	waiters := make([]*waiter, 0, len(d.waiting[key]))
	for w := range d.waiting[key] {
		waiters = append(waiters, w)
	}
	d.mu.Unlock()

	dropped := 0
	for _, w := range waiters {
		// jobs already handed out see the state change and skip fn
		if w.state.CompareAndSwap(jobPending, jobDropped) {
			w.done <- ErrJobCanceled
			dropped++
		}
	}
	if dropped > 0 {
		d.logger.Debug("dropped queued jobs", zap.String("key", key), zap.Int("count", dropped))
	}
	return dropped
}

// Workers reports how many workers are running.
func (d *Dispatcher) Workers() int {
	if d == nil {
		return 0
	}
	return d.pool.size()
}

// Close stops the dispatcher loop and all workers.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne hands the head job of the front key to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		return false
	}
	select {
	case workerChan <- job:
	case <-d.quit:
		return false
	}
	return true
}
