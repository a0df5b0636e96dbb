package worker

import "go.uber.org/zap"

type JobType int

const (
	Run JobType = iota
	Stop
)

// Job is one unit of work keyed by the caller it belongs to (session id or
// client address). Jobs sharing a key start in submission order.
type Job struct {
	Type JobType
	Key  string
	Fn   func()
}

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
	quit       chan struct{}
	logger     *zap.Logger
}

func NewWorker(id int, pool *jobChannelPool, logger *zap.Logger) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (w *Worker) Start() {
	go func() {
		w.pool.Release(w.jobChannel)
		for {
			select {
			case job := <-w.jobChannel:
				if job.Type == Stop {
					w.pool.retire(w.jobChannel)
					return
				}
				w.logger.Debug("worker picked job", zap.Int("worker", w.id), zap.String("key", job.Key))
				w.execute(job)
				w.pool.Release(w.jobChannel)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w *Worker) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker job panicked", zap.Int("worker", w.id), zap.String("key", job.Key), zap.Any("panic", r))
		}
	}()
	if job.Fn != nil {
		job.Fn()
	}
}

func (w *Worker) Stop() {
	close(w.quit)
}
