package pool

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type Option func(p *WorkersPool)

func WithCtx(ctx context.Context) Option {
	return func(p *WorkersPool) {
		p.ctx = ctx
	}
}

func Size(size int) Option {
	return func(p *WorkersPool) {
		p.size = size
	}
}

type Task interface {
	Run(ctx context.Context) error
	ID() int
}

// WorkersPool runs tasks on a fixed number of workers. The first failing
// task cancels the pool context; tasks not yet started are then skipped.
type WorkersPool struct {
	ctx    context.Context
	cancel context.CancelFunc

	size  int
	tasks chan Task

	err  error
	once *sync.Once

	wg     *sync.WaitGroup
	mu     *sync.Mutex
	waited bool
}

// AddTask blocks until a worker takes the task. It drops the task when the
// pool is already canceled.
func (p *WorkersPool) AddTask(task Task) {
	logrus.Debugf("AddTask: task %d adding", task.ID())

	select {
	case p.tasks <- task:
		logrus.Debugf("AddTask: task %d added", task.ID())
	case <-p.ctx.Done():
		logrus.Debugf("AddTask: task %d dropped", task.ID())
	}
}

func (p *WorkersPool) start() {
	logrus.Debug("start: pool started")
	defer logrus.Debug("start: starting finished")

	p.wg.Add(p.size)

	for i := 0; i < p.size; i++ {
		go p.worker(i)
	}
}

func (p *WorkersPool) worker(n int) {
	logrus.Debugf("worker %d: started", n)
	defer logrus.Debugf("worker %d: finished", n)

	defer p.wg.Done()

	for task := range p.tasks {
		if p.ctx.Err() != nil {
			continue
		}

		err := task.Run(p.ctx)
		if err != nil {
			logrus.WithField("taskID", task.ID()).Debug(err)
			p.fail(err)
		}
	}
}

func (p *WorkersPool) fail(err error) {
	p.once.Do(func() {
		p.err = err
		p.cancel()
	})
}

// Wait stops accepting tasks, waits for the workers and returns the first
// task error. It is safe to call more than once.
func (p *WorkersPool) Wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logrus.Debug("Wait: started")
	defer logrus.Debug("Wait: finished")

	if !p.waited {
		p.waited = true
		close(p.tasks)
		p.wg.Wait()

		p.once.Do(func() {
			// nil unless the parent context was canceled
			p.err = p.ctx.Err()
		})
		p.cancel()
	}

	return p.err
}

const (
	DefaultPoolSize = 8
)

func NewWorkersPool(options ...Option) *WorkersPool {
	p := &WorkersPool{
		ctx:   context.Background(),
		size:  DefaultPoolSize,
		tasks: make(chan Task),
		once:  &sync.Once{},
		wg:    &sync.WaitGroup{},
		mu:    &sync.Mutex{},
	}

	for _, option := range options {
		option(p)
	}

	if p.size < 1 {
		p.size = 1
	}

	p.ctx, p.cancel = context.WithCancel(p.ctx)

	p.start()

	return p
}
