package control

import (
	"context"
	"errors"
	"sync"

	"github.com/bryanchriswhite/livejar/internal/logger"
)

// ErrStopped is returned when work is submitted to a stopped loop
var ErrStopped = errors.New("control loop stopped")

// Loop runs every state mutation on one goroutine, in submission order.
// Work submitted from inside the loop must use Post, never Do or Call.
type Loop struct {
	tasks    chan func()
	stopChan chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
}

// New creates a loop with room for queue pending tasks
func New(queue int) *Loop {
	if queue <= 0 {
		queue = 256
	}
	return &Loop{
		tasks:    make(chan func(), queue),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling it more than once is a no-op.
func (l *Loop) Start() {
	l.start.Do(func() {
		go l.run()
	})
}

// Stop finishes the task in flight, drops the rest and waits for the goroutine to exit
func (l *Loop) Stop() {
	l.stop.Do(func() {
		close(l.stopChan)
	})
	l.start.Do(func() { close(l.done) })
	<-l.done
}

// Post enqueues fn without waiting for it to run. It reports false if the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopChan:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stopChan:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. ctx bounds the wait only;
// once fn has started it runs to completion.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case <-l.stopChan:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- task:
	case <-l.stopChan:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the loop and returns its result
func Call[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if doErr := l.Do(ctx, func() { out, err = fn() }); doErr != nil {
		var zero T
		return zero, doErr
	}
	return out, err
}

func (l *Loop) run() {
	defer close(l.done)
	log := logger.WithComponent("control")
	log.Debug().Msg("Control loop started")

	for {
		select {
		case <-l.stopChan:
			log.Debug().Int("dropped", len(l.tasks)).Msg("Control loop stopped")
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithComponent("control").Error().
				Interface("panic", r).
				Msg("Recovered panic in control loop task")
		}
	}()
	fn()
}
