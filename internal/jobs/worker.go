// Package jobs runs periodic background tasks such as index snapshot refreshes.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Worker runs a task on a fixed interval until stopped
type Worker struct {
	name     string
	task     Task
	interval time.Duration
	logger   *zap.Logger
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, task Task, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		name:     name,
		task:     task,
		interval: interval,
		logger:   logger.With(zap.String("worker", name)),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the polling loop; it blocks until ctx is done or Stop is called
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.Info("worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info("worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.task.Run(ctx); err != nil {
				w.logger.Warn("worker task failed", zap.Error(err))
			}
		}
	}
}

// Stop signals the loop and waits for it to exit. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}
