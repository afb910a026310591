package services

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var janitorRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "janitor_runs_total",
		Help: "Total number of scheduled maintenance task runs",
	},
	[]string{"task", "status"},
)

type janitorTask struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Janitor runs periodic maintenance tasks until its context is cancelled or
// Stop is called. Each task ticks on its own interval.
type Janitor struct {
	logger *zap.Logger
	tasks  []janitorTask

	stopOnce sync.Once
	stop     chan struct{}
}

func NewJanitor(logger *zap.Logger) *Janitor {
	return &Janitor{logger: logger, stop: make(chan struct{})}
}

// Add registers a task. It must be called before Run.
func (j *Janitor) Add(name string, interval time.Duration, run func(ctx context.Context) error) {
	j.tasks = append(j.tasks, janitorTask{name: name, interval: interval, run: run})
}

// Run blocks until ctx is done or Stop is called, then waits for in-flight
// task runs to return.
func (j *Janitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, t := range j.tasks {
		wg.Add(1)
		go func(t janitorTask) {
			defer wg.Done()
			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					j.runTask(ctx, t)
				}
			}
		}(t)
	}

	select {
	case <-ctx.Done():
	case <-j.stop:
	}
	cancel()
	wg.Wait()
	j.logger.Info("janitor stopped")
	return nil
}

// Stop ends Run. Calling it more than once is fine.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *Janitor) runTask(ctx context.Context, t janitorTask) {
	start := time.Now()
	if err := t.run(ctx); err != nil {
		janitorRunsTotal.WithLabelValues(t.name, "error").Inc()
		j.logger.Error("janitor task failed", zap.String("task", t.name), zap.Error(err))
		return
	}
	janitorRunsTotal.WithLabelValues(t.name, "ok").Inc()
	j.logger.Debug("janitor task finished", zap.String("task", t.name), zap.Duration("took", time.Since(start)))
}
