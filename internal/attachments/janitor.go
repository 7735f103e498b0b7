package attachments

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Janitor removes orphaned attachment objects in the background after their
// stage or video has been deleted.
type Janitor struct {
	objects ObjectStorage
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan []string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var errJanitorClosed = errors.New("attachment janitor closed")

// NewJanitor starts the worker pool.
func NewJanitor(objects ObjectStorage, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Janitor{
		objects: objects,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan []string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}
	return j
}

// Enqueue schedules removal of keys. It fails instead of blocking when the
// janitor is closed or ctx ends first.
func (j *Janitor) Enqueue(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	batch := append([]string(nil), keys...)

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return errJanitorClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.ctx.Done():
		return errJanitorClosed
	case j.jobs <- batch:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued batches to drain.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.once.Do(func() {
		j.cancel()
		j.mu.Lock()
		j.closed = true
		close(j.jobs)
		j.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()

	for batch := range j.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		removeObjects(ctx, j.objects, batch, j.logger)
		cancel()
	}
}
