// Package downloader saves pin images concurrently. Workers share one
// fetcher, whose limiter paces requests, and one storage manager, which
// skips pins already on disk.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pinrunner/pkg/logger"
	"pinrunner/pkg/media"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/models"
)

// ErrPoolClosed is returned by Submit after Stop or cancellation
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Job is one pin image to save
type Job struct {
	Pin models.Pin
}

// Result is the outcome of one job
type Result struct {
	Job      Job
	Path     string
	Skipped  bool
	Err      error
	Duration time.Duration
	Size     int
}

// Summary totals a run
type Summary struct {
	Saved   int
	Skipped int
	Failed  int
	Bytes   int64
	Errors  []error
}

// ImageFetcher downloads one image
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*media.Image, error)
}

// ImageStorage persists images by pin ID
type ImageStorage interface {
	IsSaved(pinID string) bool
	SaveImage(pinID, ext string, data []byte) (string, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	fetcher    ImageFetcher
	storage    ImageStorage
	metrics    *metrics.Recorder
	log        logger.Logger
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithMetrics counts saved, skipped and failed images
func WithMetrics(m *metrics.Recorder) Option {
	return func(wp *WorkerPool) { wp.metrics = m }
}

// NewWorkerPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewWorkerPool(ctx context.Context, numWorkers int, fetcher ImageFetcher, storage ImageStorage, log logger.Logger, opts ...Option) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	wp := &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numWorkers*2),
		results:    make(chan Result, numWorkers),
		ctx:        ctx,
		cancel:     cancel,
		fetcher:    fetcher,
		storage:    storage,
		log:        logger.Component(log, "downloader"),
	}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.log.InfoWithFields("starting worker pool", map[string]interface{}{"num_workers": wp.numWorkers})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs, waits for queued ones and closes Results.
// It is safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobs)
		wp.wg.Wait()
		close(wp.results)
		wp.cancel()
		wp.log.Debug("worker pool stopped")
	})
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return ErrPoolClosed
	default:
	}
	select {
	case wp.jobs <- job:
		return nil
	case <-wp.ctx.Done():
		return ErrPoolClosed
	}
}

// Results delivers one Result per processed job
func (wp *WorkerPool) Results() <-chan Result {
	return wp.results
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		if wp.ctx.Err() != nil {
			// drain without work so Stop does not block
			continue
		}
		result := wp.process(job, id)
		select {
		case wp.results <- result:
		case <-wp.ctx.Done():
		}
	}
}

func (wp *WorkerPool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}
	pin := job.Pin
	fields := map[string]interface{}{"worker_id": workerID, "pin": pin.Key()}

	defer func() { result.Duration = time.Since(start) }()

	if wp.storage.IsSaved(pin.StorageID()) {
		result.Skipped = true
		wp.metrics.Download("skipped")
		wp.log.DebugWithFields("image already saved", fields)
		return result
	}
	if pin.ImageURL == "" {
		result.Err = fmt.Errorf("pin %s has no image URL", pin.Key())
		wp.metrics.Download("failed")
		return result
	}

	img, err := wp.fetcher.Fetch(wp.ctx, pin.ImageURL)
	if err != nil {
		result.Err = fmt.Errorf("download failed: %w", err)
		wp.log.WithError(err).WarnWithFields("image download failed", fields)
		return result
	}
	result.Size = len(img.Data)

	path, err := wp.storage.SaveImage(pin.StorageID(), img.Ext(), img.Data)
	if err != nil {
		result.Err = fmt.Errorf("save failed: %w", err)
		wp.metrics.Download("save_failed")
		wp.log.WithError(err).ErrorWithFields("image save failed", fields)
		return result
	}
	result.Path = path
	wp.metrics.Download("saved")

	fields["size"] = result.Size
	fields["path"] = path
	wp.log.DebugWithFields("image saved", fields)
	return result
}

// QueueSize is the number of jobs waiting
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobs)
}

// Download runs pins through a fresh pool and totals the results
func Download(ctx context.Context, pins []models.Pin, workers int, fetcher ImageFetcher, storage ImageStorage, log logger.Logger, opts ...Option) Summary {
	pool := NewWorkerPool(ctx, workers, fetcher, storage, log, opts...)
	pool.Start()

	var summary Summary
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			switch {
			case r.Err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Errorf("pin %s: %w", r.Job.Pin.Key(), r.Err))
			case r.Skipped:
				summary.Skipped++
			default:
				summary.Saved++
				summary.Bytes += int64(r.Size)
			}
		}
	}()

	for _, pin := range pins {
		if err := pool.Submit(Job{Pin: pin}); err != nil {
			break
		}
	}
	pool.Stop()
	<-done
	return summary
}
