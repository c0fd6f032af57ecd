package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
)

type ReconcileRunner interface {
	RunOnce(ctx context.Context, bucket string) ([]entity.OrphanedObject, error)
}

type BucketEnsurer interface {
	EnsureBucket(ctx context.Context, bucket string) error
}

// ReconcileWorker sweeps every configured bucket on a fixed interval.
type ReconcileWorker struct {
	runner   ReconcileRunner
	ensurer  BucketEnsurer
	buckets  []string
	interval time.Duration
	logger   *infra.LoggerClient
	wg       sync.WaitGroup
}

// NewReconcileWorker accepts a nil ensurer when buckets are provisioned elsewhere.
func NewReconcileWorker(runner ReconcileRunner, ensurer BucketEnsurer, buckets []string, interval time.Duration, logger *infra.LoggerClient) *ReconcileWorker {
	return &ReconcileWorker{
		runner:   runner,
		ensurer:  ensurer,
		buckets:  buckets,
		interval: interval,
		logger:   logger,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	if w.interval <= 0 || len(w.buckets) == 0 {
		w.logger.InfoWithContextf(ctx, "[Reconcile Worker] No buckets or interval configured, not scheduling sweeps")
		return
	}

	w.ensureBuckets(ctx)

	w.logger.InfoWithContextf(ctx, "[Reconcile Worker] Sweeping %v every %s", w.buckets, w.interval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.InfoWithContextf(ctx, "[Reconcile Worker] Shutting down...")
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

// Wait blocks until a sweep in progress at shutdown has finished.
func (w *ReconcileWorker) Wait() {
	w.wg.Wait()
}

// ensureBuckets creates missing buckets so the first sweep lists something.
func (w *ReconcileWorker) ensureBuckets(ctx context.Context) {
	if w.ensurer == nil {
		return
	}
	for _, bucket := range w.buckets {
		if err := w.ensurer.EnsureBucket(ctx, bucket); err != nil {
			w.logger.ErrorWithContextf(ctx, err, "[Reconcile Worker] Failed to ensure bucket %s", bucket)
		}
	}
}

// sweep returns the number of objects removed across all buckets.
func (w *ReconcileWorker) sweep(ctx context.Context) int {
	total := 0
	for _, bucket := range w.buckets {
		removed, err := w.runner.RunOnce(ctx, bucket)
		switch {
		case errors.Is(err, entity.ErrReconcileInProgress):
			w.logger.InfoWithContextf(ctx, "[Reconcile Worker] Bucket %s is being swept elsewhere", bucket)
		case err != nil:
			w.logger.ErrorWithContextf(ctx, err, "[Reconcile Worker] Sweep of %s failed", bucket)
		default:
			total += len(removed)
		}
	}
	return total
}
