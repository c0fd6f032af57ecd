package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
)

const reconcileLockTTL = 15 * time.Minute

// Lock is held under a per-run token and released only by its holder.
type Lock interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key string, value any) (bool, error)
}

type ReconcileDependencies struct {
	Store      ObjectStore
	Repository FileRepository
	Lock       Lock
	Logger     *infra.LoggerClient
	Grace      time.Duration
	Buckets    []string
}

// Reconciler deletes objects that no file record points at. Objects younger
// than the grace period are skipped since their create may still be running.
type Reconciler struct {
	store   ObjectStore
	repo    FileRepository
	lock    Lock
	logger  *infra.LoggerClient
	grace   time.Duration
	buckets []string
	now     func() time.Time
}

func NewReconciler(deps ReconcileDependencies) *Reconciler {
	if deps.Grace <= 0 {
		deps.Grace = time.Hour
	}
	return &Reconciler{
		store:   deps.Store,
		repo:    deps.Repository,
		lock:    deps.Lock,
		logger:  deps.Logger,
		grace:   deps.Grace,
		buckets: deps.Buckets,
		now:     time.Now,
	}
}

func (r *Reconciler) Buckets() []string {
	return r.buckets
}

// RunOnce sweeps one bucket and returns the objects it removed.
func (r *Reconciler) RunOnce(ctx context.Context, bucket string) ([]entity.OrphanedObject, error) {
	if r.lock != nil {
		lockKey := "reconcile:lock:" + bucket
		token := uuid.NewString()
		acquired, err := r.lock.SetNX(ctx, lockKey, token, reconcileLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire reconcile lock: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("%w: %s", entity.ErrReconcileInProgress, bucket)
		}
		defer func() {
			released, err := r.lock.DeleteIfValue(context.WithoutCancel(ctx), lockKey, token)
			switch {
			case err != nil:
				r.logger.WarningWithContextf(ctx, "[Reconcile] Failed to release lock for bucket '%s': %v", bucket, err)
			case !released:
				r.logger.WarningWithContextf(ctx, "[Reconcile] Lock for bucket '%s' expired during the sweep", bucket)
			}
		}()
	}

	r.logger.InfoWithContextf(ctx, "[Reconcile] Sweeping bucket '%s'", bucket)

	cutoff := r.now().Add(-r.grace)
	var removed []entity.OrphanedObject
	for obj, err := range r.store.ListObjects(ctx, bucket, "") {
		if err != nil {
			return removed, err
		}
		if obj.LastModified.After(cutoff) {
			continue
		}

		exists, err := r.repo.ExistsByBucketAndPath(ctx, bucket, obj.Key)
		if err != nil {
			return removed, err
		}
		if exists {
			continue
		}

		if err := r.store.Delete(ctx, bucket, obj.Key); err != nil {
			r.logger.ErrorWithContextf(ctx, err, "[Reconcile] Failed to delete orphaned object '%s/%s'", bucket, obj.Key)
			continue
		}
		removed = append(removed, entity.OrphanedObject{
			Bucket: bucket,
			Key:    obj.Key,
			Reason: "no file record",
		})
	}

	r.logger.InfoWithContextf(ctx, "[Reconcile] Removed %d orphaned objects from bucket '%s'", len(removed), bucket)
	return removed, nil
}
