package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/infra/produce"
)

const instrumentationName = "github.com/tnqbao/gau-media-service/service"

type ObjectStore interface {
	ResolveKey(key, mimeType string) string
	Upload(ctx context.Context, bucket, key, mimeType string, data io.Reader, tags map[string]string, length int64) (string, error)
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	DownloadChunks(ctx context.Context, bucket, key string, chunkSize int64) iter.Seq2[[]byte, error]
	Stat(ctx context.Context, bucket, key string) (*infra.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) iter.Seq2[infra.ObjectInfo, error]
}

type FileRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.File, error)
	List(ctx context.Context, orderBy string) ([]entity.File, error)
	Create(ctx context.Context, file *entity.File) (*entity.File, error)
	Update(ctx context.Context, id uuid.UUID, fields entity.FileFields) (*entity.File, error)
	Delete(ctx context.Context, id uuid.UUID) (*entity.File, error)
	ExistsByBucketAndPath(ctx context.Context, bucket, path string) (bool, error)
}

// Cache writes are fenced by a version counter that invalidation bumps.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Version(ctx context.Context, versionKey string) (int64, error)
	SetIfVersion(ctx context.Context, key, versionKey string, version int64, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key, versionKey string) error
}

type OrphanPublisher interface {
	PublishOrphanObject(ctx context.Context, msg produce.OrphanObjectMessage) error
}

// FileDependencies wires a FileService. Cache and Orphans are optional.
type FileDependencies struct {
	Store      ObjectStore
	Repository FileRepository
	Cache      Cache
	Orphans    OrphanPublisher
	Logger     *infra.LoggerClient
	CacheTTL   time.Duration
}

type FileService struct {
	store    ObjectStore
	repo     FileRepository
	cache    Cache
	orphans  OrphanPublisher
	logger   *infra.LoggerClient
	cacheTTL time.Duration

	tracer          trace.Tracer
	filesCreated    metric.Int64Counter
	objectsOrphaned metric.Int64Counter
}

func NewFileService(deps FileDependencies) *FileService {
	if deps.Store == nil || deps.Repository == nil || deps.Logger == nil {
		panic("FileService requires a store, a repository and a logger")
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 5 * time.Minute
	}

	meter := otel.Meter(instrumentationName)
	filesCreated, err := meter.Int64Counter("media.files.created",
		metric.WithDescription("File records created"))
	if err != nil {
		deps.Logger.ErrorWithContextf(context.Background(), err, "[File Service] Failed to create files counter")
		filesCreated = noop.Int64Counter{}
	}
	objectsOrphaned, err := meter.Int64Counter("media.objects.orphaned",
		metric.WithDescription("Uploaded objects left without a file record"))
	if err != nil {
		deps.Logger.ErrorWithContextf(context.Background(), err, "[File Service] Failed to create orphan counter")
		objectsOrphaned = noop.Int64Counter{}
	}

	return &FileService{
		store:           deps.Store,
		repo:            deps.Repository,
		cache:           deps.Cache,
		orphans:         deps.Orphans,
		logger:          deps.Logger,
		cacheTTL:        deps.CacheTTL,
		tracer:          otel.Tracer(instrumentationName),
		filesCreated:    filesCreated,
		objectsOrphaned: objectsOrphaned,
	}
}

func cacheKey(id uuid.UUID) string {
	return "file:" + id.String()
}

func cacheVersionKey(id uuid.UUID) string {
	return cacheKey(id) + ":version"
}

// FileContent is a record together with a single-use stream over its object.
type FileContent struct {
	File   *entity.File
	Size   int64
	Chunks iter.Seq2[[]byte, error]
}

// Get returns nil, nil when no record has the id. The version is read before
// the database so an Update or Delete landing in between voids the cache write.
func (s *FileService) Get(ctx context.Context, id uuid.UUID) (*entity.File, error) {
	key, versionKey := cacheKey(id), cacheVersionKey(id)
	cacheable := false
	var version int64
	if s.cache != nil {
		var cached entity.File
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, infra.ErrCacheMiss) {
			s.logger.WarningWithContextf(ctx, "[File Service] Cache read for %s failed: %v", key, err)
		}
		if version, err = s.cache.Version(ctx, versionKey); err == nil {
			cacheable = true
		}
	}

	file, err := s.repo.Get(ctx, id)
	if err != nil || file == nil {
		return file, err
	}

	if cacheable {
		written, err := s.cache.SetIfVersion(ctx, key, versionKey, version, file, s.cacheTTL)
		switch {
		case err != nil:
			s.logger.WarningWithContextf(ctx, "[File Service] Cache write for %s failed: %v", key, err)
		case !written:
			s.logger.DebugWithContextf(ctx, "[File Service] %s changed while loading, not cached", key)
		}
	}
	return file, nil
}

func (s *FileService) List(ctx context.Context, orderBy string) ([]entity.File, error) {
	return s.repo.List(ctx, orderBy)
}

// Create uploads data first and then persists the record with the stored key
// as its path. A key already owned by a record is rejected before anything is
// written. When the insert fails for any reason other than a key conflict the
// uploaded object is removed, or queued for removal.
//
// Two creates racing for the same free key both upload; the loser's payload
// may replace the winner's object before its insert fails.
func (s *FileService) Create(ctx context.Context, fields entity.FileFields, data io.Reader, length int64) (*entity.File, error) {
	ctx, span := s.tracer.Start(ctx, "FileService.Create", trace.WithAttributes(
		attribute.String("media.bucket", fields.Bucket),
		attribute.String("media.mimetype", fields.Mimetype),
	))
	defer span.End()

	resolved := s.store.ResolveKey(fields.Path, fields.Mimetype)
	exists, err := s.repo.ExistsByBucketAndPath(ctx, fields.Bucket, resolved)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check existing record: %w", err)
	}
	if exists {
		s.logger.WarningWithContextf(ctx, "[File Service] '%s/%s' is already taken, upload skipped", fields.Bucket, resolved)
		return nil, fmt.Errorf("%w: %s/%s", entity.ErrAlreadyExists, fields.Bucket, resolved)
	}

	storedKey, err := s.store.Upload(ctx, fields.Bucket, fields.Path, fields.Mimetype, data, objectTags(fields.Tags), length)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		s.logger.ErrorWithContextf(ctx, err, "[File Service] Failed to upload '%s' to bucket '%s'", fields.Path, fields.Bucket)
		return nil, err
	}
	span.SetAttributes(attribute.String("media.key", storedKey))

	fields.Path = storedKey
	file, err := s.repo.Create(ctx, entity.NewFile(fields))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, s.handleFailedInsert(ctx, fields.Bucket, storedKey, err)
	}

	s.filesCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", fields.Bucket)))
	s.logger.InfoWithContextf(ctx, "[File Service] Created file %s at '%s/%s'", file.ID, file.Bucket, file.Path)
	return file, nil
}

func (s *FileService) handleFailedInsert(ctx context.Context, bucket, key string, insertErr error) error {
	if errors.Is(insertErr, entity.ErrAlreadyExists) {
		s.objectsOrphaned.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "conflict")))
		s.logger.WarningWithContextf(ctx, "[File Service] Object '%s/%s' was claimed by a concurrent create", bucket, key)
		return insertErr
	}

	s.objectsOrphaned.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "insert_failed")))
	s.logger.ErrorWithContextf(ctx, insertErr, "[File Service] Failed to persist '%s/%s', removing uploaded object", bucket, key)

	cleanupCtx := context.WithoutCancel(ctx)
	deleteErr := s.store.Delete(cleanupCtx, bucket, key)
	if deleteErr == nil {
		return insertErr
	}
	s.logger.ErrorWithContextf(ctx, deleteErr, "[File Service] Failed to remove orphaned object '%s/%s'", bucket, key)

	cleanupErr := fmt.Errorf("failed to remove orphaned object %s/%s: %w", bucket, key, deleteErr)
	if s.orphans != nil {
		pubErr := s.orphans.PublishOrphanObject(cleanupCtx, produce.OrphanObjectMessage{
			BucketName: bucket,
			ObjectPath: key,
			Reason:     insertErr.Error(),
		})
		if pubErr != nil {
			s.logger.ErrorWithContextf(ctx, pubErr, "[File Service] Failed to queue orphaned object '%s/%s'", bucket, key)
			cleanupErr = errors.Join(cleanupErr, fmt.Errorf("failed to queue orphaned object: %w", pubErr))
		} else {
			s.logger.InfoWithContextf(ctx, "[File Service] Queued orphaned object '%s/%s' for deletion", bucket, key)
		}
	}

	return errors.Join(insertErr, cleanupErr)
}

// Update replaces the record metadata. The stored object is left in place.
func (s *FileService) Update(ctx context.Context, id uuid.UUID, fields entity.FileFields) (*entity.File, error) {
	file, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return file, nil
}

// Delete removes the record only. The object is reclaimed by the
// reconciliation sweep.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) (*entity.File, error) {
	file, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return file, nil
}

func (s *FileService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheKey(id), cacheVersionKey(id)); err != nil {
		s.logger.WarningWithContextf(ctx, "[File Service] Cache invalidation for %s failed: %v", id, err)
	}
}

// Download returns the record and its whole object.
func (s *FileService) Download(ctx context.Context, id uuid.UUID) (*entity.File, []byte, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, fmt.Errorf("%w: %s", entity.ErrNotFound, id)
	}

	data, err := s.store.Download(ctx, file.Bucket, file.Path)
	if err != nil {
		return nil, nil, err
	}
	return file, data, nil
}

// DownloadChunks stats the object up front so a missing object is reported
// before any byte is streamed.
func (s *FileService) DownloadChunks(ctx context.Context, id uuid.UUID, chunkSize int64) (*FileContent, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, id)
	}

	info, err := s.store.Stat(ctx, file.Bucket, file.Path)
	if err != nil {
		return nil, err
	}
	return &FileContent{
		File:   file,
		Size:   info.Size,
		Chunks: s.store.DownloadChunks(ctx, file.Bucket, file.Path, chunkSize),
	}, nil
}

func objectTags(tags map[string]any) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = fmt.Sprint(v)
	}
	return out
}
