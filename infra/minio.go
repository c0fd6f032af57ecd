package infra

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"golang.org/x/sync/semaphore"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/entity"
)

// MinPartSize is the part size used for uploads of unknown length.
const MinPartSize = 5 * 1024 * 1024

// S3 error codes the client reacts to.
const (
	codeNoSuchBucket        = "NoSuchBucket"
	codeNoSuchKey           = "NoSuchKey"
	codeNotFound            = "NotFound"
	codeStorageFull         = "XMinioStorageFull"
	codeBucketAlreadyOwned  = "BucketAlreadyOwnedByYou"
	codeBucketAlreadyExists = "BucketAlreadyExists"
	codeInvalidRange        = "InvalidRange"
)

// objectBackend is the subset of *minio.Client the client relies on.
type objectBackend interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

type minioBackend struct {
	*minio.Client
}

func (b minioBackend) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return b.Client.GetObject(ctx, bucket, key, opts)
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Bucket       string
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

type MinioClient struct {
	Admin *madmin.AdminClient

	backend    objectBackend
	workers    *semaphore.Weighted
	logger     *LoggerClient
	region     string
	chunkSize  int64
	retries    uint
	retryDelay time.Duration
	now        func() time.Time
}

func InitMinioClient(cfg *config.EnvConfig, logger *LoggerClient) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	transport, err := newMinioTransport(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to build MinIO transport: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:      credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure:     cfg.Minio.Secure,
		Region:     cfg.Minio.Region,
		Transport:  transport,
		MaxRetries: cfg.Minio.RetryCount,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, cfg.Minio.Secure)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}
	madminClient.SetCustomTransport(transport)

	client := newMinioClient(minioBackend{Client: minioClient}, minioClientOptions{
		workers:   cfg.Minio.Workers,
		chunkSize: cfg.Minio.ChunkSize,
		retries:   uint(cfg.Minio.RetryCount),
		region:    cfg.Minio.Region,
	}, logger)
	client.Admin = madminClient

	return client
}

type minioClientOptions struct {
	workers    int64
	chunkSize  int64
	retries    uint
	retryDelay time.Duration
	region     string
}

func newMinioClient(backend objectBackend, opts minioClientOptions, logger *LoggerClient) *MinioClient {
	if opts.workers <= 0 {
		opts.workers = 16
	}
	if opts.chunkSize <= 0 {
		opts.chunkSize = 1024 * 1024
	}
	if opts.retries == 0 {
		opts.retries = 1
	}
	if opts.retryDelay <= 0 {
		opts.retryDelay = 200 * time.Millisecond
	}

	return &MinioClient{
		backend:    backend,
		workers:    semaphore.NewWeighted(opts.workers),
		logger:     logger,
		region:     opts.region,
		chunkSize:  opts.chunkSize,
		retries:    opts.retries,
		retryDelay: opts.retryDelay,
		now:        time.Now,
	}
}

// newMinioTransport sizes the connection pool, applies the timeouts and the
// certificate policy. The CA bundle comes from SSL_CERT_FILE when set,
// otherwise the system pool is used.
func newMinioTransport(cfg *config.EnvConfig) (*http.Transport, error) {
	transport, err := minio.DefaultTransport(cfg.Minio.Secure)
	if err != nil {
		return nil, err
	}

	transport.MaxIdleConns = cfg.Minio.PoolMaxSize
	transport.MaxIdleConnsPerHost = cfg.Minio.PoolMaxSize
	transport.MaxConnsPerHost = cfg.Minio.PoolMaxSize
	transport.ResponseHeaderTimeout = cfg.Minio.Timeout
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.Minio.Timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	if cfg.Minio.Secure {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if transport.TLSClientConfig != nil {
			tlsConfig = transport.TLSClientConfig.Clone()
		}
		if cfg.Minio.CAFile != "" {
			pem, err := os.ReadFile(cfg.Minio.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA bundle: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", cfg.Minio.CAFile)
			}
			tlsConfig.RootCAs = pool
		}
		tlsConfig.InsecureSkipVerify = !cfg.Minio.CertCheck
		transport.TLSClientConfig = tlsConfig
	}

	return transport, nil
}

// run executes a blocking store call on one slot of the worker pool.
func (m *MinioClient) run(ctx context.Context, fn func() error) error {
	if err := m.workers.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire storage worker: %w", err)
	}
	defer m.workers.Release(1)
	return fn()
}

// withReadRetry retries idempotent reads on transport errors. Responses that
// carry an S3 error code are final.
func (m *MinioClient) withReadRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		func() error { return m.run(ctx, fn) },
		retry.Context(ctx),
		retry.Attempts(m.retries),
		retry.Delay(m.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransientError),
	)
}

func isTransientError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errorCode(err) == ""
}

func errorCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}

// ResolveKey returns the object name Upload would store key under right now.
func (m *MinioClient) ResolveKey(key, mimeType string) string {
	return FormatMasks(key, mimeType, m.now())
}

// Upload stores data under the resolved form of key and returns the stored key.
// A negative length selects a multipart upload. A missing bucket is created
// and the upload retried once, provided the payload can be sent again.
func (m *MinioClient) Upload(ctx context.Context, bucket, key, mimeType string, data io.Reader, objectTags map[string]string, length int64) (string, error) {
	if err := ValidateTags(objectTags); err != nil {
		return "", err
	}

	objectName := m.ResolveKey(key, mimeType)
	opts := minio.PutObjectOptions{
		ContentType: mimeType,
		UserTags:    objectTags,
	}
	if length < 0 {
		length = -1
		opts.PartSize = MinPartSize
	}

	m.logger.InfoWithContextf(ctx, "[Minio] Uploading object '%s' to bucket '%s'", objectName, bucket)

	// Seekers go to minio-go untouched so it keeps its ReaderAt fast paths.
	body := data
	counter, unseekable := &countingReader{r: data}, false
	if _, ok := data.(io.Seeker); !ok {
		body, unseekable = counter, true
	}

	info, err := m.put(ctx, bucket, objectName, body, length, opts)
	if err != nil && errorCode(err) == codeNoSuchBucket {
		m.logger.WarningWithContextf(ctx, "[Minio] Bucket '%s' not found, creating it", bucket)
		if unseekable && counter.n > 0 {
			return "", fmt.Errorf("failed to upload object: bucket %s missing and payload cannot be replayed: %w", bucket, err)
		}
		if !unseekable {
			if rewindErr := rewind(data); rewindErr != nil {
				return "", fmt.Errorf("failed to upload object: bucket %s missing and payload cannot be replayed: %w", bucket, err)
			}
		}
		if err := m.CreateBucket(ctx, bucket); err != nil {
			return "", err
		}
		m.logger.InfoWithContextf(ctx, "[Minio] Bucket '%s' created", bucket)
		info, err = m.put(ctx, bucket, objectName, body, length, opts)
	}
	if err != nil {
		if errorCode(err) == codeStorageFull {
			m.logger.ErrorWithContextf(ctx, err, "[Minio] Storage is full, upload of '%s' rejected", objectName)
			return "", fmt.Errorf("%w: %s/%s", entity.ErrStorageExhausted, bucket, objectName)
		}
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	m.logger.InfoWithContextf(ctx, "[Minio] Uploaded object '%s' to bucket '%s'", objectName, bucket)
	if info.Key != "" {
		return info.Key, nil
	}
	return objectName, nil
}

func (m *MinioClient) put(ctx context.Context, bucket, key string, data io.Reader, length int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	var info minio.UploadInfo
	err := m.run(ctx, func() error {
		var err error
		info, err = m.backend.PutObject(ctx, bucket, key, data, length, opts)
		return err
	})
	return info, err
}

// countingReader records how much of an unseekable payload was consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func rewind(data io.Reader) error {
	seeker, ok := data.(io.Seeker)
	if !ok {
		return errors.New("reader is not seekable")
	}
	_, err := seeker.Seek(0, io.SeekStart)
	return err
}

// ValidateTags checks object tags against the S3 tagging limits.
func ValidateTags(objectTags map[string]string) error {
	if len(objectTags) == 0 {
		return nil
	}
	if _, err := tags.NewTags(objectTags, true); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidTags, err)
	}
	return nil
}

// Download reads the whole object into memory.
func (m *MinioClient) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	err := m.withReadRetry(ctx, func() error {
		obj, err := m.backend.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		data, err = io.ReadAll(obj)
		return err
	})
	if err != nil {
		return nil, wrapReadError(err, "download", bucket, key)
	}
	return data, nil
}

// DownloadChunks streams the object in ranged requests of chunkSize bytes.
// The sequence is single-use. Every ranged response is closed before its
// chunk is yielded, so stopping early leaves no connection checked out.
func (m *MinioClient) DownloadChunks(ctx context.Context, bucket, key string, chunkSize int64) iter.Seq2[[]byte, error] {
	if chunkSize <= 0 {
		chunkSize = m.chunkSize
	}

	return func(yield func([]byte, error) bool) {
		info, err := m.stat(ctx, bucket, key)
		if err != nil {
			yield(nil, wrapReadError(err, "stat", bucket, key))
			return
		}

		for offset := int64(0); offset < info.Size; offset += chunkSize {
			chunk, err := m.readRange(ctx, bucket, key, offset, chunkSize)
			if err != nil {
				if errorCode(err) == codeInvalidRange {
					return
				}
				yield(nil, wrapReadError(err, "download chunk of", bucket, key))
				return
			}
			if len(chunk) > 0 && !yield(chunk, nil) {
				return
			}
			if int64(len(chunk)) < chunkSize {
				return
			}
		}
	}
}

func (m *MinioClient) readRange(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return nil, err
	}

	var chunk []byte
	err := m.withReadRetry(ctx, func() error {
		obj, err := m.backend.GetObject(ctx, bucket, key, opts)
		if err != nil {
			return err
		}
		defer obj.Close()

		chunk, err = io.ReadAll(io.LimitReader(obj, length))
		return err
	})
	return chunk, err
}

func (m *MinioClient) stat(ctx context.Context, bucket, key string) (minio.ObjectInfo, error) {
	var info minio.ObjectInfo
	err := m.withReadRetry(ctx, func() error {
		var err error
		info, err = m.backend.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		return err
	})
	return info, err
}

// Stat returns the object description or entity.ErrNotFound.
func (m *MinioClient) Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	info, err := m.stat(ctx, bucket, key)
	if err != nil {
		return nil, wrapReadError(err, "stat", bucket, key)
	}
	return &ObjectInfo{
		Bucket:       bucket,
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// Exists reports false for a missing object as well as a missing bucket.
func (m *MinioClient) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := m.stat(ctx, bucket, key)
	if err == nil {
		return true, nil
	}
	if isNotFoundCode(errorCode(err)) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check object %s/%s: %w", bucket, key, err)
}

// Delete removes an object. A missing bucket is reported as entity.ErrNotFound.
func (m *MinioClient) Delete(ctx context.Context, bucket, key string) error {
	err := m.run(ctx, func() error {
		return m.backend.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return wrapReadError(err, "delete", bucket, key)
	}
	m.logger.InfoWithContextf(ctx, "[Minio] Deleted object '%s' from bucket '%s'", key, bucket)
	return nil
}

// ListObjects lazily walks every object under prefix. It does not hold a
// worker slot between items, so callers may issue store calls while ranging.
func (m *MinioClient) ListObjects(ctx context.Context, bucket, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		objects := m.backend.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
		for obj := range objects {
			if obj.Err != nil {
				yield(ObjectInfo{}, fmt.Errorf("failed to list objects in %s: %w", bucket, obj.Err))
				return
			}
			info := ObjectInfo{
				Bucket:       bucket,
				Key:          obj.Key,
				Size:         obj.Size,
				ContentType:  obj.ContentType,
				ETag:         obj.ETag,
				LastModified: obj.LastModified,
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

// CreateBucket creates a bucket, treating an already existing one as success.
func (m *MinioClient) CreateBucket(ctx context.Context, bucketName string) error {
	if bucketName == "" {
		return fmt.Errorf("bucketName cannot be empty")
	}

	err := m.run(ctx, func() error {
		return m.backend.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: m.region})
	})
	if err != nil {
		switch errorCode(err) {
		case codeBucketAlreadyOwned, codeBucketAlreadyExists:
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// BucketExists checks if a bucket exists in MinIO
func (m *MinioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if bucketName == "" {
		return false, fmt.Errorf("bucketName cannot be empty")
	}

	var exists bool
	err := m.withReadRetry(ctx, func() error {
		var err error
		exists, err = m.backend.BucketExists(ctx, bucketName)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return exists, nil
}

// EnsureBucket creates a bucket if it doesn't exist
func (m *MinioClient) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := m.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return m.CreateBucket(ctx, bucketName)
	}
	return nil
}

func isNotFoundCode(code string) bool {
	switch code {
	case codeNoSuchKey, codeNoSuchBucket, codeNotFound:
		return true
	}
	return false
}

// wrapReadError maps missing keys and buckets to entity.ErrNotFound.
func wrapReadError(err error, op, bucket, key string) error {
	if isNotFoundCode(errorCode(err)) {
		return fmt.Errorf("%w: %s/%s", entity.ErrNotFound, bucket, key)
	}
	return fmt.Errorf("failed to %s object %s/%s: %w", op, bucket, key, err)
}
