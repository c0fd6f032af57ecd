package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
)

func newTestRepository(t *testing.T) *FileRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	client, err := infra.NewPostgresClient(db, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRepository(client.DB).FileRepo
}

func fileFields(name, path string) entity.FileFields {
	return entity.FileFields{
		Name:     name,
		Path:     path,
		Bucket:   "media",
		Mimetype: "image/png",
	}
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	repo := newTestRepository(t)

	owner := "user"
	ownerID := uuid.New()
	fields := fileFields("cat", "cats/cat.png")
	fields.Tags = map[string]any{"kind": "pet"}
	fields.References = &owner
	fields.ReferenceUUID = &ownerID

	created, err := repo.Create(context.Background(), entity.NewFile(fields))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.Before(created.CreatedAt))

	got, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cats/cat.png", got.Path)
	assert.Equal(t, "pet", got.Tags["kind"])
	assert.Empty(t, got.JData)
	require.NotNil(t, got.References)
	assert.Equal(t, "user", *got.References)
	require.NotNil(t, got.ReferenceUUID)
	assert.Equal(t, ownerID, *got.ReferenceUUID)
}

func TestCreateDuplicateBucketPath(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, entity.NewFile(fileFields("a", "same.png")))
	require.NoError(t, err)

	_, err = repo.Create(ctx, entity.NewFile(fileFields("b", "same.png")))
	assert.ErrorIs(t, err, entity.ErrAlreadyExists)

	other := fileFields("c", "same.png")
	other.Bucket = "other"
	_, err = repo.Create(ctx, entity.NewFile(other))
	assert.NoError(t, err)
}

func TestGetUnknownID(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.Get(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListOrdering(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := repo.Create(ctx, entity.NewFile(fileFields(name, fmt.Sprintf("%d.png", i))))
		require.NoError(t, err)
	}

	byName, err := repo.List(ctx, "name")
	require.NoError(t, err)
	require.Len(t, byName, 3)
	assert.Equal(t, "alpha", byName[0].Name)
	assert.Equal(t, "bravo", byName[1].Name)
	assert.Equal(t, "charlie", byName[2].Name)

	byCreated, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, byCreated, 3)
	for i := 1; i < len(byCreated); i++ {
		assert.False(t, byCreated[i].CreatedAt.Before(byCreated[i-1].CreatedAt))
	}

	byReferences, err := repo.List(ctx, "references")
	require.NoError(t, err)
	assert.Len(t, byReferences, 3)
}

func TestListRejectsUnknownField(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.List(context.Background(), "name; DROP TABLE files")

	assert.ErrorIs(t, err, entity.ErrInvalidSortField)
}

func TestUpdateReplacesFields(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	fields := fileFields("old", "old.png")
	fields.Tags = map[string]any{"a": "1"}
	created, err := repo.Create(ctx, entity.NewFile(fields))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	updated, err := repo.Update(ctx, created.ID, entity.FileFields{
		Name:     "new",
		Path:     "new.png",
		Bucket:   "media",
		Mimetype: "image/jpeg",
		JData:    map[string]any{"width": float64(640)},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "new", updated.Name)
	assert.Nil(t, updated.Tags)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got.Mimetype)
	assert.Equal(t, float64(640), got.JData["width"])
}

func TestUpdateUnknownID(t *testing.T) {
	repo := newTestRepository(t)

	updated, err := repo.Update(context.Background(), uuid.New(), fileFields("x", "x.png"))

	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestUpdateIntoExistingKey(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, entity.NewFile(fileFields("a", "a.png")))
	require.NoError(t, err)
	second, err := repo.Create(ctx, entity.NewFile(fileFields("b", "b.png")))
	require.NoError(t, err)

	_, err = repo.Update(ctx, second.ID, fileFields("b", "a.png"))
	assert.ErrorIs(t, err, entity.ErrAlreadyExists)
}

func TestDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, entity.NewFile(fileFields("a", "a.png")))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, created.ID, deleted.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	again, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestExistsByBucketAndPath(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, entity.NewFile(fileFields("a", "a.png")))
	require.NoError(t, err)

	ok, err := repo.ExistsByBucketAndPath(ctx, "media", "a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByBucketAndPath(ctx, "media", "b.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: files.bucket, files.path")))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
