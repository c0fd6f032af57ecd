package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tnqbao/gau-media-service/entity"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Get returns nil, nil when no record has the id.
func (r *FileRepository) Get(ctx context.Context, id uuid.UUID) (*entity.File, error) {
	var file entity.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	return &file, nil
}

// List returns every record ascending by orderBy, ties broken by id.
func (r *FileRepository) List(ctx context.Context, orderBy string) ([]entity.File, error) {
	if orderBy == "" {
		orderBy = entity.DefaultSortField
	}
	column, ok := entity.SortableFields[orderBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidSortField, orderBy)
	}

	var files []entity.File
	err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (r *FileRepository) Create(ctx context.Context, file *entity.File) (*entity.File, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(file).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s", entity.ErrAlreadyExists, file.Bucket, file.Path)
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// Update replaces every mutable attribute. It returns nil, nil when no record
// has the id.
func (r *FileRepository) Update(ctx context.Context, id uuid.UUID, fields entity.FileFields) (*entity.File, error) {
	var updated *entity.File
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file entity.File
		if err := tx.Where("id = ?", id).First(&file).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		file.Apply(fields)
		if err := tx.Save(&file).Error; err != nil {
			return err
		}
		updated = &file
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s", entity.ErrAlreadyExists, fields.Bucket, fields.Path)
		}
		return nil, fmt.Errorf("failed to update file %s: %w", id, err)
	}
	return updated, nil
}

// Delete returns the removed record, or nil, nil when no record has the id.
func (r *FileRepository) Delete(ctx context.Context, id uuid.UUID) (*entity.File, error) {
	var deleted *entity.File
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file entity.File
		if err := tx.Where("id = ?", id).First(&file).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Delete(&file).Error; err != nil {
			return err
		}
		deleted = &file
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return deleted, nil
}

func (r *FileRepository) ExistsByBucketAndPath(ctx context.Context, bucket, path string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.File{}).
		Where("bucket = ? AND path = ?", bucket, path).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
