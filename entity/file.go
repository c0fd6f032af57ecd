package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// File is the persisted metadata of one stored object. The object itself lives
// at Bucket/Path in the object store.
type File struct {
	ID            uuid.UUID         `json:"uuid" gorm:"type:uuid;primaryKey"`
	Name          string            `json:"name" gorm:"type:text;not null"`
	Path          string            `json:"path" gorm:"type:text;not null;uniqueIndex:idx_files_bucket_path"`
	Bucket        string            `json:"bucket" gorm:"type:text;not null;uniqueIndex:idx_files_bucket_path"`
	Mimetype      string            `json:"mimetype" gorm:"type:text;not null"`
	Tags          datatypes.JSONMap `json:"tags,omitempty" gorm:"type:jsonb"`
	JData         datatypes.JSONMap `json:"jdata,omitempty" gorm:"column:jdata;type:jsonb;default:'{}'"`
	References    *string           `json:"references,omitempty" gorm:"type:text;index"`
	ReferenceUUID *uuid.UUID        `json:"reference_uuid,omitempty" gorm:"type:uuid;index"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null;autoUpdateTime"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.JData == nil {
		f.JData = datatypes.JSONMap{}
	}
	return nil
}

// FileFields holds the caller-supplied, mutable attributes of a File.
type FileFields struct {
	Name          string
	Path          string
	Bucket        string
	Mimetype      string
	Tags          map[string]any
	JData         map[string]any
	References    *string
	ReferenceUUID *uuid.UUID
}

// NewFile builds an unsaved File from fields.
func NewFile(fields FileFields) *File {
	file := &File{}
	file.Apply(fields)
	return file
}

// Apply overwrites every mutable attribute of f with fields.
func (f *File) Apply(fields FileFields) {
	f.Name = fields.Name
	f.Path = fields.Path
	f.Bucket = fields.Bucket
	f.Mimetype = fields.Mimetype
	f.Tags = toJSONMap(fields.Tags)
	f.JData = toJSONMap(fields.JData)
	if f.JData == nil {
		f.JData = datatypes.JSONMap{}
	}
	f.References = fields.References
	f.ReferenceUUID = fields.ReferenceUUID
}

func toJSONMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	return datatypes.JSONMap(m)
}

// SortableFields maps the accepted list order keys to their column names.
var SortableFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
	"path":       "path",
	"bucket":     "bucket",
	"mimetype":   "mimetype",
	"references": "references",
}

const DefaultSortField = "created_at"
