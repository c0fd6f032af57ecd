package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-media-service/entity"
)

// CreateFileRequest is accepted as JSON, as the JSON "data" field of a
// multipart upload, or as plain multipart form fields.
type CreateFileRequest struct {
	Name          string         `json:"name" form:"name" binding:"required,max=255"`
	Path          string         `json:"path" form:"path" binding:"required,max=1024"`
	Bucket        string         `json:"bucket" form:"bucket" binding:"required,min=3,max=63"`
	Mimetype      string         `json:"mimetype" form:"mimetype" binding:"max=255"`
	Tags          map[string]any `json:"tags,omitempty" form:"-"`
	JData         map[string]any `json:"jdata,omitempty" form:"-"`
	References    *string        `json:"references,omitempty" form:"references"`
	ReferenceUUID *string        `json:"reference_uuid,omitempty" form:"reference_uuid" binding:"omitempty,uuid"`
}

func (r CreateFileRequest) ToFields() (entity.FileFields, error) {
	fields := entity.FileFields{
		Name:       r.Name,
		Path:       r.Path,
		Bucket:     r.Bucket,
		Mimetype:   r.Mimetype,
		Tags:       r.Tags,
		JData:      r.JData,
		References: r.References,
	}
	if r.ReferenceUUID != nil && *r.ReferenceUUID != "" {
		id, err := uuid.Parse(*r.ReferenceUUID)
		if err != nil {
			return entity.FileFields{}, err
		}
		fields.ReferenceUUID = &id
	}
	return fields, nil
}

type FileResponse struct {
	UUID          uuid.UUID      `json:"uuid"`
	Name          string         `json:"name"`
	Path          string         `json:"path"`
	Tags          map[string]any `json:"tags,omitempty"`
	JData         map[string]any `json:"jdata,omitempty"`
	References    *string        `json:"references,omitempty"`
	ReferenceUUID *uuid.UUID     `json:"reference_uuid,omitempty"`
	Bucket        string         `json:"bucket"`
	Mimetype      string         `json:"mimetype"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewFileResponse(file *entity.File) FileResponse {
	return FileResponse{
		UUID:          file.ID,
		Name:          file.Name,
		Path:          file.Path,
		Tags:          file.Tags,
		JData:         file.JData,
		References:    file.References,
		ReferenceUUID: file.ReferenceUUID,
		Bucket:        file.Bucket,
		Mimetype:      file.Mimetype,
		CreatedAt:     file.CreatedAt,
		UpdatedAt:     file.UpdatedAt,
	}
}

func NewFileResponses(files []entity.File) []FileResponse {
	out := make([]FileResponse, 0, len(files))
	for i := range files {
		out = append(out, NewFileResponse(&files[i]))
	}
	return out
}

type ReconcileResponse struct {
	Bucket  string                  `json:"bucket"`
	Removed []entity.OrphanedObject `json:"removed"`
}
