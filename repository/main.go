package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-media-service/infra"
)

type Repository struct {
	FileRepo *FileRepository
}

func InitRepository(infra *infra.Infra) *Repository {
	return NewRepository(infra.Postgres.DB)
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		FileRepo: NewFileRepository(db),
	}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
