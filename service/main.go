package service

import (
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/repository"
)

type Service struct {
	FileService *FileService
	Reconciler  *Reconciler
}

func InitService(cfg *config.EnvConfig, infra *infra.Infra, repo *repository.Repository) *Service {
	if repo == nil {
		panic("Failed to initialize Repository")
	}

	return &Service{
		FileService: NewFileService(FileDependencies{
			Store:      infra.Minio,
			Repository: repo.FileRepo,
			Cache:      infra.Redis,
			Orphans:    infra.Produce.OrphanService,
			Logger:     infra.Logger,
			CacheTTL:   cfg.Cache.TTL,
		}),
		Reconciler: NewReconciler(ReconcileDependencies{
			Store:      infra.Minio,
			Repository: repo.FileRepo,
			Lock:       infra.Redis,
			Logger:     infra.Logger,
			Grace:      cfg.Reconcile.Grace,
			Buckets:    cfg.Reconcile.Buckets,
		}),
	}
}
