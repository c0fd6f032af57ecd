package controller

import (
	"context"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/service"
)

type StorageHealthChecker interface {
	StorageHealth(ctx context.Context) (*infra.StorageHealth, error)
}

type Controller struct {
	Config  *config.Config
	Infra   *infra.Infra
	Service *service.Service
	Storage StorageHealthChecker
}

func NewController(config *config.Config, infra *infra.Infra, svc *service.Service) *Controller {
	if svc == nil {
		panic("Failed to initialize Service")
	}
	ctrl := &Controller{
		Config:  config,
		Infra:   infra,
		Service: svc,
	}
	if infra.Minio != nil {
		ctrl.Storage = infra.Minio
	}
	return ctrl
}
