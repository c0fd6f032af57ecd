package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/consumer/worker"
	infraPkg "github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/repository"
	"github.com/tnqbao/gau-media-service/service"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)
	svc := service.InitService(cfg.EnvConfig, infra, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orphanConsumer := worker.NewOrphanConsumer(infra.RabbitMQ.Channel, infra.Minio, repo.FileRepo, infra.Logger)
	if err := orphanConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start orphan consumer: %v", err)
		log.Fatalf("Failed to start orphan consumer: %v", err)
	}

	reconcileWorker := worker.NewReconcileWorker(svc.Reconciler, infra.Minio, svc.Reconciler.Buckets(), cfg.EnvConfig.Reconcile.Interval, infra.Logger)
	reconcileWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()
	orphanConsumer.Wait()
	reconcileWorker.Wait()

	if err := infra.Close(); err != nil {
		log.Printf("Failed to release infrastructure: %v", err)
	}
	log.Println("Consumer exited properly")
}
