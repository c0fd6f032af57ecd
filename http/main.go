package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/http/controller"
	routes "github.com/tnqbao/gau-media-service/http/route"
	infraPkg "github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/repository"
	"github.com/tnqbao/gau-media-service/service"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)
	svc := service.InitService(cfg.EnvConfig, infra, repo)

	ctrl := controller.NewController(cfg, infra, svc)
	router := routes.SetupRouter(ctrl)

	server := &http.Server{
		Addr:    ":" + cfg.EnvConfig.HTTPPort,
		Handler: router,
	}

	ctx := context.Background()
	go func() {
		infra.Logger.InfoWithContextf(ctx, "HTTP Server started on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Server forced to shutdown")
	}

	if err := infra.Close(); err != nil {
		log.Printf("Failed to release infrastructure: %v", err)
	}
	log.Println("Server exited properly")
}
