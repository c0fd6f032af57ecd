package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-media-service/http/controller"
	middlewares "github.com/tnqbao/gau-media-service/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	r.GET("/api/v1/media/health", ctrl.Health)

	apiRoutes := r.Group("/api/v1/media")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		fileRoutes := apiRoutes.Group("/files")
		{
			fileRoutes.GET("", ctrl.ListFiles)
			fileRoutes.POST("", ctrl.CreateFile)
			fileRoutes.GET("/:id", ctrl.GetFile)
			fileRoutes.PUT("/:id", ctrl.UpdateFile)
			fileRoutes.DELETE("/:id", ctrl.DeleteFile)
			fileRoutes.GET("/:id/content", ctrl.DownloadFileContent)
		}

		apiRoutes.POST("/reconcile", ctrl.Reconcile)
	}
	return r
}
