package middlewares

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-media-service/config"
)

// CORSMiddleware allows the comma separated ALLOWED_DOMAINS, or every origin
// without credentials when none are configured.
func CORSMiddleware(cfg *config.EnvConfig) (gin.HandlerFunc, error) {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Timestamp"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}

	for _, domain := range strings.Split(cfg.CORS.AllowDomains, ",") {
		if domain = strings.TrimSpace(domain); domain != "" {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, domain)
		}
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowCredentials = true
	}

	if err := corsConfig.Validate(); err != nil {
		return nil, err
	}
	return cors.New(corsConfig), nil
}
