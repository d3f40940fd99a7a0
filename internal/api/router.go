package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/tally/internal/api/handler"
	"github.com/timmy/tally/internal/api/middleware"
	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/logger"
	"github.com/timmy/tally/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	uploadService *service.UploadService,
	db handler.Pinger,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(db)
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.Upload.StagingDir, cfg.Upload.MaxFileSize)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1", middleware.Actor())
	{
		// Uploads
		v1.POST("/uploads", uploadHandler.Upload)
		v1.GET("/uploads", uploadHandler.ListUploads)
		v1.GET("/uploads/:id", uploadHandler.GetStatus)
		v1.GET("/uploads/:id/errors", uploadHandler.GetErrors)

		// Templates
		v1.GET("/templates/:record_type", uploadHandler.DownloadTemplate)
	}

	return r
}
