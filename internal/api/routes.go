package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alcyxob/analysis-portal/internal/domain" // Needed for RoleMiddleware
	"alcyxob/analysis-portal/internal/service"
)

// Services bundles what the handlers depend on.
type Services struct {
	Auth      service.AuthService
	Uploads   *service.UploadBroker
	Downloads *service.DownloadBroker
	Requests  *service.RequestService
	Users     *service.UserService
}

func SetupRoutes(router *gin.Engine, log *zap.Logger, svc Services) {
	authHandler := NewAuthHandler(svc.Auth)
	uploadHandler := NewUploadHandler(svc.Uploads, svc.Downloads)
	requestHandler := NewRequestHandler(svc.Requests)
	userHandler := NewUserHandler(svc.Users)

	router.Use(RequestID(), RequestLogger(log))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(svc.Auth))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)

		// POST /api/v1/upload/presigned - client then PUTs straight to the store
		protected.POST("/upload/presigned", uploadHandler.PresignUpload)
		// POST /api/v1/download - by store URL or key
		protected.POST("/download", uploadHandler.DownloadByReference)

		requestGroup := protected.Group("/requests")
		{
			requestGroup.POST("", requestHandler.Create)
			requestGroup.GET("", requestHandler.List)
			requestGroup.GET("/stats", requestHandler.Stats)
			requestGroup.GET("/:id", requestHandler.Get)
			requestGroup.DELETE("/:id", requestHandler.Delete)
			requestGroup.PATCH("/:id", RoleMiddleware(domain.RoleAdmin), requestHandler.UpdateStatus)
			requestGroup.PATCH("/:id/result", RoleMiddleware(domain.RoleAdmin), requestHandler.AttachResult)
		}

		fileGroup := protected.Group("/files")
		{
			fileGroup.GET("/:id/download", uploadHandler.DownloadByFileID)
			fileGroup.POST("/:id/verify", requestHandler.VerifyFile)
			fileGroup.PATCH("/:id/result", RoleMiddleware(domain.RoleAdmin), requestHandler.AttachFileResult)
		}

		// Reviewer-only account administration
		userGroup := protected.Group("/users")
		userGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			userGroup.GET("", userHandler.List)
			userGroup.POST("", userHandler.Create)
			userGroup.PATCH("/:id", userHandler.UpdateRole)
			userGroup.DELETE("/:id", userHandler.Delete)
		}
	}
}
