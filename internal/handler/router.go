package handler

import (
	"net/http"
	"runtime/debug"

	"lm-go/internal/controller"
	"lm-go/pkg/mcp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter builds the HTTP API. mcpServer may be nil when MCP is disabled.
func SetupRouter(lmController *controller.LMController, mcpServer *mcp.LMServer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/models", lmController.ListModels)
		v1.POST("/models/train", lmController.TrainModel)
		v1.GET("/models/:name", lmController.GetModel)
		v1.DELETE("/models/:name", lmController.DeleteModel)
		v1.POST("/models/:name/score", lmController.ScoreText)
		v1.POST("/models/:name/prob", lmController.CondProb)
		v1.POST("/models/:name/evaluate", lmController.EvaluateModel)
		v1.POST("/models/:name/generate", lmController.GenerateSentences)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "healthy",
			})
		})
	}

	// Setup MCP routes
	if mcpServer != nil {
		mcpServer.SetupHTTPRoutes(router)
	}

	return router
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
		)
		c.Next()
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
