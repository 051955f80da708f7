package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jobproc/jobproc/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "jobproc-api",
		})
	})

	authHandler := handler.NewAuthHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	dashboardHandler := handler.NewDashboardHandler(deps)

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/validate-token", authHandler.ValidateToken)
		authRoutes.GET("/profile", RequireAuth(deps.Tokens), authHandler.Profile)
	}

	jobRoutes := r.Group("/jobs")
	{
		jobRoutes.POST("/email", jobHandler.SubmitEmail)
		jobRoutes.POST("/email/schedule", jobHandler.ScheduleEmail)
		jobRoutes.POST("/report", jobHandler.SubmitReport)
		jobRoutes.POST("/report/schedule", jobHandler.ScheduleReport)
		jobRoutes.GET("/status/:job_id", jobHandler.Status)
		jobRoutes.DELETE("/:job_id", jobHandler.Cancel)
	}

	// The dashboard gate re-verifies the token on every request and is
	// deliberately independent of RequireAuth.
	dashboardRoutes := r.Group("/dashboard", DashboardGate(deps.Tokens, deps.Logger))
	{
		dashboardRoutes.GET("/stats", dashboardHandler.Stats)
		dashboardRoutes.GET("/jobs", dashboardHandler.Jobs)
		dashboardRoutes.GET("/recurring", dashboardHandler.Recurring)
	}

	return r
}
