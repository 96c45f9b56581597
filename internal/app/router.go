package app

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"fleet/internal/domain"
	"fleet/internal/handler"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionService  *service.SessionService
	SessionHandler  *handler.SessionHandler
	DocumentHandler *handler.DocumentHandler
	TripHandler     *handler.TripHandler
	BayHandler      *handler.BayHandler
	ExpenseHandler  *handler.ExpenseHandler
	RedisClient     *redis.Client // Optional; enables Idempotency-Key replay.
	NewRelicApp     *newrelic.Application
	Logger          *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.Authenticate(deps.SessionService, deps.Logger))
	router.Use(middleware.TransactionAttributes())
	// Login responses carry a bearer token and are never replayed.
	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, "/v1/sessions"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	anyRole := middleware.RequireRoles(domain.RoleAdmin, domain.RoleDriver, domain.RoleSupplier)
	adminOnly := middleware.RequireRoles(domain.RoleAdmin)
	dispatch := middleware.RequireRoles(domain.RoleAdmin, domain.RoleSupplier)
	driverOnly := middleware.RequireRoles(domain.RoleDriver)

	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.Login)
			sessions.DELETE("", deps.SessionHandler.Logout)
			sessions.GET("/me", anyRole, deps.SessionHandler.Me)
		}

		documents := v1.Group("/documents")
		{
			documents.GET("", anyRole, deps.DocumentHandler.ListDocuments)
			documents.POST("", adminOnly, deps.DocumentHandler.CreateDocument)
			documents.GET("/:id", anyRole, deps.DocumentHandler.GetDocument)
		}

		v1.PUT("/bays/:id/location", adminOnly, deps.BayHandler.SetLocation)

		trips := v1.Group("/trips")
		{
			trips.POST("", dispatch, deps.TripHandler.CreateTrip)
			trips.GET("", anyRole, deps.TripHandler.GetAll)
			trips.GET("/:id", anyRole, deps.TripHandler.GetTrip)

			// Dispatch signals.
			trips.POST("/:id/ready", dispatch, deps.TripHandler.MarkReady)
			trips.POST("/:id/otp", dispatch, deps.TripHandler.IssueOTP)

			// Driver flow.
			trips.POST("/:id/start", driverOnly, deps.TripHandler.StartTrip)
			trips.POST("/:id/verification/method", driverOnly, deps.TripHandler.SelectMethod)
			trips.POST("/:id/verification/otp", driverOnly, deps.TripHandler.SubmitOTP)
			trips.POST("/:id/verification/geofence", driverOnly, deps.TripHandler.VerifyGeofence)
			trips.DELETE("/:id/verification", driverOnly, deps.TripHandler.CancelVerification)
			trips.POST("/:id/end/request", driverOnly, deps.TripHandler.RequestEnd)
			trips.POST("/:id/end/confirm", driverOnly, deps.TripHandler.ConfirmEnd)
		}

		adminOrDriver := middleware.RequireRoles(domain.RoleAdmin, domain.RoleDriver)
		expenses := v1.Group("/expenses")
		{
			expenses.POST("", driverOnly, deps.ExpenseHandler.SubmitExpense)
			expenses.GET("", adminOrDriver, deps.ExpenseHandler.ListExpenses)
			expenses.GET("/:id", adminOrDriver, deps.ExpenseHandler.GetExpense)
			expenses.POST("/:id/approve", adminOnly, deps.ExpenseHandler.ApproveExpense)
			expenses.POST("/:id/reject", adminOnly, deps.ExpenseHandler.RejectExpense)
		}
	}

	return router
}
