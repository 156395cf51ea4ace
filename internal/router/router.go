package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/budget"
	"github.com/matthew-heyner/family-finance/internal/config"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/handler"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// Deps is everything the HTTP layer needs. Aggregator, Events and Limiter
// are built from the rest when nil. The caller owns Limiter and must Stop
// it; a limiter built here lives as long as the process.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Auth       *auth.Service
	Aggregator *budget.Aggregator
	Events     events.Publisher
	Logger     *log.Logger
	Limiter    *middleware.Limiter
}

// SetupRouter builds the gin engine with the API routes.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Aggregator == nil {
		d.Aggregator = budget.NewAggregator(d.DB, d.Logger)
	}
	if d.Limiter == nil {
		d.Limiter = middleware.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	showStack := cfg.Server.Mode == gin.DebugMode
	key := util.DeriveKey(cfg.Security.EncryptionKey)
	pageSize, maxPageSize := cfg.App.PageSize, cfg.App.MaxPageSize

	r := gin.New()
	r.Use(
		middleware.Recovery(d.Logger, showStack),
		middleware.RequestLogger(d.Logger),
		middleware.SecurityHeaders(middleware.DefaultHeadersConfig()),
		middleware.ErrorHandler(d.Logger, showStack),
		middleware.RateLimit(d.Limiter, d.Logger),
	)
	r.NoRoute(middleware.NotFound())

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			d.Logger.ErrorContext(c.Request.Context(), "health check failed", log.FieldError, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "data": gin.H{"status": "unavailable"}})
			return
		}
		util.Success(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	session := []gin.HandlerFunc{
		middleware.Authenticate(d.Auth, cfg.JWT.CookieName),
		middleware.Audit(d.DB, key, d.Logger),
	}

	// ====== auth ======
	authHandler := handler.NewAuthHandler(d.Auth, cfg.JWT.CookieName, cfg.Server.CookieSecure)
	authPublic := api.Group("/auth")
	authPublic.POST("/register", authHandler.Register)
	authPublic.POST("/login", authHandler.Login)
	authPublic.POST("/forgotpassword", authHandler.ForgotPassword)
	authPublic.PUT("/resetpassword/:token", authHandler.ResetPassword)
	authPublic.GET("/verifyemail/:token", authHandler.VerifyEmail)

	authSession := api.Group("/auth", session...)
	authSession.GET("/logout", authHandler.Logout)
	authSession.GET("/me", authHandler.Me)
	authSession.PUT("/updatedetails", authHandler.UpdateDetails)
	authSession.PUT("/updatepassword", authHandler.UpdatePassword)

	// ====== users (family admins) ======
	userHandler := handler.NewUserHandler(d.DB, d.Auth, pageSize, maxPageSize)
	users := api.Group("/users", session...)
	users.Use(middleware.RequireRole(models.RoleAdmin), middleware.RequireFamily())
	users.GET("", userHandler.ListUsers)
	users.POST("", userHandler.CreateUser)
	users.GET("/:id", userHandler.GetUser)
	users.PUT("/:id", userHandler.UpdateUser)
	users.DELETE("/:id", userHandler.DeleteUser)

	// ====== families ======
	familyHandler := handler.NewFamilyHandler(d.DB, d.Events)
	families := api.Group("/families", session...)
	families.POST("", familyHandler.CreateFamily)
	families.GET("/me", familyHandler.GetFamily)
	families.PUT("/me", familyHandler.UpdateFamily)
	families.POST("/me/members", familyHandler.AddMember)
	families.DELETE("/me/members/:userId", familyHandler.RemoveMember)

	// ====== categories ======
	categoryHandler := handler.NewCategoryHandler(d.DB)
	categories := api.Group("/categories", session...)
	categories.GET("", categoryHandler.ListCategories)
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	// everything below is family data
	family := api.Group("", session...)
	family.Use(middleware.RequireFamily())

	txHandler := handler.NewTransactionHandler(d.DB, d.Events, pageSize, maxPageSize)
	family.GET("/transactions", txHandler.ListTransactions)
	family.POST("/transactions", txHandler.CreateTransaction)
	family.GET("/transactions/:id", txHandler.GetTransaction)
	family.PUT("/transactions/:id", txHandler.UpdateTransaction)
	family.DELETE("/transactions/:id", txHandler.DeleteTransaction)

	budgetHandler := handler.NewBudgetHandler(d.DB, d.Aggregator, d.Events, pageSize, maxPageSize)
	family.GET("/budgets", budgetHandler.ListBudgets)
	family.POST("/budgets", budgetHandler.CreateBudget)
	family.GET("/budgets/:id", budgetHandler.GetBudget)
	family.PUT("/budgets/:id", budgetHandler.UpdateBudget)
	family.DELETE("/budgets/:id", budgetHandler.DeleteBudget)

	receiptHandler := handler.NewReceiptHandler(d.DB, key, cfg.Receipts.Dir, cfg.Receipts.MaxUploadMB, pageSize, maxPageSize)
	family.GET("/receipts", receiptHandler.ListReceipts)
	family.POST("/receipts", receiptHandler.UploadReceipt)
	family.GET("/receipts/:id", receiptHandler.GetReceipt)
	family.GET("/receipts/:id/file", receiptHandler.DownloadReceipt)
	family.PUT("/receipts/:id", receiptHandler.UpdateReceipt)
	family.DELETE("/receipts/:id", receiptHandler.DeleteReceipt)

	recurringHandler := handler.NewRecurringHandler(d.DB, pageSize, maxPageSize)
	family.GET("/recurring", recurringHandler.ListRecurring)
	family.POST("/recurring", recurringHandler.CreateRecurring)
	family.GET("/recurring/:id", recurringHandler.GetRecurring)
	family.PUT("/recurring/:id", recurringHandler.UpdateRecurring)
	family.DELETE("/recurring/:id", recurringHandler.DeleteRecurring)

	reportHandler := handler.NewReportHandler(d.DB)
	family.GET("/reports/summary", reportHandler.Summary)
	family.GET("/reports/export", reportHandler.Export)

	auditHandler := handler.NewAuditHandler(d.DB, key, pageSize, maxPageSize)
	family.GET("/audit-logs", middleware.RequireRole(models.RoleAdmin), auditHandler.ListAuditLogs)

	return r
}
