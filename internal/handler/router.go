package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/authz"
	"github.com/noah-isme/policy-docs-api/internal/middleware"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/service"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/policy-docs-api/pkg/middleware/cors"
	"github.com/noah-isme/policy-docs-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/policy-docs-api/pkg/middleware/requestid"
	securemiddleware "github.com/noah-isme/policy-docs-api/pkg/middleware/secure"
)

// EngineParams groups what every service binary needs for its HTTP stack.
type EngineParams struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Checks  map[string]ReadinessCheck
}

// NewEngine builds the gin engine with the shared middleware chain and the
// health, readiness, metrics and docs endpoints. It returns the API group.
func NewEngine(p EngineParams) (*gin.Engine, *gin.RouterGroup) {
	production := p.Config.Env == config.EnvProduction
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(p.Config.CORS.AllowedOrigins))
	r.Use(securemiddleware.New(production))
	r.Use(middleware.Metrics(p.Metrics))

	ops := NewMetricsHandler(p.Metrics, p.Checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if !production {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, r.Group(p.Config.APIPrefix)
}

// AuthRoutes holds the auth-service route dependencies.
type AuthRoutes struct {
	Handler       *AuthHandler
	Tokens        middleware.TokenValidator
	InternalToken string
	RateLimit     config.RateLimitConfig
}

// Register mounts the credential store endpoints.
func (rt AuthRoutes) Register(api *gin.RouterGroup) {
	h := rt.Handler
	limited := ratelimit.PerIP(rt.RateLimit.Requests, rt.RateLimit.Window)

	api.POST("/login", limited, h.Login)
	api.POST("/register", limited, h.Register)
	api.GET("/verify-email", h.VerifyEmail)
	api.POST("/password-reset-request", limited, h.RequestPasswordReset)
	api.POST("/reset-password", limited, h.ResetPassword)
	api.POST("/validate", h.Validate)
	api.GET("/institutions", h.Institutions)

	secured := api.Group("", middleware.JWT(rt.Tokens))
	secured.GET("/me", h.Me)
	secured.GET("/users", middleware.Authorize(authz.UserList), h.Users)

	internal := api.Group("/internal", middleware.ServiceToken(rt.InternalToken))
	internal.GET("/users", h.InternalUsers)
	internal.GET("/users/:id", h.InternalUser)
}

// DocumentRoutes holds the document-service route dependencies.
type DocumentRoutes struct {
	Documents *DocumentHandler
	Changes   *ChangeHandler
	Tokens    middleware.TokenValidator
	Audit     middleware.AuditWriter
	Logger    *zap.Logger
}

// Register mounts the document registry and change workflow endpoints.
func (rt DocumentRoutes) Register(api *gin.RouterGroup) {
	d, ch := rt.Documents, rt.Changes

	// Content accepts either a bearer token or a signed link.
	api.GET("/documents/:id/content", middleware.OptionalJWT(rt.Tokens),
		middleware.Audit(rt.Audit, rt.Logger, models.AuditActionContentView, "document"), d.Content)

	secured := api.Group("", middleware.JWT(rt.Tokens))

	docs := secured.Group("/documents")
	docs.GET("", middleware.Authorize(authz.DocumentList), d.List)
	docs.GET("/published", middleware.Authorize(authz.DocumentList), d.Published)
	docs.POST("", middleware.Authorize(authz.DocumentCreate), d.Create)
	docs.POST("/upload", middleware.Authorize(authz.DocumentCreate), d.Upload)
	docs.GET("/:id", middleware.Authorize(authz.DocumentRead), d.Get)
	docs.PUT("/:id", middleware.Authorize(authz.DocumentUpdate), d.Update)
	docs.GET("/:id/clauses", middleware.Authorize(authz.DocumentRead), d.Clauses)
	docs.GET("/:id/content-link", middleware.Authorize(authz.DocumentRead), d.ContentLink)
	docs.POST("/:id/propose-change", middleware.Authorize(authz.ChangePropose), ch.Propose)
	docs.GET("/:id/changes", middleware.Authorize(authz.ChangeList), ch.DocumentChanges)
	docs.GET("/:id/changes/export", middleware.Authorize(authz.ChangeExport), ch.Export)

	changes := secured.Group("/changes")
	changes.GET("", middleware.Authorize(authz.ChangeList), ch.List)
	changes.GET("/:id", middleware.Authorize(authz.ChangeRead), ch.Get)
	changes.PUT("/:id/review", middleware.Authorize(authz.ChangeReview), ch.Review)
	changes.PUT("/:id/verify", middleware.Authorize(authz.ChangeVerify), ch.Verify)
}

// GatewayRoutes holds the api-gateway route dependencies.
type GatewayRoutes struct {
	Handler *GatewayHandler
	Tokens  middleware.TokenValidator
}

// Register mounts the aggregate endpoints. Every route needs a valid token.
func (rt GatewayRoutes) Register(api *gin.RouterGroup) {
	h := rt.Handler
	secured := api.Group("", middleware.JWT(rt.Tokens))
	secured.GET("/users", h.Users)
	secured.GET("/documents", h.Documents)
	secured.GET("/dashboard", h.Dashboard)
	secured.POST("/revision-requests", h.RevisionRequests)
}
