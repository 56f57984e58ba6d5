package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/rehearsalhub/internal/http/handlers"
	"github.com/geocoder89/rehearsalhub/internal/http/middlewares"
	"github.com/geocoder89/rehearsalhub/internal/observability"
	"github.com/geocoder89/rehearsalhub/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type RouterDeps struct {
	Env         string
	ServiceName string
	Log         *slog.Logger

	Accounts handlers.AccountService
	Tokens   middlewares.TokenVerifier
	Ping     func(context.Context) error // optional, backs /readyz
	Draining func() bool                 // optional, reports shutdown in progress

	Prom     *observability.Prom // optional
	Gatherer prometheus.Gatherer // optional, serves /metrics

	RateStore      ratelimit.Store // optional, defaults to in-memory
	AuthRateLimit  int
	AuthRateWindow time.Duration
	AllowedOrigins []string
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ServiceName == "" {
		d.ServiceName = "rehearsalhub-api"
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.ServiceName))
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(d.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Ping, d.Draining)
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	store := d.RateStore
	if store == nil {
		store = ratelimit.NewMemoryStore()
	}
	limit := d.AuthRateLimit
	if limit <= 0 {
		limit = 20
	}
	window := d.AuthRateWindow
	if window <= 0 {
		window = time.Minute
	}
	authLimiter := middlewares.NewRateLimiter(store, limit, window, d.Log)

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	authHandler := handlers.NewAuthHandler(d.Accounts, d.Log)

	api := r.Group("/api/auth")
	{
		credentials := api.Group("", authLimiter.RateLimiterMiddleware("auth", middlewares.KeyByIP))
		credentials.POST("/register", authHandler.Register)
		credentials.POST("/login", authHandler.Login)
		credentials.POST("/forgot-password", authHandler.ForgotPassword)
		credentials.POST("/reset-password", authHandler.ResetPassword)

		api.POST("/refresh-token", authHandler.RefreshToken)
		api.GET("/verify-email/:token", authHandler.VerifyEmail)
		api.GET("/me", authMW.RequireAuth(), authHandler.Me)
	}

	return r
}
