package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/openmassage/booking-api/internal/handler"
	authhandler "github.com/openmassage/booking-api/internal/handler/auth"
	bookinghandler "github.com/openmassage/booking-api/internal/handler/booking"
	cataloghandler "github.com/openmassage/booking-api/internal/handler/catalog"
	userhandler "github.com/openmassage/booking-api/internal/handler/user"
	"github.com/openmassage/booking-api/internal/middleware"
)

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    *authhandler.Handler
	userH    *userhandler.Handler
	catalogH *cataloghandler.Handler
	bookingH *bookinghandler.Handler
	healthH  *handler.HealthHandler
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	Timeout    time.Duration
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH *authhandler.Handler,
	userH *userhandler.Handler,
	catalogH *cataloghandler.Handler,
	bookingH *bookinghandler.Handler,
	healthH *handler.HealthHandler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators(middleware.ValidationConfig{})

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		authH:    authH,
		userH:    userH,
		catalogH: catalogH,
		bookingH: bookingH,
		healthH:  healthH,
	}

	engine.Use(
		gin.Recovery(),
		middleware.Logger(),
		middleware.RequestID(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)

	// Public routes
	r.authH.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.userH.RegisterRoutes(protected)
	r.catalogH.RegisterRoutes(protected, r.auth)
	r.bookingH.RegisterRoutes(protected, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
