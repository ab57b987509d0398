package http

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/murmur/internal/ws"
)

// --- Configuration Constants ---
const (
	writeRateLimit = rate.Limit(2) // two writes per second per IP
	writeBurst     = 10
	publicDir      = "./public"
)

// NewWriteLimiter returns the limiter applied to POST endpoints.
func NewWriteLimiter() *IPRateLimiter {
	return NewIPRateLimiter(writeRateLimit, writeBurst)
}

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, limiter *IPRateLimiter, corsOrigin string) {

	// --- Middleware ---
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: corsOrigin != "*",
	}))
	router.Use(IdentityMiddleware(env.Sessions))

	// --- API Routes ---
	write := RateLimitMiddleware(limiter)
	api := router.Group("/api")
	{
		api.POST("/login", write, env.Login)
		api.POST("/logout", env.Logout)
		api.GET("/user", env.CurrentUser)

		api.GET("/posts", env.GetPosts)
		api.POST("/posts", write, env.CreatePost)
		api.GET("/posts/:id", env.GetPost)
		api.GET("/posts/:id/replies", env.GetReplies)
		api.POST("/posts/:id/like", write, env.ToggleLike)
	}

	// --- Push channel ---
	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(env.Hub, c.Writer, c.Request)
	})

	router.GET("/healthz", env.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// --- Media and frontend ---
	if env.Uploads != nil {
		router.Static("/uploads", env.Uploads.Dir)
	}
	// Served last so it never shadows the API.
	if _, err := os.Stat(publicDir); err == nil {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(publicDir))))
	}
}
