package router

import (
	"net/http"

	"whispra-server/internal/handlers"
	"whispra-server/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Options controls the middleware stack
type Options struct {
	AllowedOrigins []string // CORS origins, all when empty
	ForceHTTPS     bool
	MaxBodyBytes   int64
}

type Router struct {
	engine *gin.Engine
}

// NewRouter registers every route at the root and again under /api
func NewRouter(relay *handlers.RelayHandler, status *handlers.StatusHandler, opts Options) *Router {
	if relay == nil || status == nil {
		panic("handlers cannot be nil")
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if opts.ForceHTTPS {
		engine.Use(middleware.HTTPSRedirectMiddleware())
	}
	engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.AccessLogMiddleware(),
		middleware.RecoveryMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.CORSMiddleware(opts.AllowedOrigins...),
	)
	if opts.MaxBodyBytes > 0 {
		engine.Use(middleware.RequestSizeLimitMiddleware(opts.MaxBodyBytes))
	}

	engine.GET("/health", status.Health)
	engine.NoRoute(status.NotFound)
	engine.NoMethod(handleMethodNotAllowed)

	for _, group := range []*gin.RouterGroup{&engine.RouterGroup, engine.Group("/api")} {
		group.GET("/", status.Root)
		group.GET("/test", status.Test)
		group.GET("/test-db", status.TestDB)
		group.GET("/test-bot", status.TestBot)

		group.POST("/connect", relay.Connect)
		group.POST("/message/:username", relay.SendMessage)
		group.GET("/user/:username", relay.GetUser)
	}

	return &Router{engine: engine}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

// Engine exposes the gin engine, mainly for route inspection
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
