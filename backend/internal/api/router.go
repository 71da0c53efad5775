// Package api exposes the person registry as a JSON HTTP service.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"persinteret/backend/internal/registry"
)

// Options configures the router
type Options struct {
	DefaultLimit   int
	StoreTimeout   time.Duration
	AllowedOrigins []string
}

// NewRouter wires middleware and routes onto a gin engine
func NewRouter(reg *registry.Registry, opts Options, log *zap.Logger) *gin.Engine {
	h := NewHandler(reg, opts.DefaultLimit, log)

	router := gin.New()
	router.Use(requestID())
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(storeTimeout(opts.StoreTimeout))
	{
		api.GET("/people", h.listPeople)
		api.POST("/people", h.savePerson)
		api.DELETE("/people", h.deleteAll)
		api.GET("/people/:id", h.getPerson)
		api.DELETE("/people/:id", h.deletePerson)
		api.POST("/people/:id/repair", h.repairPerson)

		api.GET("/stats", h.statistics)
		api.GET("/stats/next-target", h.nextTarget)
		api.GET("/stats/youngest", h.youngest)
	}

	return router
}

// NewServer builds the router and wraps it with CORS for opts.AllowedOrigins.
// An empty origin list disables cross-origin access.
func NewServer(reg *registry.Registry, opts Options, log *zap.Logger) http.Handler {
	return WithCORS(NewRouter(reg, opts, log), opts.AllowedOrigins)
}

// WithCORS wraps handler with CORS handling for the given origins
func WithCORS(handler http.Handler, origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: !allowsAny(origins),
		MaxAge:           300,
	})
	return c.Handler(handler)
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
