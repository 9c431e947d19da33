package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/derslik/tutor/internal/common"
	"github.com/derslik/tutor/internal/config"
	"github.com/derslik/tutor/internal/httpapi/handlers"
	"github.com/derslik/tutor/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	// browser frontend is served from a different origin
	r.Use(cors.Default())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// registration and login
	r.POST("/users", h.Register)
	r.POST("/login", h.Login)
	r.POST("/admin/login", h.AdminLogin)

	// everything below acts on a resolved identity; anonymous sessions
	// are created lazily
	ident := r.Group("/")
	ident.Use(middleware.ResolveIdentity(cfg.JWTSecret, cfg.AnonSessionTTL))

	ident.POST("/ask", h.Ask)
	ident.GET("/history", h.History)

	authed := ident.Group("/")
	authed.Use(middleware.AuthRequired())
	authed.GET("/me", h.Me)
	authed.POST("/ask/async", h.AskAsync)
	authed.GET("/jobs/:job_id", h.GetJob)

	admin := ident.Group("/admin")
	admin.Use(middleware.AdminRequired())
	admin.PUT("/users/:id/tier", h.SetUserTier)
	admin.GET("/users/:id", h.AdminGetUser)

	return r
}
