package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/auth"
	"github.com/vovakirdan/chatline-server/internal/config"
	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/store"
)

// Services are the collaborators the HTTP layer dispatches to.
type Services struct {
	Auth     *auth.Service
	Users    store.UserStore
	Router   *core.Router
	Registry *core.Registry
	Gateway  *core.Gateway
}

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewEngine(svc, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewEngine registers every route on a gin engine.
func NewEngine(svc Services, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(BodyLimitMiddleware(cfg.MaxBodyBytes))

	r.GET("/health", healthHandler)
	r.GET("/ws", gin.WrapH(NewWSHandler(svc.Gateway, cfg, logger)))

	api := r.Group("/api")
	api.GET("/status", statusHandler)

	authHandlers := NewAPIHandlers(svc.Auth, logger)
	requireAuth := AuthMiddleware(svc.Auth, logger)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandlers.Signup)
	authGroup.POST("/login", authHandlers.Login)
	authGroup.GET("/check", requireAuth, authHandlers.Check)
	authGroup.PUT("/update-profile", requireAuth, authHandlers.UpdateProfile)
	authGroup.POST("/connect-token", requireAuth, authHandlers.ConnectToken)

	userHandlers := NewUserHandlers(svc.Users, svc.Router, svc.Registry, logger)
	messageHandlers := NewMessageHandlers(svc.Router, logger)

	msgGroup := api.Group("/message", requireAuth)
	msgGroup.GET("/users", userHandlers.ListUsers)
	msgGroup.GET("/:id", messageHandlers.OpenConversation)
	msgGroup.POST("/send/:id", messageHandlers.Send)
	msgGroup.PUT("/mark/:id", messageHandlers.MarkSeen)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "token"},
		AllowWildcard: true,
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "healthy", Time: time.Now().UTC()})
}
