package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/maestroprog/wschatserver/internal/auth"
	"github.com/maestroprog/wschatserver/internal/chat"
	"github.com/maestroprog/wschatserver/internal/config"
)

// NewServer builds the HTTP server: health, the WebSocket endpoint, and
// the bearer-token-guarded admin API.
func NewServer(chatSrv *chat.Server, cfg config.Config, jwtCfg *auth.JWTConfig, saveSnapshot func() error, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		sessions, rooms := chatSrv.Stats()
		c.JSON(stdhttp.StatusOK, gin.H{
			"status":   "ok",
			"sessions": sessions,
			"rooms":    rooms,
		})
	})

	wsHandler := NewWSHandler(chatSrv, logger, cfg.MsgRate, cfg.MsgBurst)
	router.GET("/ws", gin.WrapH(wsHandler))

	admin := NewAdminHandlers(chatSrv, saveSnapshot, logger)
	api := router.Group("/api", AuthMiddleware(jwtCfg, logger))
	{
		api.POST("/rooms", admin.CreateRoom)
		api.GET("/rooms", admin.ListRooms)
		api.DELETE("/rooms/:name", admin.RemoveRoom)
		api.POST("/rooms/:name/bans", admin.AddBan)
		api.DELETE("/rooms/:name/bans", admin.RemoveBan)
		api.POST("/rooms/:name/moderators", admin.AddModerator)
		api.DELETE("/rooms/:name/moderators", admin.RemoveModerator)
		api.POST("/snapshot", admin.SaveSnapshot)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
