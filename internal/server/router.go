package server

import (
	"net/http"
	"time"

	"github.com/Leyton-2712/syncro-chat-copia/internal/auth"
	"github.com/Leyton-2712/syncro-chat-copia/internal/config"
	"github.com/Leyton-2712/syncro-chat-copia/internal/metrics"
	"github.com/Leyton-2712/syncro-chat-copia/internal/mw"
	"github.com/Leyton-2712/syncro-chat-copia/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, h *Handler, gw *ws.Gateway) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/api/healthCheck", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg))

	authed.POST("/chats", h.CreateChat)
	authed.GET("/chats", h.ListChats)
	authed.GET("/chats/:chatId", h.GetChat)
	authed.PUT("/chats/:chatId", h.UpdateChat)
	authed.DELETE("/chats/:chatId", h.DeleteChat)
	authed.POST("/chats/:chatId/participants", h.AddParticipant)

	authed.POST("/messages", h.CreateMessage)
	authed.GET("/chats/:chatId/messages", h.ListMessages)
	authed.GET("/messages/:messageId", h.GetMessage)
	authed.PUT("/messages/:messageId", h.UpdateMessage)
	authed.DELETE("/messages/:messageId", h.DeleteMessage)

	r.GET("/ws", ws.Serve(gw))

	return r
}
