package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/auth"
	"github.com/Leyton-2712/syncro-chat-copia/internal/config"
	"github.com/Leyton-2712/syncro-chat-copia/internal/metrics"
	"github.com/Leyton-2712/syncro-chat-copia/internal/service"
	"github.com/Leyton-2712/syncro-chat-copia/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope 是 WebSocket 双向消息的统一外壳。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Gateway 是实时通道的事件状态机：握手认证、房间进出、
// 事件转发和服务端主动广播都经过这里。
// 同时实现 notify.Notifier，REST 侧的变更通过 Publish 进入同一条广播路径。
type Gateway struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry *session.Registry
	eval     *access.Evaluator
	chats    *service.ChatService
	msgs     *service.MessageService
	cfg      config.Config
}

func NewGateway(registry *session.Registry, eval *access.Evaluator, chats *service.ChatService, msgs *service.MessageService, cfg config.Config) *Gateway {
	return &Gateway{
		clients:  make(map[string]*Client),
		registry: registry,
		eval:     eval,
		chats:    chats,
		msgs:     msgs,
		cfg:      cfg,
	}
}

// Serve 处理握手：凭证无效时在升级前以 401 拒绝，不注册任何会话。
func Serve(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseAccessToken(token, gw.cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		gw.handleConnection(conn, claims)
	}
}

func (gw *Gateway) handleConnection(conn *websocket.Conn, claims *auth.Claims) {
	connID := uuid.NewString()
	if _, err := gw.registry.Register(connID, claims.UserID, claims.Username); err != nil {
		log.Error().Err(err).Str("conn_id", connID).Msg("register session")
		_ = conn.Close()
		return
	}

	client := newClient(connID, claims.UserID, claims.Username, conn)
	gw.mu.Lock()
	gw.clients[connID] = client
	gw.mu.Unlock()
	metrics.WsConnections.Inc()
	log.Info().Str("conn_id", connID).Uint("user_id", claims.UserID).Str("username", claims.Username).Msg("ws connected")

	// 全局上线通知，发给除自己之外的所有连接
	gw.broadcastGlobal("user_connected", gin.H{"username": claims.Username, "userId": claims.UserID}, connID)

	go client.writePump()
	gw.readPump(client)
}

// readPump 逐条处理该连接的事件，保证单连接内的处理顺序。
// handler 的任何失败都只会给发送方回 error 事件，不会中断连接。
func (gw *Gateway) readPump(c *Client) {
	defer gw.disconnect(c)
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			gw.emitError(c, "malformed event")
			continue
		}
		metrics.WsEventsTotal.WithLabelValues(env.Event).Inc()
		gw.dispatch(c, env)
	}
}

func (gw *Gateway) dispatch(c *Client, env Envelope) {
	switch env.Event {
	case "join_chat":
		gw.handleJoinChat(c, env.Data)
	case "leave_chat":
		gw.handleLeaveChat(c, env.Data)
	case "send_message":
		gw.handleSendMessage(c, env.Data)
	case "typing":
		gw.handleTyping(c, env.Data)
	case "mark_as_read":
		gw.handleMarkAsRead(c, env.Data)
	case "get_messages":
		gw.handleGetMessages(c, env.Data)
	case "get_chat_info":
		gw.handleGetChatInfo(c, env.Data)
	default:
		gw.emitError(c, "unknown event")
	}
}

// disconnect 在一次注销里释放该连接的全部房间成员关系，
// 然后向剩余连接发全局下线通知。
func (gw *Gateway) disconnect(c *Client) {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.shutdown()

	gw.mu.Lock()
	delete(gw.clients, c.connID)
	gw.mu.Unlock()
	gw.registry.Teardown(c.connID)
	metrics.WsConnections.Dec()
	log.Info().Str("conn_id", c.connID).Uint("user_id", c.userID).Msg("ws disconnected")

	gw.broadcastGlobal("user_disconnected", gin.H{"username": c.username, "userId": c.userID}, c.connID)
}

func (gw *Gateway) handleJoinChat(c *Client, data json.RawMessage) {
	var chatID uint
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == 0 {
		gw.emitError(c, "invalid chat id")
		return
	}
	allowed, err := gw.eval.CanAccess(c.userID, chatID)
	if err != nil {
		log.Error().Err(err).Uint("chat_id", chatID).Msg("join_chat access check")
		gw.emitError(c, "failed to join chat")
		return
	}
	if !allowed {
		gw.emitError(c, "you do not have access to this chat")
		return
	}
	gw.registry.JoinRoom(c.connID, chatID)
	gw.emit(c, "joined_chat", gin.H{"chatId": chatID})
	gw.broadcastRoom(chatID, "user_joined", gin.H{"userId": c.userID, "username": c.username, "chatId": chatID}, c.connID)
}

func (gw *Gateway) handleLeaveChat(c *Client, data json.RawMessage) {
	var chatID uint
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == 0 {
		gw.emitError(c, "invalid chat id")
		return
	}
	gw.registry.LeaveRoom(c.connID, chatID)
	gw.broadcastRoom(chatID, "user_left", gin.H{"userId": c.userID, "username": c.username, "chatId": chatID}, c.connID)
}

func (gw *Gateway) handleSendMessage(c *Client, data json.RawMessage) {
	var dto service.CreateMessageDTO
	if err := json.Unmarshal(data, &dto); err != nil || dto.ChatID == 0 || dto.Content == "" {
		gw.emitError(c, "invalid message payload")
		return
	}
	// 每次发送都重新判定权限，不信任之前的 join 状态
	res := gw.msgs.Create(dto, c.userID)
	if res.Status != http.StatusCreated {
		gw.emitError(c, res.Message)
		return
	}
	// 落库成功后才广播，发送方也收到同一份回显
	gw.broadcastRoom(dto.ChatID, "new_message", res.Data, "")
}

func (gw *Gateway) handleTyping(c *Client, data json.RawMessage) {
	var in struct {
		ChatID   uint `json:"chatId"`
		IsTyping bool `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == 0 {
		gw.emitError(c, "invalid typing payload")
		return
	}
	gw.broadcastRoom(in.ChatID, "user_typing", gin.H{"userId": c.userID, "username": c.username, "chatId": in.ChatID, "isTyping": in.IsTyping}, c.connID)
}

func (gw *Gateway) handleMarkAsRead(c *Client, data json.RawMessage) {
	var in struct {
		ChatID    uint `json:"chatId"`
		MessageID uint `json:"messageId"`
	}
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == 0 {
		gw.emitError(c, "invalid read receipt payload")
		return
	}
	gw.broadcastRoom(in.ChatID, "message_read", gin.H{"userId": c.userID, "chatId": in.ChatID, "messageId": in.MessageID}, c.connID)
}

func (gw *Gateway) handleGetMessages(c *Client, data json.RawMessage) {
	var chatID uint
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == 0 {
		gw.emitError(c, "invalid chat id")
		return
	}
	res := gw.msgs.ListForChat(chatID, c.userID)
	if res.Status != http.StatusOK {
		gw.emitError(c, res.Message)
		return
	}
	gw.emit(c, "messages_loaded", res.Data)
}

func (gw *Gateway) handleGetChatInfo(c *Client, data json.RawMessage) {
	var chatID uint
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == 0 {
		gw.emitError(c, "invalid chat id")
		return
	}
	res := gw.chats.GetByID(chatID, c.userID)
	if res.Status != http.StatusOK {
		gw.emitError(c, res.Message)
		return
	}
	gw.emit(c, "chat_info", res.Data)
}

// Publish 实现 notify.Notifier，REST 侧的变更由此进入房间广播。
func (gw *Gateway) Publish(chatID uint, event string, payload any) {
	gw.broadcastRoom(chatID, event, payload, "")
}

// broadcastRoom 把事件扇出给房间当前解析到的全部连接，
// excludeConnID 非空时跳过该连接。编码只做一次。
func (gw *Gateway) broadcastRoom(chatID uint, event string, payload any, excludeConnID string) {
	b, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode broadcast")
		return
	}
	metrics.BroadcastsTotal.Inc()
	targets := gw.registry.ResolveTargets(chatID)
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for _, connID := range targets {
		if connID == excludeConnID {
			continue
		}
		if cl, ok := gw.clients[connID]; ok {
			cl.deliver(b)
		}
	}
}

// broadcastGlobal 把事件发给除 excludeConnID 外的所有活跃连接，用于全局上下线通知。
func (gw *Gateway) broadcastGlobal(event string, payload any, excludeConnID string) {
	b, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode global broadcast")
		return
	}
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	for connID, cl := range gw.clients {
		if connID == excludeConnID {
			continue
		}
		cl.deliver(b)
	}
}

func (gw *Gateway) emit(c *Client, event string, payload any) {
	b, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode emit")
		return
	}
	c.deliver(b)
}

func (gw *Gateway) emitError(c *Client, msg string) {
	gw.emit(c, "error", gin.H{"message": msg})
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
