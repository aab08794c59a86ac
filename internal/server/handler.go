package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Leyton-2712/syncro-chat-copia/internal/auth"
	"github.com/Leyton-2712/syncro-chat-copia/internal/service"
	"github.com/gin-gonic/gin"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
// service 返回的 Result 自带状态码，这里只负责翻译成响应。
type Handler struct {
	userSvc *service.UserService
	chatSvc *service.ChatService
	msgSvc  *service.MessageService
}

func NewHandler(userSvc *service.UserService, chatSvc *service.ChatService, msgSvc *service.MessageService) *Handler {
	return &Handler{userSvc: userSvc, chatSvc: chatSvc, msgSvc: msgSvc}
}

func reply(c *gin.Context, res service.Result) {
	c.JSON(res.Status, res)
}

func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	reply(c, h.userSvc.Register(req.Username, req.Email, req.Password))
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	reply(c, h.userSvc.Login(req.Email, req.Password))
}

// CreateChat 创建聊天，创建者自动并入成员列表。
func (h *Handler) CreateChat(c *gin.Context) {
	var dto service.CreateChatDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if dto.Name != nil && len(*dto.Name) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat name"})
		return
	}
	reply(c, h.chatSvc.Create(dto, auth.GetUserID(c)))
}

// ListChats 返回当前用户参与的全部聊天。
func (h *Handler) ListChats(c *gin.Context) {
	reply(c, h.chatSvc.ListForUser(auth.GetUserID(c)))
}

// GetChat 返回单个聊天，包含成员和完整消息历史。
func (h *Handler) GetChat(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	reply(c, h.chatSvc.GetByID(chatID, auth.GetUserID(c)))
}

// UpdateChat 修改聊天名称。
func (h *Handler) UpdateChat(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	var req struct {
		Name *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.Name != nil && len(*req.Name) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat name"})
		return
	}
	reply(c, h.chatSvc.Update(chatID, auth.GetUserID(c), req.Name))
}

// DeleteChat 级联删除聊天。
func (h *Handler) DeleteChat(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	reply(c, h.chatSvc.Delete(chatID, auth.GetUserID(c)))
}

// AddParticipant 把新成员加入聊天。
func (h *Handler) AddParticipant(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	var req struct {
		UserID uint `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	reply(c, h.chatSvc.AddParticipant(chatID, auth.GetUserID(c), req.UserID))
}

// CreateMessage 通过 REST 发送消息，和实时路径共用同一条持久化路径。
func (h *Handler) CreateMessage(c *gin.Context) {
	var dto service.CreateMessageDTO
	if err := c.ShouldBindJSON(&dto); err != nil || dto.ChatID == 0 || strings.TrimSpace(dto.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	reply(c, h.msgSvc.Create(dto, auth.GetUserID(c)))
}

// ListMessages 返回聊天的全部消息，按创建时间升序。
func (h *Handler) ListMessages(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	reply(c, h.msgSvc.ListForChat(chatID, auth.GetUserID(c)))
}

// GetMessage 返回单条消息。
func (h *Handler) GetMessage(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	reply(c, h.msgSvc.GetByID(messageID, auth.GetUserID(c)))
}

// UpdateMessage 修改消息内容，只有发送者本人可以改。
func (h *Handler) UpdateMessage(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	reply(c, h.msgSvc.Update(messageID, auth.GetUserID(c), req.Content))
}

// DeleteMessage 删除消息，只有发送者本人可以删。
func (h *Handler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	reply(c, h.msgSvc.Delete(messageID, auth.GetUserID(c)))
}
