package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"campusloop/internal/model"
	"campusloop/internal/pkg/metrics"
	"campusloop/internal/pkg/sanitize"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxMessageLen = 2000

// chatPeerView 会话对端（买家视角是卖家，卖家视角是买家）。
type chatPeerView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// chatView 会话列表的一项。
type chatView struct {
	ID           uint         `json:"id"`
	ProductID    uint         `json:"productId"`
	ProductTitle string       `json:"productTitle"`
	Peer         chatPeerView `json:"peer"`
	LastMessage  *string      `json:"lastMessage"`
	LastSentAt   *time.Time   `json:"lastSentAt"`
	Unread       bool         `json:"unread"`
}

// messageView 消息的响应格式。
type messageView struct {
	ID         uint      `json:"id"`
	SenderID   uint      `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// handleListChats 返回当前用户参与的全部会话，按最后一条消息时间倒序。
//
// GET /chats
func (s *Server) handleListChats(c *gin.Context) {
	userID := getUserID(c)

	rows, err := s.chats.ListForUser(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("list chats failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching chats"})
		return
	}

	views := make([]chatView, 0, len(rows))
	for _, row := range rows {
		view := chatView{
			ID:           row.ID,
			ProductID:    row.ProductID,
			ProductTitle: row.ProductTitle,
			LastMessage:  row.LastText,
			LastSentAt:   row.LastSentAt,
		}
		if row.BuyerID == userID {
			view.Peer = chatPeerView{ID: row.SellerID, Name: row.SellerName, Email: row.SellerEmail}
		} else {
			view.Peer = chatPeerView{ID: row.BuyerID, Name: row.BuyerName, Email: row.BuyerEmail}
		}
		unread, err := s.tracker.IsUnread(c.Request.Context(), row.ID, userID)
		if err != nil {
			s.logger.Warn("unread lookup failed", slog.String("error", err.Error()))
		}
		view.Unread = unread
		views = append(views, view)
	}

	c.JSON(http.StatusOK, views)
}

// createChatRequest 发起会话的请求。
type createChatRequest struct {
	ProductID uint `json:"productId" binding:"required"`
}

// handleCreateChat 买家对某个商品发起会话。
//
// POST /chats
//
// 同一（商品, 买家）组合只存在一个会话，重复请求返回已有会话。
// 卖家不能和自己的商品开会话。
func (s *Server) handleCreateChat(c *gin.Context) {
	userID := getUserID(c)

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Product id is required"})
		return
	}

	product, err := s.products.Get(c.Request.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		s.logger.Error("get product failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error creating chat"})
		return
	}
	if product.SellerID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "You cannot chat about your own listing"})
		return
	}

	chat, err := s.chats.FindOrCreate(c.Request.Context(), product.ID, userID, product.SellerID)
	if err != nil {
		s.logger.Error("create chat failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error creating chat"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": chat.ID, "productId": chat.ProductID})
}

// handleListMessages 返回会话的全部消息（按时间升序），并把会话标记为已读。
//
// GET /chats/:id/messages
func (s *Server) handleListMessages(c *gin.Context) {
	userID := getUserID(c)
	chatID, ok := parseIDParam(c)
	if !ok {
		return
	}

	chat, ok := s.loadChatForUser(c, chatID, userID)
	if !ok {
		return
	}

	msgs, err := s.chats.Messages(c.Request.Context(), chat.ID)
	if err != nil {
		s.logger.Error("list messages failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching messages"})
		return
	}

	if err := s.tracker.MarkRead(c.Request.Context(), chat.ID, userID); err != nil {
		s.logger.Warn("mark read failed", slog.String("error", err.Error()))
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderName: m.Sender.Name,
			Text:       m.Text,
			CreatedAt:  m.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, views)
}

// sendMessageRequest 发送消息的请求。
type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleSendMessage 在会话中发送一条消息，并给对端打上未读标记。
//
// POST /chats/:id/messages
func (s *Server) handleSendMessage(c *gin.Context) {
	userID := getUserID(c)
	chatID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message text is required"})
		return
	}
	text := sanitize.Text(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message text is required"})
		return
	}
	// 上限按字符数算，非 ASCII 消息不能按字节数误伤
	if utf8.RuneCountInString(text) > maxMessageLen {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message is too long"})
		return
	}

	chat, ok := s.loadChatForUser(c, chatID, userID)
	if !ok {
		return
	}

	msg := model.Message{
		ChatID:   chat.ID,
		SenderID: userID,
		Text:     text,
	}
	if err := s.chats.CreateMessage(c.Request.Context(), &msg); err != nil {
		s.logger.Error("send message failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error sending message"})
		return
	}

	peerID := chat.BuyerID
	if peerID == userID {
		peerID = chat.SellerID
	}
	if err := s.tracker.MarkUnread(c.Request.Context(), chat.ID, peerID); err != nil {
		s.logger.Warn("mark unread failed", slog.String("error", err.Error()))
	}

	metrics.MessagesSentTotal.Inc()

	c.JSON(http.StatusCreated, messageView{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	})
}

// loadChatForUser 读取会话并校验当前用户是参与方。
// 未找到或无权访问时统一返回 404，避免泄露会话是否存在。
func (s *Server) loadChatForUser(c *gin.Context, chatID, userID uint) (*model.Chat, bool) {
	chat, err := s.chats.Get(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found"})
			return nil, false
		}
		s.logger.Error("get chat failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching chat"})
		return nil, false
	}
	if chat.BuyerID != userID && chat.SellerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found"})
		return nil, false
	}
	return chat, true
}
