package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/besedka-chat/besedka/internal/chats"
	"github.com/besedka-chat/besedka/internal/metrics"
	"github.com/besedka-chat/besedka/internal/models"
	"github.com/besedka-chat/besedka/internal/users"
)

type ChatHandler struct {
	chats *chats.Service
	users *users.Service
}

func NewChatHandler(chats *chats.Service, users *users.Service) *ChatHandler {
	return &ChatHandler{chats: chats, users: users}
}

// CreateChat creates an open chat: no creator, no membership list.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Name string `json:"name" form:"name"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "No chat name provided")
		return
	}

	chatID, err := h.chats.CreateOpenChat(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, chats.ErrValidation) {
			respondError(c, http.StatusBadRequest, "No chat name provided")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	metrics.ChatsCreated.WithLabelValues("open").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": tr(c, "Chat created"),
		"chat_id": chatID,
	})
}

// CreateGroupChat creates a membership-gated group chat. The creator is
// always part of the final member list.
func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	var req struct {
		Name      string  `json:"name" form:"name"`
		CreatorID int64   `json:"creator_id" form:"creator_id"`
		UserIDs   []int64 `json:"user_ids" form:"user_ids"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing or invalid required fields")
		return
	}

	chatID, members, err := h.chats.CreateGroupChat(c.Request.Context(), req.Name, req.CreatorID, req.UserIDs)
	if err != nil {
		if errors.Is(err, chats.ErrValidation) {
			respondError(c, http.StatusBadRequest, "Missing or invalid required fields")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	metrics.ChatsCreated.WithLabelValues("group").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"chat_id":    chatID,
		"group_name": req.Name,
		"members":    members,
	})
}

// CreatePrivateChat returns the private chat for the pair of users,
// creating it on first request. Repeated calls in either argument order
// return the same chat.
func (h *ChatHandler) CreatePrivateChat(c *gin.Context) {
	var req struct {
		User1ID int64 `json:"user1_id" form:"user1_id"`
		User2ID int64 `json:"user2_id" form:"user2_id"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing or invalid required fields")
		return
	}

	chatID, name, existed, err := h.chats.CreatePrivateChat(c.Request.Context(), req.User1ID, req.User2ID)
	if err != nil {
		if errors.Is(err, chats.ErrNotFound) {
			respondError(c, http.StatusNotFound, "One or both users not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	if existed {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"chat_id": chatID,
			"message": tr(c, "Chat already exists"),
		})
		return
	}

	metrics.ChatsCreated.WithLabelValues("private").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"chat_id":   chatID,
		"chat_name": name,
	})
}

// AddUserToChat adds a member on behalf of the chat's creator.
func (h *ChatHandler) AddUserToChat(c *gin.Context) {
	var req struct {
		ChatID  int64 `json:"chat_id" form:"chat_id"`
		UserID  int64 `json:"user_id" form:"user_id"`
		AdderID int64 `json:"adder_id" form:"adder_id"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	err := h.chats.AddMember(c.Request.Context(), req.ChatID, req.UserID, req.AdderID)
	if err != nil {
		switch {
		case errors.Is(err, chats.ErrValidation):
			respondError(c, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, chats.ErrForbidden):
			respondError(c, http.StatusForbidden, "Not authorized to add users to this chat")
		case errors.Is(err, chats.ErrConflict):
			respondError(c, http.StatusBadRequest, "User is already in the chat")
		default:
			respondError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": tr(c, "User added to chat")})
}

// SendMessage stores a message carrying text, an image URL, or both.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		ChatID   int64  `json:"chat_id" form:"chat_id"`
		Login    string `json:"login" form:"login"`
		Message  string `json:"message" form:"message"`
		ImageURL string `json:"image_url" form:"image_url"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "No message, chat_id, or login provided")
		return
	}

	err := h.chats.SendMessage(c.Request.Context(), req.ChatID, req.Login, req.Message, req.ImageURL)
	if err != nil {
		if errors.Is(err, chats.ErrValidation) {
			respondError(c, http.StatusBadRequest, "No message, chat_id, or login provided")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	metrics.MessagesSent.Inc()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": tr(c, "Message received")})
}

// GetMessages lists a chat's messages for a member, oldest first.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID, err1 := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	userID, err2 := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err1 != nil || err2 != nil {
		respondError(c, http.StatusBadRequest, "No chat_id or user_id provided")
		return
	}

	messages, err := h.chats.Messages(c.Request.Context(), chatID, userID)
	if err != nil {
		switch {
		case errors.Is(err, chats.ErrForbidden):
			respondError(c, http.StatusForbidden, "Access denied")
		case errors.Is(err, chats.ErrValidation):
			respondError(c, http.StatusBadRequest, "No chat_id or user_id provided")
		default:
			respondError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkMessagesAsRead flips the read flag on every message in the chat.
// Deliberately unauthenticated: any caller may clear a chat's unread state.
func (h *ChatHandler) MarkMessagesAsRead(c *gin.Context) {
	var req struct {
		ChatID int64 `json:"chat_id" form:"chat_id"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "No chat_id provided")
		return
	}

	if err := h.chats.MarkRead(c.Request.Context(), req.ChatID); err != nil {
		if errors.Is(err, chats.ErrValidation) {
			respondError(c, http.StatusBadRequest, "No chat_id provided")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": tr(c, "Messages marked as read")})
}

// GetUserChats lists the chats the user belongs to, with unread counts
// that exclude the user's own messages.
func (h *ChatHandler) GetUserChats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "No user_id provided")
		return
	}

	// A user unknown to the credential store keeps an empty login; their
	// membership list is normally empty anyway.
	login, err := h.users.LoginForID(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	list, err := h.chats.ChatsForUser(c.Request.Context(), userID, login)
	if err != nil {
		if errors.Is(err, chats.ErrValidation) {
			respondError(c, http.StatusBadRequest, "No user_id provided")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	if list == nil {
		list = []models.ChatSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"chats": list})
}
