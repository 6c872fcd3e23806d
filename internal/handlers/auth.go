package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/besedka-chat/besedka/internal/models"
	"github.com/besedka-chat/besedka/internal/users"
)

type AuthHandler struct {
	users *users.Service
}

func NewAuthHandler(users *users.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

type credentialsRequest struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
}

// Register stores a new login/password pair. Duplicate logins are
// accepted; only empty fields are rejected.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
		return
	}

	if _, err := h.users.Register(c.Request.Context(), req.Login, req.Password); err != nil {
		if errors.Is(err, users.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// FindUsers returns credential rows for a login, or every row when no
// login filter is given. Passwords are included verbatim.
func (h *AuthHandler) FindUsers(c *gin.Context) {
	found, err := h.users.FindByLogin(c.Request.Context(), c.Query("login"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	if found == nil {
		found = []models.User{}
	}

	c.JSON(http.StatusOK, gin.H{"data": found})
}

// Login checks a login/password pair by exact match and returns the
// matching user id.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil || req.Login == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "No login or password provided")
		return
	}

	userID, err := h.users.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid login or password")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": tr(c, "Login successful"),
		"user_id": userID,
	})
}

// ListUsers returns every (id, login) pair for roster display.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	list, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	if list == nil {
		list = []models.UserRef{}
	}

	c.JSON(http.StatusOK, gin.H{"users": list})
}

// UserID resolves a login to its user id.
func (h *AuthHandler) UserID(c *gin.Context) {
	login := c.Query("login")
	if login == "" {
		respondError(c, http.StatusBadRequest, "No login provided")
		return
	}

	id, err := h.users.IDForLogin(c.Request.Context(), login)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "user_id": id})
}
