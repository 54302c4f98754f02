package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/http/middleware"
	"github.com/DTADMI/gamehub-api/internal/service"
)

// AuthHandler exposes the auth flows over REST.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

// NewAuthHandler wires dependencies.
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{Auth: auth, Logger: logger}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Email and password are required."})
		return
	}

	pair, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}

	pair, err := h.Auth.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Exchange(c *gin.Context) {
	var req struct {
		Assertion string `json:"assertion"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
		return
	}

	pair, err := h.Auth.ExchangeFederated(c.Request.Context(), req.Assertion)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok || id.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	revoked, err := h.Auth.Logout(c.Request.Context(), id.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked_sessions": revoked})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok || id.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	account, err := h.Auth.Profile(c.Request.Context(), id.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         account.ID,
		"username":   account.Username,
		"email":      account.Email,
		"roles":      account.Roles,
		"created_at": account.CreatedAt,
	})
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var apiErr *service.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "error_description": apiErr.Description})
		return
	}
	h.Logger.Error("auth request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Something went wrong."})
}
