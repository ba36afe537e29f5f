package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/auth"
)

const tokenKey = "auth.token"

// AuthService is the identity provider used by the HTTP layer.
type AuthService interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.User, error)
	SignIn(ctx context.Context, in models.LoginInput) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthHandler serves account and session endpoints.
type AuthHandler struct {
	svc    AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs the HTTP handler adapter.
func NewAuthHandler(svc AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{svc: svc, logger: logger}
}

// RequireSession resolves the bearer token and attaches the user to the request context.
func (h *AuthHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(c, h.logger, models.ErrNotAuthenticated)
			return
		}
		token = strings.TrimSpace(token)

		user, err := h.svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}

		c.Set(tokenKey, token)
		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// Register creates an account.
func (h *AuthHandler) Register(c *gin.Context) {
	var in models.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login signs in and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var in models.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	session, err := h.svc.SignIn(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout revokes the current token.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.SignOut(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(c *gin.Context) {
	user := auth.CurrentUser(c.Request.Context())
	if user == nil {
		writeError(c, h.logger, models.ErrNotAuthenticated)
		return
	}
	c.JSON(http.StatusOK, user)
}
