package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/middleware"
	"github.com/charlesng35/cmsauth/internal/models"
	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/response"
)

// ExpiryLayout renders *_expired fields.
const ExpiryLayout = "2006-01-02 15:04:05"

// SessionManager is the session lifecycle the auth handlers drive.
type SessionManager interface {
	Issue(ctx context.Context, in auth.IssueInput) (*auth.IssueResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Revoke(ctx context.Context, accessToken string) error
}

// AuthHandler serves login, refresh, revoke and identity for one login surface.
type AuthHandler struct {
	surface  auth.Surface
	sessions SessionManager
	location *time.Location
}

// NewAuthHandler binds the handlers to a surface. Expiries render in location.
func NewAuthHandler(surface auth.Surface, sessions SessionManager, location *time.Location) (*AuthHandler, error) {
	if _, err := surface.RoleClass(); err != nil {
		return nil, err
	}
	if sessions == nil {
		return nil, fmt.Errorf("auth handler: session manager is required")
	}
	if location == nil {
		location = time.Local
	}
	return &AuthHandler{surface: surface, sessions: sessions, location: location}, nil
}

type loginRequest struct {
	Username string `json:"username" validate:"max=128"`
	Password string `json:"password" validate:"max=256"`
}

type tokenResponse struct {
	AccessToken    string `json:"access_token"`
	AccessExpired  string `json:"access_expired"`
	RefreshToken   string `json:"refresh_token"`
	RefreshExpired string `json:"refresh_expired"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type loginResponse struct {
	tokenResponse
	User userResponse `json:"user"`
}

type identityResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// Login handles POST /auth/{surface}/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ip, agent := clientOf(c)
	result, err := h.sessions.Issue(callContext(c), auth.IssueInput{
		Surface:   h.surface,
		Handle:    req.Username,
		Password:  req.Password,
		ClientIP:  ip,
		UserAgent: agent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loginResponse{
		tokenResponse: h.tokens(result.TokenPair),
		User:          displayUser(result.User, result.Role),
	})
}

// Refresh handles PATCH /auth/{surface}/token behind the refresh gate.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := middleware.TokenFrom(c)
	if !ok {
		response.Error(c, appErrors.Unauthorized(auth.ErrMissingToken))
		return
	}

	pair, err := h.sessions.Refresh(callContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.tokens(*pair))
}

// Revoke handles DELETE /auth/{surface}/token behind the access gate.
func (h *AuthHandler) Revoke(c *gin.Context) {
	token, ok := middleware.TokenFrom(c)
	if !ok {
		response.Error(c, appErrors.Unauthorized(auth.ErrMissingToken))
		return
	}

	if err := h.sessions.Revoke(callContext(c), token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, true)
}

// Me handles GET /auth/{surface}/me behind the access gate.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, appErrors.Unauthorized(auth.ErrSessionInactive))
		return
	}

	response.Success(c, identityResponse{UserID: identity.UserID, Role: string(identity.Role)})
}

func (h *AuthHandler) tokens(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:    pair.AccessToken,
		AccessExpired:  pair.AccessExpiresAt.In(h.location).Format(ExpiryLayout),
		RefreshToken:   pair.RefreshToken,
		RefreshExpired: pair.RefreshExpiresAt.In(h.location).Format(ExpiryLayout),
	}
}

func displayUser(user *models.User, role auth.RoleClass) userResponse {
	if user == nil {
		return userResponse{Role: string(role)}
	}
	return userResponse{
		ID:       user.ID,
		Name:     user.Name,
		Nickname: user.Nickname,
		Avatar:   user.Avatar,
		Email:    user.Email,
		Phone:    user.Phone,
		Role:     string(role),
	}
}
