package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauth/internal/auth"
	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/response"
)

const (
	CtxIdentityKey  = "editorIdentity"
	CtxTokenKey     = "bearerToken"
	CtxSessionIDKey = "sessionID"
)

// Authorizer is the part of the session service the gates depend on.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*auth.EditorIdentity, error)
	Inspect(token string, kind auth.TokenKind) (*auth.Claims, error)
}

var errRoleMismatch = errors.New("token role does not match the login surface")

// RequireAccess admits requests carrying a live access token issued for role and attaches the
// editor identity. An empty role admits any role.
func RequireAccess(sessions Authorizer, role auth.RoleClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			reject(c, auth.ErrMissingToken)
			return
		}

		identity, err := sessions.Authorize(c.Request.Context(), token)
		if err != nil {
			reject(c, err)
			return
		}
		if !roleAllowed(role, identity.Role) {
			forbid(c)
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxTokenKey, token)
		c.Next()
	}
}

// RequireRefresh admits requests carrying an unexpired refresh token issued for role. The
// allowlist is not consulted; the refresh handler checks the session row itself.
func RequireRefresh(sessions Authorizer, role auth.RoleClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			reject(c, auth.ErrMissingToken)
			return
		}

		claims, err := sessions.Inspect(token, auth.TokenRefresh)
		if err != nil {
			reject(c, err)
			return
		}
		if !roleAllowed(role, claims.Role) {
			forbid(c)
			return
		}

		c.Set(CtxSessionIDKey, claims.SessionID)
		c.Set(CtxTokenKey, token)
		c.Next()
	}
}

// IdentityFrom returns the identity attached by RequireAccess.
func IdentityFrom(c *gin.Context) (*auth.EditorIdentity, bool) {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*auth.EditorIdentity)
	return identity, ok && identity != nil
}

// TokenFrom returns the bearer token admitted by either gate.
func TokenFrom(c *gin.Context) (string, bool) {
	token := c.GetString(CtxTokenKey)
	return token, token != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}

// reject normalises every gate failure to a 401 envelope.
func reject(c *gin.Context, err error) {
	c.Header("WWW-Authenticate", "Bearer")
	if !errors.Is(err, appErrors.ErrUnauthorized) {
		err = appErrors.Unauthorized(err)
	}
	response.Error(c, err)
}

func roleAllowed(want, got auth.RoleClass) bool {
	return want == "" || want == got
}

// forbid rejects a valid token presented on another surface.
func forbid(c *gin.Context) {
	response.Error(c, appErrors.ErrForbidden.WithInternal(errRoleMismatch))
}
