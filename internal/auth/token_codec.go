package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauth/pkg/logger"
)

// DefaultSecret is used when no signing secret is configured. Operators must override it.
const DefaultSecret = "cms-auth-default-secret"

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

func (k TokenKind) valid() bool {
	return k == TokenAccess || k == TokenRefresh
}

// RoleClass is the coarse role carried inside tokens.
type RoleClass string

const (
	RoleAdministrator RoleClass = "administrator"
	RoleMember        RoleClass = "member"
)

// Surface names a login entry point.
type Surface string

const (
	SurfaceManager Surface = "manager"
	SurfaceOpen    Surface = "open"
)

// RoleClass maps the login surface to the role granted by it.
func (s Surface) RoleClass() (RoleClass, error) {
	switch s {
	case SurfaceManager:
		return RoleAdministrator, nil
	case SurfaceOpen:
		return RoleMember, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSurface, string(s))
	}
}

// Claims is the payload bound into every token.
type Claims struct {
	SessionID string
	UserID    int64
	Role      RoleClass
	Kind      TokenKind
	// ExpiresAt is unix seconds.
	ExpiresAt int64
}

type jwtClaims struct {
	UserID    int64     `json:"uid"`
	SessionID string    `json:"sid"`
	Role      RoleClass `json:"rol"`
	Kind      TokenKind `json:"knd"`
	jwt.RegisteredClaims
}

// TokenCodecConfig bundles the signing settings.
type TokenCodecConfig struct {
	Secret string
	Issuer string
}

// TokenCodec signs and verifies HS256 tokens with a secret fixed at construction.
type TokenCodec struct {
	secret        []byte
	issuer        string
	defaultSecret bool
	parser        *jwt.Parser
}

// NewTokenCodec builds a codec. An empty secret falls back to DefaultSecret with a warning.
func NewTokenCodec(cfg TokenCodecConfig) *TokenCodec {
	secret := strings.TrimSpace(cfg.Secret)
	usingDefault := secret == "" || secret == DefaultSecret
	if secret == "" {
		secret = DefaultSecret
	}
	if usingDefault {
		logger.WithModule("auth").Warn("token signing secret is not configured; using the built-in default",
			zap.String("key", "auth.jwt.secret"))
	}

	return &TokenCodec{
		secret:        []byte(secret),
		issuer:        cfg.Issuer,
		defaultSecret: usingDefault,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
}

// UsesDefaultSecret reports whether the built-in secret is in use.
func (c *TokenCodec) UsesDefaultSecret() bool {
	return c.defaultSecret
}

// Encode signs claims. The output is deterministic for identical input.
func (c *TokenCodec) Encode(claims Claims) (string, error) {
	if claims.SessionID == "" {
		return "", errors.New("token: session id is required")
	}
	if !claims.Kind.valid() {
		return "", fmt.Errorf("token: unknown kind %q", claims.Kind)
	}

	payload := &jwtClaims{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		Kind:      claims.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			ExpiresAt: jwt.NewNumericDate(FromUnix(claims.ExpiresAt)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. Expiry is not enforced here.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	var payload jwtClaims
	_, err := c.parser.ParseWithClaims(token, &payload, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if c.issuer != "" && payload.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrMalformedToken, payload.Issuer)
	}
	if payload.SessionID == "" || !payload.Kind.valid() || payload.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: incomplete claims", ErrMalformedToken)
	}

	return &Claims{
		SessionID: payload.SessionID,
		UserID:    payload.UserID,
		Role:      payload.Role,
		Kind:      payload.Kind,
		ExpiresAt: payload.ExpiresAt.Unix(),
	}, nil
}
