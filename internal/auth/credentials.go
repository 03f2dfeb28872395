package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/models"
	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/logger"
)

// User-facing messages for credential failures.
const (
	msgHandleRequired   = "用户名不能为空"
	msgPasswordRequired = "密码不能为空"
	msgUserNotFound     = "用户不存在"
	msgUserDisabled     = "用户已被禁用"
	msgBadCredentials   = "密码错误"
	msgUnknownSurface   = "不支持的登录入口"
)

// Verifier checks a login attempt and resolves the role granted by the surface.
type Verifier interface {
	Verify(ctx context.Context, surface Surface, handle, password string) (*models.User, RoleClass, error)
}

// CredentialVerifier looks users up by name, phone or email and checks their password.
type CredentialVerifier struct {
	db     *gorm.DB
	hasher PasswordHasher
	log    *zap.Logger
}

// NewCredentialVerifier builds a verifier over the users table.
func NewCredentialVerifier(db *gorm.DB, hasher PasswordHasher) (*CredentialVerifier, error) {
	if db == nil {
		return nil, errors.New("credential verifier: db is required")
	}
	if hasher == nil {
		hasher = DigestHasher{}
	}
	return &CredentialVerifier{db: db, hasher: hasher, log: logger.WithModule("auth")}, nil
}

// Verify returns BadRequest errors carrying a message for every credential failure and
// Internal for lookup failures.
func (v *CredentialVerifier) Verify(ctx context.Context, surface Surface, handle, password string) (*models.User, RoleClass, error) {
	role, err := surface.RoleClass()
	if err != nil {
		return nil, "", appErrors.NewBadRequest(msgUnknownSurface).WithInternal(err)
	}

	handle = strings.ToLower(strings.TrimSpace(handle))
	password = strings.TrimSpace(password)
	if handle == "" {
		return nil, "", appErrors.NewBadRequest(msgHandleRequired)
	}
	if password == "" {
		return nil, "", appErrors.NewBadRequest(msgPasswordRequired)
	}

	var user models.User
	err = v.db.WithContext(ctx).
		Where("name = ? OR phone = ? OR email = ?", handle, handle, handle).
		Order("id").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", appErrors.NewBadRequest(msgUserNotFound).WithInternal(ErrUserNotFound)
	}
	if err != nil {
		v.log.Error("look up user", zap.Error(err), zap.String("surface", string(surface)))
		return nil, "", appErrors.Internal(err)
	}

	if !user.Enabled {
		return nil, "", appErrors.NewBadRequest(msgUserDisabled).WithInternal(ErrUserDisabled)
	}

	if !v.hasher.Verify(user.Salt, password, user.Password) {
		return nil, "", appErrors.NewBadRequest(msgBadCredentials).WithInternal(ErrBadCredentials)
	}

	return &user, role, nil
}
