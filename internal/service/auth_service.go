package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intakeplan/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultTokenTTL = 30 * 24 * time.Hour

var (
	// ErrInvalidCredentials 在用户名或密码错误时返回
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrTokenInvalid 在令牌不存在或已过期时返回
	ErrTokenInvalid = errors.New("access token is invalid or expired")
)

// AuthService 负责登录校验与 Bearer 令牌的签发、校验、吊销
type AuthService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewAuthService 构造 AuthService
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb, ttl: defaultTokenTTL, now: time.Now}
}

// Authenticate 校验用户名与密码
func (s *AuthService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Login 校验凭据并签发新令牌
func (s *AuthService) Login(username, password string) (*db.AccessToken, error) {
	user, err := s.Authenticate(username, password)
	if err != nil {
		return nil, err
	}

	token := db.AccessToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.Create(&token).Error; err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}
	return &token, nil
}

// Verify 校验令牌并返回所属用户
func (s *AuthService) Verify(raw string) (*db.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	var token db.AccessToken
	if err := s.db.Preload("User").Where("token = ?", raw).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("find access token: %w", err)
	}
	if token.Expired(s.now()) {
		return nil, ErrTokenInvalid
	}
	return &token.User, nil
}

// User 按 ID 加载会话中记录的用户，用户已被删除时返回 ErrTokenInvalid
func (s *AuthService) User(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// Revoke 吊销令牌，令牌不存在时视为成功
func (s *AuthService) Revoke(raw string) error {
	if err := s.db.Unscoped().Where("token = ?", strings.TrimSpace(raw)).Delete(&db.AccessToken{}).Error; err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}
