package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUsernameTaken      = errors.New("username already taken")
)

// Claims JWT 载荷，Subject 为 watcher ID
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService watcher 注册、登录与 token 校验
type AuthService struct {
	watchers repository.WatcherRepository
	secret   []byte
	ttl      time.Duration
	issuer   string
	now      func() time.Time
}

func NewAuthService(watchers repository.WatcherRepository, cfg config.JWTConfig) *AuthService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{watchers: watchers, secret: []byte(cfg.Secret), ttl: ttl, issuer: cfg.Issuer, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.Watcher, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	w := &model.Watcher{ID: uuid.New().String(), Username: username, Email: email, PasswordHash: string(hash)}
	if err := s.watchers.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return w, nil
}

// Login 校验密码并签发 HS256 token
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.Watcher, error) {
	w, err := s.watchers.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.Issue(w)
	if err != nil {
		return "", nil, err
	}
	return token, w, nil
}

func (s *AuthService) Issue(w *model.Watcher) (string, error) {
	now := s.now()
	claims := Claims{
		Username: w.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   w.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken 返回 token 中的声明
func (s *AuthService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// EnsureAdmin 首次启动时创建配置中的管理员
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}
	_, err := s.watchers.GetByUsername(ctx, cfg.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, err := s.Register(ctx, cfg.Username, cfg.Email, cfg.Password); err != nil && !errors.Is(err, ErrUsernameTaken) {
		return err
	}
	logger.Info("admin watcher created", zap.String("username", cfg.Username))
	return nil
}
