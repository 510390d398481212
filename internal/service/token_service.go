// file: internal/service/token_service.go
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

// 认证相关错误
var (
	ErrInvalidToken       = errors.New("token 无效或已过期")
	ErrInvalidCredentials = errors.New("客户端 ID 或密钥无效")
	ErrClientLocked       = errors.New("失败次数过多，客户端已被临时锁定")
)

// TokenConfig 是 TokenService 的设置
type TokenConfig struct {
	Secret   string
	TTL      time.Duration
	Issuer   string
	// Clients 将客户端 ID 映射到密钥的 bcrypt 哈希
	Clients map[string]string
	// MaxFailures 次连续失败后锁定 Lockout 时长
	MaxFailures int
	Lockout     time.Duration
}

// Claims 是 API token 的载荷
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// TokenService 用客户端凭据签发并校验 HTTP API 的 JWT。
type TokenService struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	clients  map[string][]byte
	failures *cache.Cache

	maxFailures int
	lockout     time.Duration
}

// NewTokenService 创建 TokenService；密钥不能为空。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT 签名密钥不能为空")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "DataAgents"
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 15 * time.Minute
	}
	clients := make(map[string][]byte, len(cfg.Clients))
	for id, hash := range cfg.Clients {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("客户端 '%s' 的密钥不是合法的 bcrypt 哈希: %w", id, err)
		}
		clients[id] = []byte(hash)
	}
	return &TokenService{
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TTL,
		issuer:      cfg.Issuer,
		clients:     clients,
		failures:    cache.New(cfg.Lockout, 2*cfg.Lockout),
		maxFailures: cfg.MaxFailures,
		lockout:     cfg.Lockout,
	}, nil
}

// HashSecret 生成客户端密钥的 bcrypt 哈希，用于写入配置文件
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("密钥不能为空")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成密钥哈希失败: %w", err)
	}
	return string(hash), nil
}

// Issue 校验客户端凭据并签发 token。连续失败达到上限后锁定该客户端。
func (s *TokenService) Issue(clientID, secret string) (string, time.Time, error) {
	lockKey := "lock:" + clientID
	if _, locked := s.failures.Get(lockKey); locked {
		return "", time.Time{}, ErrClientLocked
	}

	hash, ok := s.clients[clientID]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(secret)) != nil {
		s.recordFailure(clientID)
		return "", time.Time{}, ErrInvalidCredentials
	}
	s.failures.Delete("failures:" + clientID)

	now := time.Now()
	expires := now.Add(s.ttl)
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signed, expires, nil
}

func (s *TokenService) recordFailure(clientID string) {
	failureKey := "failures:" + clientID
	if err := s.failures.Increment(failureKey, int64(1)); err != nil {
		s.failures.Set(failureKey, int64(1), cache.DefaultExpiration)
	}
	var n int64
	if x, found := s.failures.Get(failureKey); found {
		n = x.(int64)
	}
	slog.Info("客户端认证失败", "client_id", clientID, "failures", n)
	if n >= int64(s.maxFailures) {
		s.failures.Set("lock:"+clientID, true, s.lockout)
		s.failures.Delete(failureKey)
		slog.Warn("客户端已被临时锁定", "client_id", clientID, "lockout", s.lockout)
	}
}

// Parse 解析并校验 token
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
