package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// SweepScope 是允许触发过期清理的 token scope
const SweepScope = "rooms:sweep"

// ErrMissingAuthHeader 表示缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// CronAuth 返回保护清理接口的中间件。
// 接受两种凭证: "Bearer <secret>" 原样匹配，或者用 secret 签名、scope 为 rooms:sweep 的 HS256 token。
func CronAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		panic("cron secret cannot be empty for CronAuth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("CronAuth: Missing Authorization header")
			} else {
				logrus.WithError(err).Warn("CronAuth: Malformed Authorization header")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "kind": "unauthorized"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(tokenStr), []byte(secret)) == 1 {
			c.Next()
			return
		}

		if err := validateCronToken(tokenStr, secret); err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("CronAuth: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Reason: Token is expired")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "kind": "unauthorized"})
			return
		}
		c.Next()
	}
}

// NewCronToken 签发一个用于调用清理接口的短期 token
func NewCronToken(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("cron secret cannot be empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"scope": SweepScope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign cron token: %w", err)
	}
	return signed, nil
}

// extractToken 从 Authorization 头中取出 Bearer 凭证
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

func validateCronToken(tokenStr, secret string) error {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return errors.New("invalid token or claims type")
	}
	if scope, _ := claims["scope"].(string); scope != SweepScope {
		return fmt.Errorf("token scope %q is not allowed", scope)
	}
	return nil
}
