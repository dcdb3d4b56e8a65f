package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/calendar"
)

const callerKey = "caller"

// Claims — полезная нагрузка токена, выданного сервисом идентификации.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken подписывает токен. Нужен для тестов и локальной отладки.
func IssueToken(secret string, userID uuid.UUID, role calendar.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseCaller(secret, tokenStr string) (calendar.Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return calendar.Caller{}, fmt.Errorf("invalid token")
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return calendar.Caller{}, fmt.Errorf("invalid userId claim")
	}
	return calendar.ValidateCaller(id, claims.Role)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// AuthMiddleware проверяет Bearer-токен. При optional=true запрос без токена
// пропускается анонимно, но неверный токен всё равно отклоняется.
func AuthMiddleware(secret string, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			if optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing or invalid token"})
			return
		}

		caller, err := parseCaller(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// WSAuthMiddleware делает то же для websocket: браузер не умеет слать заголовки,
// поэтому токен можно передать в ?token=.
func WSAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			tokenStr = bearerToken(c)
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing token"})
			return
		}

		caller, err := parseCaller(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// RequireStaff пропускает только персонал ресторана и супер-админа.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := currentCaller(c)
		if !ok || !caller.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden"})
			return
		}
		c.Next()
	}
}

func currentCaller(c *gin.Context) (calendar.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return calendar.Caller{}, false
	}
	caller, ok := v.(calendar.Caller)
	return caller, ok
}
