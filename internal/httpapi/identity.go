package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/UkralStul/content-engine/internal/domain"
)

// Claims - полезная нагрузка токена: id пользователя и роль.
type Claims struct {
	UserID int64       `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid token")

type callerKey struct{}

// WithCaller кладет вызывающего в контекст.
func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom достает вызывающего; без middleware - аноним.
func CallerFrom(ctx context.Context) domain.Caller {
	if c, ok := ctx.Value(callerKey{}).(domain.Caller); ok {
		return c
	}
	return domain.Anonymous
}

// IssueToken подписывает HS256-токен для пользователя.
func IssueToken(secret []byte, userID int64, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken проверяет подпись, алгоритм и срок действия.
func ParseToken(secret []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, errInvalidToken
	}
	if claims.Role == "" {
		claims.Role = domain.RoleUser
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", errInvalidToken, claims.Role)
	}
	return claims, nil
}

// Identity превращает Bearer-токен в domain.Caller. Без заголовка запрос идет анонимно,
// с некорректным токеном - 401.
func Identity(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || len(secret) == 0 {
				unauthenticated(w)
				return
			}
			claims, err := ParseToken(secret, raw)
			if err != nil {
				unauthenticated(w)
				return
			}
			ctx := WithCaller(r.Context(), domain.Caller{UserID: claims.UserID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, Envelope{
		Success: false,
		Status:  http.StatusUnauthorized,
		Message: errInvalidToken.Error(),
	})
}
