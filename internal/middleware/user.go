package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserIDKey is the context key for the authenticated user id.
const UserIDKey contextKey = "user_id"

// UserMiddleware identifies the caller from a bearer JWT signed with the
// shared HMAC secret. The token subject becomes the user id. Requests with
// no token, or with one that does not verify, continue anonymously.
type UserMiddleware struct {
	secret []byte
	logger *zap.Logger
}

func NewUserMiddleware(secret string, logger *zap.Logger) *UserMiddleware {
	return &UserMiddleware{secret: []byte(secret), logger: logger}
}

func (u *UserMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(u.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := bearerToken(r.Header.Get("Authorization"))
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := u.subject(tokenString)
		if err != nil {
			u.logger.Debug("ignoring invalid bearer token",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (u *UserMiddleware) subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return u.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserFromContext returns the authenticated user id, or "" for anonymous
// callers.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
