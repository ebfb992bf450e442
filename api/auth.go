package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type readerKey struct{}

// ReaderFrom возвращает идентификатор читателя из контекста или "" для анонима.
func ReaderFrom(ctx context.Context) string {
	id, _ := ctx.Value(readerKey{}).(string)
	return id
}

func withReader(ctx context.Context, readerID string) context.Context {
	return context.WithValue(ctx, readerKey{}, readerID)
}

// Authenticator проверяет bearer-токены, выпущенные внешним сервисом учетных записей.
// Без секрета работает режим разработки: идентификатор берется из заголовка X-Reader-ID.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ValidateToken проверяет подпись HS256 и срок действия, возвращает subject.
func (a *Authenticator) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Middleware кладет идентификатор читателя в контекст. Запрос без заголовка
// Authorization анонимный; неверный токен отклоняется с 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			next.ServeHTTP(w, r.WithContext(withReader(r.Context(), r.Header.Get("X-Reader-ID"))))
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", errors.New("authorization header must use the Bearer scheme"))
			return
		}
		readerID, err := a.ValidateToken(tokenString)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withReader(r.Context(), readerID)))
	})
}
