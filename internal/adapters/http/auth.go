package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

// authMiddleware accepts HS256 bearer tokens and puts their subject into the
// request context as the user id.
func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := rt.authenticate(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="readiness"`)
			rt.writeError(w, r, domain.WrapError(domain.ErrUnauthenticated, "authenticate", err))
			return
		}
		recordUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(domain.WithUserID(r.Context(), userID)))
	})
}

func (rt *Router) authenticate(headerValue string) (string, error) {
	if len(rt.jwtSecret) == 0 {
		return "", errors.New("token verification is not configured")
	}
	raw, ok := bearerToken(headerValue)
	if !ok {
		return "", errors.New("missing bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return rt.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func bearerToken(headerValue string) (string, bool) {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if len(headerValue) <= len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	return token, token != ""
}
