package domain

import (
	"context"
	"strings"
)

type identityContextKey struct{}

// WithUserID binds the authenticated user to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityContextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the authenticated user, or ErrUnauthenticated.
func UserIDFromContext(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrUnauthenticated
	}
	userID, _ := ctx.Value(identityContextKey{}).(string)
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
