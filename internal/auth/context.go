package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
	ctxNumbers
)

func WithIdentity(ctx context.Context, userID, role string, numbers []string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	ctx = context.WithValue(ctx, ctxNumbers, numbers)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// Numbers returns the phone numbers assigned to the caller in the user
// directory. An empty slice is a valid identity: an agent with no
// numbers assigned yet sees no call data.
func Numbers(ctx context.Context) []string {
	v := ctx.Value(ctxNumbers)
	if s, ok := v.([]string); ok {
		return s
	}
	return nil
}
