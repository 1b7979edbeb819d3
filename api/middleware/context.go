package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
	"github.com/ridelinkhq/ridelink-backend/pkg/types"
)

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxRole      contextKey = "actor_role"
)

func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccountID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithAccount injects the authenticated account into the context.
func WithAccount(ctx context.Context, accountID string, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	return context.WithValue(ctx, ctxRole, role)
}

// ActorFromContext rebuilds the typed actor seeded by the auth middleware.
func ActorFromContext(ctx context.Context) (types.Actor, error) {
	accountID, err := uuid.Parse(AccountIDFromContext(ctx))
	if err != nil {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	role := enums.ActorRole(RoleFromContext(ctx))
	if !role.IsValid() {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return types.Actor{AccountID: accountID, Role: role}, nil
}
