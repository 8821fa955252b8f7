package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
)

// ActorFromContext resolves the authenticated principal seeded by Auth.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.UserRole, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	role, err := enums.ParseUserRole(RoleFromContext(ctx))
	if err != nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	return userID, role, nil
}
