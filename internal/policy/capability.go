package policy

import (
	"github.com/google/uuid"

	"github.com/minelance/minelance-backend/pkg/auth"
	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
)

// RequireRole fails with FORBIDDEN unless caller holds one of roles.
func RequireRole(caller auth.Identity, roles ...enums.UserRole) error {
	if caller.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if !caller.HasRole(roles...) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}
	return nil
}

// RequireOwner fails with FORBIDDEN unless caller is owner.
func RequireOwner(caller auth.Identity, owner uuid.UUID, what string) error {
	if caller.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if caller.ID != owner {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the "+what+" may perform this action")
	}
	return nil
}
