package controllers

import (
	"net/http"

	"github.com/minelance/minelance-backend/api/middleware"
	"github.com/minelance/minelance-backend/pkg/auth"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
)

func callerFromRequest(r *http.Request) (auth.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return identity, nil
}
