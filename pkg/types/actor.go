package types

import (
	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// Actor identifies the authenticated caller of a state transition.
type Actor struct {
	AccountID uuid.UUID
	Role      enums.ActorRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}
