package users

import (
	"fmt"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
)

// ChangeRoleInput is the requested new role binding.
type ChangeRoleInput struct {
	Role     identity.Role
	MuseumID int64
}

// ListFilter narrows actor listings.
type ListFilter struct {
	Role     identity.Role
	MuseumID int64
	Limit    int
	Offset   int
}

// roleLabel renders a role binding for audit records.
func roleLabel(role identity.Role, museumID int64) string {
	if museumID == 0 {
		return string(role)
	}
	return fmt.Sprintf("%s@%d", role, museumID)
}

// Profile is the response of GET /me.
type Profile struct {
	Actor        identity.Actor        `json:"actor"`
	Capabilities []identity.Capability `json:"capabilities"`
}

// RoleChangeResult reports an applied role change.
type RoleChangeResult struct {
	Actor     identity.Actor `json:"actor"`
	Previous  string         `json:"previous"`
	Current   string         `json:"current"`
	ChangedAt time.Time      `json:"changed_at"`
}
