// Package ownership decides whether a resource lies inside an actor's scope.
package ownership

import "github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"

// ResourceType names the kinds of resources scoped by museum.
type ResourceType string

const (
	ResourceArtifact ResourceType = "artifact"
	ResourceRental   ResourceType = "rental"
	ResourceMuseum   ResourceType = "museum"
	ResourceActor    ResourceType = "actor"
	ResourceAudit    ResourceType = "audit"
)

// Resource is the ownership view of a stored record. A zero MuseumID means
// the record carries no museum link. OwnerID is the authoring actor for
// visitor-owned records such as a rental's renter.
type Resource struct {
	Type     ResourceType
	ID       int64
	MuseumID int64
	OwnerID  int64
}

// InScope reports whether actor may act on resource. Missing links resolve to false.
func InScope(actor identity.Actor, resource Resource) bool {
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return true
	case identity.RoleMuseumAdmin, identity.RoleMuseumStaff:
		if resource.MuseumID == 0 || actor.MuseumID == 0 {
			return false
		}
		return resource.MuseumID == actor.MuseumID
	case identity.RoleVisitor:
		if resource.Type != ResourceRental {
			return false
		}
		return resource.OwnerID != 0 && resource.OwnerID == actor.ID
	default:
		return false
	}
}
