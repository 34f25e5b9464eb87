package identity

import "sort"

// Role is the single role an actor holds.
type Role string

const (
	RoleVisitor     Role = "visitor"
	RoleMuseumStaff Role = "museum_staff"
	RoleMuseumAdmin Role = "museum_admin"
	RoleSuperAdmin  Role = "super_admin"
)

// Capability is a coarse permission bit derived from a role.
type Capability string

const (
	CapManageAllUsers       Capability = "MANAGE_ALL_USERS"
	CapManageAllMuseums     Capability = "MANAGE_ALL_MUSEUMS"
	CapFinalApproveArtifact Capability = "FINAL_APPROVE_ARTIFACT"
	CapFirstApproveArtifact Capability = "FIRST_APPROVE_ARTIFACT"
	CapManageOwnMuseum      Capability = "MANAGE_OWN_MUSEUM"
	CapSubmitArtifact       Capability = "SUBMIT_ARTIFACT"
	CapRequestRental        Capability = "REQUEST_RENTAL"
)

// CapabilitySet is an immutable-by-convention set of capabilities.
type CapabilitySet map[Capability]struct{}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the capabilities in stable order, used for API output.
func (s CapabilitySet) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Super admins do not hold the first-tier capabilities so the two review
// levels always involve two different actors.
var roleCapabilities = map[Role][]Capability{
	RoleVisitor:     {CapRequestRental},
	RoleMuseumStaff: {CapSubmitArtifact},
	RoleMuseumAdmin: {CapSubmitArtifact, CapFirstApproveArtifact, CapManageOwnMuseum},
	RoleSuperAdmin:  {CapManageAllUsers, CapManageAllMuseums, CapFinalApproveArtifact},
}

// CapabilitiesOf returns a fresh capability set for role. Unknown roles get an empty set.
func CapabilitiesOf(role Role) CapabilitySet {
	caps := roleCapabilities[role]
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// MuseumAnchored reports whether actors of this role must belong to a museum.
func (r Role) MuseumAnchored() bool {
	return r == RoleMuseumStaff || r == RoleMuseumAdmin
}
