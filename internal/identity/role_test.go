package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnlySuperAdminHoldsPlatformCapabilities(t *testing.T) {
	platform := []Capability{CapManageAllUsers, CapManageAllMuseums, CapFinalApproveArtifact}
	for _, role := range []Role{RoleVisitor, RoleMuseumStaff, RoleMuseumAdmin, RoleSuperAdmin} {
		caps := CapabilitiesOf(role)
		for _, c := range platform {
			require.Equal(t, role == RoleSuperAdmin, caps.Has(c), "role %s capability %s", role, c)
		}
	}
}

func TestCapabilitiesPerRole(t *testing.T) {
	require.True(t, CapabilitiesOf(RoleVisitor).Has(CapRequestRental))
	require.False(t, CapabilitiesOf(RoleVisitor).Has(CapSubmitArtifact))
	require.True(t, CapabilitiesOf(RoleMuseumStaff).Has(CapSubmitArtifact))
	require.False(t, CapabilitiesOf(RoleMuseumStaff).Has(CapFirstApproveArtifact))
	require.True(t, CapabilitiesOf(RoleMuseumAdmin).Has(CapFirstApproveArtifact))
	require.True(t, CapabilitiesOf(RoleMuseumAdmin).Has(CapManageOwnMuseum))
	require.False(t, CapabilitiesOf(RoleSuperAdmin).Has(CapFirstApproveArtifact))
	require.Empty(t, CapabilitiesOf(Role("curator")))
}

func TestCapabilitiesOfReturnsCopy(t *testing.T) {
	caps := CapabilitiesOf(RoleVisitor)
	caps[CapManageAllUsers] = struct{}{}
	require.False(t, CapabilitiesOf(RoleVisitor).Has(CapManageAllUsers))
}

func TestActorValidate(t *testing.T) {
	require.NoError(t, Actor{Role: RoleSuperAdmin}.Validate())
	require.NoError(t, Actor{Role: RoleMuseumStaff, MuseumID: 3}.Validate())
	require.ErrorIs(t, Actor{Role: RoleMuseumAdmin}.Validate(), ErrMissingMuseum)
	require.ErrorIs(t, Actor{Role: RoleVisitor, MuseumID: 3}.Validate(), ErrUnexpectedMuseum)
	require.ErrorIs(t, Actor{Role: "owner"}.Validate(), ErrUnknownRole)
}

func TestSortedCapabilities(t *testing.T) {
	sorted := CapabilitiesOf(RoleMuseumAdmin).Sorted()
	require.Equal(t, []Capability{CapFirstApproveArtifact, CapManageOwnMuseum, CapSubmitArtifact}, sorted)
}
