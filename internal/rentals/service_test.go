package rentals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

var (
	superAdmin = identity.Actor{ID: 1, Role: identity.RoleSuperAdmin, IsActive: true}
	adminM1    = identity.Actor{ID: 2, Role: identity.RoleMuseumAdmin, MuseumID: 1, IsActive: true}
	adminM2    = identity.Actor{ID: 3, Role: identity.RoleMuseumAdmin, MuseumID: 2, IsActive: true}
	staffM1    = identity.Actor{ID: 4, Role: identity.RoleMuseumStaff, MuseumID: 1, IsActive: true}
	visitor    = identity.Actor{ID: 5, Role: identity.RoleVisitor, IsActive: true}
	visitor2   = identity.Actor{ID: 6, Role: identity.RoleVisitor, IsActive: true}
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func testArtifacts() memArtifacts {
	return memArtifacts{
		10: {ID: 10, MuseumID: 1, Status: workflow.ArtifactPublished},
		11: {ID: 11, MuseumID: 1, Status: workflow.ArtifactDraft},
	}
}

func newTestService(repo *memRepo, opts Options) *Service {
	svc := NewService(repo, testArtifacts(), authz.NewGate(nil), opts)
	svc.now = func() time.Time { return testNow }
	return svc
}

func pendingRental() Rental {
	state := workflow.NewRentalState()
	return Rental{
		ArtifactID: 10,
		MuseumID:   1,
		RenterID:   visitor.ID,
		Status:     state.Status,
		Approvals:  Approvals{MuseumAdmin: Slot{Status: state.MuseumAdmin}, SuperAdmin: Slot{Status: state.SuperAdmin}},
		StartDate:  testNow.AddDate(0, 0, 7),
		EndDate:    testNow.AddDate(0, 0, 14),
		Purpose:    "exhibition",
	}
}

func request() RequestInput {
	return RequestInput{ArtifactID: 10, StartDate: testNow.AddDate(0, 0, 7), EndDate: testNow.AddDate(0, 0, 14), Purpose: " school exhibition "}
}

func TestRequestInheritsMuseumAndIsAudited(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})

	r, err := svc.Request(context.Background(), visitor, request())
	require.NoError(t, err)
	require.Equal(t, int64(1), r.MuseumID)
	require.Equal(t, visitor.ID, r.RenterID)
	require.Equal(t, "school exhibition", r.Purpose)
	require.Equal(t, workflow.NewRentalState(), r.State())

	entries := repo.auditEntries()
	require.Len(t, entries, 1)
	require.Equal(t, "rental.request", entries[0].Action)
	require.Equal(t, "", entries[0].PreviousState)
	require.Equal(t, "pending_review/museum_admin:pending/super_admin:pending", entries[0].NewState)
}

func TestRequestValidation(t *testing.T) {
	svc := newTestService(newMemRepo(), Options{})
	ctx := context.Background()

	in := request()
	in.ArtifactID = 11
	_, err := svc.Request(ctx, visitor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = request()
	in.ArtifactID = 99
	_, err = svc.Request(ctx, visitor, in)
	require.ErrorIs(t, err, shared.ErrNotFound)

	in = request()
	in.EndDate = in.StartDate
	_, err = svc.Request(ctx, visitor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = request()
	in.EndDate = in.StartDate.AddDate(2, 0, 0)
	_, err = svc.Request(ctx, visitor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = request()
	in.Purpose = "  "
	_, err = svc.Request(ctx, visitor, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Request(ctx, staffM1, request())
	require.ErrorIs(t, err, shared.ErrInsufficientRole)
}

func TestFinalApprovalBeforeMuseumApprovalIsOutOfOrder(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	r := repo.seed(pendingRental())

	_, err := svc.Apply(context.Background(), superAdmin, r.ID, workflow.EventFinalApprove, "")
	require.ErrorIs(t, err, shared.ErrOutOfOrderApproval)

	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	require.Equal(t, authz.ReasonOutOfOrderApproval, denied.Decision.Reason)

	require.Equal(t, workflow.NewRentalState(), repo.state(r.ID))
	require.Empty(t, repo.auditEntries())
}

func TestRentalLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(pendingRental())

	res, err := svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumApprove, "looks fine")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalPendingReview, res.Rental.Status)
	require.Equal(t, workflow.SlotApproved, res.Rental.Approvals.MuseumAdmin.Status)
	require.Equal(t, adminM1.ID, *res.Rental.Approvals.MuseumAdmin.ApprovedBy)
	require.Equal(t, "looks fine", res.Rental.Approvals.MuseumAdmin.Comments)
	require.Equal(t, "pending_review/museum_admin:pending/super_admin:pending", res.Audit.PreviousState)
	require.Equal(t, "pending_review/museum_admin:approved/super_admin:pending", res.Audit.NewState)

	_, err = svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumApprove, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	res, err = svc.Apply(ctx, superAdmin, r.ID, workflow.EventFinalApprove, "")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalPaymentPending, res.Rental.Status)
	require.Equal(t, workflow.SlotApproved, res.Rental.Approvals.SuperAdmin.Status)

	_, err = svc.Apply(ctx, superAdmin, r.ID, workflow.EventPaymentCompleted, "")
	require.ErrorIs(t, err, shared.ErrInsufficientRole)

	res, err = svc.CompletePayment(ctx, r.ID, "pay_123")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalActive, res.Rental.Status)
	require.Equal(t, "pay_123", res.Rental.PaymentRef)
	require.Equal(t, identity.SystemActorID, res.Audit.ActorID)

	res, err = svc.CompletePayment(ctx, r.ID, "pay_123")
	require.NoError(t, err)
	require.True(t, res.Replayed)
	require.Equal(t, workflow.RentalActive, res.Rental.Status)

	res, err = svc.CompletePeriod(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.RentalCompleted, res.Rental.Status)

	entries := repo.auditEntries()
	require.Len(t, entries, 4)
	for _, e := range entries {
		require.NotEqual(t, e.PreviousState, e.NewState)
	}
}

func awaitingPayment() Rental {
	r := pendingRental()
	r.Status = workflow.RentalPaymentPending
	r.Approvals.MuseumAdmin.Status = workflow.SlotApproved
	r.Approvals.SuperAdmin.Status = workflow.SlotApproved
	return r
}

func TestRefusedPaymentLeavesNoClaim(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(pendingRental())

	_, err := svc.CompletePayment(ctx, r.ID, "pay_early")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.False(t, repo.claimed(paymentScope, "pay_early"))

	_, err = svc.CompletePayment(ctx, r.ID, " ")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFailedActivationRollsBackPaymentClaim(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(awaitingPayment())
	repo.failAudit = errors.New("audit store down")

	_, err := svc.CompletePayment(ctx, r.ID, "pay_2")
	require.Error(t, err)
	require.False(t, repo.claimed(paymentScope, "pay_2"))
	require.Equal(t, workflow.RentalPaymentPending, repo.state(r.ID).Status)

	repo.failAudit = nil
	res, err := svc.CompletePayment(ctx, r.ID, "pay_2")
	require.NoError(t, err)
	require.False(t, res.Replayed)
	require.Equal(t, workflow.RentalActive, res.Rental.Status)
	require.True(t, repo.claimed(paymentScope, "pay_2"))
}

func TestConcurrentPaymentDeliveryIsReplay(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(awaitingPayment())
	repo.beforeTx = func() {
		_, err := svc.CompletePayment(ctx, r.ID, "pay_4")
		require.NoError(t, err)
	}

	res, err := svc.CompletePayment(ctx, r.ID, "pay_4")
	require.NoError(t, err)
	require.True(t, res.Replayed)
	require.Equal(t, workflow.RentalActive, res.Rental.Status)
	require.Len(t, repo.auditEntries(), 1)
}

func TestPaymentReferenceSettlesOneRental(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	a := repo.seed(awaitingPayment())
	b := repo.seed(awaitingPayment())

	res, err := svc.CompletePayment(ctx, a.ID, "pay_1")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalActive, res.Rental.Status)

	res, err = svc.CompletePayment(ctx, b.ID, "pay_1")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.False(t, res.Replayed)
	require.Equal(t, workflow.RentalPaymentPending, repo.state(b.ID).Status)
	require.Len(t, repo.auditEntries(), 1)

	res, err = svc.CompletePayment(ctx, a.ID, "pay_1")
	require.NoError(t, err)
	require.True(t, res.Replayed)
	require.Len(t, repo.auditEntries(), 1)

	res, err = svc.CompletePayment(ctx, b.ID, "pay_3")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalActive, res.Rental.Status)
	require.Equal(t, "pay_3", res.Rental.PaymentRef)
}

func TestConcurrentMuseumReviewIsStale(t *testing.T) {
	repo := newMemRepo()
	emitter := &recordingEmitter{}
	svc := newTestService(repo, Options{Emitter: emitter})
	ctx := context.Background()
	r := repo.seed(pendingRental())
	otherAdmin := identity.Actor{ID: 7, Role: identity.RoleMuseumAdmin, MuseumID: 1, IsActive: true}
	repo.beforeTx = func() {
		_, err := svc.Apply(ctx, otherAdmin, r.ID, workflow.EventMuseumApprove, "")
		require.NoError(t, err)
	}

	_, err := svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumReject, "damaged frame")
	require.ErrorIs(t, err, shared.ErrStaleState)

	stored, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.RentalPendingReview, stored.Status)
	require.Equal(t, workflow.SlotApproved, stored.Approvals.MuseumAdmin.Status)
	require.Equal(t, otherAdmin.ID, *stored.Approvals.MuseumAdmin.ApprovedBy)
	entries := repo.auditEntries()
	require.Len(t, entries, 1)
	require.Equal(t, otherAdmin.ID, entries[0].ActorID)
	require.Equal(t, []string{notify.TypeRentalMuseumApproved}, emitter.types())

	_, err = svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumReject, "damaged frame")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestFinalRejectionCannotBeOverturned(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(pendingRental())

	_, err := svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumApprove, "")
	require.NoError(t, err)
	res, err := svc.Apply(ctx, superAdmin, r.ID, workflow.EventFinalReject, "insurance missing")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalRejected, res.Rental.Status)
	require.Equal(t, "insurance missing", res.Rental.Approvals.SuperAdmin.Comments)

	_, err = svc.Apply(ctx, superAdmin, r.ID, workflow.EventFinalApprove, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	require.Equal(t, authz.ReasonInvalidTransition, denied.Decision.Reason)

	state := repo.state(r.ID)
	require.Equal(t, workflow.RentalRejected, state.Status)
	require.Equal(t, workflow.SlotApproved, state.MuseumAdmin)
	require.Equal(t, workflow.SlotRejected, state.SuperAdmin)

	entries := repo.auditEntries()
	require.Len(t, entries, 2)
	require.Equal(t, "rejected/museum_admin:approved/super_admin:rejected", entries[1].NewState)
}

func TestRejectionIsTerminal(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(pendingRental())

	_, err := svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumReject, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	res, err := svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumReject, "not available")
	require.NoError(t, err)
	require.Equal(t, workflow.RentalRejected, res.Rental.Status)

	_, err = svc.Apply(ctx, superAdmin, r.ID, workflow.EventFinalApprove, "")
	require.ErrorIs(t, err, shared.ErrOutOfOrderApproval)
	_, err = svc.Apply(ctx, adminM1, r.ID, workflow.EventMuseumApprove, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestMuseumReviewScope(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(pendingRental())

	_, err := svc.Apply(ctx, adminM2, r.ID, workflow.EventMuseumApprove, "")
	require.ErrorIs(t, err, shared.ErrNotOwner)
	_, err = svc.Apply(ctx, staffM1, r.ID, workflow.EventMuseumApprove, "")
	require.ErrorIs(t, err, shared.ErrInsufficientRole)
	_, err = svc.Apply(ctx, superAdmin, r.ID, workflow.EventMuseumApprove, "")
	require.ErrorIs(t, err, shared.ErrInsufficientRole)
	require.Equal(t, workflow.NewRentalState(), repo.state(r.ID))
}

func TestGetAndListScope(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	ctx := context.Background()
	r := repo.seed(pendingRental())
	other := pendingRental()
	other.MuseumID = 2
	other.RenterID = visitor2.ID
	repo.seed(other)

	_, err := svc.Get(ctx, visitor, r.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, visitor2, r.ID)
	require.ErrorIs(t, err, shared.ErrNotOwner)
	_, err = svc.Get(ctx, adminM2, r.ID)
	require.ErrorIs(t, err, shared.ErrNotOwner)

	items, err := svc.List(ctx, visitor, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	items, err = svc.List(ctx, adminM2, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(2), items[0].MuseumID)
	items, err = svc.List(ctx, superAdmin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestExpiredListsActiveRentalsPastEndDate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})

	ended := pendingRental()
	ended.Status = workflow.RentalActive
	ended.EndDate = testNow.Add(-time.Hour)
	ended = repo.seed(ended)

	running := pendingRental()
	running.Status = workflow.RentalActive
	repo.seed(running)

	pending := pendingRental()
	pending.EndDate = testNow.Add(-time.Hour)
	repo.seed(pending)

	ids, err := svc.Expired(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, []int64{ended.ID}, ids)
}

func TestAuthorizeRental(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, Options{})
	r := repo.seed(pendingRental())

	d, err := svc.Authorize(context.Background(), superAdmin, r.ID, workflow.EventFinalApprove)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, authz.ReasonOutOfOrderApproval, d.Reason)

	_, err = svc.Authorize(context.Background(), superAdmin, r.ID, workflow.EventSubmit)
	require.ErrorIs(t, err, shared.ErrValidation)
}
