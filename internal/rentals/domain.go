package rentals

import (
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Slot records one level of rental approval.
type Slot struct {
	Status     workflow.SlotStatus `json:"status"`
	ApprovedBy *int64              `json:"approved_by,omitempty"`
	ApprovedAt *time.Time          `json:"approved_at,omitempty"`
	Comments   string              `json:"comments,omitempty"`
}

// Approvals holds both approval slots.
type Approvals struct {
	MuseumAdmin Slot `json:"museum_admin"`
	SuperAdmin  Slot `json:"super_admin"`
}

// Rental is a request to borrow a published artifact. MuseumID is copied from
// the artifact when the request is made.
type Rental struct {
	ID         int64                 `json:"id"`
	ArtifactID int64                 `json:"artifact_id"`
	MuseumID   int64                 `json:"museum_id"`
	RenterID   int64                 `json:"renter_id"`
	Status     workflow.RentalStatus `json:"status"`
	Approvals  Approvals             `json:"approvals"`
	StartDate  time.Time             `json:"start_date"`
	EndDate    time.Time             `json:"end_date"`
	Purpose    string                `json:"purpose"`
	PaymentRef string                `json:"payment_ref,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// State returns the machine view of the rental.
func (r Rental) State() workflow.RentalState {
	return workflow.RentalState{Status: r.Status, MuseumAdmin: r.Approvals.MuseumAdmin.Status, SuperAdmin: r.Approvals.SuperAdmin.Status}
}

// Target returns the gate's view of the rental.
func (r Rental) Target() authz.Target {
	return authz.Target{
		Resource: ownership.Resource{Type: ownership.ResourceRental, ID: r.ID, MuseumID: r.MuseumID, OwnerID: r.RenterID},
		Rental:   r.State(),
	}
}

// RequestInput describes a new rental request.
type RequestInput struct {
	ArtifactID int64
	StartDate  time.Time
	EndDate    time.Time
	Purpose    string
}

// ListFilter narrows rental listings.
type ListFilter struct {
	MuseumID int64
	RenterID int64
	Status   workflow.RentalStatus
	Limit    int
	Offset   int
}

// TransitionResult is returned by transitions.
type TransitionResult struct {
	Rental Rental       `json:"rental"`
	Audit  *audit.Entry `json:"audit_entry,omitempty"`
	// Replayed is set when a payment reference had already been processed.
	Replayed bool `json:"replayed,omitempty"`
}

func eventType(ev workflow.Event) string {
	switch ev {
	case workflow.EventMuseumApprove:
		return notify.TypeRentalMuseumApproved
	case workflow.EventMuseumReject:
		return notify.TypeRentalMuseumRejected
	case workflow.EventFinalApprove:
		return notify.TypeRentalApproved
	case workflow.EventFinalReject:
		return notify.TypeRentalFinalRejected
	case workflow.EventPaymentCompleted:
		return notify.TypeRentalActivated
	case workflow.EventPeriodEnded:
		return notify.TypeRentalCompleted
	}
	return "rental." + string(ev)
}
