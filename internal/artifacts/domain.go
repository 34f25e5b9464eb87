package artifacts

import (
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Artifact is a heritage item moving through review. MuseumID is fixed at creation.
type Artifact struct {
	ID          int64                   `json:"id"`
	MuseumID    int64                   `json:"museum_id"`
	CreatedBy   int64                   `json:"created_by"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Category    string                  `json:"category,omitempty"`
	Period      string                  `json:"period,omitempty"`
	Status      workflow.ArtifactStatus `json:"status"`
	SubmittedAt *time.Time              `json:"submitted_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Reviews     []Review                `json:"reviews"`
}

// Review is one append-only reviewer verdict.
type Review struct {
	ID         int64                `json:"id"`
	ArtifactID int64                `json:"artifact_id"`
	ReviewerID int64                `json:"reviewer_id"`
	Decision   workflow.Decision    `json:"decision"`
	Feedback   string               `json:"feedback,omitempty"`
	Level      workflow.ReviewLevel `json:"level"`
	At         time.Time            `json:"timestamp"`
}

// Target returns the gate's view of the artifact.
func (a Artifact) Target() authz.Target {
	return authz.Target{
		Resource: ownership.Resource{Type: ownership.ResourceArtifact, ID: a.ID, MuseumID: a.MuseumID, OwnerID: a.CreatedBy},
		Artifact: a.Status,
	}
}

// CreateInput describes a new draft.
type CreateInput struct {
	MuseumID    int64
	Title       string
	Description string
	Category    string
	Period      string
}

// ListFilter narrows artifact listings.
type ListFilter struct {
	MuseumID int64
	Status   workflow.ArtifactStatus
	Limit    int
	Offset   int
}

// TransitionResult is returned by Apply. Audit is nil for submissions, which do not change state.
type TransitionResult struct {
	Artifact Artifact     `json:"artifact"`
	Audit    *audit.Entry `json:"audit_entry,omitempty"`
}

// BulkItem is one entry of a bulk request. Event is parsed per item, so an
// unknown name fails only that item.
type BulkItem struct {
	ArtifactID int64
	Event      workflow.Event
	Feedback   string
}

// BulkOutcome reports what happened to one bulk item.
type BulkOutcome struct {
	ArtifactID int64                   `json:"artifact_id"`
	Event      workflow.Event          `json:"event"`
	Applied    bool                    `json:"applied"`
	Status     workflow.ArtifactStatus `json:"status,omitempty"`
	Reason     authz.Reason            `json:"reason,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// BulkReport summarises a bulk request. Incomplete marks a batch cut short by
// cancellation; items after the last outcome were not attempted.
type BulkReport struct {
	Items      []BulkOutcome `json:"items"`
	Applied    int           `json:"applied"`
	Failed     int           `json:"failed"`
	Incomplete bool          `json:"incomplete,omitempty"`
}

func eventType(ev workflow.Event) string {
	switch ev {
	case workflow.EventSubmit:
		return notify.TypeArtifactSubmitted
	case workflow.EventMuseumApprove:
		return notify.TypeArtifactMuseumApproved
	case workflow.EventMuseumReject:
		return notify.TypeArtifactMuseumRejected
	case workflow.EventFinalApprove:
		return notify.TypeArtifactPublished
	case workflow.EventFinalReject:
		return notify.TypeArtifactFinalRejected
	case workflow.EventResubmit:
		return notify.TypeArtifactResubmitted
	}
	return "artifact." + string(ev)
}
