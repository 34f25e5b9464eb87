package workflow

// ArtifactStatus is the lifecycle state of an artifact.
type ArtifactStatus string

const (
	ArtifactDraft         ArtifactStatus = "draft"
	ArtifactPendingReview ArtifactStatus = "pending-review"
	ArtifactPublished     ArtifactStatus = "published"
	ArtifactRejected      ArtifactStatus = "rejected"
)

// Valid reports whether s is a known artifact status.
func (s ArtifactStatus) Valid() bool {
	switch s {
	case ArtifactDraft, ArtifactPendingReview, ArtifactPublished, ArtifactRejected:
		return true
	}
	return false
}

// ArtifactTransition is one row of the artifact table.
type ArtifactTransition struct {
	From     ArtifactStatus
	Event    Event
	To       ArtifactStatus
	Level    ReviewLevel
	Decision Decision
}

// ChangesState reports whether applying the row moves the artifact. Submission does not.
func (t ArtifactTransition) ChangesState() bool { return t.From != t.To }

// Reviewed reports whether the row appends a review record.
func (t ArtifactTransition) Reviewed() bool { return t.Level != LevelNone }

var artifactRows = []ArtifactTransition{
	{From: ArtifactDraft, Event: EventSubmit, To: ArtifactDraft},
	{From: ArtifactDraft, Event: EventMuseumApprove, To: ArtifactPendingReview, Level: LevelMuseumAdmin, Decision: DecisionApproved},
	{From: ArtifactDraft, Event: EventMuseumReject, To: ArtifactRejected, Level: LevelMuseumAdmin, Decision: DecisionRejected},
	{From: ArtifactPendingReview, Event: EventFinalApprove, To: ArtifactPublished, Level: LevelFinal, Decision: DecisionApproved},
	{From: ArtifactPendingReview, Event: EventFinalReject, To: ArtifactRejected, Level: LevelFinal, Decision: DecisionRejected},
	{From: ArtifactRejected, Event: EventResubmit, To: ArtifactDraft},
}

// NextArtifact looks up the row for (from, ev).
func NextArtifact(from ArtifactStatus, ev Event) (ArtifactTransition, error) {
	for _, row := range artifactRows {
		if row.From == from && row.Event == ev {
			return row, nil
		}
	}
	return ArtifactTransition{}, invalid(MachineArtifact, string(from), ev)
}

// ArtifactEvents lists the events the artifact machine understands.
func ArtifactEvents() []Event {
	return []Event{EventSubmit, EventMuseumApprove, EventMuseumReject, EventFinalApprove, EventFinalReject, EventResubmit}
}
