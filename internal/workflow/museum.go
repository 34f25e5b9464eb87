package workflow

// MuseumStatus is the registration state of a museum.
type MuseumStatus string

const (
	MuseumPending  MuseumStatus = "pending"
	MuseumApproved MuseumStatus = "approved"
	MuseumRejected MuseumStatus = "rejected"
)

// MuseumTransition is one row of the museum table.
type MuseumTransition struct {
	From     MuseumStatus
	Event    Event
	To       MuseumStatus
	Verified bool
}

// NextMuseum looks up the row for (from, ev). Only pending museums can be decided.
func NextMuseum(from MuseumStatus, ev Event) (MuseumTransition, error) {
	if from != MuseumPending {
		return MuseumTransition{}, invalid(MachineMuseum, string(from), ev)
	}
	switch ev {
	case EventApprove:
		return MuseumTransition{From: from, Event: ev, To: MuseumApproved, Verified: true}, nil
	case EventReject:
		return MuseumTransition{From: from, Event: ev, To: MuseumRejected}, nil
	}
	return MuseumTransition{}, invalid(MachineMuseum, string(from), ev)
}
