// Package audit records privileged mutations and serves scoped listings of them.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Entry is one immutable record of a privileged mutation. ActorID 0 marks system events.
type Entry struct {
	ID            int64     `json:"id"`
	ActorID       int64     `json:"actor_id"`
	Action        string    `json:"action"`
	ResourceType  string    `json:"resource_type"`
	ResourceID    int64     `json:"resource_id"`
	MuseumID      int64     `json:"museum_id,omitempty"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	At            time.Time `json:"timestamp"`
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.Action) == "":
		return fmt.Errorf("%w: audit action required", shared.ErrValidation)
	case strings.TrimSpace(e.ResourceType) == "":
		return fmt.Errorf("%w: audit resource type required", shared.ErrValidation)
	case e.ResourceID <= 0:
		return fmt.Errorf("%w: audit resource id required", shared.ErrValidation)
	case e.PreviousState == e.NewState:
		return fmt.Errorf("%w: audit entry for %s %d does not change state", shared.ErrValidation, e.ResourceType, e.ResourceID)
	}
	return nil
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	ActorID      *int64
	ResourceType string
	ResourceID   int64
	MuseumID     int64
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

const (
	defaultLimit = 50
	maxLimit     = 200
	maxExport    = 10000
)

func (f Filter) normalise() (Filter, error) {
	f.ResourceType = strings.TrimSpace(f.ResourceType)
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return Filter{}, fmt.Errorf("%w: from after to", shared.ErrValidation)
	}
	if f.Offset < 0 {
		return Filter{}, fmt.Errorf("%w: negative offset", shared.ErrValidation)
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return f, nil
}

// PagingInfo describes the page returned by List.
type PagingInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasNext bool `json:"has_next"`
}

// Result wraps a page of entries.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
