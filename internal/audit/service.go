package audit

import (
	"context"
	"fmt"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/ownership"
)

// Repository reads stored entries.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Service serves audit listings scoped to the requesting actor.
type Service struct {
	repo Repository
	gate *authz.Gate
}

// NewService constructs the service.
func NewService(repo Repository, gate *authz.Gate) *Service {
	if gate == nil {
		gate = authz.NewGate(nil)
	}
	return &Service{repo: repo, gate: gate}
}

// List returns one page of entries visible to actor. Platform administrators see
// every museum; museum administrators are pinned to their own museum.
func (s *Service) List(ctx context.Context, actor identity.Actor, f Filter) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	f, err := s.scope(actor, f)
	if err != nil {
		return Result{}, err
	}
	f, err = f.normalise()
	if err != nil {
		return Result{}, err
	}
	pageSize := f.Limit
	f.Limit = pageSize + 1
	entries, err := s.repo.List(ctx, f)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Result{
		Entries: entries,
		Paging:  PagingInfo{Limit: pageSize, Offset: f.Offset, HasNext: hasNext},
	}, nil
}

// Export returns every entry matching f visible to actor, capped for safety.
func (s *Service) Export(ctx context.Context, actor identity.Actor, f Filter) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	f, err := s.scope(actor, f)
	if err != nil {
		return nil, err
	}
	f, err = f.normalise()
	if err != nil {
		return nil, err
	}
	f.Limit = maxExport
	f.Offset = 0
	return s.repo.List(ctx, f)
}

func (s *Service) scope(actor identity.Actor, f Filter) (Filter, error) {
	if !actor.Can(identity.CapManageAllMuseums) && f.MuseumID == 0 {
		f.MuseumID = actor.MuseumID
	}
	target := authz.Target{Resource: ownership.Resource{Type: ownership.ResourceAudit, MuseumID: f.MuseumID}}
	decision := s.gate.Authorize(actor, authz.ActionAuditList, target)
	if err := decision.Err(); err != nil {
		return Filter{}, err
	}
	return f, nil
}
