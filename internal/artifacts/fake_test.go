package artifacts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

type memRepo struct {
	mu        sync.Mutex
	artifacts map[int64]Artifact
	reviews   map[int64][]Review
	audits    []audit.Entry
	nextID    int64
	// failAudit makes InsertAudit fail so rollback can be observed.
	failAudit error
	// beforeCAS runs inside the tx just before the conditional update.
	beforeCAS func(m *memRepo, id int64)
}

func newMemRepo() *memRepo {
	return &memRepo{artifacts: map[int64]Artifact{}, reviews: map[int64][]Review{}}
}

func (m *memRepo) seed(a Artifact) Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.artifacts[a.ID] = a
	return a
}

func (m *memRepo) auditEntries() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.audits...)
}

func (m *memRepo) status(id int64) workflow.ArtifactStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts[id].Status
}

type memSnapshot struct {
	artifacts map[int64]Artifact
	reviews   map[int64][]Review
	audits    []audit.Entry
	nextID    int64
}

func (m *memRepo) snapshot() memSnapshot {
	s := memSnapshot{artifacts: map[int64]Artifact{}, reviews: map[int64][]Review{}, nextID: m.nextID}
	for k, v := range m.artifacts {
		s.artifacts[k] = v
	}
	for k, v := range m.reviews {
		s.reviews[k] = append([]Review(nil), v...)
	}
	s.audits = append([]audit.Entry(nil), m.audits...)
	return s
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.artifacts, m.reviews, m.audits, m.nextID = snap.artifacts, snap.reviews, snap.audits, snap.nextID
		return err
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return Artifact{}, shared.ErrNotFound
	}
	a.Reviews = append([]Review{}, m.reviews[id]...)
	return a, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Artifact{}
	for _, a := range m.artifacts {
		if f.MuseumID != 0 && a.MuseumID != f.MuseumID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTx struct {
	m *memRepo
}

func (t *memTx) Create(_ context.Context, a Artifact) (Artifact, error) {
	t.m.nextID++
	a.ID = t.m.nextID
	t.m.artifacts[a.ID] = a
	return a, nil
}

func (t *memTx) CompareAndSetStatus(_ context.Context, id int64, from, to workflow.ArtifactStatus, at time.Time) error {
	if t.m.beforeCAS != nil {
		t.m.beforeCAS(t.m, id)
	}
	a, ok := t.m.artifacts[id]
	if !ok {
		return shared.ErrNotFound
	}
	if a.Status != from {
		return fmt.Errorf("%w: artifact %d", shared.ErrStaleState, id)
	}
	a.Status = to
	a.UpdatedAt = at
	t.m.artifacts[id] = a
	return nil
}

func (t *memTx) MarkSubmitted(_ context.Context, id int64, at time.Time) error {
	a, ok := t.m.artifacts[id]
	if !ok {
		return shared.ErrNotFound
	}
	if a.Status != workflow.ArtifactDraft {
		return shared.ErrStaleState
	}
	a.SubmittedAt = &at
	t.m.artifacts[id] = a
	return nil
}

func (t *memTx) AppendReview(_ context.Context, rv Review) (Review, error) {
	rv.ID = int64(len(t.m.reviews[rv.ArtifactID]) + 1)
	t.m.reviews[rv.ArtifactID] = append(t.m.reviews[rv.ArtifactID], rv)
	return rv, nil
}

func (t *memTx) InsertAudit(_ context.Context, e audit.Entry) (audit.Entry, error) {
	if t.m.failAudit != nil {
		return audit.Entry{}, t.m.failAudit
	}
	if err := e.Validate(); err != nil {
		return audit.Entry{}, err
	}
	e.ID = int64(len(t.m.audits) + 1)
	t.m.audits = append(t.m.audits, e)
	return e, nil
}

var errAuditDown = errors.New("audit table unavailable")
