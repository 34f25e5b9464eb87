package rentals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/artifacts"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

type memRepo struct {
	mu        sync.Mutex
	rentals   map[int64]Rental
	audits    []audit.Entry
	claims    map[string]bool
	nextID    int64
	// beforeTx runs once, outside the lock, before the next transaction starts.
	beforeTx func()
	// failAudit makes InsertAudit fail so rollback can be observed.
	failAudit error
}

func newMemRepo() *memRepo {
	return &memRepo{rentals: map[int64]Rental{}, claims: map[string]bool{}}
}

func (m *memRepo) seed(r Rental) Rental {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.rentals[r.ID] = r
	return r
}

func (m *memRepo) state(id int64) workflow.RentalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rentals[id].State()
}

func (m *memRepo) auditEntries() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.audits...)
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	hook := m.beforeTx
	m.beforeTx = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rentals := make(map[int64]Rental, len(m.rentals))
	for k, v := range m.rentals {
		rentals[k] = v
	}
	claims := make(map[string]bool, len(m.claims))
	for k, v := range m.claims {
		claims[k] = v
	}
	audits := append([]audit.Entry(nil), m.audits...)
	nextID := m.nextID
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.rentals, m.audits, m.claims, m.nextID = rentals, audits, claims, nextID
		return err
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[id]
	if !ok {
		return Rental{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Rental{}
	for _, r := range m.rentals {
		if f.MuseumID != 0 && r.MuseumID != f.MuseumID {
			continue
		}
		if f.RenterID != 0 && r.RenterID != f.RenterID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Rental{}
	for _, r := range m.rentals {
		if r.Status == workflow.RentalActive && r.EndDate.Before(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memTx struct {
	m *memRepo
}

func (t *memTx) Create(_ context.Context, r Rental) (Rental, error) {
	t.m.nextID++
	r.ID = t.m.nextID
	t.m.rentals[r.ID] = r
	return r, nil
}

func (t *memTx) CompareAndSet(_ context.Context, from workflow.RentalState, next Rental) error {
	current, ok := t.m.rentals[next.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.State() != from {
		return fmt.Errorf("%w: rental %d", shared.ErrStaleState, next.ID)
	}
	t.m.rentals[next.ID] = next
	return nil
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

type memArtifacts map[int64]artifacts.Artifact

func (m memArtifacts) Get(_ context.Context, id int64) (artifacts.Artifact, error) {
	a, ok := m[id]
	if !ok {
		return artifacts.Artifact{}, shared.ErrNotFound
	}
	return a, nil
}

func (t *memTx) ClaimKey(_ context.Context, scope, key string) error {
	if t.m.claims[scope+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	t.m.claims[scope+"/"+key] = true
	return nil
}

func (m *memRepo) claimed(scope, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[scope+"/"+key]
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

var _ ArtifactReader = memArtifacts(nil)
