package e2e

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/artifacts"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/rentals"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

type rentalStore struct {
	mu      sync.Mutex
	rentals map[int64]rentals.Rental
	audits  []audit.Entry
	keys    map[string]bool
	nextID  int64
}

func newRentalStore() *rentalStore {
	return &rentalStore{rentals: map[int64]rentals.Rental{}, keys: map[string]bool{}}
}

// endEarly moves a rental's end date into the past.
func (s *rentalStore) endEarly(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rentals[id]
	r.StartDate = time.Now().Add(-48 * time.Hour)
	r.EndDate = time.Now().Add(-time.Hour)
	s.rentals[id] = r
}

func (s *rentalStore) entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.audits...)
}

func (s *rentalStore) WithTx(ctx context.Context, fn func(context.Context, rentals.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int64]rentals.Rental, len(s.rentals))
	for k, v := range s.rentals {
		snapshot[k] = v
	}
	keys := make(map[string]bool, len(s.keys))
	for k, v := range s.keys {
		keys[k] = v
	}
	audits, nextID := append([]audit.Entry(nil), s.audits...), s.nextID
	if err := fn(ctx, storeTx{s}); err != nil {
		s.rentals, s.audits, s.keys, s.nextID = snapshot, audits, keys, nextID
		return err
	}
	return nil
}

func (s *rentalStore) Get(_ context.Context, id int64) (rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rentals[id]
	if !ok {
		return rentals.Rental{}, shared.ErrNotFound
	}
	return r, nil
}

func (s *rentalStore) List(_ context.Context, _ rentals.ListFilter) ([]rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rentals.Rental, 0, len(s.rentals))
	for _, r := range s.rentals {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *rentalStore) ListExpired(_ context.Context, now time.Time, limit int) ([]rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rentals.Rental
	for _, r := range s.rentals {
		if r.Status == workflow.RentalActive && r.EndDate.Before(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type storeTx struct {
	s *rentalStore
}

func (t storeTx) Create(_ context.Context, r rentals.Rental) (rentals.Rental, error) {
	t.s.nextID++
	r.ID = t.s.nextID
	t.s.rentals[r.ID] = r
	return r, nil
}

func (t storeTx) CompareAndSet(_ context.Context, from workflow.RentalState, next rentals.Rental) error {
	current, ok := t.s.rentals[next.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.State() != from {
		return fmt.Errorf("%w: rental %d", shared.ErrStaleState, next.ID)
	}
	t.s.rentals[next.ID] = next
	return nil
}

func (t storeTx) ClaimKey(_ context.Context, scope, key string) error {
	if t.s.keys[scope+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	t.s.keys[scope+"/"+key] = true
	return nil
}

func (t storeTx) InsertAudit(_ context.Context, e audit.Entry) (audit.Entry, error) {
	e.ID = int64(len(t.s.audits) + 1)
	t.s.audits = append(t.s.audits, e)
	return e, nil
}

type catalogue map[int64]artifacts.Artifact

func (c catalogue) Get(_ context.Context, id int64) (artifacts.Artifact, error) {
	a, ok := c[id]
	if !ok {
		return artifacts.Artifact{}, shared.ErrNotFound
	}
	return a, nil
}

// queue records enqueued tasks and rejects duplicate task ids the way asynq does.
type queue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	ids   map[string]bool
}

func (q *queue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ids == nil {
		q.ids = map[string]bool{}
	}
	key := task.Type() + ":" + string(task.Payload())
	if q.ids[key] {
		return nil, asynq.ErrTaskIDConflict
	}
	q.ids[key] = true
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (q *queue) drain() []*asynq.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
