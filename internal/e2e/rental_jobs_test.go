package e2e

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	jobmetrics "github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/jobs"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/rentals"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/jobs"
)

var (
	superAdmin = identity.Actor{ID: 1, Role: identity.RoleSuperAdmin, IsActive: true}
	curator    = identity.Actor{ID: 2, Role: identity.RoleMuseumAdmin, MuseumID: 1, IsActive: true}
	renter     = identity.Actor{ID: 9, Role: identity.RoleVisitor, IsActive: true}
)

func TestRentalLifecycleThroughWorker(t *testing.T) {
	ctx := context.Background()
	store := newRentalStore()
	events := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := rentals.NewService(store, catalogue{
		40: {ID: 40, MuseumID: 1, Status: workflow.ArtifactPublished},
	}, authz.NewGate(nil), rentals.Options{Emitter: events, Logger: logger})

	reg := prometheus.NewRegistry()
	q := &queue{}
	worker := &jobs.RentalJobs{Rentals: svc, Queue: q, Logger: logger, Metrics: jobmetrics.NewMetrics(reg), BatchSize: 50}

	start := time.Now().Add(24 * time.Hour)
	rental, err := svc.Request(ctx, renter, rentals.RequestInput{ArtifactID: 40, StartDate: start, EndDate: start.Add(72 * time.Hour), Purpose: "travelling exhibition"})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, superAdmin, rental.ID, workflow.EventFinalApprove, "")
	require.ErrorIs(t, err, shared.ErrOutOfOrderApproval)

	_, err = svc.Apply(ctx, curator, rental.ID, workflow.EventMuseumApprove, "condition report attached")
	require.NoError(t, err)
	_, err = svc.Apply(ctx, superAdmin, rental.ID, workflow.EventFinalApprove, "")
	require.NoError(t, err)

	payment, err := jobs.NewPaymentCompletedTask(jobs.PaymentCompletedPayload{RentalID: rental.ID, PaymentRef: "pay_e2e"})
	require.NoError(t, err)
	require.NoError(t, worker.HandlePaymentCompleted(ctx, payment))
	require.NoError(t, worker.HandlePaymentCompleted(ctx, payment))

	current, err := store.Get(ctx, rental.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.RentalActive, current.Status)

	sweep, err := jobs.NewSweepTask(0)
	require.NoError(t, err)
	require.NoError(t, worker.HandleSweep(ctx, sweep))
	require.Empty(t, q.drain())

	store.endEarly(rental.ID)
	require.NoError(t, worker.HandleSweep(ctx, sweep))
	require.NoError(t, worker.HandleSweep(ctx, sweep))
	scheduled := q.drain()
	require.Len(t, scheduled, 1)
	require.NoError(t, worker.HandlePeriodEnded(ctx, scheduled[0]))

	current, err = store.Get(ctx, rental.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.RentalCompleted, current.Status)

	entries := store.entries()
	require.Len(t, entries, 5)
	for _, e := range entries {
		require.NotEqual(t, e.PreviousState, e.NewState)
	}
	require.Equal(t, identity.SystemActorID, entries[3].ActorID)
	require.Equal(t, identity.SystemActorID, entries[4].ActorID)

	require.Equal(t, []string{
		notify.TypeRentalRequested,
		notify.TypeRentalMuseumApproved,
		notify.TypeRentalApproved,
		notify.TypeRentalActivated,
		notify.TypeRentalCompleted,
	}, events.types())

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(2), counterValue(families, "heritage_jobs_total", map[string]string{"job": jobs.TaskRentalPaymentCompleted, "status": "success"}))
	require.Equal(t, float64(3), counterValue(families, "heritage_jobs_total", map[string]string{"job": jobs.TaskRentalSweep, "status": "success"}))
	require.Equal(t, float64(1), counterValue(families, "heritage_jobs_total", map[string]string{"job": jobs.TaskRentalPeriodEnded, "status": "success"}))
}

func TestPeriodEndedOnPendingRentalIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := newRentalStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := rentals.NewService(store, catalogue{
		40: {ID: 40, MuseumID: 1, Status: workflow.ArtifactPublished},
	}, authz.NewGate(nil), rentals.Options{Logger: logger})
	reg := prometheus.NewRegistry()
	worker := &jobs.RentalJobs{Rentals: svc, Queue: &queue{}, Logger: logger, Metrics: jobmetrics.NewMetrics(reg)}

	start := time.Now().Add(24 * time.Hour)
	rental, err := svc.Request(ctx, renter, rentals.RequestInput{ArtifactID: 40, StartDate: start, EndDate: start.Add(time.Hour), Purpose: "study"})
	require.NoError(t, err)

	task, err := jobs.NewPeriodEndedTask(rental.ID)
	require.NoError(t, err)
	require.Error(t, worker.HandlePeriodEnded(ctx, task))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(1), counterValue(families, "heritage_jobs_failures_total", map[string]string{"job": jobs.TaskRentalPeriodEnded}))
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}

var _ rentals.ArtifactReader = catalogue(nil)
