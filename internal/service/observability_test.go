package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alexanderramin/sitesync/internal/domain"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (r *recordingObserver) ObserveUseCase(_ context.Context, e UseCaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestUseCaseObserver_SeesSuccessAndFailure(t *testing.T) {
	f := setup(t)
	rec := &recordingObserver{}
	svc := NewProjectService(f.deps, nil, rec)
	ctx := context.Background()

	require.Error(t, svc.Create(ctx, &domain.Project{}))
	require.NoError(t, svc.Create(ctx, &domain.Project{Name: "Annex", OrganisationID: f.org.ID, OwnerID: f.admin.ID}))

	require.Len(t, rec.events, 2)
	assert.Equal(t, "create-project", rec.events[0].Name)
	assert.False(t, rec.events[0].Success)
	assert.Error(t, rec.events[0].Err)
	assert.True(t, rec.events[1].Success)
	assert.Equal(t, "Annex", rec.events[1].Fields["name"])
}

func TestLogUseCaseObserver_LevelFollowsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs := NewLogUseCaseObserver(zap.New(core))

	obs.ObserveUseCase(context.Background(), UseCaseEvent{Name: "approve-request", Success: true})
	obs.ObserveUseCase(context.Background(), UseCaseEvent{Name: "approve-request", Err: ErrRequestClosed})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "approve-request", entries[1].ContextMap()["use_case"])

	assert.IsType(t, NoopUseCaseObserver{}, NewLogUseCaseObserver(nil))
}
