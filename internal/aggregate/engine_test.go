package aggregate

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioStores() *store.Stores {
	s := store.NewStores(nil, nil)
	s.Projects.Add(domain.Project{ID: "proj1", OrganisationID: "org1", PhaseIDs: []string{"p1"}})
	s.Phases.Set([]domain.Phase{
		{ID: "p1", ProjectID: "proj1", Order: 1, TaskIDs: []string{"t1", "t2"}},
		{ID: "p2", ProjectID: "proj1", Order: 2},
	})
	s.Tasks.Set([]domain.Task{
		{ID: "t1", PhaseID: "p1", ProjectID: "proj1", Status: domain.StatusCompleted, Spent: 500, EstimatedDuration: 3},
		{ID: "t2", PhaseID: "p1", ProjectID: "proj1", Status: domain.StatusActive, Spent: 200, EstimatedDuration: 2},
	})
	return s
}

func TestRun_PhaseAggregate(t *testing.T) {
	s := scenarioStores()
	NewEngine(s).Run()

	p1, ok := s.Phases.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 700.0, p1.Spent)
	assert.Equal(t, 5, p1.EstimatedDuration)
	assert.Equal(t, 2, p1.TotalTasks)
	assert.Equal(t, 1, p1.CompletedTasks)
	assert.ElementsMatch(t, []domain.Status{domain.StatusCompleted, domain.StatusActive}, p1.Status)
	assert.Equal(t, []domain.Status{domain.StatusActive, domain.StatusCompleted}, p1.Status, "canonical order")
}

func TestRun_ProjectProgress(t *testing.T) {
	s := scenarioStores()
	NewEngine(s).Run()

	proj, ok := s.Projects.Get("proj1")
	require.True(t, ok)
	assert.Equal(t, 2, proj.TotalTasks)
	assert.Equal(t, 1, proj.CompletedTasks)
	assert.Equal(t, 50.0, proj.Progress)
	assert.Equal(t, []string{"p1", "p2"}, proj.PhaseIDs)
}

func TestRun_Idempotent(t *testing.T) {
	s := scenarioStores()
	e := NewEngine(s)

	e.Run()
	phases, projects := s.Phases.Snapshot(), s.Projects.Snapshot()
	second := e.Run()

	assert.Equal(t, phases, s.Phases.Snapshot())
	assert.Equal(t, projects, s.Projects.Snapshot())
	assert.Zero(t, second.ListsRebuilt)
	assert.Zero(t, second.PhasesUpdated)
	assert.Zero(t, second.ProjectsUpdated)
}

func TestReconcile_DropsStaleTaskIDs(t *testing.T) {
	s := scenarioStores()
	s.Phases.Mutate("p1", func(p *domain.Phase) { p.TaskIDs = []string{"t1", "t2", "gone"} })
	s.Tasks.Add(domain.Task{ID: "t3", PhaseID: "p2", Status: domain.StatusPending})

	NewEngine(s).Reconcile()

	p1, _ := s.Phases.Get("p1")
	p2, _ := s.Phases.Get("p2")
	assert.Equal(t, []string{"t1", "t2"}, p1.TaskIDs)
	assert.Equal(t, []string{"t3"}, p2.TaskIDs)
}

func TestReconcile_LinksOrganisationsAndMembers(t *testing.T) {
	s := scenarioStores()
	s.Organisations.Add(domain.Organisation{ID: "org1"})
	s.Projects.Add(domain.Project{ID: "proj2", OrganisationID: "org1"})
	s.OrganisationMembers.Set([]domain.OrganisationProfile{
		{OrganisationMembership: domain.OrganisationMembership{ID: "om1", OrganisationID: "org1", ProfileID: "u2"}},
		{OrganisationMembership: domain.OrganisationMembership{ID: "om2", OrganisationID: "org1", ProfileID: "u1"}},
	})
	s.ProjectMembers.Add(domain.ProjectProfile{ProjectMembership: domain.ProjectMembership{ID: "pm1", ProjectID: "proj1", ProfileID: "u2"}})
	s.Materials.Add(domain.Material{ID: "m1", TaskID: "t2"})

	NewEngine(s).Run()

	org, _ := s.Organisations.Get("org1")
	assert.Equal(t, []string{"proj1", "proj2"}, org.ProjectIDs)
	assert.Equal(t, []string{"u1", "u2"}, org.MemberIDs)
	proj, _ := s.Projects.Get("proj1")
	assert.Equal(t, []string{"u2"}, proj.MemberIDs)
	t2, _ := s.Tasks.Get("t2")
	assert.Equal(t, []string{"m1"}, t2.MaterialIDs)
}

func TestRun_EmptyPhasePolicy(t *testing.T) {
	tests := []struct {
		name      string
		policy    EmptyPhasePolicy
		wantTotal int
		wantSpent float64
	}{
		{"keep retains last aggregate", KeepEmptyPhase, 2, 700},
		{"reset zeroes aggregate", ResetEmptyPhase, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scenarioStores()
			e := NewEngine(s, WithEmptyPhasePolicy(tt.policy))
			e.Run()

			s.Tasks.Delete("t1")
			s.Tasks.Delete("t2")
			e.Run()

			p1, _ := s.Phases.Get("p1")
			assert.Empty(t, p1.TaskIDs)
			assert.Equal(t, tt.wantTotal, p1.TotalTasks)
			assert.Equal(t, tt.wantSpent, p1.Spent)
		})
	}
}

func TestParseEmptyPhasePolicy(t *testing.T) {
	p, err := ParseEmptyPhasePolicy("")
	require.NoError(t, err)
	assert.Equal(t, KeepEmptyPhase, p)
	p, err = ParseEmptyPhasePolicy("reset")
	require.NoError(t, err)
	assert.Equal(t, ResetEmptyPhase, p)
	_, err = ParseEmptyPhasePolicy("zero")
	assert.Error(t, err)
}

// Random stores must satisfy the progress and status-set invariants.
func TestRun_Invariants(t *testing.T) {
	statuses := []domain.Status{
		domain.StatusInactive, domain.StatusPending, domain.StatusActive,
		domain.StatusReviewing, domain.StatusCompleted,
	}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		s := store.NewStores(nil, nil)
		nProjects := 1 + rng.Intn(3)
		for pi := 0; pi < nProjects; pi++ {
			projID := fmt.Sprintf("proj%d", pi)
			s.Projects.Add(domain.Project{ID: projID})
			for hi := 0; hi < rng.Intn(4); hi++ {
				phaseID := fmt.Sprintf("%s-ph%d", projID, hi)
				s.Phases.Add(domain.Phase{ID: phaseID, ProjectID: projID, Order: hi})
				for ti := 0; ti < rng.Intn(5); ti++ {
					s.Tasks.Add(domain.Task{
						ID:        fmt.Sprintf("%s-t%d", phaseID, ti),
						PhaseID:   phaseID,
						ProjectID: projID,
						Status:    statuses[rng.Intn(len(statuses))],
						Spent:     float64(rng.Intn(1000)),
					})
				}
			}
		}

		NewEngine(s).Run()

		for _, ph := range s.Phases.All() {
			if ph.TotalTasks == 0 {
				continue
			}
			want := map[domain.Status]bool{}
			for _, task := range s.Tasks.ByForeignKey(ph.ID) {
				want[task.Status] = true
			}
			got := map[domain.Status]bool{}
			for _, st := range ph.Status {
				got[st] = true
			}
			assert.Equal(t, want, got, "phase %s status set", ph.ID)
			assert.Len(t, ph.Status, len(want), "phase %s status set has duplicates", ph.ID)
		}
		for _, p := range s.Projects.All() {
			assert.Equal(t, domain.ProgressFor(p.CompletedTasks, p.TotalTasks), p.Progress, "project %s", p.ID)
			if p.TotalTasks == 0 {
				assert.Zero(t, p.Progress)
			}
		}
	}
}
