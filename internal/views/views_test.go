package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
)

func TestOrganisationDetails(t *testing.T) {
	s := OrganisationDetails([]domain.Project{{Budget: 1000, Spent: 500}, {Budget: 2000, Spent: 500}})
	assert.Equal(t, 3000.0, s.TotalBudget)
	assert.Equal(t, 1000.0, s.TotalSpent)
	assert.InDelta(t, 33.33, s.BudgetUtilization, 0.01)
}

func TestOrganisationDetails_EmptyIsFullyUtilised(t *testing.T) {
	s := OrganisationDetails(nil)
	assert.Zero(t, s.TotalBudget)
	assert.Zero(t, s.TotalSpent)
	assert.Equal(t, 100.0, s.BudgetUtilization)
}

func TestProjectDetails_OrdersPhasesAndTotals(t *testing.T) {
	project := domain.Project{ID: "proj1", Progress: 50}
	d := ProjectDetails(project, []domain.Phase{
		{ID: "p2", Order: 2, Budget: 300, Spent: 100},
		{ID: "p1", Order: 1, Budget: 100, Spent: 100},
	})
	require.Len(t, d.Phases, 2)
	assert.Equal(t, "p1", d.Phases[0].ID)
	assert.Equal(t, 2, d.PhaseCount)
	assert.Equal(t, 400.0, d.TotalBudget)
	assert.Equal(t, 200.0, d.TotalSpent)
	assert.Equal(t, 50.0, d.BudgetUtilization)
	assert.Equal(t, 50.0, d.Progress)
}

func TestDetailsFromStores(t *testing.T) {
	s := store.NewStores(nil, nil)
	s.Projects.Set([]domain.Project{
		{ID: "a", OrganisationID: "org", Budget: 100, Spent: 50},
		{ID: "b", OrganisationID: "org", Budget: 100, Spent: 0},
		{ID: "c", OrganisationID: "other", Budget: 500},
	})
	s.Phases.Add(domain.Phase{ID: "ph", ProjectID: "a", Budget: 80, Spent: 40})

	org := OrganisationDetailsFromStores(s, "org")
	assert.Equal(t, 200.0, org.TotalBudget)
	assert.Equal(t, 25.0, org.BudgetUtilization)

	d, ok := ProjectDetailsFromStores(s, "a")
	require.True(t, ok)
	assert.Equal(t, 50.0, d.BudgetUtilization)

	_, ok = ProjectDetailsFromStores(s, "missing")
	assert.False(t, ok)
}

func TestResolveRequest(t *testing.T) {
	s := store.NewStores(nil, nil)
	s.Profiles.Set([]domain.Profile{{ID: "boss", FullName: "Boss"}, {ID: "worker", FullName: "Worker"}})
	s.Projects.Add(domain.Project{ID: "proj", Name: "Riverside"})
	s.Phases.Add(domain.Phase{ID: "ph", ProjectID: "proj"})
	s.Tasks.Add(domain.Task{ID: "t1", PhaseID: "ph", Name: "Pour"})

	raw, err := domain.EncodeRequestData(domain.MaterialRequestData{ProjectID: "proj", TaskID: "t1", MaterialID: "gone", Quantity: 3})
	require.NoError(t, err)
	r := domain.Request{ID: "r1", Type: domain.RequestMaterial, RequestedBy: "worker", RequestedTo: "boss", RequestData: raw}

	res, err := ResolveRequest(s, r)
	require.NoError(t, err)
	require.NotNil(t, res.Requester)
	assert.Equal(t, "Worker", res.Requester.FullName)
	assert.Equal(t, "Boss", res.Recipient.FullName)
	assert.Equal(t, "Riverside", res.Project.Name)
	assert.Equal(t, "ph", res.Phase.ID, "phase follows from the task")
	assert.Equal(t, "Pour", res.Task.Name)
	assert.Nil(t, res.Material)
	assert.Equal(t, "Pour", res.Subject())

	data, ok := res.Data.(*domain.MaterialRequestData)
	require.True(t, ok)
	assert.Equal(t, 3.0, data.Quantity)
}

func TestResolveRequest_UnknownType(t *testing.T) {
	s := store.NewStores(nil, nil)
	s.Profiles.Add(domain.Profile{ID: "boss"})
	res, err := ResolveRequest(s, domain.Request{Type: "Bribe", RequestedTo: "boss"})
	assert.Error(t, err)
	assert.NotNil(t, res.Recipient)
	assert.Nil(t, res.Project)
}
