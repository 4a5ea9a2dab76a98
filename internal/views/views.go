// Package views derives read-only figures from store contents. Nothing here
// is cached; every call recomputes from its inputs.
package views

import (
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
)

// BudgetSummary totals budget and spend over a set of entities.
type BudgetSummary struct {
	TotalBudget       float64
	TotalSpent        float64
	BudgetUtilization float64
}

// Utilization returns spent as a percentage of budget. A zero budget reads
// as fully utilised.
func Utilization(spent, budget float64) float64 {
	if budget == 0 {
		return 100
	}
	return spent / budget * 100
}

// OrganisationDetails totals the budgets and spend of an organisation's projects.
func OrganisationDetails(projects []domain.Project) BudgetSummary {
	var s BudgetSummary
	for _, p := range projects {
		s.TotalBudget += p.Budget
		s.TotalSpent += p.Spent
	}
	s.BudgetUtilization = Utilization(s.TotalSpent, s.TotalBudget)
	return s
}

type ProjectDetail struct {
	Project domain.Project
	// Phases in display order.
	Phases     []domain.Phase
	PhaseCount int
	Progress   float64
	BudgetSummary
}

// ProjectDetails summarises a project from its phases. Phase budgets and
// derived phase spend are totalled; progress is taken from the project.
func ProjectDetails(project domain.Project, phases []domain.Phase) ProjectDetail {
	ordered := make([]domain.Phase, len(phases))
	copy(ordered, phases)
	domain.SortPhases(ordered)

	d := ProjectDetail{
		Project:    project,
		Phases:     ordered,
		PhaseCount: len(ordered),
		Progress:   project.Progress,
	}
	for _, ph := range ordered {
		d.TotalBudget += ph.Budget
		d.TotalSpent += ph.Spent
	}
	d.BudgetUtilization = Utilization(d.TotalSpent, d.TotalBudget)
	return d
}

// ProjectDetailsFromStores looks the project and its phases up in s.
func ProjectDetailsFromStores(s *store.Stores, projectID string) (ProjectDetail, bool) {
	p, ok := s.Projects.Get(projectID)
	if !ok {
		return ProjectDetail{}, false
	}
	return ProjectDetails(p, s.Phases.ByForeignKey(projectID)), true
}

// OrganisationDetailsFromStores totals the projects linked to an organisation.
func OrganisationDetailsFromStores(s *store.Stores, organisationID string) BudgetSummary {
	return OrganisationDetails(s.Projects.ByForeignKey(organisationID))
}
