package domain

import "time"

// ProjectTemplate is an organisation's reusable phase/task breakdown.
type ProjectTemplate struct {
	ID             string          `json:"id"`
	OrganisationID string          `json:"organisation_id"`
	Name           string          `json:"name"`
	Phases         []TemplatePhase `json:"phases"`
	CreatedAt      time.Time       `json:"created_at"`
}

type TemplatePhase struct {
	Name   string         `json:"name"`
	Budget float64        `json:"budget"`
	Tasks  []TemplateTask `json:"tasks"`
}

type TemplateTask struct {
	Name              string  `json:"name"`
	PlannedBudget     float64 `json:"planned_budget"`
	EstimatedDuration int     `json:"estimated_duration"`
}

// TotalBudget sums the phase budgets of the template.
func (t *ProjectTemplate) TotalBudget() float64 {
	var total float64
	for _, p := range t.Phases {
		total += p.Budget
	}
	return total
}
