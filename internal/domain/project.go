package domain

import (
	"math"
	"time"
)

type Project struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Budget         float64    `json:"budget"`
	Spent          float64    `json:"spent"`
	Status         Status     `json:"status"`
	OrganisationID string     `json:"organisation_id"`
	OwnerID        string     `json:"owner_id"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	CreatedAt      time.Time  `json:"created_at"`

	// Derived locally from phases, tasks and memberships.
	Progress       float64  `json:"progress"`
	TotalTasks     int      `json:"total_tasks"`
	CompletedTasks int      `json:"completed_tasks"`
	PhaseIDs       []string `json:"phase_ids"`
	MemberIDs      []string `json:"member_ids"`
}

// ProgressFor returns the completion percentage rounded to a whole number.
// A project with no tasks has zero progress.
func ProgressFor(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed) / float64(total) * 100)
}

// DisplayID returns a short form of the project ID for tables.
func (p *Project) DisplayID() string {
	if len(p.ID) >= 8 {
		return p.ID[:8]
	}
	return p.ID
}
