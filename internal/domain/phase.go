package domain

import (
	"sort"
	"time"
)

type Phase struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Budget    float64   `json:"budget"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`

	// Derived from child tasks.
	Spent             float64  `json:"spent"`
	EstimatedDuration int      `json:"estimated_duration"`
	Status            []Status `json:"status"`
	TotalTasks        int      `json:"total_tasks"`
	CompletedTasks    int      `json:"completed_tasks"`
	TaskIDs           []string `json:"task_ids"`
}

// StatusSet returns the distinct statuses in canonical order.
func StatusSet(statuses []Status) []Status {
	seen := make(map[Status]bool, len(statuses))
	var out []Status
	for _, s := range statuses {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank() != out[j].Rank() {
			return out[i].Rank() < out[j].Rank()
		}
		return out[i] < out[j]
	})
	return out
}

// HasStatus reports whether any child task of the phase is in status s.
func (p *Phase) HasStatus(s Status) bool {
	for _, st := range p.Status {
		if st == s {
			return true
		}
	}
	return false
}

// SortPhases orders phases by their display order, then by ID.
func SortPhases(phases []Phase) {
	sort.SliceStable(phases, func(i, j int) bool {
		if phases[i].Order != phases[j].Order {
			return phases[i].Order < phases[j].Order
		}
		return phases[i].ID < phases[j].ID
	})
}
