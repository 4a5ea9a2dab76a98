package domain

import (
	"fmt"
	"time"
)

type Task struct {
	ID                 string    `json:"id"`
	PhaseID            string    `json:"phase_id"`
	ProjectID          string    `json:"project_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	AssignedTo         *string   `json:"assigned_to"`
	Status             Status    `json:"status"`
	PlannedBudget      float64   `json:"planned_budget"`
	Spent              float64   `json:"spent"`
	EstimatedDuration  int       `json:"estimated_duration"`
	PaymentCompleted   bool      `json:"payment_completed"`
	MaterialsCompleted bool      `json:"materials_completed"`
	CompletionNotes    string    `json:"completion_notes"`
	RejectionReason    string    `json:"rejection_reason"`
	CreatedAt          time.Time `json:"created_at"`

	// Derived from materials.
	MaterialIDs []string `json:"material_ids"`
}

// IsCompleted reports whether the task counts towards completed totals.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// AddSpend records a payment against the task. Spend is cumulative.
func (t *Task) AddSpend(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("spend amount must not be negative (got %.2f)", amount)
	}
	t.Spent += amount
	return nil
}

// Assignee returns the assigned profile ID, or "" when unassigned.
func (t *Task) Assignee() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}

// Assign sets the assignee and activates an idle task.
func (t *Task) Assign(profileID string) error {
	if t.Status == StatusCompleted {
		return fmt.Errorf("cannot assign completed task %s", t.ID)
	}
	t.AssignedTo = &profileID
	if t.Status == StatusInactive || t.Status == StatusPending || t.Status == "" {
		t.Status = StatusActive
	}
	return nil
}

// Complete marks the task completed with the worker's notes.
func (t *Task) Complete(notes string) {
	t.Status = StatusCompleted
	t.CompletionNotes = notes
	t.RejectionReason = ""
}

// RejectCompletion returns a task under review to active work.
func (t *Task) RejectCompletion(reason string) {
	t.Status = StatusActive
	t.RejectionReason = reason
}

// Remaining returns the planned budget not yet spent. It can be negative
// when the task is over budget.
func (t *Task) Remaining() float64 {
	return t.PlannedBudget - t.Spent
}
