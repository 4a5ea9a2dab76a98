package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type Request struct {
	ID          string          `json:"id"`
	Type        RequestType     `json:"type"`
	RequestedBy string          `json:"requested_by"`
	RequestedTo string          `json:"requested_to"`
	Status      RequestStatus   `json:"status"`
	RequestData json.RawMessage `json:"request_data"`
	PhotoURL    string          `json:"photo_url"`
	Response    string          `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TaskAssignmentData struct {
	ProjectID  string `json:"project_id"`
	PhaseID    string `json:"phase_id"`
	TaskID     string `json:"task_id"`
	AssigneeID string `json:"assignee_id,omitempty"`
}

// Assignee returns the profile to assign on approval. Without an explicit
// assignee the requester asked for the task themselves.
func (d *TaskAssignmentData) Assignee(r *Request) string {
	if d.AssigneeID != "" {
		return d.AssigneeID
	}
	return r.RequestedBy
}

type MaterialRequestData struct {
	ProjectID  string  `json:"project_id"`
	TaskID     string  `json:"task_id"`
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

type PaymentRequestData struct {
	ProjectID string  `json:"project_id"`
	TaskID    string  `json:"task_id"`
	Amount    float64 `json:"amount"`
}

type TaskCompletionData struct {
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
	Notes     string `json:"notes"`
}

type JoinOrganisationData struct {
	OrganisationID string `json:"organisation_id"`
}

type JoinProjectData struct {
	ProjectID string `json:"project_id"`
}

// References holds the entity IDs a request payload points at. Empty fields
// mean the payload does not reference that entity.
type References struct {
	OrganisationID string
	ProjectID      string
	PhaseID        string
	TaskID         string
	MaterialID     string
}

// DecodeData decodes RequestData into the payload struct for the request type.
func (r *Request) DecodeData() (any, error) {
	var target any
	switch r.Type {
	case RequestTaskAssignment:
		target = &TaskAssignmentData{}
	case RequestMaterial:
		target = &MaterialRequestData{}
	case RequestPayment:
		target = &PaymentRequestData{}
	case RequestTaskCompletion:
		target = &TaskCompletionData{}
	case RequestJoinOrganisation:
		target = &JoinOrganisationData{}
	case RequestJoinProject:
		target = &JoinProjectData{}
	default:
		return nil, fmt.Errorf("unknown request type %q", r.Type)
	}
	if len(r.RequestData) == 0 {
		return target, nil
	}
	if err := json.Unmarshal(r.RequestData, target); err != nil {
		return nil, fmt.Errorf("decoding %s request data: %w", r.Type, err)
	}
	return target, nil
}

// References extracts the referenced entity IDs from the payload.
func (r *Request) References() (References, error) {
	data, err := r.DecodeData()
	if err != nil {
		return References{}, err
	}
	switch d := data.(type) {
	case *TaskAssignmentData:
		return References{ProjectID: d.ProjectID, PhaseID: d.PhaseID, TaskID: d.TaskID}, nil
	case *MaterialRequestData:
		return References{ProjectID: d.ProjectID, TaskID: d.TaskID, MaterialID: d.MaterialID}, nil
	case *PaymentRequestData:
		return References{ProjectID: d.ProjectID, TaskID: d.TaskID}, nil
	case *TaskCompletionData:
		return References{ProjectID: d.ProjectID, TaskID: d.TaskID}, nil
	case *JoinOrganisationData:
		return References{OrganisationID: d.OrganisationID}, nil
	case *JoinProjectData:
		return References{ProjectID: d.ProjectID}, nil
	}
	return References{}, nil
}

// IsOpen reports whether the request still awaits a decision.
func (r *Request) IsOpen() bool {
	return r.Status == RequestPending || r.Status == ""
}

// EncodeRequestData marshals a typed payload into the raw request_data form.
func EncodeRequestData(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request data: %w", err)
	}
	return b, nil
}
