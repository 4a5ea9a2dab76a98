package views

import (
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
)

// ResolvedRequest is a request with the entities its payload references.
// References that are not in the stores are nil.
type ResolvedRequest struct {
	Request      domain.Request
	Data         any
	Requester    *domain.Profile
	Recipient    *domain.Profile
	Organisation *domain.Organisation
	Project      *domain.Project
	Phase        *domain.Phase
	Task         *domain.Task
	Material     *domain.Material
}

// ResolveRequest decodes the request payload and looks up what it points
// at. The error is the payload decode error; the profiles are resolved
// regardless.
func ResolveRequest(s *store.Stores, r domain.Request) (ResolvedRequest, error) {
	out := ResolvedRequest{
		Request:   r,
		Requester: lookup(s.Profiles, r.RequestedBy),
		Recipient: lookup(s.Profiles, r.RequestedTo),
	}
	data, err := r.DecodeData()
	if err != nil {
		return out, err
	}
	out.Data = data
	refs, err := r.References()
	if err != nil {
		return out, err
	}
	out.Organisation = lookup(s.Organisations, refs.OrganisationID)
	out.Project = lookup(s.Projects, refs.ProjectID)
	out.Phase = lookup(s.Phases, refs.PhaseID)
	out.Task = lookup(s.Tasks, refs.TaskID)
	out.Material = lookup(s.Materials, refs.MaterialID)
	if out.Phase == nil && out.Task != nil {
		out.Phase = lookup(s.Phases, out.Task.PhaseID)
	}
	return out, nil
}

func lookup[T any](st *store.Store[T], id string) *T {
	if id == "" {
		return nil
	}
	v, ok := st.Get(id)
	if !ok {
		return nil
	}
	return &v
}

// Subject returns a short label for what the request is about.
func (r ResolvedRequest) Subject() string {
	switch {
	case r.Material != nil:
		return r.Material.Name
	case r.Task != nil:
		return r.Task.Name
	case r.Project != nil:
		return r.Project.Name
	case r.Organisation != nil:
		return r.Organisation.Name
	}
	return "-"
}
