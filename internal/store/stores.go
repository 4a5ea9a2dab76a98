package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/kv"
	"github.com/alexanderramin/sitesync/internal/report"
)

// Store names. Each doubles as the prefix of its snapshot key.
const (
	NameProfile            = "profile"
	NameOrganisation       = "organisation"
	NameOrganisationMember = "organisation-member"
	NameProject            = "project"
	NameProjectMember      = "project-member"
	NamePhase              = "phase"
	NameTask               = "task"
	NameMaterial           = "material"
	NameRequest            = "request"
	NameMaterialPricing    = "material-pricing"
	NameProjectTemplate    = "project-template"
)

// Stores bundles one store per entity type. It is constructed once per
// session and passed to the hydrator, the multiplexer and the views.
type Stores struct {
	Profiles            *Store[domain.Profile]
	Organisations       *Store[domain.Organisation]
	OrganisationMembers *Store[domain.OrganisationProfile]
	Projects            *Store[domain.Project]
	ProjectMembers      *Store[domain.ProjectProfile]
	Phases              *Store[domain.Phase]
	Tasks               *Store[domain.Task]
	Materials           *Store[domain.Material]
	Requests            *Store[domain.Request]
	MaterialPricing     *Store[domain.MaterialPricing]
	Templates           *Store[domain.ProjectTemplate]
}

// NewStores creates the bundle. A nil kvs disables persistence.
func NewStores(kvs kv.Store, sink report.Sink) *Stores {
	return &Stores{
		Profiles: New(NameProfile, func(p domain.Profile) string { return p.ID },
			persist[domain.Profile](kvs, sink)...),
		Organisations: New(NameOrganisation, func(o domain.Organisation) string { return o.ID },
			append(persist[domain.Organisation](kvs, sink),
				WithParent(func(o domain.Organisation) string { return o.OwnerID }))...),
		OrganisationMembers: New(NameOrganisationMember, func(m domain.OrganisationProfile) string { return m.ID },
			append(persist[domain.OrganisationProfile](kvs, sink),
				WithParent(func(m domain.OrganisationProfile) string { return m.OrganisationID }))...),
		Projects: New(NameProject, func(p domain.Project) string { return p.ID },
			append(persist[domain.Project](kvs, sink),
				WithParent(func(p domain.Project) string { return p.OrganisationID }))...),
		ProjectMembers: New(NameProjectMember, func(m domain.ProjectProfile) string { return m.ID },
			append(persist[domain.ProjectProfile](kvs, sink),
				WithParent(func(m domain.ProjectProfile) string { return m.ProjectID }))...),
		Phases: New(NamePhase, func(p domain.Phase) string { return p.ID },
			append(persist[domain.Phase](kvs, sink),
				WithParent(func(p domain.Phase) string { return p.ProjectID }))...),
		Tasks: New(NameTask, func(t domain.Task) string { return t.ID },
			append(persist[domain.Task](kvs, sink),
				WithParent(func(t domain.Task) string { return t.PhaseID }))...),
		Materials: New(NameMaterial, func(m domain.Material) string { return m.ID },
			append(persist[domain.Material](kvs, sink),
				WithParent(func(m domain.Material) string { return m.TaskID }))...),
		Requests: New(NameRequest, func(r domain.Request) string { return r.ID },
			append(persist[domain.Request](kvs, sink),
				WithParent(func(r domain.Request) string { return r.RequestedTo }))...),
		MaterialPricing: New(NameMaterialPricing, func(m domain.MaterialPricing) string { return m.ID },
			append(persist[domain.MaterialPricing](kvs, sink),
				WithParent(func(m domain.MaterialPricing) string { return m.OrganisationID }))...),
		Templates: New(NameProjectTemplate, func(t domain.ProjectTemplate) string { return t.ID },
			append(persist[domain.ProjectTemplate](kvs, sink),
				WithParent(func(t domain.ProjectTemplate) string { return t.OrganisationID }))...),
	}
}

func persist[T any](kvs kv.Store, sink report.Sink) []Option[T] {
	if kvs == nil {
		return nil
	}
	return []Option[T]{WithPersistence[T](kvs, sink)}
}

// Restore loads every persisted snapshot. Stores that fail to restore are
// left empty and the errors are joined.
func (s *Stores) Restore(ctx context.Context) error {
	var errs []error
	for _, r := range s.restorers() {
		if err := r(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restoring stores: %w", errors.Join(errs...))
	}
	return nil
}

// Clear empties every store and removes its snapshot.
func (s *Stores) Clear() {
	s.Profiles.Clear()
	s.Organisations.Clear()
	s.OrganisationMembers.Clear()
	s.Projects.Clear()
	s.ProjectMembers.Clear()
	s.Phases.Clear()
	s.Tasks.Clear()
	s.Materials.Clear()
	s.Requests.Clear()
	s.MaterialPricing.Clear()
	s.Templates.Clear()
}

// Counts returns the number of entries per store name.
func (s *Stores) Counts() map[string]int {
	return map[string]int{
		NameProfile:            s.Profiles.Len(),
		NameOrganisation:       s.Organisations.Len(),
		NameOrganisationMember: s.OrganisationMembers.Len(),
		NameProject:            s.Projects.Len(),
		NameProjectMember:      s.ProjectMembers.Len(),
		NamePhase:              s.Phases.Len(),
		NameTask:               s.Tasks.Len(),
		NameMaterial:           s.Materials.Len(),
		NameRequest:            s.Requests.Len(),
		NameMaterialPricing:    s.MaterialPricing.Len(),
		NameProjectTemplate:    s.Templates.Len(),
	}
}

func (s *Stores) restorers() []func(context.Context) error {
	return []func(context.Context) error{
		s.Profiles.Restore,
		s.Organisations.Restore,
		s.OrganisationMembers.Restore,
		s.Projects.Restore,
		s.ProjectMembers.Restore,
		s.Phases.Restore,
		s.Tasks.Restore,
		s.Materials.Restore,
		s.Requests.Restore,
		s.MaterialPricing.Restore,
		s.Templates.Restore,
	}
}
