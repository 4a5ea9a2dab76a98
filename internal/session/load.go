package session

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/store"
)

// batch accumulates fetched rows until the run commits. Appends are
// concurrent across fan-out goroutines.
type batch struct {
	mu             sync.Mutex
	requests       []domain.Request
	profiles       []domain.Profile
	organisations  []domain.Organisation
	orgMembers     []domain.OrganisationMembership
	projects       []domain.Project
	projectMembers []domain.ProjectMembership
	phases         []domain.Phase
	tasks          []domain.Task
	materials      []domain.Material
	pricing        []domain.MaterialPricing
	templates      []domain.ProjectTemplate
}

func newBatch() *batch { return &batch{} }

func (b *batch) add(fn func(b *batch)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// apply writes the batch into the stores. Membership rows are decorated with
// profiles from the same batch, falling back to the profile store.
func (b *batch) apply(s *store.Stores) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s.Profiles.Set(b.profiles)
	s.Requests.Set(b.requests)
	s.Organisations.Set(b.organisations)
	s.Projects.Set(b.projects)
	s.Phases.Set(b.phases)
	s.Tasks.Set(b.tasks)
	s.Materials.Set(b.materials)
	s.MaterialPricing.Set(b.pricing)
	s.Templates.Set(b.templates)

	orgMembers := make([]domain.OrganisationProfile, 0, len(b.orgMembers))
	for _, m := range b.orgMembers {
		orgMembers = append(orgMembers, domain.OrganisationProfile{OrganisationMembership: m, Profile: profileOf(s, m.ProfileID)})
	}
	s.OrganisationMembers.Set(orgMembers)

	projectMembers := make([]domain.ProjectProfile, 0, len(b.projectMembers))
	for _, m := range b.projectMembers {
		projectMembers = append(projectMembers, domain.ProjectProfile{ProjectMembership: m, Profile: profileOf(s, m.ProfileID)})
	}
	s.ProjectMembers.Set(projectMembers)
}

func profileOf(s *store.Stores, id string) *domain.Profile {
	p, ok := s.Profiles.Get(id)
	if !ok {
		return nil
	}
	return &p
}

// loader runs the fetches of one hydration run.
type loader struct {
	h     *Hydrator
	res   *Result
	batch *batch
	mu    sync.Mutex
}

func (l *loader) fail(f report.Failure) {
	l.mu.Lock()
	l.res.Failures = append(l.res.Failures, f)
	l.mu.Unlock()
	l.h.sink.Report(f)
}

// fetch runs one list query and reports a fetch failure instead of
// returning it.
func fetch[T any](ctx context.Context, l *loader, entity, parentID string, list func(context.Context) ([]*T, error)) ([]T, bool) {
	rows, err := list(ctx)
	if err != nil {
		l.fail(report.Failure{Kind: report.KindFetch, Op: "list", Entity: entity, ID: parentID, Err: err})
		return nil, false
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out, true
}

func (l *loader) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(l.h.concurrency)
	return g
}

// loadRoot fetches the requests of the user and then every profile. It
// reports whether either fetch failed.
func (l *loader) loadRoot(ctx context.Context, id auth.Identity) bool {
	requests, okReq := fetch(ctx, l, store.NameRequest, id.UserID, func(ctx context.Context) ([]*domain.Request, error) {
		return l.h.repos.Requests.ListForUser(ctx, id.UserID)
	})
	profiles, okProf := fetch(ctx, l, store.NameProfile, "", l.h.repos.Profiles.List)
	l.batch.add(func(b *batch) {
		b.requests = requests
		b.profiles = profiles
	})
	return !okReq || !okProf
}

// loadAdmin fans out from owned organisations and projects down to
// materials. Siblings load in parallel; each level waits for the previous.
func (l *loader) loadAdmin(ctx context.Context, id auth.Identity) {
	var orgs []domain.Organisation
	var projects []domain.Project
	g := l.group()
	g.Go(func() error {
		orgs, _ = fetch(ctx, l, store.NameOrganisation, id.UserID, func(ctx context.Context) ([]*domain.Organisation, error) {
			return l.h.repos.Organisations.ListByOwner(ctx, id.UserID)
		})
		return nil
	})
	g.Go(func() error {
		projects, _ = fetch(ctx, l, store.NameProject, id.UserID, func(ctx context.Context) ([]*domain.Project, error) {
			return l.h.repos.Projects.ListByOwner(ctx, id.UserID)
		})
		return nil
	})
	_ = g.Wait()
	l.batch.add(func(b *batch) {
		b.organisations = orgs
		b.projects = projects
	})

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	// Phase trees load next to the member fetches, outside the limited group.
	var trees errgroup.Group
	trees.Go(func() error {
		l.loadProjectTrees(ctx, ids)
		return nil
	})

	g = l.group()
	for _, o := range orgs {
		l.loadOrganisationChildren(ctx, g, o.ID)
	}
	for _, p := range projects {
		l.loadProjectMembers(ctx, g, p.ID)
	}
	_ = g.Wait()
	_ = trees.Wait()
}

// loadMember fetches the organisations and projects the user belongs to.
// Phase trees load only for projects opened earlier in this session.
func (l *loader) loadMember(ctx context.Context, id auth.Identity, details map[string]bool) {
	var orgs []domain.Organisation
	var projects []domain.Project
	g := l.group()
	g.Go(func() error {
		orgs, _ = fetch(ctx, l, store.NameOrganisation, id.UserID, func(ctx context.Context) ([]*domain.Organisation, error) {
			return l.h.repos.Organisations.ListForMember(ctx, id.UserID)
		})
		return nil
	})
	g.Go(func() error {
		projects, _ = fetch(ctx, l, store.NameProject, id.UserID, func(ctx context.Context) ([]*domain.Project, error) {
			return l.h.repos.Projects.ListForMember(ctx, id.UserID)
		})
		return nil
	})
	_ = g.Wait()
	l.batch.add(func(b *batch) {
		b.organisations = orgs
		b.projects = projects
	})

	var ids []string
	for _, p := range projects {
		if details[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	l.loadProjectTrees(ctx, ids)
}

func (l *loader) loadOrganisationChildren(ctx context.Context, g *errgroup.Group, orgID string) {
	g.Go(func() error {
		members, _ := fetch(ctx, l, store.NameOrganisationMember, orgID, func(ctx context.Context) ([]*domain.OrganisationMembership, error) {
			return l.h.repos.OrganisationMembers.ListByOrganisation(ctx, orgID)
		})
		l.batch.add(func(b *batch) { b.orgMembers = append(b.orgMembers, members...) })
		return nil
	})
	g.Go(func() error {
		pricing, _ := fetch(ctx, l, store.NameMaterialPricing, orgID, func(ctx context.Context) ([]*domain.MaterialPricing, error) {
			return l.h.repos.MaterialPricing.ListByOrganisation(ctx, orgID)
		})
		l.batch.add(func(b *batch) { b.pricing = append(b.pricing, pricing...) })
		return nil
	})
	g.Go(func() error {
		templates, _ := fetch(ctx, l, store.NameProjectTemplate, orgID, func(ctx context.Context) ([]*domain.ProjectTemplate, error) {
			return l.h.repos.Templates.ListByOrganisation(ctx, orgID)
		})
		l.batch.add(func(b *batch) { b.templates = append(b.templates, templates...) })
		return nil
	})
}

func (l *loader) loadProjectMembers(ctx context.Context, g *errgroup.Group, projectID string) {
	g.Go(func() error {
		members, _ := fetch(ctx, l, store.NameProjectMember, projectID, func(ctx context.Context) ([]*domain.ProjectMembership, error) {
			return l.h.repos.ProjectMembers.ListByProject(ctx, projectID)
		})
		l.batch.add(func(b *batch) { b.projectMembers = append(b.projectMembers, members...) })
		return nil
	})
}

// loadProjectTrees loads phases, then tasks, then materials for the given
// projects, one level at a time.
func (l *loader) loadProjectTrees(ctx context.Context, projectIDs []string) {
	if len(projectIDs) == 0 {
		return
	}
	phaseIDs := l.fanOut(ctx, projectIDs, func(ctx context.Context, projectID string) []string {
		phases, _ := fetch(ctx, l, store.NamePhase, projectID, func(ctx context.Context) ([]*domain.Phase, error) {
			return l.h.repos.Phases.ListByProject(ctx, projectID)
		})
		l.batch.add(func(b *batch) { b.phases = append(b.phases, phases...) })
		ids := make([]string, 0, len(phases))
		for _, p := range phases {
			ids = append(ids, p.ID)
		}
		return ids
	})
	taskIDs := l.fanOut(ctx, phaseIDs, func(ctx context.Context, phaseID string) []string {
		tasks, _ := fetch(ctx, l, store.NameTask, phaseID, func(ctx context.Context) ([]*domain.Task, error) {
			return l.h.repos.Tasks.ListByPhase(ctx, phaseID)
		})
		l.batch.add(func(b *batch) { b.tasks = append(b.tasks, tasks...) })
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		return ids
	})
	l.fanOut(ctx, taskIDs, func(ctx context.Context, taskID string) []string {
		materials, _ := fetch(ctx, l, store.NameMaterial, taskID, func(ctx context.Context) ([]*domain.Material, error) {
			return l.h.repos.Materials.ListByTask(ctx, taskID)
		})
		l.batch.add(func(b *batch) { b.materials = append(b.materials, materials...) })
		return nil
	})
}

// fanOut runs load for every parent concurrently and returns the child ids
// they produced.
func (l *loader) fanOut(ctx context.Context, parents []string, load func(context.Context, string) []string) []string {
	var mu sync.Mutex
	var children []string
	g := l.group()
	for _, parent := range parents {
		parent := parent
		g.Go(func() error {
			ids := load(ctx, parent)
			mu.Lock()
			children = append(children, ids...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return children
}
