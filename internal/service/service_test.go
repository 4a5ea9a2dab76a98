package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/store"
	"github.com/alexanderramin/sitesync/internal/testutil"
)

type fixture struct {
	db      *sql.DB
	deps    Deps
	sink    *report.Collector
	admin   *domain.Profile
	worker  *domain.Profile
	org     *domain.Organisation
	project *domain.Project
	phase   *domain.Phase
	task    *domain.Task
}

// setup seeds the backend with one project tree and mirrors it into the
// stores, as a hydrated admin session would hold it.
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	repos := repository.NewSet(database, db.SQLite)
	sink := &report.Collector{}
	stores := store.NewStores(nil, sink)

	f := &fixture{db: database, sink: sink}
	f.admin = testutil.NewTestProfile("Ada Admin", testutil.AsAdmin())
	f.worker = testutil.NewTestProfile("Wes Worker")
	require.NoError(t, repos.Profiles.Create(ctx, f.admin))
	require.NoError(t, repos.Profiles.Create(ctx, f.worker))
	f.org = testutil.NewTestOrganisation("Acme Build", f.admin.ID)
	require.NoError(t, repos.Organisations.Create(ctx, f.org))
	f.project = testutil.NewTestProject("Riverside", f.org.ID, f.admin.ID, testutil.WithBudget(1000, 0))
	require.NoError(t, repos.Projects.Create(ctx, f.project))
	f.phase = testutil.NewTestPhase(f.project.ID, "Foundations", 1)
	require.NoError(t, repos.Phases.Create(ctx, f.phase))
	f.task = testutil.NewTestTask(f.phase, "Pour", testutil.WithTaskStatus(domain.StatusActive), testutil.WithPlannedBudget(400))
	require.NoError(t, repos.Tasks.Create(ctx, f.task))

	stores.Profiles.Set([]domain.Profile{*f.admin, *f.worker})
	stores.Organisations.Add(*f.org)
	stores.Projects.Add(*f.project)
	stores.Phases.Add(*f.phase)
	stores.Tasks.Add(*f.task)

	engine := aggregate.NewEngine(stores)
	engine.Run()
	f.deps = Deps{
		Repos:   repos,
		Stores:  stores,
		Engine:  engine,
		UoW:     testutil.NewTestUoW(database),
		Dialect: db.SQLite,
		Sink:    sink,
	}
	return f
}

func (f *fixture) submit(t *testing.T, typ domain.RequestType, from, to string, data any) *domain.Request {
	t.Helper()
	r := testutil.NewTestRequest(typ, from, to, data)
	r.ID = ""
	require.NoError(t, NewRequestService(f.deps).Submit(context.Background(), r))
	return r
}

func TestProjectService_CreateLinksOrganisation(t *testing.T) {
	f := setup(t)
	svc := NewProjectService(f.deps)

	p := &domain.Project{Name: "Hilltop", OrganisationID: f.org.ID, OwnerID: f.admin.ID, Budget: 500}
	require.NoError(t, svc.Create(context.Background(), p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.StatusInactive, p.Status)

	org, ok := f.deps.Stores.Organisations.Get(f.org.ID)
	require.True(t, ok)
	assert.Contains(t, org.ProjectIDs, p.ID)

	err := svc.Create(context.Background(), &domain.Project{OrganisationID: f.org.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProjectService_UpdateKeepsDerivedFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tasks := NewTaskService(f.deps)
	done := testutil.NewTestTask(f.phase, "Cure", testutil.WithTaskStatus(domain.StatusCompleted))
	done.ID = ""
	require.NoError(t, tasks.Create(ctx, done))

	p := *f.project
	p.Name = "Riverside North"
	require.NoError(t, NewProjectService(f.deps).Update(ctx, &p))

	got, _ := f.deps.Stores.Projects.Get(f.project.ID)
	assert.Equal(t, "Riverside North", got.Name)
	assert.Equal(t, 2, got.TotalTasks)
	assert.Equal(t, 50.0, got.Progress)
	assert.Equal(t, []string{f.phase.ID}, got.PhaseIDs)
}

func TestTaskService_CreateRecomputesPhase(t *testing.T) {
	f := setup(t)
	svc := NewTaskService(f.deps)

	task := &domain.Task{PhaseID: f.phase.ID, Name: "Rebar", Status: domain.StatusCompleted, EstimatedDuration: 2}
	require.NoError(t, svc.Create(context.Background(), task))
	assert.Equal(t, f.project.ID, task.ProjectID, "project follows from the phase")

	phase, _ := f.deps.Stores.Phases.Get(f.phase.ID)
	assert.Equal(t, 2, phase.TotalTasks)
	assert.Equal(t, 1, phase.CompletedTasks)
	assert.Equal(t, []domain.Status{domain.StatusActive, domain.StatusCompleted}, phase.Status)

	project, _ := f.deps.Stores.Projects.Get(f.project.ID)
	assert.Equal(t, 50.0, project.Progress)
}

func TestTaskService_DeleteCascadesLocally(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, NewMaterialService(f.deps).Create(ctx, &domain.Material{TaskID: f.task.ID, Name: "Cement", PlannedQuantity: 4, UnitCost: 10}))
	require.Equal(t, 1, f.deps.Stores.Materials.Len())

	NewTaskService(f.deps).Delete(ctx, f.task.ID)
	assert.False(t, f.deps.Stores.Tasks.Has(f.task.ID))
	assert.Equal(t, 0, f.deps.Stores.Materials.Len())
	assert.Empty(t, f.sink.Failures())

	_, err := f.deps.Repos.Tasks.GetByID(ctx, f.task.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

type failingTaskDeletes struct {
	repository.TaskRepo
}

func (failingTaskDeletes) Delete(context.Context, string) error {
	return errors.New("server unavailable")
}

func TestDelete_FailureReportedAndSwallowed(t *testing.T) {
	f := setup(t)
	repos := *f.deps.Repos
	repos.Tasks = failingTaskDeletes{f.deps.Repos.Tasks}
	deps := f.deps
	deps.Repos = &repos

	NewTaskService(deps).Delete(context.Background(), f.task.ID)

	failures := f.sink.ByKind(report.KindCommand)
	require.Len(t, failures, 1)
	assert.Equal(t, f.task.ID, failures[0].ID)
	assert.True(t, f.deps.Stores.Tasks.Has(f.task.ID), "local copy kept when the server delete failed")
}

func TestRequest_ApprovePayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.submit(t, domain.RequestPayment, f.worker.ID, f.admin.ID,
		domain.PaymentRequestData{ProjectID: f.project.ID, TaskID: f.task.ID, Amount: 150})

	decided, err := NewRequestService(f.deps).Approve(ctx, auth.Identity{UserID: f.admin.ID}, r.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, decided.Status)
	assert.Equal(t, "paid", decided.Response)

	task, err := f.deps.Repos.Tasks.GetByID(ctx, f.task.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, task.Spent)
	assert.True(t, task.PaymentCompleted)

	cached, _ := f.deps.Stores.Tasks.Get(f.task.ID)
	assert.Equal(t, 150.0, cached.Spent)
	phase, _ := f.deps.Stores.Phases.Get(f.phase.ID)
	assert.Equal(t, 150.0, phase.Spent)
	project, _ := f.deps.Stores.Projects.Get(f.project.ID)
	assert.Equal(t, 150.0, project.Spent)
	req, _ := f.deps.Stores.Requests.Get(r.ID)
	assert.Equal(t, domain.RequestApproved, req.Status)
}

func TestRequest_PaymentsAccumulate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := NewRequestService(f.deps)
	for _, amount := range []float64{100, 50} {
		r := f.submit(t, domain.RequestPayment, f.worker.ID, f.admin.ID,
			domain.PaymentRequestData{ProjectID: f.project.ID, TaskID: f.task.ID, Amount: amount})
		_, err := svc.Approve(ctx, auth.Identity{UserID: f.admin.ID}, r.ID, "")
		require.NoError(t, err)
	}
	task, _ := f.deps.Stores.Tasks.Get(f.task.ID)
	assert.Equal(t, 150.0, task.Spent)
}

func TestRequest_ApproveAssignment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	idle := testutil.NewTestTask(f.phase, "Formwork")
	idle.ID = ""
	require.NoError(t, NewTaskService(f.deps).Create(ctx, idle))

	r := f.submit(t, domain.RequestTaskAssignment, f.worker.ID, f.admin.ID,
		domain.TaskAssignmentData{ProjectID: f.project.ID, PhaseID: f.phase.ID, TaskID: idle.ID})
	_, err := NewRequestService(f.deps).Approve(ctx, auth.Identity{UserID: f.admin.ID, IsAdmin: true}, r.ID, "go ahead")
	require.NoError(t, err)

	task, _ := f.deps.Stores.Tasks.Get(idle.ID)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, f.worker.ID, *task.AssignedTo, "requester is assigned, not the approver")
	assert.Equal(t, domain.StatusActive, task.Status)
}

func TestRequest_ApproveAssignmentExplicitAssignee(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	idle := testutil.NewTestTask(f.phase, "Scaffold")
	idle.ID = ""
	require.NoError(t, NewTaskService(f.deps).Create(ctx, idle))

	r := f.submit(t, domain.RequestTaskAssignment, f.admin.ID, f.worker.ID,
		domain.TaskAssignmentData{ProjectID: f.project.ID, PhaseID: f.phase.ID, TaskID: idle.ID, AssigneeID: f.worker.ID})
	_, err := NewRequestService(f.deps).Approve(ctx, auth.Identity{UserID: f.worker.ID}, r.ID, "on it")
	require.NoError(t, err)

	task, _ := f.deps.Stores.Tasks.Get(idle.ID)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, f.worker.ID, *task.AssignedTo)
}

func TestRequest_CompletionReviewCycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := NewRequestService(f.deps)
	boss := auth.Identity{UserID: f.admin.ID}
	data := domain.TaskCompletionData{ProjectID: f.project.ID, TaskID: f.task.ID, Notes: "poured"}

	first := f.submit(t, domain.RequestTaskCompletion, f.worker.ID, f.admin.ID, data)
	task, _ := f.deps.Stores.Tasks.Get(f.task.ID)
	assert.Equal(t, domain.StatusReviewing, task.Status)

	_, err := svc.Reject(ctx, boss, first.ID, "cracks on the east side")
	require.NoError(t, err)
	task, _ = f.deps.Stores.Tasks.Get(f.task.ID)
	assert.Equal(t, domain.StatusActive, task.Status)
	assert.Equal(t, "cracks on the east side", task.RejectionReason)

	second := f.submit(t, domain.RequestTaskCompletion, f.worker.ID, f.admin.ID, data)
	_, err = svc.Approve(ctx, boss, second.ID, "")
	require.NoError(t, err)
	task, _ = f.deps.Stores.Tasks.Get(f.task.ID)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	assert.Equal(t, "poured", task.CompletionNotes)
	assert.Empty(t, task.RejectionReason)

	project, _ := f.deps.Stores.Projects.Get(f.project.ID)
	assert.Equal(t, 100.0, project.Progress)
}

func TestRequest_ApproveJoinOrganisation(t *testing.T) {
	f := setup(t)
	r := f.submit(t, domain.RequestJoinOrganisation, f.worker.ID, f.admin.ID,
		domain.JoinOrganisationData{OrganisationID: f.org.ID})

	_, err := NewRequestService(f.deps).Approve(context.Background(), auth.Identity{UserID: f.admin.ID}, r.ID, "")
	require.NoError(t, err)

	members := f.deps.Stores.OrganisationMembers.ByForeignKey(f.org.ID)
	require.Len(t, members, 1)
	assert.Equal(t, "Wes Worker", members[0].DisplayName())
	org, _ := f.deps.Stores.Organisations.Get(f.org.ID)
	assert.Equal(t, []string{f.worker.ID}, org.MemberIDs)
}

func TestRequest_DecisionRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := NewRequestService(f.deps)
	r := f.submit(t, domain.RequestJoinProject, f.worker.ID, f.admin.ID,
		domain.JoinProjectData{ProjectID: f.project.ID})

	_, err := svc.Approve(ctx, auth.Identity{UserID: f.worker.ID}, r.ID, "")
	assert.ErrorIs(t, err, ErrNotPermitted)

	_, err = svc.Reject(ctx, auth.Identity{UserID: f.admin.ID}, r.ID, "no")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, auth.Identity{UserID: f.admin.ID}, r.ID, "")
	assert.ErrorIs(t, err, ErrRequestClosed)
	assert.Equal(t, 0, f.deps.Stores.ProjectMembers.Len())

	err = svc.Submit(ctx, &domain.Request{Type: "Bribe", RequestedBy: f.worker.ID, RequestedTo: f.admin.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRequest_ApprovalRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.submit(t, domain.RequestPayment, f.worker.ID, f.admin.ID,
		domain.PaymentRequestData{ProjectID: f.project.ID, TaskID: f.task.ID, Amount: 150})

	deps := f.deps
	deps.UoW = &testutil.FailOnNthExecUoW{DB: f.db, FailOn: 3, Err: errors.New("disk full")}
	_, err := NewRequestService(deps).Approve(ctx, auth.Identity{UserID: f.admin.ID}, r.ID, "")
	require.Error(t, err)

	task, err := f.deps.Repos.Tasks.GetByID(ctx, f.task.ID)
	require.NoError(t, err)
	assert.Zero(t, task.Spent)
	saved, err := f.deps.Repos.Requests.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, saved.Status)
	cached, _ := f.deps.Stores.Tasks.Get(f.task.ID)
	assert.Zero(t, cached.Spent, "stores untouched when the transaction fails")
}

func TestRequest_AttachPhoto(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.submit(t, domain.RequestTaskCompletion, f.worker.ID, f.admin.ID,
		domain.TaskCompletionData{ProjectID: f.project.ID, TaskID: f.task.ID})

	svc := NewRequestService(f.deps)
	require.NoError(t, svc.AttachPhoto(ctx, r.ID, "https://photos.example/slab.jpg"))
	cached, _ := f.deps.Stores.Requests.Get(r.ID)
	assert.Equal(t, "https://photos.example/slab.jpg", cached.PhotoURL)

	assert.ErrorIs(t, svc.AttachPhoto(ctx, r.ID, ""), ErrInvalidInput)
}

func TestTemplate_Instantiate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := NewTemplateService(f.deps)

	tmpl, err := ParseTemplate([]byte(`
name: Two storey house
phases:
  - name: Groundworks
    budget: 3000
    tasks:
      - {name: Excavate, budget: 1000, duration: 3}
      - {name: Pour slab, budget: 2000, duration: 2}
  - name: Frame
    budget: 5000
    tasks:
      - {name: Walls, budget: 5000, duration: 10}
`), f.org.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Create(ctx, tmpl))
	assert.True(t, f.deps.Stores.Templates.Has(tmpl.ID))

	project, err := svc.Instantiate(ctx, tmpl.ID, "Maple Street", f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, project.Budget)

	phases, err := f.deps.Repos.Phases.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, phases, 2)

	cached, ok := f.deps.Stores.Projects.Get(project.ID)
	require.True(t, ok)
	assert.Equal(t, 3, cached.TotalTasks)
	assert.Len(t, cached.PhaseIDs, 2)
	ground, _ := f.deps.Stores.Phases.Get(cached.PhaseIDs[0])
	assert.Equal(t, "Groundworks", ground.Name)
	assert.Equal(t, 5, ground.EstimatedDuration)

	org, _ := f.deps.Stores.Organisations.Get(f.org.ID)
	assert.Contains(t, org.ProjectIDs, project.ID)
}

func TestParseTemplate_Invalid(t *testing.T) {
	_, err := ParseTemplate([]byte("name: Empty\nphases: []\n"), "org")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseTemplate([]byte("phases: [: bad"), "org")
	assert.Error(t, err)
}
