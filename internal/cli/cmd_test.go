package cli

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/config"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/testutil"
)

// backend is a seeded database shared by every command run in a test: an
// admin owning one organisation and project, and a worker who belongs to both.
type backend struct {
	db      *sql.DB
	repos   *repository.Set
	admin   *domain.Profile
	worker  *domain.Profile
	org     *domain.Organisation
	project *domain.Project
	rebar   *domain.Task
	payment *domain.Request
}

func seedBackend(t *testing.T) *backend {
	t.Helper()
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	repos := repository.NewSet(database, db.SQLite)
	b := &backend{db: database, repos: repos}

	b.admin = testutil.NewTestProfile("Ada Admin", testutil.AsAdmin())
	b.worker = testutil.NewTestProfile("Wes Worker")
	require.NoError(t, repos.Profiles.Create(ctx, b.admin))
	require.NoError(t, repos.Profiles.Create(ctx, b.worker))

	b.org = testutil.NewTestOrganisation("Acme Build", b.admin.ID)
	require.NoError(t, repos.Organisations.Create(ctx, b.org))
	require.NoError(t, repos.OrganisationMembers.Create(ctx, testutil.NewTestOrganisationMember(b.org.ID, b.worker.ID, domain.RoleEmployee)))

	b.project = testutil.NewTestProject("Riverside", b.org.ID, b.admin.ID, testutil.WithBudget(1000, 0))
	require.NoError(t, repos.Projects.Create(ctx, b.project))
	require.NoError(t, repos.ProjectMembers.Create(ctx, testutil.NewTestProjectMember(b.project.ID, b.worker.ID, domain.RoleEmployee)))

	foundations := testutil.NewTestPhase(b.project.ID, "Foundations", 1)
	framing := testutil.NewTestPhase(b.project.ID, "Framing", 2)
	require.NoError(t, repos.Phases.Create(ctx, foundations))
	require.NoError(t, repos.Phases.Create(ctx, framing))

	pour := testutil.NewTestTask(foundations, "Pour", testutil.WithTaskStatus(domain.StatusCompleted), testutil.WithSpent(100))
	b.rebar = testutil.NewTestTask(foundations, "Rebar", testutil.WithTaskStatus(domain.StatusActive), testutil.WithSpent(50))
	studs := testutil.NewTestTask(framing, "Studs", testutil.WithTaskStatus(domain.StatusActive))
	for _, task := range []*domain.Task{pour, b.rebar, studs} {
		require.NoError(t, repos.Tasks.Create(ctx, task))
	}

	b.payment = testutil.NewTestRequest(domain.RequestPayment, b.worker.ID, b.admin.ID,
		domain.PaymentRequestData{ProjectID: b.project.ID, TaskID: b.rebar.ID, Amount: 25})
	require.NoError(t, repos.Requests.Create(ctx, b.payment))
	return b
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.KV.Backend = "memory"
	cfg.Feed.Transport = "hub"
	cfg.MetricsAddr = ""
	cfg.Auth.Secret = "test-secret"
	return cfg
}

// builder wires a fresh App per command over the shared backend, the way
// separate CLI invocations would.
func (b *backend) builder() Builder {
	return func(ctx context.Context, _ string) (*App, error) {
		app := &App{Config: testConfig(), Logger: zap.NewNop()}
		if err := assemble(ctx, app, b.db, db.SQLite); err != nil {
			return nil, err
		}
		return app, nil
	}
}

func (b *backend) token(t *testing.T, p *domain.Profile) string {
	t.Helper()
	a, err := auth.NewAuthenticator(testConfig().Auth.Secret)
	require.NoError(t, err)
	tok, err := a.Issue(auth.Identity{UserID: p.ID, IsAdmin: p.IsAdmin})
	require.NoError(t, err)
	return tok
}

func (b *backend) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := Execute(context.Background(), b.builder(), args, &buf)
	return buf.String(), err
}

func TestTokenIssue_ParsesBack(t *testing.T) {
	b := seedBackend(t)

	out, err := b.run(t, "token", "issue", "--user", b.admin.ID, "--admin")
	require.NoError(t, err)

	a, err := auth.NewAuthenticator(testConfig().Auth.Secret)
	require.NoError(t, err)
	id, err := a.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, b.admin.ID, id.UserID)
	assert.True(t, id.IsAdmin)
}

func TestCommands_RequireToken(t *testing.T) {
	b := seedBackend(t)
	t.Setenv("SITESYNC_TOKEN", "")

	_, err := b.run(t, "projects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")

	_, err = b.run(t, "projects", "--token", "garbage")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestHydrate_Admin(t *testing.T) {
	b := seedBackend(t)

	out, err := b.run(t, "hydrate", "--token", b.token(t, b.admin))
	require.NoError(t, err)
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "ok")
	assert.Regexp(t, `task\s+3\b`, out)
}

func TestProjects_ShowsDerivedProgress(t *testing.T) {
	b := seedBackend(t)

	out, err := b.run(t, "projects", "--token", b.token(t, b.admin))
	require.NoError(t, err)
	assert.Contains(t, out, "Riverside")
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "33%")

	out, err = b.run(t, "projects", "--org", "acme build", "--token", b.token(t, b.admin))
	require.NoError(t, err)
	assert.Contains(t, out, "Riverside")

	_, err = b.run(t, "projects", "--org", "nope", "--token", b.token(t, b.admin))
	assert.ErrorContains(t, err, "organisation not found")
}

func TestOrg_ListAndDetail(t *testing.T) {
	b := seedBackend(t)
	tok := b.token(t, b.admin)

	out, err := b.run(t, "org", "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Build")

	out, err = b.run(t, "org", b.org.ID[:6], "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "ACME BUILD")
	assert.Contains(t, out, "Riverside")
	assert.Contains(t, out, "1,000.00")
}

func TestProject_MemberLoadsTreeOnDemand(t *testing.T) {
	b := seedBackend(t)

	out, err := b.run(t, "project", "Riverside", "--token", b.token(t, b.worker))
	require.NoError(t, err)
	assert.Contains(t, out, "RIVERSIDE")
	assert.Less(t, strings.Index(out, "Foundations"), strings.Index(out, "Framing"))
	assert.Contains(t, out, "150.00")
}

func TestRequests_ResolvesSubject(t *testing.T) {
	b := seedBackend(t)

	out, err := b.run(t, "requests", "--open", "--token", b.token(t, b.admin))
	require.NoError(t, err)
	assert.Contains(t, out, "PaymentRequest")
	assert.Contains(t, out, "Rebar")
	assert.Contains(t, out, "Wes Worker")

	// Members hold no task rows until a project is opened, so the subject
	// falls back to the project.
	out, err = b.run(t, "requests", "--token", b.token(t, b.worker))
	require.NoError(t, err)
	assert.Contains(t, out, "Riverside")
}

func TestApprove_PaymentWritesThrough(t *testing.T) {
	b := seedBackend(t)
	ctx := context.Background()

	out, err := b.run(t, "approve", b.payment.ID, "--note", "paid", "--token", b.token(t, b.admin))
	require.NoError(t, err)
	assert.Contains(t, out, "Approved")

	task, err := b.repos.Tasks.GetByID(ctx, b.rebar.ID)
	require.NoError(t, err)
	assert.InDelta(t, 75, task.Spent, 0.001)

	req, err := b.repos.Requests.GetByID(ctx, b.payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, req.Status)

	_, err = b.run(t, "approve", b.payment.ID, "--token", b.token(t, b.admin))
	assert.Error(t, err, "closed requests cannot be decided again")
}

func TestReject_RequiresReasonAndRecipient(t *testing.T) {
	b := seedBackend(t)

	_, err := b.run(t, "reject", b.payment.ID, "--token", b.token(t, b.admin))
	assert.ErrorContains(t, err, "reason")

	_, err = b.run(t, "reject", b.payment.ID, "--reason", "no", "--token", b.token(t, b.worker))
	assert.Error(t, err)

	out, err := b.run(t, "reject", b.payment.ID, "--reason", "duplicate", "--token", b.token(t, b.admin))
	require.NoError(t, err)
	assert.Contains(t, out, "Rejected")
}

func TestSubmit_JoinProject(t *testing.T) {
	b := seedBackend(t)
	ctx := context.Background()
	outsider := testutil.NewTestProfile("Olly Outsider")
	require.NoError(t, b.repos.Profiles.Create(ctx, outsider))

	data := `{"project_id":"` + b.project.ID + `"}`
	out, err := b.run(t, "submit", string(domain.RequestJoinProject), "--to", b.admin.ID, "--data", data, "--token", b.token(t, outsider))
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted JoinProject")

	reqs, err := b.repos.Requests.ListForUser(ctx, outsider.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.RequestPending, reqs[0].Status)

	_, err = b.run(t, "submit", "Bogus", "--to", b.admin.ID, "--token", b.token(t, outsider))
	assert.Error(t, err)
}

func TestTemplate_ImportAndInstantiate(t *testing.T) {
	b := seedBackend(t)
	ctx := context.Background()
	tok := b.token(t, b.admin)

	path := filepath.Join(t.TempDir(), "garage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: Garage
phases:
  - name: Slab
    budget: 400
    tasks:
      - name: Excavate
        budget: 150
        duration: 2
  - name: Walls
    budget: 600
`), 0o644))

	out, err := b.run(t, "template", "import", path, "--org", "Acme Build", "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported template Garage")
	assert.Contains(t, out, "1,000.00")

	tmpls, err := b.repos.Templates.ListByOrganisation(ctx, b.org.ID)
	require.NoError(t, err)
	require.Len(t, tmpls, 1)

	out, err = b.run(t, "template", "instantiate", "Garage", "--name", "Garage 12", "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "Created project Garage 12")

	projects, err := b.repos.Projects.ListByOrganisation(ctx, b.org.ID)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestExpireSignOutMigrate(t *testing.T) {
	b := seedBackend(t)

	out, err := b.run(t, "expire")
	require.NoError(t, err)
	assert.Contains(t, out, "fresh")

	out, err = b.run(t, "signout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, err = b.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")
}

func TestResolveID(t *testing.T) {
	ids := []string{"abc-1", "abd-2", "xyz-3"}
	names := map[string]string{"abc-1": "Riverside", "abd-2": "Hilltop", "xyz-3": "Riverside"}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{"exact", "abd-2", "abd-2", ""},
		{"unique prefix", "xy", "xyz-3", ""},
		{"ambiguous prefix", "ab", "", "ambiguous"},
		{"name", "hilltop", "abd-2", ""},
		{"ambiguous name", "riverside", "", "ambiguous"},
		{"missing", "zzz", "", "not found"},
		{"empty", "", "", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveID("project", tt.input, ids, names)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
