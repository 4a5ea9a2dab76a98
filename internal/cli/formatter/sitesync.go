package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/session"
	"github.com/alexanderramin/sitesync/internal/views"
)

const progressWidth = 16

// FormatProjects renders the project list, ordered by name.
func FormatProjects(projects []domain.Project) string {
	if len(projects) == 0 {
		return Dim("No projects.") + "\n"
	}
	sorted := make([]domain.Project, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	rows := make([][]string, 0, len(sorted))
	for _, p := range sorted {
		rows = append(rows, []string{
			Dim(p.DisplayID()),
			Bold(p.Name),
			StatusLabel(p.Status),
			RenderProgress(p.Progress, progressWidth),
			fmt.Sprintf("%d/%d", p.CompletedTasks, p.TotalTasks),
			Money(p.Spent) + " / " + Money(p.Budget),
		})
	}
	return RenderTable([]string{"ID", "PROJECT", "STATUS", "PROGRESS", "TASKS", "SPENT / BUDGET"}, rows)
}

// FormatOrganisation renders an organisation with its budget summary and projects.
func FormatOrganisation(org domain.Organisation, summary views.BudgetSummary, projects []domain.Project) string {
	var b strings.Builder
	b.WriteString(Header(org.Name))
	b.WriteString("\n")
	b.WriteString(KeyValues([][2]string{
		{"members", fmt.Sprintf("%d", len(org.MemberIDs))},
		{"projects", fmt.Sprintf("%d", len(org.ProjectIDs))},
		{"budget", Money(summary.TotalBudget)},
		{"spent", Money(summary.TotalSpent)},
		{"utilisation", RenderUtilization(summary.BudgetUtilization)},
	}))
	b.WriteString("\n")
	b.WriteString(FormatProjects(projects))
	return b.String()
}

// FormatProjectDetail renders a project summary followed by its phases.
func FormatProjectDetail(d views.ProjectDetail) string {
	var b strings.Builder
	b.WriteString(Header(d.Project.Name))
	b.WriteString("\n")
	b.WriteString(KeyValues([][2]string{
		{"status", StatusLabel(d.Project.Status)},
		{"progress", RenderProgress(d.Progress, progressWidth)},
		{"tasks", fmt.Sprintf("%d/%d", d.Project.CompletedTasks, d.Project.TotalTasks)},
		{"phases", fmt.Sprintf("%d", d.PhaseCount)},
		{"phase budget", Money(d.TotalBudget)},
		{"phase spend", Money(d.TotalSpent)},
		{"utilisation", RenderUtilization(d.BudgetUtilization)},
		{"dates", HumanDate(d.Project.StartDate) + " → " + HumanDate(d.Project.EndDate)},
	}))
	if len(d.Phases) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	rows := make([][]string, 0, len(d.Phases))
	for _, ph := range d.Phases {
		rows = append(rows, []string{
			fmt.Sprintf("%d", ph.Order),
			ph.Name,
			StatusSet(ph.Status),
			fmt.Sprintf("%d/%d", ph.CompletedTasks, ph.TotalTasks),
			Money(ph.Spent) + " / " + Money(ph.Budget),
			fmt.Sprintf("%dd", ph.EstimatedDuration),
		})
	}
	b.WriteString(RenderTable([]string{"#", "PHASE", "STATUS", "TASKS", "SPENT / BUDGET", "EST"}, rows))
	return b.String()
}

// FormatRequests renders resolved requests, newest first.
func FormatRequests(reqs []views.ResolvedRequest) string {
	if len(reqs) == 0 {
		return Dim("No requests.") + "\n"
	}
	sorted := make([]views.ResolvedRequest, len(reqs))
	copy(sorted, reqs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Request.CreatedAt.After(sorted[j].Request.CreatedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, []string{
			Dim(ShortID(r.Request.ID)),
			string(r.Request.Type),
			r.Subject(),
			profileName(r.Requester, r.Request.RequestedBy),
			profileName(r.Recipient, r.Request.RequestedTo),
			RequestStatusLabel(r.Request.Status),
		})
	}
	return RenderTable([]string{"ID", "TYPE", "SUBJECT", "FROM", "TO", "STATUS"}, rows)
}

func profileName(p *domain.Profile, fallback string) string {
	if p == nil {
		return Dim(ShortID(fallback))
	}
	return p.DisplayName()
}

// FormatHydration renders the outcome of a hydration run.
func FormatHydration(res *session.Result) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	if res.Skipped {
		b.WriteString(Dim("Already loaded for " + res.UserID))
		b.WriteString("\n")
		return b.String()
	}

	outcome := StyleGreen.Render("ok")
	if !res.OK() {
		outcome = StyleYellow.Render(fmt.Sprintf("%d failures", len(res.Failures)))
	}
	b.WriteString(KeyValues([][2]string{
		{"user", res.UserID},
		{"path", res.Path},
		{"outcome", outcome},
		{"took", res.Duration.Round(time.Millisecond).String()},
	}))

	if len(res.Counts) > 0 {
		names := make([]string, 0, len(res.Counts))
		for n := range res.Counts {
			names = append(names, n)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, n := range names {
			rows = append(rows, []string{n, fmt.Sprintf("%d", res.Counts[n])})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable([]string{"STORE", "ROWS"}, rows))
	}

	if len(res.Failures) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			rows = append(rows, []string{
				StyleRed.Render(string(f.Kind)),
				f.Op,
				f.Entity,
				Dim(ShortID(f.ID)),
				fmt.Sprint(f.Err),
			})
		}
		b.WriteString(RenderTable([]string{"KIND", "OP", "ENTITY", "ID", "ERROR"}, rows))
	}
	return b.String()
}
