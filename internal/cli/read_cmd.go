package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/cli/formatter"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/views"
)

func newHydrateCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "hydrate",
		Short: "Load everything visible to the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := st.hydrate(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHydration(res))
			return err
		},
	}
}

func newProjectsCmd(st *state) *cobra.Command {
	var orgInput string

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with progress and spend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := st.hydrate(cmd.Context()); err != nil {
				return err
			}
			stores := st.app.Stores
			projects := stores.Projects.All()
			if orgInput != "" {
				orgID, err := resolveOrganisation(st, orgInput)
				if err != nil {
					return err
				}
				projects = stores.Projects.ByForeignKey(orgID)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProjects(projects))
			return nil
		},
	}
	organisationFlag(cmd.Flags(), &orgInput, "Only projects of this organisation")
	return cmd
}

func newOrgCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "org [id]",
		Short: "Show an organisation's budget summary, or list organisations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := st.hydrate(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			stores := st.app.Stores

			if len(args) == 0 {
				orgs := stores.Organisations.All()
				if len(orgs) == 0 {
					fmt.Fprintln(out, formatter.Dim("No organisations."))
					return nil
				}
				rows := make([][]string, 0, len(orgs))
				for _, o := range orgs {
					s := views.OrganisationDetailsFromStores(stores, o.ID)
					rows = append(rows, []string{
						formatter.Dim(formatter.ShortID(o.ID)),
						formatter.Bold(o.Name),
						fmt.Sprintf("%d", len(o.MemberIDs)),
						fmt.Sprintf("%d", len(o.ProjectIDs)),
						formatter.RenderUtilization(s.BudgetUtilization),
					})
				}
				fmt.Fprint(out, formatter.RenderTable([]string{"ID", "ORGANISATION", "MEMBERS", "PROJECTS", "UTILISATION"}, rows))
				return nil
			}

			orgID, err := resolveOrganisation(st, args[0])
			if err != nil {
				return err
			}
			org, _ := stores.Organisations.Get(orgID)
			fmt.Fprint(out, formatter.FormatOrganisation(org,
				views.OrganisationDetailsFromStores(stores, orgID),
				stores.Projects.ByForeignKey(orgID)))
			return nil
		},
	}
}

func newProjectCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "project <id>",
		Short: "Show a project with its phases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, _, err := st.hydrate(ctx)
			if err != nil {
				return err
			}
			projectID, err := resolveProject(st, args[0])
			if err != nil {
				return err
			}
			// Members only get project trees on demand.
			if !id.IsAdmin {
				res, err := st.app.Session.LoadProjectDetail(ctx, projectID)
				if err != nil {
					return err
				}
				if !res.OK() {
					fmt.Fprint(cmd.ErrOrStderr(), formatter.FormatHydration(res))
				}
			}
			d, ok := views.ProjectDetailsFromStores(st.app.Stores, projectID)
			if !ok {
				return fmt.Errorf("project %s is no longer available", projectID)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProjectDetail(d))
			return nil
		},
	}
}

func newRequestsCmd(st *state) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List requests sent or received by the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := st.hydrate(cmd.Context()); err != nil {
				return err
			}
			stores := st.app.Stores
			reqs := stores.Requests.Filter(func(r domain.Request) bool {
				return !open || r.IsOpen()
			})
			resolved := make([]views.ResolvedRequest, 0, len(reqs))
			for _, r := range reqs {
				rr, err := views.ResolveRequest(stores, r)
				if err != nil {
					st.app.Logger.Debug("unreadable request payload", zap.String("request", r.ID), zap.Error(err))
				}
				resolved = append(resolved, rr)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatRequests(resolved))
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "Only requests awaiting a decision")
	return cmd
}

func resolveOrganisation(st *state, input string) (string, error) {
	ids, names := indexNames(st.app.Stores.Organisations.All(),
		func(o domain.Organisation) string { return o.ID },
		func(o domain.Organisation) string { return o.Name })
	return resolveID("organisation", input, ids, names)
}

func resolveProject(st *state, input string) (string, error) {
	ids, names := indexNames(st.app.Stores.Projects.All(),
		func(p domain.Project) string { return p.ID },
		func(p domain.Project) string { return p.Name })
	return resolveID("project", input, ids, names)
}

func resolveRequest(st *state, input string) (string, error) {
	ids, names := indexNames(st.app.Stores.Requests.All(),
		func(r domain.Request) string { return r.ID },
		func(r domain.Request) string { return "" })
	return resolveID("request", input, ids, names)
}
