package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/sitesync/internal/cli/formatter"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/service"
)

func newTemplateCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage project templates",
	}
	cmd.AddCommand(newTemplateImportCmd(st), newTemplateInstantiateCmd(st))
	return cmd
}

func newTemplateImportCmd(st *state) *cobra.Command {
	var orgInput string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML template into an organisation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, _, err := st.hydrate(ctx); err != nil {
				return err
			}
			orgID, err := resolveOrganisation(st, orgInput)
			if err != nil {
				return err
			}
			tmpl, err := service.LoadTemplateFile(args[0], orgID)
			if err != nil {
				return err
			}
			if err := st.app.Templates.Create(ctx, tmpl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported template %s [%s] with %d phases, budget %s\n",
				tmpl.Name, formatter.ShortID(tmpl.ID), len(tmpl.Phases), formatter.Money(tmpl.TotalBudget()))
			return nil
		},
	}
	organisationFlag(cmd.Flags(), &orgInput, "Organisation")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newTemplateInstantiateCmd(st *state) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "instantiate <template-id>",
		Short: "Create a project from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, _, err := st.hydrate(ctx)
			if err != nil {
				return err
			}
			ids, names := indexNames(st.app.Stores.Templates.All(),
				func(t domain.ProjectTemplate) string { return t.ID },
				func(t domain.ProjectTemplate) string { return t.Name })
			templateID, err := resolveID("template", args[0], ids, names)
			if err != nil {
				return err
			}
			project, err := st.app.Templates.Instantiate(ctx, templateID, name, id.UserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s [%s]\n", project.Name, project.DisplayID())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
