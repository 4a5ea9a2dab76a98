package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/session"
)

// state is shared by every subcommand of one root invocation.
type state struct {
	build      Builder
	configPath string
	token      string
	app        *App
	// noTouch suppresses the activity stamp, for commands that end the session.
	noTouch bool
}

// Execute runs the command line in args. The App is closed even when the
// command fails.
func Execute(ctx context.Context, build Builder, args []string, out io.Writer) error {
	root, st := newRoot(build)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	err := root.ExecuteContext(ctx)
	if st.app != nil {
		err = errors.Join(err, st.app.Close())
		st.app = nil
	}
	return err
}

// NewRootCmd creates the top-level "sitesync" command. The App is built
// once flags are parsed and closed when the command succeeds; use Execute
// to also close it on failure.
func NewRootCmd(build Builder) *cobra.Command {
	root, _ := newRoot(build)
	return root
}

func newRoot(build Builder) (*cobra.Command, *state) {
	st := &state{build: build}

	root := &cobra.Command{
		Use:           "sitesync",
		Short:         "Construction project sync layer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if st.token == "" {
				st.token = os.Getenv("SITESYNC_TOKEN")
			}
			app, err := st.build(cmd.Context(), st.configPath)
			if err != nil {
				return err
			}
			st.app = app
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.app == nil {
				return nil
			}
			if !st.noTouch {
				st.app.touch(context.WithoutCancel(cmd.Context()))
			}
			err := st.app.Close()
			st.app = nil
			return err
		},
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&st.token, "token", "", "Session token (defaults to $SITESYNC_TOKEN)")

	root.AddCommand(
		newTokenCmd(st),
		newHydrateCmd(st),
		newProjectsCmd(st),
		newOrgCmd(st),
		newProjectCmd(st),
		newRequestsCmd(st),
		newSubmitCmd(st),
		newApproveCmd(st),
		newRejectCmd(st),
		newWatchCmd(st),
		newExpireCmd(st),
		newSignOutCmd(st),
		newMigrateCmd(st),
		newRelayCmd(st),
		newTemplateCmd(st),
	)
	return root, st
}

// hydrate authenticates the token, wipes stale snapshots and loads the
// user's data. Load failures are reported but do not fail the command
// unless the root datasets could not be read.
func (st *state) hydrate(ctx context.Context) (auth.Identity, *session.Result, error) {
	id, err := st.app.identity(st.token)
	if err != nil {
		return auth.Identity{}, nil, err
	}
	if _, err := st.app.Session.CheckExpiry(ctx); err != nil {
		return id, nil, fmt.Errorf("checking session expiry: %w", err)
	}
	res, err := st.app.Session.OnAuth(ctx, id)
	if err != nil {
		return id, res, err
	}
	if st.app.Session.State() == session.StateError {
		return id, res, fmt.Errorf("hydration failed for %s", id.UserID)
	}
	return id, res, nil
}
