package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/transport/amqpfeed"
)

func newTokenCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage session tokens",
	}

	var userID string
	var admin bool
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed session token for a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := st.app.Auth.Issue(auth.Identity{UserID: userID, IsAdmin: admin})
			if err != nil {
				return err
			}
			st.noTouch = true
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "Profile ID the token is issued for")
	issue.Flags().BoolVar(&admin, "admin", false, "Issue an administrator token")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

func newExpireCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Wipe local snapshots if the session has been inactive past the expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wiped, err := st.app.Session.CheckExpiry(cmd.Context())
			if err != nil {
				return err
			}
			// Checking is not activity.
			st.noTouch = true
			if wiped {
				fmt.Fprintln(cmd.OutOrStdout(), "Local snapshots wiped.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session is fresh.")
			return nil
		},
	}
}

func newSignOutCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Close the feed and clear all local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st.noTouch = true
			if err := st.app.Session.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newMigrateCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the backend schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st.noTouch = true
			if err := db.Migrate(st.app.DB, st.app.Dialect); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is current (%s).\n", st.app.Dialect)
			return nil
		},
	}
}

func newRelayCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward Postgres change notifications onto the AMQP exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st.noTouch = true
			cfg := st.app.Config.Feed
			if cfg.PostgresDSN == "" {
				return errors.New("relay needs feed.postgres_dsn or a postgres backend")
			}

			source := newListener(cfg, st.app.Logger)
			if err := source.Start(ctx); err != nil {
				return fmt.Errorf("starting listener: %w", err)
			}
			defer source.Close()

			pub, err := amqpfeed.NewPublisher(cfg.AMQPURL)
			if err != nil {
				return err
			}
			defer pub.Close()

			st.app.Logger.Info("relaying change feed", zap.String("channel", db.ChangeFeedChannel))
			return amqpfeed.Relay(ctx, source, pub, st.app.Logger)
		},
	}
}
