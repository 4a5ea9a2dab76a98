package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/sitesync/internal/cli/formatter"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/views"
)

func newSubmitCmd(st *state) *cobra.Command {
	var to, data string

	cmd := &cobra.Command{
		Use:   "submit <type>",
		Short: "Submit a request (TaskAssignment, MaterialRequest, PaymentRequest, TaskCompletion, JoinOrganisation, JoinProject)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, err := st.hydrate(cmd.Context())
			if err != nil {
				return err
			}
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("--data must be a JSON object")
			}
			r := &domain.Request{
				Type:        domain.RequestType(args[0]),
				RequestedBy: id.UserID,
				RequestedTo: to,
				RequestData: json.RawMessage(data),
			}
			if err := st.app.Requests.Submit(cmd.Context(), r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s %s\n", r.Type, formatter.ShortID(r.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient profile ID")
	cmd.Flags().StringVar(&data, "data", "{}", "Request payload as JSON")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newApproveCmd(st *state) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending request and apply its effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, _, err := st.hydrate(ctx)
			if err != nil {
				return err
			}
			reqID, err := resolveRequest(st, args[0])
			if err != nil {
				return err
			}
			r, err := st.app.Requests.Approve(ctx, id, reqID, note)
			if err != nil {
				return err
			}
			printDecision(cmd, st, r)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Response sent back to the requester")
	return cmd
}

func newRejectCmd(st *state) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, _, err := st.hydrate(ctx)
			if err != nil {
				return err
			}
			reqID, err := resolveRequest(st, args[0])
			if err != nil {
				return err
			}
			r, err := st.app.Requests.Reject(ctx, id, reqID, reason)
			if err != nil {
				return err
			}
			printDecision(cmd, st, r)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the request was rejected")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func printDecision(cmd *cobra.Command, st *state, r *domain.Request) {
	rr, _ := views.ResolveRequest(st.app.Stores, *r)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n",
		formatter.RequestStatusLabel(r.Status), r.Type, rr.Subject())
}
