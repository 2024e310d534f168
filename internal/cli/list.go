package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imageref/internal/admin"
	"imageref/internal/registration/models"
)

func listCmd(root *rootOptions) *cobra.Command {
	var (
		sortBy     string
		descending bool
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger rows",
		Long: `List every registration in the ledger.

Sort fields: childName, parentName, age, email, status, registrationId,
dateOfBirth, grade. Filter with --status pending or --status done.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			field := admin.SortField(sortBy)
			if !field.IsValid() {
				return fmt.Errorf("unsupported sort field %q", sortBy)
			}
			filter, err := statusFilter(status)
			if err != nil {
				return err
			}

			svc := admin.NewService(root.store(), nil, nil)
			records, err := svc.Registrations(cmd.Context(), field, descending)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, headColor.Sprint("REG ID\tCHILD\tAGE\tEMAIL\tSTATUS"))
			shown := 0
			for _, r := range records {
				if !filter(r) {
					continue
				}
				shown++
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.RegistrationID, r.ChildName, r.Age, r.Email, statusLabel(r.Status))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d rows\n", shown, len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "", "column to sort by")
	cmd.Flags().BoolVar(&descending, "desc", false, "sort descending")
	cmd.Flags().StringVar(&status, "status", "all", "filter by status: all, pending or done")
	return cmd
}

func statusFilter(status string) (func(models.Record) bool, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "all":
		return func(models.Record) bool { return true }, nil
	case "done":
		return func(r models.Record) bool { return r.Status.IsDone() }, nil
	case "pending":
		return func(r models.Record) bool { return !r.Status.IsDone() }, nil
	default:
		return nil, fmt.Errorf("unknown status filter %q", status)
	}
}
