package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"imageref/internal/registration/models"
	"imageref/internal/registration/store"
)

// ErrLedgerInvalid is returned by validate when it reports any issue.
var ErrLedgerInvalid = errors.New("ledger has issues")

// Issue is one problem found in a ledger row. Row is 1-based and excludes
// the header.
type Issue struct {
	Row     int
	Message string
}

func validateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the ledger for rows the upload flow cannot serve",
		Long: `Check every ledger row for a missing email or child name, an age outside
the supported categories, an unrecognised status and duplicate
(email, child name) pairs or registration IDs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues, rows, err := Validate(cmd.Context(), root.store())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, issue := range issues {
				fmt.Fprintf(out, "row %d: %s\n", issue.Row, issue.Message)
			}
			if len(issues) > 0 {
				fmt.Fprintf(out, "%s %d issue(s) in %d rows\n", unknownColor.Sprint("FAIL"), len(issues), rows)
				return ErrLedgerInvalid
			}
			fmt.Fprintf(out, "%s %d rows\n", doneColor.Sprint("OK"), rows)
			return nil
		},
	}
}

// Validate loads the ledger and returns every issue found along with the
// number of rows checked.
func Validate(ctx context.Context, s store.Store) ([]Issue, int, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	minAge, maxAge := models.SupportedAgeRange()
	var issues []Issue
	children := make(map[string]int)
	regIDs := make(map[string]int)
	for i, r := range records {
		row := i + 1
		if models.NormalizeKey(r.Email) == "" {
			issues = append(issues, Issue{row, "missing email"})
		}
		if models.NormalizeKey(r.ChildName) == "" {
			issues = append(issues, Issue{row, "missing child name"})
		}
		if _, err := models.BucketFor(r.Age); err != nil {
			issues = append(issues, Issue{row, fmt.Sprintf("age %d outside %d-%d", r.Age, minAge, maxAge)})
		}
		if !r.Status.IsDone() && !isPending(r.Status) {
			issues = append(issues, Issue{row, fmt.Sprintf("unrecognised status %q", r.Status)})
		}

		key := models.NormalizeKey(r.Email) + "\x00" + models.NormalizeKey(r.ChildName)
		if first, ok := children[key]; ok {
			issues = append(issues, Issue{row, fmt.Sprintf("duplicate of row %d for %s / %s", first, r.Email, r.ChildName)})
		} else {
			children[key] = row
		}
		if id := models.NormalizeKey(r.RegistrationID); id != "" {
			if first, ok := regIDs[id]; ok {
				issues = append(issues, Issue{row, fmt.Sprintf("registration ID %s already used on row %d", r.RegistrationID, first)})
			} else {
				regIDs[id] = row
			}
		}
	}
	return issues, len(records), nil
}
