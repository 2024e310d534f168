package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"imageref/internal/platform/logger"
	"imageref/internal/registration/models"
	"imageref/internal/registration/service"
)

func lookupCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <email>",
		Short: "Show the children registered under an email and whether they may upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := service.New(root.store(), nil,
				service.WithLogger(logger.NewWithWriter(cmd.ErrOrStderr(), "warn")))
			result, err := svc.FindByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch result.Outcome {
			case models.OutcomeNotFound:
				fmt.Fprintf(out, "%s: %s\n", args[0], unknownColor.Sprint("no registrations"))
				return nil
			case models.OutcomeAlreadyComplete:
				fmt.Fprintf(out, "%s: %s\n", args[0], doneColor.Sprint("all uploads complete"))
			default:
				fmt.Fprintf(out, "%s: %s\n", args[0], pendingColor.Sprint("eligible"))
			}
			for _, c := range result.Children {
				category := "-"
				if cat, err := models.BucketFor(c.Age); err == nil {
					category = string(cat)
				}
				fmt.Fprintf(out, "  %s (age %d, %s) %s\n", c.ChildName, c.Age, category, statusLabel(c.Status))
			}
			return nil
		},
	}
}
