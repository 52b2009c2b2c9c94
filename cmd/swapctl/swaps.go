package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/course-swap-api/internal/models"
)

func newSwapsCmd(cli *cliContext) *cobra.Command {
	swapsCmd := &cobra.Command{
		Use:   "swaps",
		Short: "Inspect swap requests",
	}

	var status, student string
	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List swap requests, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := models.SwapRequestFilter{StudentID: student, Page: page, PageSize: pageSize}
			if status != "" {
				parsed, err := models.ParseSwapStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &parsed
			}

			stores, err := cli.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close() //nolint:errcheck

			requests, total, err := stores.Requests.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTUDENT\tORIGINAL\tTARGET\tSTATUS\tCREATED")
			for _, r := range requests {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.StudentName, r.OriginalCourseID, r.TargetCourseID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d request(s)\n", len(requests), total)
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "PENDING, APPROVED or REJECTED")
	listCmd.Flags().StringVar(&student, "student", "", "student id")
	listCmd.Flags().IntVar(&page, "page", 1, "page number")
	listCmd.Flags().IntVar(&pageSize, "page-size", 50, "page size")

	swapsCmd.AddCommand(listCmd)
	return swapsCmd
}
