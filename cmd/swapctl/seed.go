package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/course-swap-api/internal/seed"
)

func newSeedCmd(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog and accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := cli.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close() //nolint:errcheck

			report, err := seed.New(stores.Courses, stores.Users, cli.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "courses: %d created, %d skipped\n", report.CoursesCreated, report.CoursesSkipped)
			fmt.Fprintf(out, "users: %d created, %d skipped\n", report.UsersCreated, report.UsersSkipped)
			fmt.Fprintf(out, "enrollments: %d\n", report.Enrollments)
			return nil
		},
	}
}
