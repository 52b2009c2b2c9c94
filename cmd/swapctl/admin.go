package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
	"github.com/noah-isme/course-swap-api/internal/seed"
)

func newAdminCmd(cli *cliContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var email, password, name string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			stores, err := cli.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close() //nolint:errcheck

			id, err := seed.New(stores.Courses, stores.Users, cli.logger).CreateAccount(cmd.Context(), seed.Account{
				Email:    strings.TrimSpace(email),
				Password: password,
				FullName: name,
				Role:     models.RoleAdmin,
			})
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return fmt.Errorf("an account for %s already exists", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", email, id)
			return nil
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "login email")
	createCmd.Flags().StringVar(&password, "password", "", "initial password")
	createCmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	var checkEmail, checkPassword string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify an administrator can log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := cli.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close() //nolint:errcheck

			user, err := stores.Users.FindByEmail(cmd.Context(), strings.TrimSpace(checkEmail))
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("no account for %s", checkEmail)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account: %s role=%s active=%t\n", user.Email, user.Role, user.Active)
			if user.Role != models.RoleAdmin {
				return fmt.Errorf("%s is not an administrator", checkEmail)
			}
			if checkPassword != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(checkPassword)); err != nil {
					return errors.New("password does not match")
				}
				fmt.Fprintln(out, "password: ok")
			}
			return nil
		},
	}
	checkCmd.Flags().StringVar(&checkEmail, "email", "admin@example.com", "login email")
	checkCmd.Flags().StringVar(&checkPassword, "password", "", "password to verify")

	adminCmd.AddCommand(createCmd, checkCmd)
	return adminCmd
}
