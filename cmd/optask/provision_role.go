package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

func newProvisionRoleCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "provision-role [deployment]",
		Short: "Create or update the execution role and its policies",
		Long: `Provision-role creates the execution role with a trust policy for the
invoking service (plus the configured operator, for local testing) and
attaches the permission policies. An existing role is updated in
place, never treated as a failure.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			names, err := app.selectDeployments(args, all)
			if err != nil {
				return err
			}
			return app.runEach(cmd.Context(), names, func(ctx context.Context, dep *deploy.Deployment) error {
				if err := app.roles.Ensure(ctx, &dep.Role); err != nil {
					return err
				}
				fmt.Printf("role %s ready (%s)\n", dep.Role.Name, dep.Role.Arn)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Provision every configured deployment")
	return cmd
}
