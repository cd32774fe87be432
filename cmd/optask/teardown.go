package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

func newTeardownCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "teardown [deployment]",
		Short: "Remove the schedule, the function and the role",
		Long: `Teardown reverses provisioning in dependency order: unbind and delete
the schedule rule, delete the function, then detach policies and
delete the role. Resources that are already gone count as done, so a
partially cleaned-up or fully absent deployment tears down without
error.`,
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
				if err := app.schedules.Teardown(ctx, &dep.Rule); err != nil {
					return err
				}
				if err := app.functions.Delete(ctx, dep.Function.Name); err != nil {
					return err
				}
				if err := app.roles.Delete(ctx, dep.Role.Name); err != nil {
					return err
				}
				fmt.Printf("deployment %s torn down\n", dep.Name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Tear down every configured deployment")
	return cmd
}
