package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

func newScheduleCmd(configPath *string) *cobra.Command {
	var (
		all     bool
		disable bool
	)

	cmd := &cobra.Command{
		Use:   "schedule [deployment]",
		Short: "Drive the schedule rule to its desired state",
		Long: `Schedule detects the rule's current remote state and performs only the
missing transitions: create the rule, grant the invoke permission,
bind the target, enable. The permission always lands before the
target, so the rule can never fire at a function that would refuse
the call. Running it again is a no-op.`,
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
				if dep.Rule.Expression == "" {
					return fmt.Errorf("deployment %s has no schedule expression", dep.Name)
				}
				if disable {
					dep.Rule.Enabled = false
				}
				status, err := app.schedules.Ensure(ctx, &dep.Rule)
				if err != nil {
					return err
				}
				fmt.Printf("rule %s: %s (%s)\n", dep.Rule.Name, status.State, dep.Rule.Expression)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Schedule every configured deployment")
	cmd.Flags().BoolVar(&disable, "disable", false, "Leave the rule bound but disabled")
	return cmd
}
