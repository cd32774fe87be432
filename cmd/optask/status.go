package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status [deployment]",
		Short: "Re-derive and print the remote state of every stage",
		Long: `Status asks the remote services what actually exists: the role, the
function and its code hash, and the schedule rule's position in the
provisioning chain. Nothing is read from local state, so status is
also how a partially completed provisioning run is resumed.`,
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
				printStatus(ctx, app, dep)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show every configured deployment")
	return cmd
}

func printStatus(ctx context.Context, app *app, dep *deploy.Deployment) {
	fmt.Printf("deployment %s\n", dep.Name)

	switch rl, err := app.roles.Describe(ctx, dep.Role.Name); {
	case errors.Is(err, deploy.ErrNotFound):
		fmt.Printf("  role      %s: absent\n", dep.Role.Name)
	case err != nil:
		fmt.Printf("  role      %s: error: %v\n", dep.Role.Name, err)
	default:
		fmt.Printf("  role      %s: present (%d policies, %d managed)\n",
			rl.Name, len(rl.Permissions), len(rl.ManagedPolicyArns))
	}

	switch fn, err := app.functions.Describe(ctx, dep.Function.Name); {
	case errors.Is(err, deploy.ErrNotFound):
		fmt.Printf("  function  %s: absent\n", dep.Function.Name)
	case err != nil:
		fmt.Printf("  function  %s: error: %v\n", dep.Function.Name, err)
	default:
		fmt.Printf("  function  %s: %s (sha256 %s)\n", fn.Name, fn.State, fn.CodeSha256)
	}

	if dep.Rule.Expression == "" {
		fmt.Println("  schedule  not configured")
		return
	}
	switch status, err := app.schedules.Current(ctx, &dep.Rule); {
	case err != nil:
		fmt.Printf("  schedule  %s: error: %v\n", dep.Rule.Name, err)
	default:
		fmt.Printf("  schedule  %s: %s", dep.Rule.Name, status.State)
		if status.Expression != "" {
			fmt.Printf(" (%s)", status.Expression)
		}
		fmt.Println()
		if status.TargetWithoutPermission {
			fmt.Println("  warning   target bound without invoke permission; run schedule to repair")
		}
	}
}
