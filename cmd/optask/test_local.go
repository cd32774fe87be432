package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	awsadapter "github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/s3"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/sts"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/opstask"
)

func newTestLocalCmd(configPath *string) *cobra.Command {
	var (
		event    string
		label    string
		ttl      time.Duration
		printEnv bool
	)

	cmd := &cobra.Command{
		Use:   "test-local <deployment>",
		Short: "Run the operational task locally under the execution role",
		Long: `Test-local assumes the deployment's execution role and runs the task
body in-process under those delegated credentials - the same identity
and the same code path as the deployed function, which closes the gap
between "works locally" and "works deployed". The credentials live
only in memory for the duration of the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			dep, err := app.cfg.Build(args[0])
			if err != nil {
				return err
			}
			if event != "" && !json.Valid([]byte(event)) {
				return fmt.Errorf("--event is not valid JSON")
			}

			rl, err := app.roles.Describe(ctx, dep.Role.Name)
			if err != nil {
				return err
			}

			cred, err := app.broker.Assume(ctx, rl.Arn, label, ttl)
			if err != nil {
				return err
			}

			if printEnv {
				env := cred.Env()
				keys := make([]string, 0, len(env))
				for k := range env {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("export %s=%s\n", k, env[k])
				}
			}

			// The task runs against clients built from the delegated
			// credential, never from this process's own identity.
			delegated := awsadapter.FromDelegated(app.settings, cred)
			result, err := opstask.Run(ctx, s3.NewRepository(delegated), sts.NewRepository(delegated))
			if err != nil {
				return fmt.Errorf("task failed under role %s: %w", rl.Arn, err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "JSON event payload (validated, the task takes no input)")
	cmd.Flags().StringVar(&label, "session-label", "", "Session label for the assumed role (default optask-<id>)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Credential lifetime, clamped to the 15m-12h window")
	cmd.Flags().BoolVar(&printEnv, "print-env", false, "Print export lines for running the task in a container")
	return cmd
}
