package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/packager"
)

func newDeployCmd(configPath *string) *cobra.Command {
	var (
		all   bool
		viaS3 bool
	)

	cmd := &cobra.Command{
		Use:     "deploy [deployment]",
		Aliases: []string{"build-and-deploy"},
		Short:   "Build the code artifact and create or update the function",
		Long: `Deploy packages the source tree and its dependency directories into a
deterministic artifact and pushes it: the function is created when
absent, otherwise only its code and drifted configuration are
updated. The execution role must have been provisioned first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			if viaS3 && app.cfg.StagingBucket == "" {
				return fmt.Errorf("--via-s3 requires stagingBucket in the configuration")
			}
			names, err := app.selectDeployments(args, all)
			if err != nil {
				return err
			}
			return app.runEach(cmd.Context(), names, func(ctx context.Context, dep *deploy.Deployment) error {
				return deployOne(ctx, app, dep, viaS3)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Deploy every configured deployment")
	cmd.Flags().BoolVar(&viaS3, "via-s3", false, "Stage the artifact through the configured bucket")
	return cmd
}

func deployOne(ctx context.Context, app *app, dep *deploy.Deployment, viaS3 bool) error {
	rl, err := app.roles.Describe(ctx, dep.Role.Name)
	if err != nil {
		if errors.Is(err, deploy.ErrNotFound) {
			return fmt.Errorf("role %s does not exist; run provision-role first", dep.Role.Name)
		}
		return err
	}
	dep.Function.Role = rl.Arn

	artifact, err := packager.Build(dep.SourceDir, dep.DependencyDirs, dep.EntryPoint)
	if err != nil {
		return err
	}

	bucket := ""
	if viaS3 || dep.StagingBucket != "" {
		bucket = dep.StagingBucket
	}
	if err := app.functions.Deploy(ctx, &dep.Function, artifact, bucket); err != nil {
		return err
	}

	fmt.Printf("function %s deployed (%d bytes, sha256 %s)\n",
		dep.Function.Name, artifact.Size, artifact.Checksum[:12])
	return nil
}
