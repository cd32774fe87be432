package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog/log"

	awsadapter "github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/eventbridge"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/iam"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/lambda"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/s3"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/sts"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/config"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
	credentialuc "github.com/martijnvandongen/operational-tasks-lambda/internal/usecases/credential"
	functionuc "github.com/martijnvandongen/operational-tasks-lambda/internal/usecases/function"
	roleuc "github.com/martijnvandongen/operational-tasks-lambda/internal/usecases/role"
	scheduleuc "github.com/martijnvandongen/operational-tasks-lambda/internal/usecases/schedule"
)

// poolSize caps how many independent deployments provision at once.
// Stages inside one deployment stay strictly ordered.
const poolSize = 4

// app wires the configuration, the service adapters and the usecases
// for one command invocation.
type app struct {
	cfg      *config.Config
	settings awsadapter.Settings

	roles     *roleuc.UseCase
	functions *functionuc.UseCase
	schedules *scheduleuc.UseCase
	broker    *credentialuc.UseCase
	store     ports.StorageRepository
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	settings := awsadapter.Settings{
		Region:   cfg.Region,
		Profile:  cfg.Profile,
		Endpoint: cfg.Endpoint,
	}
	awsCfg, err := awsadapter.Load(ctx, settings)
	if err != nil {
		return nil, err
	}

	roleRepo := iam.NewRepository(awsCfg)
	fnRepo := lambda.NewRepository(awsCfg)
	store := s3.NewRepository(awsCfg)

	return &app{
		cfg:       cfg,
		settings:  settings,
		roles:     roleuc.NewUseCase(roleRepo),
		functions: functionuc.NewUseCase(fnRepo, store),
		schedules: scheduleuc.NewUseCase(eventbridge.NewRepository(awsCfg), fnRepo),
		broker:    credentialuc.NewUseCase(sts.NewRepository(awsCfg), roleRepo),
		store:     store,
	}, nil
}

// selectDeployments resolves the command arguments to deployment
// names: one positional name, or every configured deployment with
// --all.
func (a *app) selectDeployments(args []string, all bool) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all does not take a deployment name")
		}
		return a.cfg.Names(), nil
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("expected exactly one deployment name (or --all)")
	}
	if _, err := a.cfg.Build(args[0]); err != nil {
		return nil, err
	}
	return args, nil
}

// runEach applies fn to every named deployment. Independent
// deployments own disjoint remote resources, so multiple names run
// through a bounded worker pool.
func (a *app) runEach(ctx context.Context, names []string, fn func(ctx context.Context, dep *deploy.Deployment) error) error {
	run := func(name string) error {
		dep, err := a.cfg.Build(name)
		if err != nil {
			return err
		}
		logger := log.Ctx(ctx).With().Str("deployment", name).Logger()
		if err := fn(logger.WithContext(ctx), dep); err != nil {
			return fmt.Errorf("deployment %s: %w", name, err)
		}
		return nil
	}

	if len(names) == 1 {
		return run(names[0])
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	wp := workerpool.New(poolSize)
	for _, name := range names {
		name := name
		wp.Submit(func() {
			if err := run(name); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wp.StopWait()
	return errors.Join(errs...)
}
