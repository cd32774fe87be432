package function

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/retrier"
)

type UseCase struct {
	repo  ports.FunctionRepository
	store ports.StorageRepository
}

func NewUseCase(repo ports.FunctionRepository, store ports.StorageRepository) *UseCase {
	return &UseCase{repo: repo, store: store}
}

// Deploy creates the function when absent, otherwise replaces its code
// and reconciles configuration drift. Creation retries while the
// execution role's trust relationship is still propagating. When a
// staging bucket is set the zip is uploaded there first and the
// function points at the object instead of carrying inline bytes.
func (uc *UseCase) Deploy(ctx context.Context, fn *function.Function, artifact *function.Artifact, stagingBucket string) error {
	fn.SetDefaults()
	if err := fn.Validate(); err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "validate",
			&deploy.ValidationError{Field: "function", Reason: err.Error()})
	}
	if err := artifact.Validate(); err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "validate",
			&deploy.ValidationError{Field: "artifact", Reason: err.Error()})
	}

	code, err := uc.stage(ctx, fn.Name, artifact, stagingBucket)
	if err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "stage artifact", err)
	}
	fn.Code = code

	exists, err := uc.repo.Exists(ctx, fn.Name)
	if err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "describe", err)
	}

	if !exists {
		log.Ctx(ctx).Info().
			Str("function", fn.Name).
			Str("checksum", artifact.Checksum).
			Msg("creating function")
		err := retrier.Propagation(ctx, func() error {
			return uc.repo.Create(ctx, fn)
		})
		if err != nil {
			if errors.Is(err, deploy.ErrAlreadyExists) {
				// Lost a race with a concurrent deploy of the same
				// name; fall through to the update path.
				return uc.update(ctx, fn)
			}
			return deploy.Opf(deploy.StageFunction, fn.Name, "create", err)
		}
		return nil
	}
	return uc.update(ctx, fn)
}

func (uc *UseCase) update(ctx context.Context, fn *function.Function) error {
	remote, err := uc.repo.Get(ctx, fn.Name)
	if err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "describe", err)
	}

	log.Ctx(ctx).Info().Str("function", fn.Name).Msg("function exists, updating code")
	if err := uc.repo.UpdateCode(ctx, fn.Name, fn.Code); err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "update code", err)
	}

	if fn.ConfigDrifted(remote) {
		log.Ctx(ctx).Info().Str("function", fn.Name).Msg("reconciling configuration drift")
		err := retrier.Propagation(ctx, func() error {
			return uc.repo.UpdateConfiguration(ctx, fn)
		})
		if err != nil {
			return deploy.Opf(deploy.StageFunction, fn.Name, "update configuration", err)
		}
	}

	updated, err := uc.repo.Get(ctx, fn.Name)
	if err != nil {
		return deploy.Opf(deploy.StageFunction, fn.Name, "describe", err)
	}
	fn.Arn = updated.Arn
	fn.CodeSha256 = updated.CodeSha256
	fn.State = updated.State
	return nil
}

// Describe reads the remote function, deploy.ErrNotFound when absent.
func (uc *UseCase) Describe(ctx context.Context, name string) (*function.Function, error) {
	fn, err := uc.repo.Get(ctx, name)
	if err != nil {
		return nil, deploy.Opf(deploy.StageFunction, name, "describe", err)
	}
	return fn, nil
}

// Invoke runs the deployed function synchronously.
func (uc *UseCase) Invoke(ctx context.Context, name string, payload []byte) ([]byte, error) {
	out, err := uc.repo.Invoke(ctx, name, payload)
	if err != nil {
		return nil, deploy.Opf(deploy.StageFunction, name, "invoke", err)
	}
	return out, nil
}

// Delete removes the function; already gone is success.
func (uc *UseCase) Delete(ctx context.Context, name string) error {
	if err := uc.repo.Delete(ctx, name); err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageFunction, name, "delete", err)
	}
	log.Ctx(ctx).Info().Str("function", name).Msg("function deleted")
	return nil
}

// stage decides how the code reaches the service. Staged objects are
// content-addressed, so an artifact that is already present is not
// uploaded again.
func (uc *UseCase) stage(ctx context.Context, name string, artifact *function.Artifact, bucket string) (function.Code, error) {
	if bucket == "" {
		return function.Code{ZipFile: artifact.Data}, nil
	}

	key := fmt.Sprintf("%s/%s.zip", name, artifact.Checksum)
	present, err := uc.store.Exists(ctx, bucket, key)
	if err != nil {
		return function.Code{}, err
	}
	if !present {
		log.Ctx(ctx).Info().Str("bucket", bucket).Str("key", key).Msg("uploading artifact")
		if err := uc.store.Upload(ctx, bucket, key, artifact.Data); err != nil {
			return function.Code{}, err
		}
	}
	return function.Code{S3Bucket: bucket, S3Key: key}, nil
}
