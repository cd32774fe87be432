package ports

import (
	"context"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
)

// FunctionRepository drives the function service. Create surfaces
// deploy.ErrNotYetPropagated while the execution role is not yet
// assumable; missing functions surface deploy.ErrNotFound.
type FunctionRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, fn *function.Function) error
	Get(ctx context.Context, name string) (*function.Function, error)
	UpdateCode(ctx context.Context, name string, code function.Code) error
	UpdateConfiguration(ctx context.Context, fn *function.Function) error
	Delete(ctx context.Context, name string) error

	// AddPermission grants the principal (with an optional source arn
	// scope) the right to invoke the function; RemovePermission revokes
	// it by statement id. GetPolicy returns the function's resource
	// policy, deploy.ErrNotFound when none has been attached yet.
	AddPermission(ctx context.Context, name, statementID, principal, sourceArn string) error
	RemovePermission(ctx context.Context, name, statementID string) error
	GetPolicy(ctx context.Context, name string) (*policy.Document, error)

	Invoke(ctx context.Context, name string, payload []byte) ([]byte, error)
}
