// Package ports holds the interfaces that decouple the provisioning
// usecases from the AWS SDK adapters, one repository per service.
package ports

import (
	"context"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/role"
)

// RoleRepository drives the identity service. Get returns the role
// with its trust document decoded; inline and managed policies are
// listed separately. Missing roles surface deploy.ErrNotFound.
type RoleRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, r *role.Role) error
	Get(ctx context.Context, name string) (*role.Role, error)
	UpdateTrust(ctx context.Context, name string, trust *policy.Document) error
	Delete(ctx context.Context, name string) error

	AttachManagedPolicy(ctx context.Context, name, policyArn string) error
	DetachManagedPolicy(ctx context.Context, name, policyArn string) error
	ListAttachedPolicies(ctx context.Context, name string) ([]string, error)

	PutInlinePolicy(ctx context.Context, name string, p role.InlinePolicy) error
	DeleteInlinePolicy(ctx context.Context, name, policyName string) error
	ListInlinePolicies(ctx context.Context, name string) ([]role.InlinePolicy, error)

	TagRole(ctx context.Context, name string, tags map[string]string) error
}
