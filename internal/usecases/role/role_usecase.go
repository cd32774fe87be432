package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/role"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

type UseCase struct {
	repo ports.RoleRepository
}

func NewUseCase(repo ports.RoleRepository) *UseCase {
	return &UseCase{repo: repo}
}

// Ensure provisions the execution role: create when absent, otherwise
// update the trust document and reconcile attached policies in place.
// A name collision is never a hard failure.
func (uc *UseCase) Ensure(ctx context.Context, rl *role.Role) error {
	rl.SetDefaults()
	if err := rl.Validate(); err != nil {
		return deploy.Opf(deploy.StageRole, rl.Name, "validate",
			&deploy.ValidationError{Field: "role", Reason: err.Error()})
	}

	exists, err := uc.repo.Exists(ctx, rl.Name)
	if err != nil {
		return deploy.Opf(deploy.StageRole, rl.Name, "describe", err)
	}

	if !exists {
		log.Ctx(ctx).Info().Str("role", rl.Name).Msg("creating role")
		if err := uc.repo.Create(ctx, rl); err != nil && !errors.Is(err, deploy.ErrAlreadyExists) {
			return deploy.Opf(deploy.StageRole, rl.Name, "create", err)
		}
	} else {
		log.Ctx(ctx).Info().Str("role", rl.Name).Msg("role exists, updating in place")
		if err := uc.repo.UpdateTrust(ctx, rl.Name, rl.Trust); err != nil {
			return deploy.Opf(deploy.StageRole, rl.Name, "update trust policy", err)
		}
	}

	if err := uc.syncManagedPolicies(ctx, rl); err != nil {
		return deploy.Opf(deploy.StageRole, rl.Name, "sync managed policies", err)
	}
	if err := uc.syncInlinePolicies(ctx, rl); err != nil {
		return deploy.Opf(deploy.StageRole, rl.Name, "sync inline policies", err)
	}
	if err := uc.repo.TagRole(ctx, rl.Name, rl.Tags); err != nil {
		return deploy.Opf(deploy.StageRole, rl.Name, "tag", err)
	}

	updated, err := uc.repo.Get(ctx, rl.Name)
	if err != nil {
		return deploy.Opf(deploy.StageRole, rl.Name, "describe", err)
	}
	rl.Arn = updated.Arn
	rl.RoleID = updated.RoleID
	rl.CreatedAt = updated.CreatedAt
	return nil
}

// Describe reads the full remote role back: trust document, inline
// policies and managed attachments, for round-trip checks and status.
func (uc *UseCase) Describe(ctx context.Context, name string) (*role.Role, error) {
	rl, err := uc.repo.Get(ctx, name)
	if err != nil {
		return nil, deploy.Opf(deploy.StageRole, name, "describe", err)
	}

	inline, err := uc.repo.ListInlinePolicies(ctx, name)
	if err != nil {
		return nil, deploy.Opf(deploy.StageRole, name, "list inline policies", err)
	}
	rl.Permissions = inline

	managed, err := uc.repo.ListAttachedPolicies(ctx, name)
	if err != nil {
		return nil, deploy.Opf(deploy.StageRole, name, "list attached policies", err)
	}
	rl.ManagedPolicyArns = managed
	return rl, nil
}

// Delete tears the role down: detach managed policies, delete inline
// policies, delete the role. Absence at any step is success.
func (uc *UseCase) Delete(ctx context.Context, name string) error {
	exists, err := uc.repo.Exists(ctx, name)
	if err != nil {
		return deploy.Opf(deploy.StageRole, name, "describe", err)
	}
	if !exists {
		log.Ctx(ctx).Debug().Str("role", name).Msg("role already absent")
		return nil
	}

	attached, err := uc.repo.ListAttachedPolicies(ctx, name)
	if err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageRole, name, "list attached policies", err)
	}
	for _, arn := range attached {
		if err := uc.repo.DetachManagedPolicy(ctx, name, arn); err != nil && !errors.Is(err, deploy.ErrNotFound) {
			return deploy.Opf(deploy.StageRole, name, fmt.Sprintf("detach %s", arn), err)
		}
	}

	inline, err := uc.repo.ListInlinePolicies(ctx, name)
	if err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageRole, name, "list inline policies", err)
	}
	for _, p := range inline {
		if err := uc.repo.DeleteInlinePolicy(ctx, name, p.Name); err != nil && !errors.Is(err, deploy.ErrNotFound) {
			return deploy.Opf(deploy.StageRole, name, fmt.Sprintf("delete policy %s", p.Name), err)
		}
	}

	if err := uc.repo.Delete(ctx, name); err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageRole, name, "delete", err)
	}
	log.Ctx(ctx).Info().Str("role", name).Msg("role deleted")
	return nil
}

func (uc *UseCase) syncManagedPolicies(ctx context.Context, rl *role.Role) error {
	attached, err := uc.repo.ListAttachedPolicies(ctx, rl.Name)
	if err != nil {
		return err
	}

	desired := make(map[string]bool, len(rl.ManagedPolicyArns))
	for _, arn := range rl.ManagedPolicyArns {
		desired[arn] = true
	}
	current := make(map[string]bool, len(attached))
	for _, arn := range attached {
		current[arn] = true
	}

	for _, arn := range rl.ManagedPolicyArns {
		if !current[arn] {
			if err := uc.repo.AttachManagedPolicy(ctx, rl.Name, arn); err != nil {
				return fmt.Errorf("failed to attach policy %s: %w", arn, err)
			}
		}
	}
	for _, arn := range attached {
		if !desired[arn] {
			if err := uc.repo.DetachManagedPolicy(ctx, rl.Name, arn); err != nil {
				return fmt.Errorf("failed to detach policy %s: %w", arn, err)
			}
		}
	}
	return nil
}

func (uc *UseCase) syncInlinePolicies(ctx context.Context, rl *role.Role) error {
	existing, err := uc.repo.ListInlinePolicies(ctx, rl.Name)
	if err != nil {
		return err
	}

	desired := make(map[string]bool, len(rl.Permissions))
	for _, p := range rl.Permissions {
		desired[p.Name] = true
		if err := uc.repo.PutInlinePolicy(ctx, rl.Name, p); err != nil {
			return fmt.Errorf("failed to put policy %s: %w", p.Name, err)
		}
	}
	for _, p := range existing {
		if !desired[p.Name] {
			if err := uc.repo.DeleteInlinePolicy(ctx, rl.Name, p.Name); err != nil {
				return fmt.Errorf("failed to delete stale policy %s: %w", p.Name, err)
			}
		}
	}
	return nil
}
