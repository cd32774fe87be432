package iam

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/role"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

type Repository struct {
	client *awsiam.Client
}

func NewRepository(cfg aws.Config) ports.RoleRepository {
	return &Repository{client: awsiam.NewFromConfig(cfg)}
}

// Exists checks if a role exists.
func (r *Repository) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.client.GetRole(ctx, &awsiam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if role exists: %w", err)
	}
	return true, nil
}

// Create creates the role with its trust policy and fills the
// service-assigned fields back into the model.
func (r *Repository) Create(ctx context.Context, rl *role.Role) error {
	trust, err := rl.Trust.Render()
	if err != nil {
		return fmt.Errorf("failed to render trust policy: %w", err)
	}

	input := &awsiam.CreateRoleInput{
		RoleName:                 aws.String(rl.Name),
		AssumeRolePolicyDocument: aws.String(trust),
		Path:                     aws.String(rl.Path),
	}
	if rl.Description != "" {
		input.Description = aws.String(rl.Description)
	}
	if rl.MaxSessionDuration > 0 {
		input.MaxSessionDuration = aws.Int32(rl.MaxSessionDuration)
	}
	if len(rl.Tags) > 0 {
		input.Tags = convertTags(rl.Tags)
	}

	output, err := r.client.CreateRole(ctx, input)
	if err != nil {
		var aee *types.EntityAlreadyExistsException
		if errors.As(err, &aee) {
			return fmt.Errorf("role %s: %w", rl.Name, deploy.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	if output.Role != nil {
		rl.Arn = aws.ToString(output.Role.Arn)
		rl.RoleID = aws.ToString(output.Role.RoleId)
		if output.Role.CreateDate != nil {
			t := *output.Role.CreateDate
			rl.CreatedAt = &t
		}
	}
	return nil
}

// Get retrieves a role with its trust document decoded. The service
// echoes documents URL-encoded.
func (r *Repository) Get(ctx context.Context, name string) (*role.Role, error) {
	output, err := r.client.GetRole(ctx, &awsiam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	rl := &role.Role{
		Name:               aws.ToString(output.Role.RoleName),
		Arn:                aws.ToString(output.Role.Arn),
		RoleID:             aws.ToString(output.Role.RoleId),
		Description:        aws.ToString(output.Role.Description),
		MaxSessionDuration: aws.ToInt32(output.Role.MaxSessionDuration),
		Path:               aws.ToString(output.Role.Path),
	}
	if output.Role.CreateDate != nil {
		t := *output.Role.CreateDate
		rl.CreatedAt = &t
	}

	if raw := aws.ToString(output.Role.AssumeRolePolicyDocument); raw != "" {
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode trust policy: %w", err)
		}
		doc, err := policy.Parse(decoded)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trust policy: %w", err)
		}
		rl.Trust = doc
	}
	return rl, nil
}

// UpdateTrust replaces the role's trust policy in place.
func (r *Repository) UpdateTrust(ctx context.Context, name string, trust *policy.Document) error {
	doc, err := trust.Render()
	if err != nil {
		return fmt.Errorf("failed to render trust policy: %w", err)
	}
	_, err = r.client.UpdateAssumeRolePolicy(ctx, &awsiam.UpdateAssumeRolePolicyInput{
		RoleName:       aws.String(name),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("failed to update assume role policy: %w", err)
	}
	return nil
}

// Delete deletes a role.
func (r *Repository) Delete(ctx context.Context, name string) error {
	_, err := r.client.DeleteRole(ctx, &awsiam.DeleteRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// AttachManagedPolicy attaches a managed policy to the role.
func (r *Repository) AttachManagedPolicy(ctx context.Context, name, policyArn string) error {
	_, err := r.client.AttachRolePolicy(ctx, &awsiam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return fmt.Errorf("failed to attach managed policy: %w", err)
	}
	return nil
}

// DetachManagedPolicy detaches a managed policy from the role.
func (r *Repository) DetachManagedPolicy(ctx context.Context, name, policyArn string) error {
	_, err := r.client.DetachRolePolicy(ctx, &awsiam.DetachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return fmt.Errorf("policy %s: %w", policyArn, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to detach managed policy: %w", err)
	}
	return nil
}

// ListAttachedPolicies lists all attached managed policy arns.
func (r *Repository) ListAttachedPolicies(ctx context.Context, name string) ([]string, error) {
	output, err := r.client.ListAttachedRolePolicies(ctx, &awsiam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list attached policies: %w", err)
	}

	arns := make([]string, 0, len(output.AttachedPolicies))
	for _, p := range output.AttachedPolicies {
		arns = append(arns, aws.ToString(p.PolicyArn))
	}
	return arns, nil
}

// PutInlinePolicy creates or updates an inline policy on the role.
func (r *Repository) PutInlinePolicy(ctx context.Context, name string, p role.InlinePolicy) error {
	doc, err := p.Document.Render()
	if err != nil {
		return fmt.Errorf("failed to render policy %s: %w", p.Name, err)
	}
	_, err = r.client.PutRolePolicy(ctx, &awsiam.PutRolePolicyInput{
		RoleName:       aws.String(name),
		PolicyName:     aws.String(p.Name),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("failed to put inline policy: %w", err)
	}
	return nil
}

// DeleteInlinePolicy deletes an inline policy from the role.
func (r *Repository) DeleteInlinePolicy(ctx context.Context, name, policyName string) error {
	_, err := r.client.DeleteRolePolicy(ctx, &awsiam.DeleteRolePolicyInput{
		RoleName:   aws.String(name),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return fmt.Errorf("policy %s: %w", policyName, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to delete inline policy: %w", err)
	}
	return nil
}

// ListInlinePolicies retrieves every inline policy with its document
// decoded.
func (r *Repository) ListInlinePolicies(ctx context.Context, name string) ([]role.InlinePolicy, error) {
	listed, err := r.client.ListRolePolicies(ctx, &awsiam.ListRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		var nfe *types.NoSuchEntityException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list inline policies: %w", err)
	}

	policies := make([]role.InlinePolicy, 0, len(listed.PolicyNames))
	for _, policyName := range listed.PolicyNames {
		got, err := r.client.GetRolePolicy(ctx, &awsiam.GetRolePolicyInput{
			RoleName:   aws.String(name),
			PolicyName: aws.String(policyName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get inline policy %s: %w", policyName, err)
		}
		decoded, err := url.QueryUnescape(aws.ToString(got.PolicyDocument))
		if err != nil {
			return nil, fmt.Errorf("failed to decode policy %s: %w", policyName, err)
		}
		doc, err := policy.Parse(decoded)
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy %s: %w", policyName, err)
		}
		policies = append(policies, role.InlinePolicy{Name: policyName, Document: doc})
	}
	return policies, nil
}

// TagRole tags a role.
func (r *Repository) TagRole(ctx context.Context, name string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := r.client.TagRole(ctx, &awsiam.TagRoleInput{
		RoleName: aws.String(name),
		Tags:     convertTags(tags),
	})
	if err != nil {
		return fmt.Errorf("failed to tag role: %w", err)
	}
	return nil
}

func convertTags(tags map[string]string) []types.Tag {
	iamTags := make([]types.Tag, 0, len(tags))
	for k, v := range tags {
		iamTags = append(iamTags, types.Tag{
			Key:   aws.String(k),
			Value: aws.String(v),
		})
	}
	return iamTags
}
