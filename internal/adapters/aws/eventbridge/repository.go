package eventbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsevents "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/schedule"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

type Repository struct {
	client *awsevents.Client
}

func NewRepository(cfg aws.Config) ports.ScheduleRepository {
	return &Repository{client: awsevents.NewFromConfig(cfg)}
}

// PutRule creates or updates the rule and returns its arn. PutRule is
// an upsert on the service side, so re-running it never duplicates.
func (r *Repository) PutRule(ctx context.Context, rule *schedule.Rule) (string, error) {
	state := types.RuleStateEnabled
	if !rule.Enabled {
		state = types.RuleStateDisabled
	}

	input := &awsevents.PutRuleInput{
		Name:               aws.String(rule.Name),
		ScheduleExpression: aws.String(rule.Expression),
		State:              state,
	}
	if rule.Description != "" {
		input.Description = aws.String(rule.Description)
	}

	output, err := r.client.PutRule(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to put rule: %w", err)
	}
	rule.Arn = aws.ToString(output.RuleArn)
	return rule.Arn, nil
}

// DescribeRule reads the rule back, deploy.ErrNotFound when absent.
func (r *Repository) DescribeRule(ctx context.Context, name string) (*schedule.Rule, error) {
	output, err := r.client.DescribeRule(ctx, &awsevents.DescribeRuleInput{
		Name: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("rule %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to describe rule: %w", err)
	}

	return &schedule.Rule{
		Name:        aws.ToString(output.Name),
		Arn:         aws.ToString(output.Arn),
		Description: aws.ToString(output.Description),
		Expression:  aws.ToString(output.ScheduleExpression),
		Enabled:     output.State == types.RuleStateEnabled,
	}, nil
}

// EnableRule turns the rule on.
func (r *Repository) EnableRule(ctx context.Context, name string) error {
	_, err := r.client.EnableRule(ctx, &awsevents.EnableRuleInput{
		Name: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("rule %s: %w", name, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to enable rule: %w", err)
	}
	return nil
}

// DisableRule turns the rule off without removing it.
func (r *Repository) DisableRule(ctx context.Context, name string) error {
	_, err := r.client.DisableRule(ctx, &awsevents.DisableRuleInput{
		Name: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("rule %s: %w", name, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to disable rule: %w", err)
	}
	return nil
}

// DeleteRule removes the rule. The service refuses while targets are
// still attached, so teardown unbinds first.
func (r *Repository) DeleteRule(ctx context.Context, name string) error {
	_, err := r.client.DeleteRule(ctx, &awsevents.DeleteRuleInput{
		Name: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("rule %s: %w", name, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// PutTarget attaches one invocation target to the rule.
func (r *Repository) PutTarget(ctx context.Context, ruleName string, t schedule.Target) error {
	output, err := r.client.PutTargets(ctx, &awsevents.PutTargetsInput{
		Rule: aws.String(ruleName),
		Targets: []types.Target{{
			Id:  aws.String(t.ID),
			Arn: aws.String(t.Arn),
		}},
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("rule %s: %w", ruleName, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to put target: %w", err)
	}
	if output.FailedEntryCount > 0 {
		entry := output.FailedEntries[0]
		return fmt.Errorf("failed to put target %s: %s: %s",
			t.ID, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}
	return nil
}

// ListTargets returns the targets attached to the rule.
func (r *Repository) ListTargets(ctx context.Context, ruleName string) ([]schedule.Target, error) {
	output, err := r.client.ListTargetsByRule(ctx, &awsevents.ListTargetsByRuleInput{
		Rule: aws.String(ruleName),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("rule %s: %w", ruleName, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	targets := make([]schedule.Target, 0, len(output.Targets))
	for _, t := range output.Targets {
		targets = append(targets, schedule.Target{
			ID:  aws.ToString(t.Id),
			Arn: aws.ToString(t.Arn),
		})
	}
	return targets, nil
}

// RemoveTarget detaches one target from the rule.
func (r *Repository) RemoveTarget(ctx context.Context, ruleName, targetID string) error {
	output, err := r.client.RemoveTargets(ctx, &awsevents.RemoveTargetsInput{
		Rule: aws.String(ruleName),
		Ids:  []string{targetID},
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("rule %s: %w", ruleName, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to remove target: %w", err)
	}
	if output.FailedEntryCount > 0 {
		entry := output.FailedEntries[0]
		if aws.ToString(entry.ErrorCode) == "ResourceNotFoundException" {
			return fmt.Errorf("target %s: %w", targetID, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to remove target %s: %s: %s",
			targetID, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}
	return nil
}
