package ports

import (
	"context"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/schedule"
)

// ScheduleRepository drives the event rule service. Every call is one
// state-machine transition; missing rules surface deploy.ErrNotFound.
type ScheduleRepository interface {
	// PutRule creates or updates the rule and returns its arn.
	PutRule(ctx context.Context, r *schedule.Rule) (string, error)
	DescribeRule(ctx context.Context, name string) (*schedule.Rule, error)
	EnableRule(ctx context.Context, name string) error
	DisableRule(ctx context.Context, name string) error
	DeleteRule(ctx context.Context, name string) error

	PutTarget(ctx context.Context, ruleName string, t schedule.Target) error
	ListTargets(ctx context.Context, ruleName string) ([]schedule.Target, error)
	RemoveTarget(ctx context.Context, ruleName, targetID string) error
}
