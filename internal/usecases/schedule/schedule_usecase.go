package schedule

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/schedule"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

// invokePrincipal is the service principal the rule fires as.
const invokePrincipal = "events.amazonaws.com"

type UseCase struct {
	rules ports.ScheduleRepository
	fns   ports.FunctionRepository
}

func NewUseCase(rules ports.ScheduleRepository, fns ports.FunctionRepository) *UseCase {
	return &UseCase{rules: rules, fns: fns}
}

// Status is the observed position of a rule in the provisioning chain.
// TargetWithoutPermission marks the broken shape where a target is
// bound but the invoke grant is missing: the rule fires and every
// invocation is refused. Ensure repairs it; Status reports it.
type Status struct {
	State                   schedule.State
	Expression              string
	Enabled                 bool
	TargetWithoutPermission bool
}

type observation struct {
	remote        *schedule.Rule
	hasPermission bool
	hasTarget     bool
}

// Current re-derives the rule's state from the remote services alone.
// This is the resume primitive: no local record of past transitions is
// kept or trusted.
func (uc *UseCase) Current(ctx context.Context, rule *schedule.Rule) (*Status, error) {
	rule.SetDefaults()
	obs, err := uc.observe(ctx, rule)
	if err != nil {
		return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "observe", err)
	}
	return obs.status(), nil
}

func (uc *UseCase) observe(ctx context.Context, rule *schedule.Rule) (*observation, error) {
	obs := &observation{}

	remote, err := uc.rules.DescribeRule(ctx, rule.Name)
	switch {
	case errors.Is(err, deploy.ErrNotFound):
		return obs, nil
	case err != nil:
		return nil, err
	}
	obs.remote = remote
	rule.Arn = remote.Arn

	doc, err := uc.fns.GetPolicy(ctx, rule.FunctionName)
	if err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return nil, err
	}
	if doc != nil {
		for i := range doc.Statement {
			if doc.Statement[i].Sid == rule.StatementID {
				obs.hasPermission = true
				break
			}
		}
	}

	targets, err := uc.rules.ListTargets(ctx, rule.Name)
	if err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return nil, err
	}
	for _, t := range targets {
		if t.ID == rule.TargetID {
			obs.hasTarget = true
			break
		}
	}
	return obs, nil
}

func (o *observation) status() *Status {
	st := &Status{}
	switch {
	case o.remote == nil:
		st.State = schedule.StateAbsent
	case !o.hasTarget && !o.hasPermission:
		st.State = schedule.StateRuleCreated
	case !o.hasTarget:
		st.State = schedule.StatePermissionGranted
	case o.remote.Enabled:
		st.State = schedule.StateActive
	default:
		st.State = schedule.StateTargetBound
	}
	if o.remote != nil {
		st.Expression = o.remote.Expression
		st.Enabled = o.remote.Enabled
		st.TargetWithoutPermission = o.hasTarget && !o.hasPermission
	}
	return st
}

// Ensure drives the rule to its desired terminal state, performing
// only the transitions the observation shows are missing. The invoke
// grant always lands before the target is bound, and enabling is the
// last transition, so no reachable intermediate state can fire at a
// function that would refuse the call. Running Ensure twice is a
// no-op the second time.
func (uc *UseCase) Ensure(ctx context.Context, rule *schedule.Rule) (*Status, error) {
	rule.SetDefaults()
	if err := rule.Validate(); err != nil {
		return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "validate",
			&deploy.ValidationError{Field: "schedule", Reason: err.Error()})
	}
	if rule.FunctionArn == "" {
		fn, err := uc.fns.Get(ctx, rule.FunctionName)
		if err != nil {
			return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "resolve target", err)
		}
		rule.FunctionArn = fn.Arn
	}

	obs, err := uc.observe(ctx, rule)
	if err != nil {
		return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "observe", err)
	}

	logger := log.Ctx(ctx).With().Str("rule", rule.Name).Logger()

	// absent -> ruleCreated. The rule is always put disabled; it only
	// starts firing once the whole chain below it is in place.
	if obs.remote == nil || obs.remote.Expression != rule.Expression {
		logger.Info().Str("expression", rule.Expression).Msg("putting rule")
		put := *rule
		put.Enabled = false
		if _, err := uc.rules.PutRule(ctx, &put); err != nil {
			return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "put rule", err)
		}
		rule.Arn = put.Arn
		obs.remote = &put
	}

	// ruleCreated -> permissionGranted.
	if !obs.hasPermission {
		logger.Info().Str("function", rule.FunctionName).Msg("granting invoke permission")
		err := uc.fns.AddPermission(ctx, rule.FunctionName, rule.StatementID, invokePrincipal, rule.Arn)
		if err != nil && !errors.Is(err, deploy.ErrAlreadyExists) {
			return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "grant invoke permission", err)
		}
		obs.hasPermission = true
	}

	// permissionGranted -> targetBound.
	if !obs.hasTarget {
		logger.Info().Str("target", rule.FunctionArn).Msg("binding target")
		err := uc.rules.PutTarget(ctx, rule.Name, schedule.Target{ID: rule.TargetID, Arn: rule.FunctionArn})
		if err != nil {
			return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "bind target", err)
		}
		obs.hasTarget = true
	}

	// targetBound -> active, or back when the rule is meant disabled.
	if rule.Enabled && !obs.remote.Enabled {
		logger.Info().Msg("enabling rule")
		if err := uc.rules.EnableRule(ctx, rule.Name); err != nil {
			return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "enable", err)
		}
		obs.remote.Enabled = true
	} else if !rule.Enabled && obs.remote.Enabled {
		logger.Info().Msg("disabling rule")
		if err := uc.rules.DisableRule(ctx, rule.Name); err != nil {
			return nil, deploy.Opf(deploy.StageSchedule, rule.Name, "disable", err)
		}
		obs.remote.Enabled = false
	}

	return obs.status(), nil
}

// Teardown reverses the chain: unbind target, revoke permission,
// delete rule. Every step treats an already-missing resource as
// already at its target state, so a partial prior cleanup or a fully
// absent deployment tears down without error.
func (uc *UseCase) Teardown(ctx context.Context, rule *schedule.Rule) error {
	rule.SetDefaults()
	logger := log.Ctx(ctx).With().Str("rule", rule.Name).Logger()

	if err := uc.rules.RemoveTarget(ctx, rule.Name, rule.TargetID); err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageSchedule, rule.Name, "unbind target", err)
	}
	if err := uc.fns.RemovePermission(ctx, rule.FunctionName, rule.StatementID); err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageSchedule, rule.Name, "revoke invoke permission", err)
	}
	if err := uc.rules.DeleteRule(ctx, rule.Name); err != nil && !errors.Is(err, deploy.ErrNotFound) {
		return deploy.Opf(deploy.StageSchedule, rule.Name, "delete rule", err)
	}

	logger.Info().Msg("schedule torn down")
	return nil
}
