package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidName       = errors.New("rule name is required")
	ErrMissingFunction   = errors.New("rule requires a target function")
	ErrInvalidExpression = errors.New("schedule expression must be rate(...) or cron(...)")
	ErrInvalidRate       = errors.New("rate expression must be rate(<n> <minutes|hours|days>)")
	ErrRatePlural        = errors.New("rate unit must be singular for 1 and plural otherwise")
	ErrInvalidCron       = errors.New("cron expression must carry six fields")
)

// State is a scheduled function's position in the provisioning chain.
// Forward order is fixed: the invoke permission is granted before the
// target is bound, so an active rule can never fire at a function it
// is not permitted to invoke.
type State string

const (
	StateAbsent            State = "absent"
	StateRuleCreated       State = "ruleCreated"
	StatePermissionGranted State = "permissionGranted"
	StateTargetBound       State = "targetBound"
	StateActive            State = "active"
)

// Target is one invocation target attached to a rule.
type Target struct {
	ID  string
	Arn string
}

// Rule is a time-based trigger bound to a single function.
type Rule struct {
	Name        string
	Description string
	Expression  string
	Enabled     bool

	FunctionName string
	FunctionArn  string
	TargetID     string
	StatementID  string

	Arn string
}

// SetDefaults derives the identifiers the service calls require.
func (r *Rule) SetDefaults() {
	if r.Name == "" && r.FunctionName != "" {
		r.Name = r.FunctionName + "-schedule"
	}
	if r.TargetID == "" {
		r.TargetID = "1"
	}
	if r.StatementID == "" {
		r.StatementID = r.Name + "-invoke"
	}
}

// Validate checks the rule before any remote call.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.FunctionName == "" {
		return ErrMissingFunction
	}
	return ValidateExpression(r.Expression)
}

var rateRe = regexp.MustCompile(`^rate\((\d+) (minute|minutes|hour|hours|day|days)\)$`)

// ValidateExpression checks a schedule expression for well-formedness.
// Both forms belong to the scheduling service; only their shape is
// checked here, not their semantics.
func ValidateExpression(expr string) error {
	switch {
	case strings.HasPrefix(expr, "rate("):
		m := rateRe.FindStringSubmatch(expr)
		if m == nil {
			return fmt.Errorf("%w: %q", ErrInvalidRate, expr)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: %q", ErrInvalidRate, expr)
		}
		singular := !strings.HasSuffix(m[2], "s")
		if (n == 1) != singular {
			return fmt.Errorf("%w: %q", ErrRatePlural, expr)
		}
		return nil
	case strings.HasPrefix(expr, "cron(") && strings.HasSuffix(expr, ")"):
		fields := strings.Fields(expr[len("cron(") : len(expr)-1])
		if len(fields) != 6 {
			return fmt.Errorf("%w: %q has %d", ErrInvalidCron, expr, len(fields))
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
	}
}
