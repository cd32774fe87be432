package role

import (
	"errors"
	"time"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
)

var (
	ErrInvalidName          = errors.New("role name is required")
	ErrMissingTrustPolicy   = errors.New("trust policy is required")
	ErrInvalidSessionLength = errors.New("max session duration must be between 3600 and 43200 seconds")
	ErrInvalidPath          = errors.New("path must start and end with /")
	ErrUnnamedInlinePolicy  = errors.New("inline policy name is required")
)

// Role is the execution role a deployed function runs under. Trust and
// permission documents are typed, not raw JSON; rendering happens at
// the service boundary.
type Role struct {
	Name        string
	Arn         string
	RoleID      string
	Description string

	Trust              *policy.Document
	Permissions        []InlinePolicy
	ManagedPolicyArns  []string
	MaxSessionDuration int32
	Path               string
	Tags               map[string]string

	CreatedAt *time.Time
}

// InlinePolicy is a named permission document attached directly to the
// role. Attachment order is preserved; comparisons ignore it.
type InlinePolicy struct {
	Name     string
	Document *policy.Document
}

// SetDefaults fills optional fields the way the service would.
func (r *Role) SetDefaults() {
	if r.Path == "" {
		r.Path = "/"
	}
	if r.MaxSessionDuration == 0 {
		r.MaxSessionDuration = 3600
	}
	if r.Tags == nil {
		r.Tags = make(map[string]string)
	}
	if r.Trust != nil {
		r.Trust.SetDefaults()
	}
	for _, p := range r.Permissions {
		if p.Document != nil {
			p.Document.SetDefaults()
		}
	}
}

// Validate rejects a role that cannot be provisioned. Policy documents
// are validated here, before any remote call sees them.
func (r *Role) Validate() error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.Trust == nil {
		return ErrMissingTrustPolicy
	}
	if err := r.Trust.Validate(); err != nil {
		return err
	}
	if r.MaxSessionDuration != 0 && (r.MaxSessionDuration < 3600 || r.MaxSessionDuration > 43200) {
		return ErrInvalidSessionLength
	}
	if r.Path != "" {
		if r.Path[0] != '/' || r.Path[len(r.Path)-1] != '/' {
			return ErrInvalidPath
		}
	}
	for _, p := range r.Permissions {
		if p.Name == "" {
			return ErrUnnamedInlinePolicy
		}
		if err := p.Document.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TrustsService reports whether the trust policy allows the named
// service principal to assume this role.
func (r *Role) TrustsService(service string) bool {
	return r.trusts(func(p *policy.Principal) bool {
		return contains(p.Service, service)
	})
}

// TrustsPrincipal reports whether the trust policy allows the given
// AWS principal ARN to assume this role.
func (r *Role) TrustsPrincipal(arn string) bool {
	return r.trusts(func(p *policy.Principal) bool {
		return contains(p.AWS, arn)
	})
}

func (r *Role) trusts(match func(*policy.Principal) bool) bool {
	if r.Trust == nil {
		return false
	}
	for i := range r.Trust.Statement {
		s := &r.Trust.Statement[i]
		if s.Effect != policy.EffectAllow || s.Principal == nil {
			continue
		}
		if !contains(s.Action, "sts:AssumeRole") {
			continue
		}
		if match(s.Principal) {
			return true
		}
	}
	return false
}

func contains(list policy.StringList, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
