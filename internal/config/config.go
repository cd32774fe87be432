// Package config loads the declarative deployment file. Everything is
// validated here, at load time: a malformed policy statement or
// schedule expression never reaches a remote call. After Load returns,
// nothing in the tool reads ambient process state.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/role"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/schedule"
)

// InvokingService is the principal every execution role must trust.
const InvokingService = "lambda.amazonaws.com"

// Config is the root of the deployment file.
type Config struct {
	// Account is needed to build role arns for local testing.
	Account string `yaml:"account" json:"account" jsonschema:"pattern=^[0-9]{12}$" validate:"omitempty,len=12,numeric"`
	Region  string `yaml:"region" json:"region" validate:"required"`
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`
	// Endpoint overrides the service endpoint for local stacks.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`
	// Operator is the IAM user allowed to assume execution roles for
	// local test runs under production permissions.
	Operator string `yaml:"operator,omitempty" json:"operator,omitempty"`
	// StagingBucket routes code uploads through an object store.
	StagingBucket string `yaml:"stagingBucket,omitempty" json:"stagingBucket,omitempty"`

	Deployments []Deployment `yaml:"deployments" json:"deployments" validate:"required,min=1,dive"`
}

// Deployment describes one scheduled operational task.
type Deployment struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	RoleName     string `yaml:"roleName,omitempty" json:"roleName,omitempty"`
	FunctionName string `yaml:"functionName,omitempty" json:"functionName,omitempty"`

	SourceDir      string   `yaml:"sourceDir" json:"sourceDir" validate:"required"`
	DependencyDirs []string `yaml:"dependencyDirs,omitempty" json:"dependencyDirs,omitempty"`
	EntryPoint     string   `yaml:"entryPoint,omitempty" json:"entryPoint,omitempty"`

	Runtime     string            `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Handler     string            `yaml:"handler,omitempty" json:"handler,omitempty"`
	MemoryMB    int32             `yaml:"memoryMB,omitempty" json:"memoryMB,omitempty" validate:"omitempty,gte=128,lte=10240"`
	TimeoutSec  int32             `yaml:"timeoutSec,omitempty" json:"timeoutSec,omitempty" validate:"omitempty,gte=1,lte=900"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`

	ManagedPolicies []string `yaml:"managedPolicies,omitempty" json:"managedPolicies,omitempty"`
	Policies        []Policy `yaml:"policies,omitempty" json:"policies,omitempty" validate:"dive"`

	Schedule Schedule `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// Policy is one inline permission policy.
type Policy struct {
	Name       string      `yaml:"name" json:"name" validate:"required"`
	Statements []Statement `yaml:"statements" json:"statements" validate:"required,min=1,dive"`
}

// Statement mirrors policy.Statement with load-time validation tags.
type Statement struct {
	Sid       string   `yaml:"sid,omitempty" json:"sid,omitempty"`
	Effect    string   `yaml:"effect" json:"effect" validate:"required,oneof=Allow Deny"`
	Actions   []string `yaml:"actions" json:"actions" validate:"required,min=1"`
	Resources []string `yaml:"resources,omitempty" json:"resources,omitempty"`
	// AllResources must be set explicitly for a statement to apply to
	// every resource; an empty resource list alone is rejected.
	AllResources bool `yaml:"allResources,omitempty" json:"allResources,omitempty"`
}

// Schedule is the trigger definition.
type Schedule struct {
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
	Enabled    *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Load reads, decodes and validates the configuration file. Unknown
// keys are rejected so a typoed option fails instead of silently
// doing nothing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs the struct tags, then builds every deployment so the
// domain models apply their own invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &deploy.ValidationError{Reason: err.Error()}
	}

	seen := map[string]bool{}
	for i := range c.Deployments {
		d := &c.Deployments[i]
		if seen[d.Name] {
			return &deploy.ValidationError{Field: "deployments", Reason: fmt.Sprintf("duplicate deployment %q", d.Name)}
		}
		seen[d.Name] = true

		dep, err := c.Build(d.Name)
		if err != nil {
			return err
		}
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("deployment %s: %w", d.Name, err)
		}
	}
	return nil
}

// Names lists the configured deployment names in declaration order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Deployments))
	for i := range c.Deployments {
		names = append(names, c.Deployments[i].Name)
	}
	return names
}

// Build assembles the domain deployment for a configured name.
func (c *Config) Build(name string) (*deploy.Deployment, error) {
	var src *Deployment
	for i := range c.Deployments {
		if c.Deployments[i].Name == name {
			src = &c.Deployments[i]
			break
		}
	}
	if src == nil {
		return nil, &deploy.ValidationError{Field: "deployment", Reason: fmt.Sprintf("no deployment named %q", name)}
	}

	trust := policy.AssumeRolePolicy(InvokingService, c.operatorArns()...)

	permissions := make([]role.InlinePolicy, 0, len(src.Policies))
	for _, p := range src.Policies {
		doc := &policy.Document{Version: policy.DefaultVersion}
		for _, s := range p.Statements {
			doc.Statement = append(doc.Statement, policy.Statement{
				Sid:          s.Sid,
				Effect:       s.Effect,
				Action:       policy.StringList(s.Actions),
				Resource:     policy.StringList(s.Resources),
				AllResources: s.AllResources,
			})
		}
		permissions = append(permissions, role.InlinePolicy{Name: p.Name, Document: doc})
	}

	enabled := true
	if src.Schedule.Enabled != nil {
		enabled = *src.Schedule.Enabled
	}

	dep := &deploy.Deployment{
		Name: src.Name,
		Role: role.Role{
			Name:              src.RoleName,
			Trust:             trust,
			Permissions:       permissions,
			ManagedPolicyArns: src.ManagedPolicies,
		},
		Function: function.Function{
			Name:        src.FunctionName,
			Runtime:     src.Runtime,
			Handler:     src.Handler,
			MemorySize:  src.MemoryMB,
			Timeout:     src.TimeoutSec,
			Environment: src.Environment,
		},
		Rule: schedule.Rule{
			Expression: src.Schedule.Expression,
			Enabled:    enabled,
		},
		SourceDir:      src.SourceDir,
		DependencyDirs: src.DependencyDirs,
		EntryPoint:     src.EntryPoint,
		StagingBucket:  c.StagingBucket,
	}
	dep.SetDefaults()
	return dep, nil
}

// OperatorArn is the principal allowed to assume execution roles for
// local runs, empty when no operator is configured.
func (c *Config) OperatorArn() string {
	if c.Operator == "" || c.Account == "" {
		return ""
	}
	return fmt.Sprintf("arn:aws:iam::%s:user/%s", c.Account, c.Operator)
}

func (c *Config) operatorArns() []string {
	if arn := c.OperatorArn(); arn != "" {
		return []string{arn}
	}
	return nil
}
