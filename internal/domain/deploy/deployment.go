package deploy

import (
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/role"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/schedule"
)

// Deployment binds one named operational task to the resources it
// provisions: an execution role, a function built from a source tree,
// and a schedule rule. Stages run strictly in that order; unrelated
// deployments share nothing and may run concurrently.
type Deployment struct {
	Name string

	Role     role.Role
	Function function.Function
	Rule     schedule.Rule

	SourceDir      string
	DependencyDirs []string
	EntryPoint     string

	// StagingBucket, when set, routes code uploads through an object
	// store instead of inlining the zip in the create call.
	StagingBucket string
}

// SetDefaults cascades defaults through every stage's model.
func (d *Deployment) SetDefaults() {
	if d.Function.Name == "" {
		d.Function.Name = d.Name
	}
	if d.Role.Name == "" {
		d.Role.Name = d.Function.Name + "-role"
	}
	if d.Rule.FunctionName == "" {
		d.Rule.FunctionName = d.Function.Name
	}
	if d.EntryPoint == "" {
		d.EntryPoint = "lambda_function.py"
	}
	d.Role.SetDefaults()
	d.Function.SetDefaults()
	d.Rule.SetDefaults()
}

// Validate checks every stage's inputs before any remote call. The
// function's role arn and the rule's function arn are resolved during
// provisioning, so they are exempt here.
func (d *Deployment) Validate() error {
	if d.Name == "" {
		return &ValidationError{Field: "name", Reason: "deployment name is required"}
	}
	if err := d.Role.Validate(); err != nil {
		return &ValidationError{Field: "role", Reason: err.Error()}
	}
	fn := d.Function
	if fn.Role == "" {
		fn.Role = "pending"
	}
	if err := fn.Validate(); err != nil {
		return &ValidationError{Field: "function", Reason: err.Error()}
	}
	if d.Rule.Expression != "" {
		if err := d.Rule.Validate(); err != nil {
			return &ValidationError{Field: "schedule", Reason: err.Error()}
		}
	}
	if d.SourceDir == "" {
		return &ValidationError{Field: "sourceDir", Reason: "source directory is required"}
	}
	return nil
}
