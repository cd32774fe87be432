package deploy

import (
	"errors"
	"fmt"
)

// Failure classes shared by every stage. Adapters translate service
// exception types into these; usecases decide retry or surface.
var (
	// ErrNotYetPropagated marks an eventually-consistent resource that
	// exists but is not usable yet. Retried with backoff, never fatal
	// until attempts run out.
	ErrNotYetPropagated = errors.New("resource not yet propagated")

	// ErrAlreadyExists is returned when a create collides with an
	// existing resource. Callers treat it as success when the existing
	// state already matches the desired one.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNotFound is returned for a missing resource. During teardown
	// it means already-at-target-state and is swallowed.
	ErrNotFound = errors.New("resource not found")

	// ErrAccessDenied marks a refused call. The broker refines it into
	// an AssumeRoleError once it knows whether the role exists.
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError rejects malformed configuration before any remote
// call is made. Fatal, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// AssumeRoleKind narrows why an assume-role call was refused.
type AssumeRoleKind int

const (
	AssumeRoleOther AssumeRoleKind = iota
	AssumeRoleNotFound
	AssumeRoleNotTrusted
)

// AssumeRoleError is the broker's failure to obtain delegated
// credentials. The message distinguishes a missing role from a trust
// policy that does not include the caller, since the fix differs.
type AssumeRoleError struct {
	RoleArn string
	Caller  string
	Kind    AssumeRoleKind
	Cause   error
}

func (e *AssumeRoleError) Error() string {
	switch e.Kind {
	case AssumeRoleNotFound:
		return fmt.Sprintf("cannot assume %s: role does not exist (provision the role first)", e.RoleArn)
	case AssumeRoleNotTrusted:
		return fmt.Sprintf("cannot assume %s: trust policy does not include %s (add the principal to the role's trust policy)", e.RoleArn, e.Caller)
	default:
		return fmt.Sprintf("cannot assume %s: %v", e.RoleArn, e.Cause)
	}
}

func (e *AssumeRoleError) Unwrap() error { return e.Cause }

// PackagingError is a fatal build failure: missing source tree, missing
// entry point, unreadable dependency directory. Fix the input and rerun.
type PackagingError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *PackagingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("packaging failed at %s: %s: %v", e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("packaging failed at %s: %s", e.Path, e.Reason)
}

func (e *PackagingError) Unwrap() error { return e.Cause }

// Stage names the provisioning phase an operation belongs to, so a
// failure report can say where the pipeline stopped.
type Stage string

const (
	StageRole       Stage = "role"
	StageArtifact   Stage = "artifact"
	StageFunction   Stage = "function"
	StageCredential Stage = "credentials"
	StageSchedule   Stage = "schedule"
)

// OpError carries the stage, the resource and the attempted operation
// alongside the cause, so callers never need the remote console to see
// what failed.
type OpError struct {
	Stage    Stage
	Resource string
	Op       string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Stage, e.Op, e.Resource, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Opf wraps err with stage, resource and operation context. Returns nil
// when err is nil so call sites can wrap unconditionally.
func Opf(stage Stage, resource, op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Stage: stage, Resource: resource, Op: op, Err: err}
}

// Retryable reports whether an error is a transient consistency
// failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrNotYetPropagated)
}
