package function

import (
	"errors"
	"time"
)

var (
	ErrInvalidName    = errors.New("function name is required")
	ErrMissingRole    = errors.New("function requires an execution role arn")
	ErrMissingHandler = errors.New("function handler is required")
	ErrMissingRuntime = errors.New("function runtime is required")
	ErrInvalidMemory  = errors.New("memory size must be between 128 and 10240 MB")
	ErrInvalidTimeout = errors.New("timeout must be between 1 and 900 seconds")
	ErrEmptyArtifact  = errors.New("artifact has no content")
)

// Artifact is a packaged, deployable code bundle. Identical build
// inputs produce an identical Checksum, which is what the deployer
// compares against the remote code hash to skip no-op uploads.
type Artifact struct {
	Checksum string
	Size     int64
	Data     []byte
	BuiltAt  time.Time
}

func (a *Artifact) Validate() error {
	if a == nil || len(a.Data) == 0 {
		return ErrEmptyArtifact
	}
	return nil
}

// Code points at the bytes a function runs: either a direct zip upload
// or an object in a staging bucket. Exactly one form is set.
type Code struct {
	ZipFile  []byte
	S3Bucket string
	S3Key    string
}

// Function is the deployed unit: configuration plus a code pointer.
// State fields are filled from the service on create and get.
type Function struct {
	Name        string
	Description string
	Runtime     string
	Handler     string
	Role        string
	MemorySize  int32
	Timeout     int32
	Environment map[string]string
	Code        Code

	Arn          string
	CodeSha256   string
	State        string
	Version      string
	LastModified time.Time
}

// SetDefaults fills the fields the deployment file leaves implicit.
func (f *Function) SetDefaults() {
	if f.Runtime == "" {
		f.Runtime = "python3.12"
	}
	if f.Handler == "" {
		f.Handler = "lambda_function.lambda_handler"
	}
	if f.MemorySize == 0 {
		f.MemorySize = 128
	}
	if f.Timeout == 0 {
		f.Timeout = 30
	}
}

// Validate rejects a function that the service would refuse.
func (f *Function) Validate() error {
	if f.Name == "" {
		return ErrInvalidName
	}
	if f.Role == "" {
		return ErrMissingRole
	}
	if f.Runtime == "" {
		return ErrMissingRuntime
	}
	if f.Handler == "" {
		return ErrMissingHandler
	}
	if f.MemorySize < 128 || f.MemorySize > 10240 {
		return ErrInvalidMemory
	}
	if f.Timeout < 1 || f.Timeout > 900 {
		return ErrInvalidTimeout
	}
	return nil
}

// ConfigDrifted reports whether the remote configuration differs from
// the desired one, ignoring code and service-owned state fields.
func (f *Function) ConfigDrifted(remote *Function) bool {
	if remote == nil {
		return true
	}
	if f.Runtime != remote.Runtime || f.Handler != remote.Handler ||
		f.Role != remote.Role || f.MemorySize != remote.MemorySize ||
		f.Timeout != remote.Timeout || f.Description != remote.Description {
		return true
	}
	if len(f.Environment) != len(remote.Environment) {
		return true
	}
	for k, v := range f.Environment {
		if remote.Environment[k] != v {
			return true
		}
	}
	return false
}
