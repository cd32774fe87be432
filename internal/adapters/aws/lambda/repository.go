package lambda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

type Repository struct {
	client *awslambda.Client
}

func NewRepository(cfg aws.Config) ports.FunctionRepository {
	return &Repository{client: awslambda.NewFromConfig(cfg)}
}

// Exists checks if a function exists.
func (r *Repository) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.client.GetFunction(ctx, &awslambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if function exists: %w", err)
	}
	return true, nil
}

// Create creates the function. A freshly provisioned role is not
// immediately assumable by the service; that refusal is mapped to the
// propagation sentinel so the caller can retry with backoff.
func (r *Repository) Create(ctx context.Context, fn *function.Function) error {
	input := &awslambda.CreateFunctionInput{
		FunctionName: aws.String(fn.Name),
		Runtime:      types.Runtime(fn.Runtime),
		Handler:      aws.String(fn.Handler),
		Role:         aws.String(fn.Role),
		Code:         codeInput(fn.Code),
		Timeout:      aws.Int32(fn.Timeout),
		MemorySize:   aws.Int32(fn.MemorySize),
	}
	if fn.Description != "" {
		input.Description = aws.String(fn.Description)
	}
	if len(fn.Environment) > 0 {
		input.Environment = &types.Environment{Variables: fn.Environment}
	}

	output, err := r.client.CreateFunction(ctx, input)
	if err != nil {
		var conflict *types.ResourceConflictException
		if errors.As(err, &conflict) {
			return fmt.Errorf("function %s: %w", fn.Name, deploy.ErrAlreadyExists)
		}
		if isRoleNotAssumable(err) {
			return fmt.Errorf("role %s: %w", fn.Role, deploy.ErrNotYetPropagated)
		}
		return fmt.Errorf("failed to create function: %w", err)
	}

	fn.Arn = aws.ToString(output.FunctionArn)
	fn.CodeSha256 = aws.ToString(output.CodeSha256)
	fn.State = string(output.State)
	fn.Version = aws.ToString(output.Version)
	if t, err := parseModified(output.LastModified); err == nil {
		fn.LastModified = t
	}
	return nil
}

// Get retrieves a function with its current code hash and pointer.
func (r *Repository) Get(ctx context.Context, name string) (*function.Function, error) {
	output, err := r.client.GetFunction(ctx, &awslambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get function: %w", err)
	}

	cfg := output.Configuration
	fn := &function.Function{
		Name:        aws.ToString(cfg.FunctionName),
		Arn:         aws.ToString(cfg.FunctionArn),
		Description: aws.ToString(cfg.Description),
		Runtime:     string(cfg.Runtime),
		Handler:     aws.ToString(cfg.Handler),
		Role:        aws.ToString(cfg.Role),
		Timeout:     aws.ToInt32(cfg.Timeout),
		MemorySize:  aws.ToInt32(cfg.MemorySize),
		CodeSha256:  aws.ToString(cfg.CodeSha256),
		State:       string(cfg.State),
		Version:     aws.ToString(cfg.Version),
	}
	if cfg.Environment != nil {
		fn.Environment = cfg.Environment.Variables
	}
	if t, err := parseModified(cfg.LastModified); err == nil {
		fn.LastModified = t
	}
	return fn, nil
}

// UpdateCode replaces the function's code, keeping configuration.
func (r *Repository) UpdateCode(ctx context.Context, name string, code function.Code) error {
	input := &awslambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
	}
	if len(code.ZipFile) > 0 {
		input.ZipFile = code.ZipFile
	} else {
		input.S3Bucket = aws.String(code.S3Bucket)
		input.S3Key = aws.String(code.S3Key)
	}

	_, err := r.client.UpdateFunctionCode(ctx, input)
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to update function code: %w", err)
	}
	return nil
}

// UpdateConfiguration reconciles runtime, handler, role, memory,
// timeout and environment.
func (r *Repository) UpdateConfiguration(ctx context.Context, fn *function.Function) error {
	input := &awslambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(fn.Name),
		Runtime:      types.Runtime(fn.Runtime),
		Handler:      aws.String(fn.Handler),
		Role:         aws.String(fn.Role),
		Description:  aws.String(fn.Description),
		Timeout:      aws.Int32(fn.Timeout),
		MemorySize:   aws.Int32(fn.MemorySize),
	}
	if len(fn.Environment) > 0 {
		input.Environment = &types.Environment{Variables: fn.Environment}
	}

	_, err := r.client.UpdateFunctionConfiguration(ctx, input)
	if err != nil {
		if isRoleNotAssumable(err) {
			return fmt.Errorf("role %s: %w", fn.Role, deploy.ErrNotYetPropagated)
		}
		return fmt.Errorf("failed to update function configuration: %w", err)
	}
	return nil
}

// Delete deletes a function.
func (r *Repository) Delete(ctx context.Context, name string) error {
	_, err := r.client.DeleteFunction(ctx, &awslambda.DeleteFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to delete function: %w", err)
	}
	return nil
}

// AddPermission grants the principal invoke rights on the function.
func (r *Repository) AddPermission(ctx context.Context, name, statementID, principal, sourceArn string) error {
	input := &awslambda.AddPermissionInput{
		FunctionName: aws.String(name),
		StatementId:  aws.String(statementID),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String(principal),
	}
	if sourceArn != "" {
		input.SourceArn = aws.String(sourceArn)
	}

	_, err := r.client.AddPermission(ctx, input)
	if err != nil {
		var conflict *types.ResourceConflictException
		if errors.As(err, &conflict) {
			return fmt.Errorf("statement %s: %w", statementID, deploy.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add permission: %w", err)
	}
	return nil
}

// RemovePermission revokes a grant by statement id.
func (r *Repository) RemovePermission(ctx context.Context, name, statementID string) error {
	_, err := r.client.RemovePermission(ctx, &awslambda.RemovePermissionInput{
		FunctionName: aws.String(name),
		StatementId:  aws.String(statementID),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return fmt.Errorf("statement %s: %w", statementID, deploy.ErrNotFound)
		}
		return fmt.Errorf("failed to remove permission: %w", err)
	}
	return nil
}

// GetPolicy returns the function's resource policy. A function that
// has never been granted to anyone has no policy at all; that case is
// deploy.ErrNotFound, not an empty document.
func (r *Repository) GetPolicy(ctx context.Context, name string) (*policy.Document, error) {
	output, err := r.client.GetPolicy(ctx, &awslambda.GetPolicyInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("policy for %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get function policy: %w", err)
	}

	doc, err := policy.Parse(aws.ToString(output.Policy))
	if err != nil {
		return nil, fmt.Errorf("failed to parse function policy: %w", err)
	}
	return doc, nil
}

// Invoke runs the function synchronously and returns its payload.
func (r *Repository) Invoke(ctx context.Context, name string, payload []byte) ([]byte, error) {
	output, err := r.client.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName: aws.String(name),
		Payload:      payload,
	})
	if err != nil {
		var nfe *types.ResourceNotFoundException
		if errors.As(err, &nfe) {
			return nil, fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to invoke function: %w", err)
	}
	if fe := aws.ToString(output.FunctionError); fe != "" {
		return nil, fmt.Errorf("function %s failed: %s: %s", name, fe, output.Payload)
	}
	return output.Payload, nil
}

func codeInput(code function.Code) *types.FunctionCode {
	if len(code.ZipFile) > 0 {
		return &types.FunctionCode{ZipFile: code.ZipFile}
	}
	return &types.FunctionCode{
		S3Bucket: aws.String(code.S3Bucket),
		S3Key:    aws.String(code.S3Key),
	}
}

// isRoleNotAssumable matches the parameter rejection the service
// returns while a new role's trust relationship is still propagating.
func isRoleNotAssumable(err error) bool {
	var ipe *types.InvalidParameterValueException
	if !errors.As(err, &ipe) {
		return false
	}
	return strings.Contains(ipe.ErrorMessage(), "cannot be assumed")
}

func parseModified(v *string) (time.Time, error) {
	if v == nil {
		return time.Time{}, fmt.Errorf("no timestamp")
	}
	return time.Parse("2006-01-02T15:04:05.000-0700", *v)
}
