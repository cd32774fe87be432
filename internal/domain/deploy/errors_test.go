package deploy_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

func TestOpf(t *testing.T) {
	if deploy.Opf(deploy.StageRole, "r", "create", nil) != nil {
		t.Fatal("nil error must stay nil")
	}

	cause := errors.New("boom")
	err := deploy.Opf(deploy.StageSchedule, "my-rule", "bind target", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not wrapped")
	}
	msg := err.Error()
	for _, want := range []string{"schedule", "my-rule", "bind target", "boom"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}

func TestOpf_KeepsSentinels(t *testing.T) {
	err := deploy.Opf(deploy.StageFunction, "fn", "create",
		fmt.Errorf("role x: %w", deploy.ErrNotYetPropagated))
	if !errors.Is(err, deploy.ErrNotYetPropagated) {
		t.Fatal("sentinel lost through Opf")
	}
	if !deploy.Retryable(err) {
		t.Fatal("propagation error must be retryable")
	}
	if deploy.Retryable(errors.New("other")) {
		t.Fatal("arbitrary error must not be retryable")
	}
}

func TestAssumeRoleError_Messages(t *testing.T) {
	arn := "arn:aws:iam::1234567890:role/LambdaExecutionRole"

	notFound := &deploy.AssumeRoleError{RoleArn: arn, Kind: deploy.AssumeRoleNotFound}
	if !strings.Contains(notFound.Error(), "does not exist") {
		t.Fatalf("not-found message not actionable: %q", notFound.Error())
	}

	notTrusted := &deploy.AssumeRoleError{
		RoleArn: arn,
		Caller:  "arn:aws:iam::1234567890:user/myusername",
		Kind:    deploy.AssumeRoleNotTrusted,
	}
	msg := notTrusted.Error()
	if !strings.Contains(msg, "trust policy") || !strings.Contains(msg, "myusername") {
		t.Fatalf("not-trusted message not actionable: %q", msg)
	}
	if notFound.Error() == msg {
		t.Fatal("the two failure kinds must read differently")
	}
}

func TestValidationError(t *testing.T) {
	err := &deploy.ValidationError{Field: "schedule", Reason: "bad expression"}
	if !strings.Contains(err.Error(), "schedule") || !strings.Contains(err.Error(), "bad expression") {
		t.Fatalf("message incomplete: %q", err.Error())
	}
}

func TestPackagingError(t *testing.T) {
	cause := errors.New("no such file")
	err := &deploy.PackagingError{Path: "src/lambda_function.py", Reason: "entry point missing", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("cause not unwrapped")
	}
	if !strings.Contains(err.Error(), "lambda_function.py") {
		t.Fatalf("path missing from message: %q", err.Error())
	}
}
