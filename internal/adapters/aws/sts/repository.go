package sts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssts "github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/credential"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

type Repository struct {
	client *awssts.Client
}

func NewRepository(cfg aws.Config) ports.CredentialBroker {
	return &Repository{client: awssts.NewFromConfig(cfg)}
}

// AssumeRole obtains a delegated credential for the role. A denial is
// wrapped in deploy.ErrAccessDenied so the usecase can tell "role
// missing" from "caller not trusted" with one follow-up lookup.
func (r *Repository) AssumeRole(ctx context.Context, roleArn, sessionName string, ttl time.Duration) (*credential.Delegated, error) {
	output, err := r.client.AssumeRole(ctx, &awssts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(ttl.Seconds())),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
			return nil, fmt.Errorf("%w: %v", deploy.ErrAccessDenied, err)
		}
		return nil, fmt.Errorf("failed to assume role: %w", err)
	}

	creds := output.Credentials
	return &credential.Delegated{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiry:          aws.ToTime(creds.Expiration),
	}, nil
}

// CallerIdentity returns the account and arn of the configured caller.
func (r *Repository) CallerIdentity(ctx context.Context) (string, string, error) {
	output, err := r.client.GetCallerIdentity(ctx, &awssts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(output.Account), aws.ToString(output.Arn), nil
}
