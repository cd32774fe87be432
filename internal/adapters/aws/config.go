// Package aws builds SDK configurations from explicit settings. No
// adapter reads ambient process state; everything an adapter needs
// arrives here by value.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/credential"
)

// Settings selects the account, region and credential source every
// adapter uses. Endpoint overrides the service endpoint for local
// stacks.
type Settings struct {
	Region   string
	Profile  string
	Endpoint string
}

// Load resolves an SDK configuration from the settings.
func Load(ctx context.Context, s Settings) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s.Region),
	}
	if s.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(s.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	if s.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(s.Endpoint)
	}
	return cfg, nil
}

// FromDelegated builds a configuration backed by a delegated
// credential, so a local run acts under the exact production role
// without touching the process environment.
func FromDelegated(s Settings, cred *credential.Delegated) aws.Config {
	cfg := aws.Config{
		Region: s.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken),
	}
	if s.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(s.Endpoint)
	}
	return cfg
}
