package ports

import (
	"context"
	"time"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/credential"
)

// CredentialBroker issues short-lived delegated credentials. The raw
// assume failure is returned as-is; classification into the error
// taxonomy happens in the usecase, which can consult the role store.
type CredentialBroker interface {
	AssumeRole(ctx context.Context, roleArn, sessionName string, ttl time.Duration) (*credential.Delegated, error)
	CallerIdentity(ctx context.Context) (account, arn string, err error)
}
