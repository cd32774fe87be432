package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/credential"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

// Session duration bounds imposed by the token service.
const (
	MinTTL = 15 * time.Minute
	MaxTTL = 12 * time.Hour
)

type UseCase struct {
	broker ports.CredentialBroker
	roles  ports.RoleRepository
}

func NewUseCase(broker ports.CredentialBroker, roles ports.RoleRepository) *UseCase {
	return &UseCase{broker: broker, roles: roles}
}

// Assume obtains a delegated credential for the role so a local run
// acts under the exact production identity. The credential is returned
// to the caller and nowhere else; nothing is cached or persisted.
//
// A refusal is classified before it surfaces: a missing role and an
// untrusted caller look identical in the raw denial but need different
// fixes, so the usecase checks which one it is.
func (uc *UseCase) Assume(ctx context.Context, roleArn, sessionLabel string, ttl time.Duration) (*credential.Delegated, error) {
	if sessionLabel == "" {
		sessionLabel = "optask-" + uuid.NewString()[:8]
	}
	if ttl < MinTTL {
		ttl = MinTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	cred, err := uc.broker.AssumeRole(ctx, roleArn, sessionLabel, ttl)
	if err != nil {
		return nil, deploy.Opf(deploy.StageCredential, roleArn, "assume", uc.classify(ctx, roleArn, err))
	}

	log.Ctx(ctx).Info().
		Str("role", roleArn).
		Str("session", sessionLabel).
		Time("expires", cred.Expiry).
		Msg("assumed role")
	return cred, nil
}

func (uc *UseCase) classify(ctx context.Context, roleArn string, cause error) error {
	if !errors.Is(cause, deploy.ErrAccessDenied) {
		return &deploy.AssumeRoleError{RoleArn: roleArn, Kind: deploy.AssumeRoleOther, Cause: cause}
	}

	exists, err := uc.roles.Exists(ctx, roleNameFromArn(roleArn))
	if err == nil && !exists {
		return &deploy.AssumeRoleError{RoleArn: roleArn, Kind: deploy.AssumeRoleNotFound, Cause: cause}
	}

	caller := "the current caller"
	if _, arn, err := uc.broker.CallerIdentity(ctx); err == nil {
		caller = arn
	}
	return &deploy.AssumeRoleError{RoleArn: roleArn, Caller: caller, Kind: deploy.AssumeRoleNotTrusted, Cause: cause}
}

// roleNameFromArn extracts the role name from
// arn:aws:iam::<account>:role/<path><name>.
func roleNameFromArn(arn string) string {
	name := arn
	for i := len(arn) - 1; i >= 0; i-- {
		if arn[i] == '/' || arn[i] == ':' {
			name = arn[i+1:]
			break
		}
	}
	return name
}

// RoleArn builds the arn the broker assumes for a role name.
func RoleArn(account, name string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", account, name)
}
