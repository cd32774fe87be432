package role_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/role"
	roleuc "github.com/martijnvandongen/operational-tasks-lambda/internal/usecases/role"
)

// fakeRepo keeps roles in memory and echoes documents back through a
// render/parse round trip, the way the real service does.
type fakeRepo struct {
	roles   map[string]*role.Role
	inline  map[string]map[string]*policy.Document
	managed map[string]map[string]bool

	creates int
	updates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		roles:   map[string]*role.Role{},
		inline:  map[string]map[string]*policy.Document{},
		managed: map[string]map[string]bool{},
	}
}

func echo(doc *policy.Document) *policy.Document {
	raw, err := doc.Render()
	if err != nil {
		panic(err)
	}
	parsed, err := policy.Parse(raw)
	if err != nil {
		panic(err)
	}
	return parsed
}

func (f *fakeRepo) Exists(_ context.Context, name string) (bool, error) {
	_, ok := f.roles[name]
	return ok, nil
}

func (f *fakeRepo) Create(_ context.Context, r *role.Role) error {
	if _, ok := f.roles[r.Name]; ok {
		return fmt.Errorf("role %s: %w", r.Name, deploy.ErrAlreadyExists)
	}
	f.creates++
	stored := *r
	stored.Trust = echo(r.Trust)
	stored.Arn = "arn:aws:iam::123456789012:role/" + r.Name
	f.roles[r.Name] = &stored
	f.inline[r.Name] = map[string]*policy.Document{}
	f.managed[r.Name] = map[string]bool{}
	r.Arn = stored.Arn
	return nil
}

func (f *fakeRepo) Get(_ context.Context, name string) (*role.Role, error) {
	stored, ok := f.roles[name]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
	}
	out := *stored
	return &out, nil
}

func (f *fakeRepo) UpdateTrust(_ context.Context, name string, trust *policy.Document) error {
	stored, ok := f.roles[name]
	if !ok {
		return fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
	}
	f.updates++
	stored.Trust = echo(trust)
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, name string) error {
	if _, ok := f.roles[name]; !ok {
		return fmt.Errorf("role %s: %w", name, deploy.ErrNotFound)
	}
	if len(f.inline[name]) > 0 || len(f.managed[name]) > 0 {
		return fmt.Errorf("role %s still has attached policies", name)
	}
	delete(f.roles, name)
	return nil
}

func (f *fakeRepo) AttachManagedPolicy(_ context.Context, name, arn string) error {
	f.managed[name][arn] = true
	return nil
}

func (f *fakeRepo) DetachManagedPolicy(_ context.Context, name, arn string) error {
	delete(f.managed[name], arn)
	return nil
}

func (f *fakeRepo) ListAttachedPolicies(_ context.Context, name string) ([]string, error) {
	var arns []string
	for arn := range f.managed[name] {
		arns = append(arns, arn)
	}
	return arns, nil
}

func (f *fakeRepo) PutInlinePolicy(_ context.Context, name string, p role.InlinePolicy) error {
	f.inline[name][p.Name] = echo(p.Document)
	return nil
}

func (f *fakeRepo) DeleteInlinePolicy(_ context.Context, name, policyName string) error {
	delete(f.inline[name], policyName)
	return nil
}

func (f *fakeRepo) ListInlinePolicies(_ context.Context, name string) ([]role.InlinePolicy, error) {
	var out []role.InlinePolicy
	for policyName, doc := range f.inline[name] {
		out = append(out, role.InlinePolicy{Name: policyName, Document: doc})
	}
	return out, nil
}

func (f *fakeRepo) TagRole(_ context.Context, name string, tags map[string]string) error {
	return nil
}

func testRole() *role.Role {
	return &role.Role{
		Name:  "LambdaExecutionRole",
		Trust: policy.AssumeRolePolicy("lambda.amazonaws.com", "arn:aws:iam::123456789012:user/myusername"),
		Permissions: []role.InlinePolicy{{
			Name: "bucket-inventory",
			Document: &policy.Document{Statement: []policy.Statement{{
				Effect:       policy.EffectAllow,
				Action:       policy.StringList{"s3:ListAllMyBuckets"},
				AllResources: true,
			}}},
		}},
		ManagedPolicyArns: []string{"arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"},
	}
}

func TestEnsure_CreatesAndRoundTrips(t *testing.T) {
	repo := newFakeRepo()
	uc := roleuc.NewUseCase(repo)
	ctx := context.Background()

	input := testRole()
	require.NoError(t, uc.Ensure(ctx, input))
	assert.NotEmpty(t, input.Arn)

	// Describe must return policies matching the input exactly.
	got, err := uc.Describe(ctx, input.Name)
	require.NoError(t, err)
	assert.True(t, policy.Equivalent(input.Trust, got.Trust), "trust policy did not round-trip")
	require.Len(t, got.Permissions, 1)
	assert.Equal(t, "bucket-inventory", got.Permissions[0].Name)
	assert.True(t, policy.Equivalent(input.Permissions[0].Document, got.Permissions[0].Document),
		"permission policy did not round-trip")
	assert.Equal(t, input.ManagedPolicyArns, got.ManagedPolicyArns)
}

func TestEnsure_CollisionUpdatesInPlace(t *testing.T) {
	repo := newFakeRepo()
	uc := roleuc.NewUseCase(repo)
	ctx := context.Background()

	require.NoError(t, uc.Ensure(ctx, testRole()))

	// Second run with a widened trust policy must update, not fail.
	second := testRole()
	second.Trust = policy.AssumeRolePolicy("lambda.amazonaws.com")
	require.NoError(t, uc.Ensure(ctx, second))

	assert.Equal(t, 1, repo.creates, "collision must not re-create")
	assert.Equal(t, 1, repo.updates, "collision must update the trust document")

	got, err := uc.Describe(ctx, second.Name)
	require.NoError(t, err)
	assert.True(t, policy.Equivalent(second.Trust, got.Trust))
}

func TestEnsure_ReconcilesManagedPolicies(t *testing.T) {
	repo := newFakeRepo()
	uc := roleuc.NewUseCase(repo)
	ctx := context.Background()

	first := testRole()
	require.NoError(t, uc.Ensure(ctx, first))

	second := testRole()
	second.ManagedPolicyArns = []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"}
	require.NoError(t, uc.Ensure(ctx, second))

	got, err := uc.Describe(ctx, second.Name)
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"}, got.ManagedPolicyArns,
		"stale attachment must be detached")
}

func TestEnsure_RejectsInvalidRole(t *testing.T) {
	uc := roleuc.NewUseCase(newFakeRepo())
	err := uc.Ensure(context.Background(), &role.Role{Name: "no-trust"})
	require.Error(t, err)
	var vErr *deploy.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestDelete_FullTeardown(t *testing.T) {
	repo := newFakeRepo()
	uc := roleuc.NewUseCase(repo)
	ctx := context.Background()

	rl := testRole()
	require.NoError(t, uc.Ensure(ctx, rl))
	require.NoError(t, uc.Delete(ctx, rl.Name))

	_, err := uc.Describe(ctx, rl.Name)
	assert.ErrorIs(t, err, deploy.ErrNotFound)
}

func TestDelete_AbsentIsSuccess(t *testing.T) {
	uc := roleuc.NewUseCase(newFakeRepo())
	assert.NoError(t, uc.Delete(context.Background(), "never-existed"))
}
