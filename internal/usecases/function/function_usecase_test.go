package function_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
	functionuc "github.com/martijnvandongen/operational-tasks-lambda/internal/usecases/function"
)

type fakeFnRepo struct {
	functions map[string]*function.Function

	// failCreates makes that many Create calls fail with the
	// propagation sentinel before one succeeds.
	failCreates int
	creates     int
	codeUpdates int
	cfgUpdates  int
}

func newFakeFnRepo() *fakeFnRepo {
	return &fakeFnRepo{functions: map[string]*function.Function{}}
}

func (f *fakeFnRepo) Exists(_ context.Context, name string) (bool, error) {
	_, ok := f.functions[name]
	return ok, nil
}

func (f *fakeFnRepo) Create(_ context.Context, fn *function.Function) error {
	f.creates++
	if f.failCreates > 0 {
		f.failCreates--
		return fmt.Errorf("role %s: %w", fn.Role, deploy.ErrNotYetPropagated)
	}
	stored := *fn
	stored.Arn = "arn:aws:lambda:eu-west-1:123456789012:function:" + fn.Name
	stored.State = "Active"
	f.functions[fn.Name] = &stored
	fn.Arn = stored.Arn
	return nil
}

func (f *fakeFnRepo) Get(_ context.Context, name string) (*function.Function, error) {
	stored, ok := f.functions[name]
	if !ok {
		return nil, fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
	}
	out := *stored
	return &out, nil
}

func (f *fakeFnRepo) UpdateCode(_ context.Context, name string, code function.Code) error {
	stored, ok := f.functions[name]
	if !ok {
		return fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
	}
	f.codeUpdates++
	stored.Code = code
	return nil
}

func (f *fakeFnRepo) UpdateConfiguration(_ context.Context, fn *function.Function) error {
	stored, ok := f.functions[fn.Name]
	if !ok {
		return fmt.Errorf("function %s: %w", fn.Name, deploy.ErrNotFound)
	}
	f.cfgUpdates++
	code := stored.Code
	arn := stored.Arn
	*stored = *fn
	stored.Code = code
	stored.Arn = arn
	return nil
}

func (f *fakeFnRepo) Delete(_ context.Context, name string) error {
	if _, ok := f.functions[name]; !ok {
		return fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
	}
	delete(f.functions, name)
	return nil
}

func (f *fakeFnRepo) AddPermission(_ context.Context, name, sid, principal, sourceArn string) error {
	return nil
}

func (f *fakeFnRepo) RemovePermission(_ context.Context, name, sid string) error {
	return nil
}

func (f *fakeFnRepo) GetPolicy(_ context.Context, name string) (*policy.Document, error) {
	return nil, fmt.Errorf("policy for %s: %w", name, deploy.ErrNotFound)
}

func (f *fakeFnRepo) Invoke(_ context.Context, name string, payload []byte) ([]byte, error) {
	if _, ok := f.functions[name]; !ok {
		return nil, fmt.Errorf("function %s: %w", name, deploy.ErrNotFound)
	}
	return []byte(`["bucket-a","bucket-b"]`), nil
}

type fakeStore struct {
	objects map[string][]byte
	uploads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(_ context.Context, bucket, key string, body []byte) error {
	f.uploads++
	f.objects[bucket+"/"+key] = body
	return nil
}

func (f *fakeStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	_, ok := f.objects[bucket+"/"+key]
	return ok, nil
}

func (f *fakeStore) ListBuckets(_ context.Context) ([]string, error) {
	return nil, nil
}

func testFunction() *function.Function {
	return &function.Function{
		Name: "MyOpsFunction",
		Role: "arn:aws:iam::123456789012:role/LambdaExecutionRole",
	}
}

func testArtifact() *function.Artifact {
	return &function.Artifact{Checksum: "abc123", Size: 3, Data: []byte("zip")}
}

func TestDeploy_CreatesWhenAbsent(t *testing.T) {
	repo := newFakeFnRepo()
	uc := functionuc.NewUseCase(repo, newFakeStore())

	fn := testFunction()
	require.NoError(t, uc.Deploy(context.Background(), fn, testArtifact(), ""))
	assert.Equal(t, 1, repo.creates)
	assert.NotEmpty(t, fn.Arn)

	got, err := uc.Describe(context.Background(), fn.Name)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip"), got.Code.ZipFile, "direct upload carries the zip inline")
}

func TestDeploy_RetriesRolePropagation(t *testing.T) {
	repo := newFakeFnRepo()
	repo.failCreates = 2
	uc := functionuc.NewUseCase(repo, newFakeStore())

	require.NoError(t, uc.Deploy(context.Background(), testFunction(), testArtifact(), ""))
	assert.Equal(t, 3, repo.creates, "two propagation refusals then success")
}

func TestDeploy_UpdatesExisting(t *testing.T) {
	repo := newFakeFnRepo()
	uc := functionuc.NewUseCase(repo, newFakeStore())
	ctx := context.Background()

	require.NoError(t, uc.Deploy(ctx, testFunction(), testArtifact(), ""))

	// Same configuration, new code: only the code moves.
	require.NoError(t, uc.Deploy(ctx, testFunction(), testArtifact(), ""))
	assert.Equal(t, 1, repo.creates)
	assert.Equal(t, 1, repo.codeUpdates)
	assert.Equal(t, 0, repo.cfgUpdates, "no drift, no configuration call")

	// Changed configuration is reconciled.
	changed := testFunction()
	changed.MemorySize = 256
	require.NoError(t, uc.Deploy(ctx, changed, testArtifact(), ""))
	assert.Equal(t, 1, repo.cfgUpdates)

	got, err := uc.Describe(ctx, changed.Name)
	require.NoError(t, err)
	assert.Equal(t, int32(256), got.MemorySize)
}

func TestDeploy_StagesThroughBucket(t *testing.T) {
	repo := newFakeFnRepo()
	store := newFakeStore()
	uc := functionuc.NewUseCase(repo, store)
	ctx := context.Background()

	fn := testFunction()
	require.NoError(t, uc.Deploy(ctx, fn, testArtifact(), "staging-bucket"))
	assert.Equal(t, 1, store.uploads)

	got, err := uc.Describe(ctx, fn.Name)
	require.NoError(t, err)
	assert.Empty(t, got.Code.ZipFile)
	assert.Equal(t, "staging-bucket", got.Code.S3Bucket)
	assert.Equal(t, "MyOpsFunction/abc123.zip", got.Code.S3Key, "keys are content-addressed")

	// Redeploying the identical artifact skips the upload.
	require.NoError(t, uc.Deploy(ctx, testFunction(), testArtifact(), "staging-bucket"))
	assert.Equal(t, 1, store.uploads)
}

func TestDeploy_RejectsEmptyArtifact(t *testing.T) {
	uc := functionuc.NewUseCase(newFakeFnRepo(), newFakeStore())
	err := uc.Deploy(context.Background(), testFunction(), &function.Artifact{}, "")
	require.Error(t, err)
	var vErr *deploy.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestDelete_AbsentIsSuccess(t *testing.T) {
	uc := functionuc.NewUseCase(newFakeFnRepo(), newFakeStore())
	assert.NoError(t, uc.Delete(context.Background(), "never-existed"))
}
