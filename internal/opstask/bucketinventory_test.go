package opstask_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/opstask"
)

type fakeLister struct {
	buckets []string
	err     error
}

func (f *fakeLister) ListBuckets(_ context.Context) ([]string, error) {
	return f.buckets, f.err
}

type fakeIdentity struct{}

func (fakeIdentity) CallerIdentity(_ context.Context) (string, string, error) {
	return "1234567890", "arn:aws:sts::1234567890:assumed-role/LambdaExecutionRole/optask", nil
}

func TestRun(t *testing.T) {
	lister := &fakeLister{buckets: []string{"logs", "artifacts", "backups"}}

	inv, err := opstask.Run(context.Background(), lister, fakeIdentity{})
	if err != nil {
		t.Fatal(err)
	}
	if inv.Account != "1234567890" {
		t.Fatalf("account = %q", inv.Account)
	}

	// The result is a JSON string array covering exactly the owned
	// buckets; order is not part of the contract.
	raw, err := json.Marshal(inv)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Buckets []string `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"logs": true, "artifacts": true, "backups": true}
	if len(decoded.Buckets) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(decoded.Buckets), len(want))
	}
	for _, b := range decoded.Buckets {
		if !want[b] {
			t.Fatalf("unexpected bucket %q", b)
		}
	}
}

func TestRun_ListFailure(t *testing.T) {
	cause := errors.New("denied")
	_, err := opstask.Run(context.Background(), &fakeLister{err: cause}, fakeIdentity{})
	if !errors.Is(err, cause) {
		t.Fatalf("got %v, want wrapped cause", err)
	}
}

func TestRun_EmptyAccount(t *testing.T) {
	inv, err := opstask.Run(context.Background(), &fakeLister{}, fakeIdentity{})
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Buckets) != 0 {
		t.Fatalf("expected no buckets, got %v", inv.Buckets)
	}
}
