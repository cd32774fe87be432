package policy_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/policy"
)

func TestStatement_Validate(t *testing.T) {
	tests := []struct {
		name    string
		stmt    policy.Statement
		wantErr error
	}{
		{
			name: "valid permission statement",
			stmt: policy.Statement{Effect: "Allow", Action: policy.StringList{"s3:ListAllMyBuckets"}, Resource: policy.StringList{"*"}},
		},
		{
			name:    "missing effect",
			stmt:    policy.Statement{Action: policy.StringList{"s3:ListAllMyBuckets"}, Resource: policy.StringList{"*"}},
			wantErr: policy.ErrInvalidEffect,
		},
		{
			name:    "lowercase effect rejected",
			stmt:    policy.Statement{Effect: "allow", Action: policy.StringList{"s3:ListAllMyBuckets"}, Resource: policy.StringList{"*"}},
			wantErr: policy.ErrInvalidEffect,
		},
		{
			name:    "no actions",
			stmt:    policy.Statement{Effect: "Deny", Resource: policy.StringList{"*"}},
			wantErr: policy.ErrNoActions,
		},
		{
			name:    "empty resource without opt-in",
			stmt:    policy.Statement{Effect: "Allow", Action: policy.StringList{"s3:GetObject"}},
			wantErr: policy.ErrNoResource,
		},
		{
			name: "empty resource with opt-in",
			stmt: policy.Statement{Effect: "Allow", Action: policy.StringList{"s3:GetObject"}, AllResources: true},
		},
		{
			name: "trust statement needs no resource",
			stmt: policy.Statement{
				Effect:    "Allow",
				Principal: &policy.Principal{Service: policy.StringList{"lambda.amazonaws.com"}},
				Action:    policy.StringList{"sts:AssumeRole"},
			},
		},
		{
			name:    "empty principal",
			stmt:    policy.Statement{Effect: "Allow", Principal: &policy.Principal{}, Action: policy.StringList{"sts:AssumeRole"}},
			wantErr: policy.ErrEmptyPrincipal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stmt.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && err != tt.wantErr {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocument_Validate_Empty(t *testing.T) {
	if err := (&policy.Document{}).Validate(); err != policy.ErrNoStatements {
		t.Fatalf("got %v, want ErrNoStatements", err)
	}
}

func TestRender_Golden(t *testing.T) {
	g := goldie.New(t)

	trust := policy.AssumeRolePolicy("lambda.amazonaws.com", "arn:aws:iam::1234567890:user/myusername")
	out, err := trust.Render()
	if err != nil {
		t.Fatal(err)
	}
	g.Assert(t, "trust_policy", []byte(out))

	perm := &policy.Document{
		Statement: []policy.Statement{{
			Sid:          "BucketInventory",
			Effect:       policy.EffectAllow,
			Action:       policy.StringList{"s3:ListAllMyBuckets", "s3:GetBucketLocation"},
			AllResources: true,
		}},
	}
	out, err = perm.Render()
	if err != nil {
		t.Fatal(err)
	}
	g.Assert(t, "permission_policy", []byte(out))
}

func TestRender_Deterministic(t *testing.T) {
	doc := policy.AssumeRolePolicy("lambda.amazonaws.com")
	a, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	b, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("render is not deterministic")
	}
}

func TestParse_CollapsedStrings(t *testing.T) {
	// IAM echoes single-element arrays back as bare strings.
	raw := `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"Service": "lambda.amazonaws.com"},
			"Action": "sts:AssumeRole"
		}]
	}`
	doc, err := policy.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Statement) != 1 {
		t.Fatalf("got %d statements", len(doc.Statement))
	}
	if got := doc.Statement[0].Action; len(got) != 1 || got[0] != "sts:AssumeRole" {
		t.Fatalf("action not normalized: %v", got)
	}
	if got := doc.Statement[0].Principal.Service; len(got) != 1 || got[0] != "lambda.amazonaws.com" {
		t.Fatalf("principal not normalized: %v", got)
	}
}

func TestEquivalent(t *testing.T) {
	a := policy.AssumeRolePolicy("lambda.amazonaws.com", "arn:aws:iam::1234567890:user/myusername")

	roundTripped, err := a.Render()
	if err != nil {
		t.Fatal(err)
	}
	b, err := policy.Parse(roundTripped)
	if err != nil {
		t.Fatal(err)
	}
	if !policy.Equivalent(a, b) {
		t.Fatal("document not equivalent after round trip")
	}

	c := policy.AssumeRolePolicy("scheduler.amazonaws.com")
	if policy.Equivalent(a, c) {
		t.Fatal("different principals reported equivalent")
	}

	// Order inside action lists must not matter.
	d := &policy.Document{Statement: []policy.Statement{{
		Effect: "Allow", Action: policy.StringList{"s3:GetObject", "s3:PutObject"}, AllResources: true,
	}}}
	e := &policy.Document{Statement: []policy.Statement{{
		Effect: "Allow", Action: policy.StringList{"s3:PutObject", "s3:GetObject"}, AllResources: true,
	}}}
	if !policy.Equivalent(d, e) {
		t.Fatal("action order should not affect equivalence")
	}
}
