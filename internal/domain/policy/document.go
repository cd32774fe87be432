package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// DefaultVersion is the policy language version understood by IAM.
const DefaultVersion = "2012-10-17"

// Effect values allowed in a statement.
const (
	EffectAllow = "Allow"
	EffectDeny  = "Deny"
)

var (
	ErrNoStatements    = errors.New("policy document has no statements")
	ErrInvalidEffect   = errors.New("statement effect must be Allow or Deny")
	ErrNoActions       = errors.New("statement requires at least one action")
	ErrNoResource      = errors.New("statement requires a resource unless AllResources is set")
	ErrEmptyPrincipal  = errors.New("statement principal has no service or AWS entries")
	ErrInvalidDocument = errors.New("policy document is not valid JSON")
)

// Document is a versioned IAM policy document. Statements keep their
// declared order; rendering is stable so two documents built from the
// same input produce identical bytes.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement. A statement carrying a
// Principal (trust policies) does not require a Resource; a permission
// statement must either name resources or opt into AllResources, which
// renders as "*".
type Statement struct {
	Sid       string         `json:"Sid,omitempty"`
	Effect    string         `json:"Effect"`
	Principal *Principal     `json:"Principal,omitempty"`
	Action    StringList     `json:"Action"`
	Resource  StringList     `json:"Resource,omitempty"`
	Condition ConditionBlock `json:"Condition,omitempty"`

	// AllResources widens an empty Resource to "*" at render time.
	// Left false, an empty Resource fails validation.
	AllResources bool `json:"-"`
}

// Principal identifies who a trust statement applies to.
type Principal struct {
	Service StringList `json:"Service,omitempty"`
	AWS     StringList `json:"AWS,omitempty"`
}

// ConditionBlock maps condition operators to key/value constraints.
type ConditionBlock map[string]map[string]string

// StringList unmarshals from either a bare string or an array of
// strings. IAM collapses single-element arrays when echoing documents
// back, so reads must accept both forms.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Validate checks every statement against the document invariants.
func (d *Document) Validate() error {
	if len(d.Statement) == 0 {
		return ErrNoStatements
	}
	for i := range d.Statement {
		if err := d.Statement[i].Validate(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single statement.
func (s *Statement) Validate() error {
	if s.Effect != EffectAllow && s.Effect != EffectDeny {
		return ErrInvalidEffect
	}
	if len(s.Action) == 0 {
		return ErrNoActions
	}
	if s.Principal != nil && len(s.Principal.Service) == 0 && len(s.Principal.AWS) == 0 {
		return ErrEmptyPrincipal
	}
	if s.Principal == nil && len(s.Resource) == 0 && !s.AllResources {
		return ErrNoResource
	}
	return nil
}

// SetDefaults fills the policy version and widens opted-in statements.
func (d *Document) SetDefaults() {
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	for i := range d.Statement {
		if d.Statement[i].AllResources && len(d.Statement[i].Resource) == 0 {
			d.Statement[i].Resource = StringList{"*"}
		}
	}
}

// Render validates the document and returns its canonical JSON form,
// two-space indented with field order fixed by the struct layout.
func (d *Document) Render() (string, error) {
	d.SetDefaults()
	if err := d.Validate(); err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Parse decodes a policy document from JSON, accepting the collapsed
// string forms IAM produces.
func Parse(raw string) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// Equivalent reports whether two documents grant the same thing:
// versions match and statements match pairwise with action, resource
// and principal entries compared as sets.
func Equivalent(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	av, bv := a.Version, b.Version
	if av == "" {
		av = DefaultVersion
	}
	if bv == "" {
		bv = DefaultVersion
	}
	if av != bv || len(a.Statement) != len(b.Statement) {
		return false
	}
	for i := range a.Statement {
		if !statementEquivalent(&a.Statement[i], &b.Statement[i]) {
			return false
		}
	}
	return true
}

func statementEquivalent(a, b *Statement) bool {
	if a.Effect != b.Effect || a.Sid != b.Sid {
		return false
	}
	if !setsEqual(a.Action, b.Action) {
		return false
	}
	ar, br := a.Resource, b.Resource
	if a.AllResources && len(ar) == 0 {
		ar = StringList{"*"}
	}
	if b.AllResources && len(br) == 0 {
		br = StringList{"*"}
	}
	if !setsEqual(ar, br) {
		return false
	}
	if (a.Principal == nil) != (b.Principal == nil) {
		return false
	}
	if a.Principal != nil {
		if !setsEqual(a.Principal.Service, b.Principal.Service) {
			return false
		}
		if !setsEqual(a.Principal.AWS, b.Principal.AWS) {
			return false
		}
	}
	return conditionsEqual(a.Condition, b.Condition)
}

func setsEqual(a, b StringList) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func conditionsEqual(a, b ConditionBlock) bool {
	if len(a) != len(b) {
		return false
	}
	for op, kv := range a {
		bkv, ok := b[op]
		if !ok || len(kv) != len(bkv) {
			return false
		}
		for k, v := range kv {
			if bkv[k] != v {
				return false
			}
		}
	}
	return true
}

// AssumeRolePolicy builds the trust document for an execution role:
// the invoking service always, plus any operator principals allowed to
// assume the role for local runs.
func AssumeRolePolicy(service string, operatorArns ...string) *Document {
	doc := &Document{
		Version: DefaultVersion,
		Statement: []Statement{{
			Effect:    EffectAllow,
			Principal: &Principal{Service: StringList{service}},
			Action:    StringList{"sts:AssumeRole"},
		}},
	}
	if len(operatorArns) > 0 {
		doc.Statement = append(doc.Statement, Statement{
			Effect:    EffectAllow,
			Principal: &Principal{AWS: StringList(operatorArns)},
			Action:    StringList{"sts:AssumeRole"},
		})
	}
	return doc
}
