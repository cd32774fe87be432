// Package opstask holds the operational task body. The bundled
// function handler and the local test runner both call Run, so a local
// run under delegated credentials exercises the exact deployed code
// path.
package opstask

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
)

// Lister is the slice of the object store this task needs.
type Lister interface {
	ListBuckets(ctx context.Context) ([]string, error)
}

// Identity resolves who the task is running as.
type Identity interface {
	CallerIdentity(ctx context.Context) (account, arn string, err error)
}

// Inventory is the task result: the account and the buckets it owns.
// Bucket order is not part of the contract; it is sorted here only to
// keep output stable for humans and diffs.
type Inventory struct {
	Account string   `json:"account"`
	Caller  string   `json:"caller"`
	Buckets []string `json:"buckets"`
}

// Run produces the bucket inventory.
func Run(ctx context.Context, lister Lister, identity Identity) (*Inventory, error) {
	account, caller, err := identity.CallerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	buckets, err := lister.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(buckets)

	log.Ctx(ctx).Info().
		Str("account", account).
		Int("buckets", len(buckets)).
		Msg("bucket inventory complete")

	return &Inventory{Account: account, Caller: caller, Buckets: buckets}, nil
}
