// Package index provides the in-memory keydir for the ignite key-value
// store: a map from key to the location of that key's most recent Normal
// record, kept entirely in memory so every Get resolves with a single
// direct file read rather than a scan.
package index

import (
	stdErrors "errors"

	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/options"
)

// ErrIndexClosed reports an operation on a closed index. Neither backend
// returns it: after Close, both keep serving calls against an empty index.
var ErrIndexClosed = stdErrors.New("operation failed: cannot access closed index")

// New constructs the keydir backend selected by indexType. Both backends
// satisfy the same Index contract, so callers never need to branch on
// which one was chosen.
func New(indexType options.IndexType) (Index, error) {
	switch indexType {
	case options.IndexBTree:
		return NewBTree(), nil
	case options.IndexSkipList:
		return NewSkipList(), nil
	default:
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "unknown index type",
		).WithField("indexType").WithRule("oneof=btree,skiplist").WithProvided(indexType.String())
	}
}
