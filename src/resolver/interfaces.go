package resolver

import (
	"context"

	"github.com/kaizhangyahoo/st-my-investment/src/reference"
)

// BulkSource supplies the large authoritative name→ticker table fetched over
// the network. Implementations return an empty table on failure; the cascade
// treats an unreachable source as "nothing resolvable here".
type BulkSource interface {
	Fetch(ctx context.Context) (reference.Table, error)
}

// DocumentSource supplies the name→ticker table extracted from the broker's
// share-list document, in the requested representation.
type DocumentSource interface {
	Extract(view reference.View) (reference.Table, error)
}
