// src/reference/table.go
package reference

// Table is an ephemeral name→ticker lookup built from one external source
// for use during a single resolution run. It is never persisted itself;
// only entries that actually resolve an input name reach the mapping store.
type Table struct {
	// Entries maps instrument name to ticker. Keys are unique after the
	// adapters drop ambiguous/duplicate listings.
	Entries map[string]string

	// Source labels where the table came from, for logs and stage names.
	Source string

	// LowConfidence is set when extraction yielded suspiciously little,
	// usually meaning the source layout changed underneath us.
	LowConfidence bool
}

func (t Table) Len() int { return len(t.Entries) }

func (t Table) Empty() bool { return len(t.Entries) == 0 }
