package roster

import (
	"github.com/pkg/errors"
)

// Index maps roster entries to remote identifiers (badge ids, role ids).
// Names outside the roster are dropped when the index is built, so every key
// is a valid entry. An Index is built fresh from a remote listing each time
// it is needed and never cached.
type Index struct {
	catalog *Catalog
	ids     map[string]string
}

// NewIndex builds an index from remote name/id pairs. Pairs whose name is not
// a roster entry are ignored; when a name repeats, the first id wins.
func NewIndex(catalog *Catalog, pairs [][2]string) Index {
	idx := Index{catalog: catalog, ids: make(map[string]string)}
	for _, pair := range pairs {
		name, id := pair[0], pair[1]
		if !catalog.Contains(name) {
			continue
		}
		if _, ok := idx.ids[name]; ok {
			continue
		}
		idx.ids[name] = id
	}
	return idx
}

// Lookup returns the remote id for the given entry.
func (idx Index) Lookup(name string) (string, bool) {
	id, ok := idx.ids[name]
	return id, ok
}

// MustLookup returns the remote id for the given entry or an error naming
// what is missing.
func (idx Index) MustLookup(name string) (string, error) {
	if idx.catalog == nil || !idx.catalog.Contains(name) {
		return "", errors.Wrapf(ErrUnknownEntry, "%q", name)
	}
	id, ok := idx.ids[name]
	if !ok {
		return "", errors.Errorf("no remote id for roster entry %q", name)
	}
	return id, nil
}

// Missing returns the roster entries without a remote id, in roster order.
func (idx Index) Missing() []string {
	if idx.catalog == nil {
		return nil
	}
	var missing []string
	for _, name := range idx.catalog.Names() {
		if _, ok := idx.ids[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Len returns the number of indexed entries.
func (idx Index) Len() int {
	return len(idx.ids)
}
