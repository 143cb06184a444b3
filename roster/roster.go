package roster

import (
	"github.com/pkg/errors"
)

// ErrUnknownEntry is returned when a name is not part of the roster.
var ErrUnknownEntry = errors.New("unknown roster entry")

// Entry is a selectable roster character.
type Entry struct {
	Name       string
	Color      int
	AliasGroup string
	// AliasLead marks the alias entry shown on the primary menu. When no
	// entry of the group is marked, the first one in roster order leads.
	AliasLead bool
}

// Catalog is the fixed, immutable list of selectable entries.
type Catalog struct {
	entries []Entry
	byName  map[string]Entry

	representative string
	secondary      string
}

// New builds a catalog from the given entries. Names must be unique, and at
// most one alias group may exist, containing exactly two entries with at most
// one lead.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		byName:  make(map[string]Entry, len(entries)),
	}
	copy(c.entries, entries)

	groups := make(map[string][]string)
	var groupOrder []string
	for _, entry := range entries {
		if entry.Name == "" {
			return nil, errors.New("roster entry with empty name")
		}
		if _, ok := c.byName[entry.Name]; ok {
			return nil, errors.Errorf("duplicate roster entry %q", entry.Name)
		}
		c.byName[entry.Name] = entry

		if entry.AliasGroup != "" {
			if _, ok := groups[entry.AliasGroup]; !ok {
				groupOrder = append(groupOrder, entry.AliasGroup)
			}
			groups[entry.AliasGroup] = append(groups[entry.AliasGroup], entry.Name)
		}
	}

	if len(groupOrder) > 1 {
		return nil, errors.Errorf("roster has %d alias groups, at most one is supported", len(groupOrder))
	}
	if len(groupOrder) == 1 {
		members := groups[groupOrder[0]]
		if len(members) != 2 {
			return nil, errors.Errorf(
				"alias group %q has %d entries, want 2",
				groupOrder[0],
				len(members),
			)
		}
		lead, other := members[0], members[1]
		switch {
		case c.byName[lead].AliasLead && c.byName[other].AliasLead:
			return nil, errors.Errorf("alias group %q has two leads", groupOrder[0])
		case c.byName[other].AliasLead:
			lead, other = other, lead
		}
		c.representative = lead
		c.secondary = other
	}

	return c, nil
}

// MustNew is like New but panics on an invalid roster.
func MustNew(entries []Entry) *Catalog {
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// Entries returns every entry in roster order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns every entry name in roster order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, entry := range c.entries {
		names[i] = entry.Name
	}
	return names
}

// Get returns the entry with the given name.
func (c *Catalog) Get(name string) (Entry, bool) {
	entry, ok := c.byName[name]
	return entry, ok
}

// Contains reports whether name is a roster entry.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// HasAlias reports whether the roster contains an alias pair.
func (c *Catalog) HasAlias() bool {
	return c.representative != ""
}

// AliasRepresentative is the alias entry offered on the primary menu.
func (c *Catalog) AliasRepresentative() string {
	return c.representative
}

// AliasPair returns both alias entries, representative first.
func (c *Catalog) AliasPair() []string {
	if !c.HasAlias() {
		return nil
	}
	return []string{c.representative, c.secondary}
}

// PrimaryChoices returns the entries offered on the first selection menu:
// the whole roster with the alias secondary suppressed.
func (c *Catalog) PrimaryChoices() []Entry {
	choices := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		if c.HasAlias() && entry.Name == c.secondary {
			continue
		}
		choices = append(choices, entry)
	}
	return choices
}

// Difference returns the names in a that are not in b, preserving a's order.
func Difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, name := range b {
		seen[name] = struct{}{}
	}

	var out []string
	for _, name := range a {
		if _, ok := seen[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
