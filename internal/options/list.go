package options

import "strings"

// List is an ordered, immutable sequence of items. Duplicates of a kind are
// allowed; the earliest one wins. The zero List is empty and ready to use.
type List struct {
	items []Item
}

// NewList copies items into a new List.
func NewList(items ...Item) List {
	if len(items) == 0 {
		return List{}
	}
	copied := make([]Item, len(items))
	copy(copied, items)
	return List{items: copied}
}

// Len returns the number of items
func (l List) Len() int {
	return len(l.items)
}

// Items returns a copy of the items in order.
func (l List) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Append returns a new List with items added after the existing ones. The
// receiver is left unchanged.
func (l List) Append(items ...Item) List {
	merged := make([]Item, 0, len(l.items)+len(items))
	merged = append(merged, l.items...)
	merged = append(merged, items...)
	return List{items: merged}
}

// FirstMatch returns the earliest item of the same kind as probe.
func (l List) FirstMatch(probe Item) (Item, bool) {
	for _, item := range l.items {
		if SameKind(item, probe) {
			return item, true
		}
	}
	return Item{}, false
}

// Contains reports whether any item has kind k.
func (l List) Contains(k Kind) bool {
	_, ok := l.FirstMatch(Probe(k))
	return ok
}

// String renders the list as "[A, B, ...]".
func (l List) String() string {
	parts := make([]string, len(l.items))
	for i, item := range l.items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
