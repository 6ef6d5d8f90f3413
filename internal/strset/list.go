package strset

import "sort"

// List is an ordered sequence of interned strings. Duplicates are
// permitted; order is significant since it is exposed to the cookbook
// language's [head]/[tail] style operations.
type List struct {
	items []*String
}

// NewList builds a List from interned strings, preserving order.
func NewList(items ...*String) *List {
	return &List{items: append([]*String(nil), items...)}
}

// FromStrings interns each element of ss (in t) and returns the list.
func FromStrings(t *Table, ss []string) *List {
	l := &List{items: make([]*String, 0, len(ss))}
	for _, s := range ss {
		l.items = append(l.items, t.Intern(s))
	}
	return l
}

// Len returns the number of elements, including duplicates.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the i'th element.
func (l *List) At(i int) *String { return l.items[i] }

// Items returns the underlying slice; callers must not mutate it.
func (l *List) Items() []*String { return l.items }

// Strings renders the list back into plain strings.
func (l *List) Strings() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.items))
	for i, s := range l.items {
		out[i] = s.Text()
	}
	return out
}

// Append returns a new list with additional items appended.
func (l *List) Append(items ...*String) *List {
	n := &List{items: make([]*String, 0, l.Len()+len(items))}
	n.items = append(n.items, l.items...)
	n.items = append(n.items, items...)
	return n
}

// Head returns the first element, or nil if the list is empty.
func (l *List) Head() *String {
	if l.Len() == 0 {
		return nil
	}
	return l.items[0]
}

// Tail returns all but the first element.
func (l *List) Tail() *List {
	if l.Len() <= 1 {
		return &List{}
	}
	return &List{items: l.items[1:]}
}

// Sorted returns a new list with elements sorted lexically by text.
func (l *List) Sorted() *List {
	items := append([]*String(nil), l.items...)
	sort.Slice(items, func(i, j int) bool { return items[i].Text() < items[j].Text() })
	return &List{items: items}
}

// Unique returns a new list with adjacent-after-sort duplicates removed,
// preserving sorted order (cook's set-like builtins sort before
// deduplicating, matching mk's sort builtin).
func (l *List) Unique() *List {
	sorted := l.Sorted()
	out := &List{items: make([]*String, 0, len(sorted.items))}
	for i, s := range sorted.items {
		if i == 0 || s != sorted.items[i-1] {
			out.items = append(out.items, s)
		}
	}
	return out
}

// Union returns the set union of l and other (sorted, deduplicated).
func (l *List) Union(other *List) *List {
	combined := &List{items: append(append([]*String(nil), l.items...), other.items...)}
	return combined.Unique()
}

// Contains reports whether s appears anywhere in the list (pointer
// equality, which interning makes equivalent to value equality).
func (l *List) Contains(s *String) bool {
	for _, x := range l.items {
		if x == s {
			return true
		}
	}
	return false
}
