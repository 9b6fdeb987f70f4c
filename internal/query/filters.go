package query

import "slices"

// FilterStore holds the session's filter state: an insertion-ordered mapping from
// filter key to a non-empty, ordered list of accepted values.
type FilterStore struct {
	keys   []string
	values map[string][]string
}

// NewFilterStore creates an empty FilterStore.
func NewFilterStore() *FilterStore {
	return &FilterStore{
		values: make(map[string][]string),
	}
}

// Get returns a copy of the values for key, or an empty slice if the key is absent.
func (f *FilterStore) Get(key string) []string {
	return slices.Clone(f.values[key])
}

// Has reports whether key currently holds at least one value.
func (f *FilterStore) Has(key string) bool {
	return len(f.values[key]) > 0
}

// Add appends value to the key's sequence. Duplicates are not filtered here.
func (f *FilterStore) Add(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = append(f.values[key], value)
}

// Replace sets the key's sequence to exactly [value].
func (f *FilterStore) Replace(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = []string{value}
}

// ClearKey removes key and reports whether it was present.
func (f *FilterStore) ClearKey(key string) bool {
	if _, ok := f.values[key]; !ok {
		return false
	}
	delete(f.values, key)
	f.keys = slices.DeleteFunc(f.keys, func(k string) bool { return k == key })
	return true
}

// ClearAll empties the store.
func (f *FilterStore) ClearAll() {
	f.keys = nil
	f.values = make(map[string][]string)
}

// HasConflict reports whether key already holds values and value is not one of them.
func (f *FilterStore) HasConflict(key, value string) bool {
	vals := f.values[key]
	return len(vals) > 0 && !slices.Contains(vals, value)
}

// Keys returns the filter keys in insertion order.
func (f *FilterStore) Keys() []string {
	return slices.Clone(f.keys)
}

// Len returns the number of keys in the store.
func (f *FilterStore) Len() int {
	return len(f.keys)
}
