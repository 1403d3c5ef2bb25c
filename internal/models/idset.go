package models

import "encoding/json"

// IDSet is an ordered set of user identifiers. Mutating methods return a new
// set and never modify the receiver's backing array.
type IDSet []string

// NewIDSet builds a set from ids, dropping duplicates and empty values.
func NewIDSet(ids ...string) IDSet {
	var s IDSet
	for _, id := range ids {
		s = s.Add(id)
	}
	return s
}

// Has reports whether id is a member of the set.
func (s IDSet) Has(id string) bool {
	for _, existing := range s {
		if existing == id {
			return true
		}
	}
	return false
}

// Add returns the set with id appended. Adding an existing or empty id is a no-op.
func (s IDSet) Add(id string) IDSet {
	if id == "" || s.Has(id) {
		return s
	}
	out := make(IDSet, len(s), len(s)+1)
	copy(out, s)
	return append(out, id)
}

// Remove returns the set without id. Removing an absent id is a no-op.
func (s IDSet) Remove(id string) IDSet {
	if !s.Has(id) {
		return s
	}
	out := make(IDSet, 0, len(s)-1)
	for _, existing := range s {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// Len returns the number of members.
func (s IDSet) Len() int {
	return len(s)
}

// Strings returns a copy of the members as a plain slice, never nil.
func (s IDSet) Strings() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// MarshalJSON encodes an empty set as [] rather than null.
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}
