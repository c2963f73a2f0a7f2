package model

import "strings"

// ScopeSet is an ordered set of scope tokens. The first occurrence of a token fixes its position.
type ScopeSet []string

func ParseScopes(scope string) ScopeSet {
	return NewScopeSet(strings.Fields(scope)...)
}

func NewScopeSet(tokens ...string) ScopeSet {
	set := ScopeSet{}
	return set.Merge(tokens...)
}

func (s ScopeSet) Contains(token string) bool {
	for _, t := range s {
		if t == token {
			return true
		}
	}
	return false
}

func (s ScopeSet) ContainsAll(tokens ...string) bool {
	for _, t := range tokens {
		if !s.Contains(t) {
			return false
		}
	}
	return true
}

// Merge returns the union of s and tokens, keeping the order of s and appending new tokens at the end.
func (s ScopeSet) Merge(tokens ...string) ScopeSet {
	merged := make(ScopeSet, 0, len(s)+len(tokens))
	merged = append(merged, s...)
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || merged.Contains(t) {
			continue
		}
		merged = append(merged, t)
	}
	return merged
}

func (s ScopeSet) String() string {
	return strings.Join(s, " ")
}
