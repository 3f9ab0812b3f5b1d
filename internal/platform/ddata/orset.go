// Package ddata implements replicated data for twinworks: a state-based
// observed-remove set and a Replicator that applies local updates and pushes
// them to peer replicas under an explicit write consistency.
//
// Reads never leave the local replica. Writes are acknowledged according to
// the WriteConsistency passed by the caller.
package ddata

import (
	"sort"
)

// Dot identifies one add operation: the replica that performed it and that
// replica's counter at the time.
type Dot struct {
	Node    string `json:"node"`
	Counter uint64 `json:"counter"`
}

// ORSet is an add-wins observed-remove set of strings. Values are treated as
// immutable: every operation returns a new set.
type ORSet struct {
	Entries map[string][]Dot  `json:"entries"`
	Clock   map[string]uint64 `json:"clock"`
}

// NewORSet returns an empty set.
func NewORSet() ORSet {
	return ORSet{Entries: map[string][]Dot{}, Clock: map[string]uint64{}}
}

// Clone returns a deep copy of s.
func (s ORSet) Clone() ORSet {
	out := ORSet{
		Entries: make(map[string][]Dot, len(s.Entries)),
		Clock:   make(map[string]uint64, len(s.Clock)),
	}
	for elem, dots := range s.Entries {
		out.Entries[elem] = append([]Dot(nil), dots...)
	}
	for node, counter := range s.Clock {
		out.Clock[node] = counter
	}
	return out
}

// Add returns a set containing elem, tagged with a fresh dot from node. Any
// dots previously supporting elem are observed and replaced.
func (s ORSet) Add(node, elem string) ORSet {
	out := s.Clone()
	counter := out.Clock[node] + 1
	out.Clock[node] = counter
	out.Entries[elem] = []Dot{{Node: node, Counter: counter}}
	return out
}

// Remove returns a set without elem. The clock keeps the observed dots so a
// merge with an older replica does not resurrect the element.
func (s ORSet) Remove(elem string) ORSet {
	out := s.Clone()
	delete(out.Entries, elem)
	return out
}

// Clear removes every element currently observed.
func (s ORSet) Clear() ORSet {
	out := s.Clone()
	out.Entries = map[string][]Dot{}
	return out
}

// Contains reports whether elem is in the set.
func (s ORSet) Contains(elem string) bool {
	return len(s.Entries[elem]) > 0
}

// Elements returns the members in lexical order.
func (s ORSet) Elements() []string {
	out := make([]string, 0, len(s.Entries))
	for elem, dots := range s.Entries {
		if len(dots) > 0 {
			out = append(out, elem)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of members.
func (s ORSet) Len() int {
	return len(s.Elements())
}

// Merge joins two replicas of the same set. A dot survives when both sides
// hold it, or when one side holds it and the other has not yet observed it.
func (s ORSet) Merge(other ORSet) ORSet {
	out := NewORSet()
	elems := make(map[string]struct{}, len(s.Entries)+len(other.Entries))
	for elem := range s.Entries {
		elems[elem] = struct{}{}
	}
	for elem := range other.Entries {
		elems[elem] = struct{}{}
	}
	for elem := range elems {
		dots := mergeDots(s.Entries[elem], s.Clock, other.Entries[elem], other.Clock)
		if len(dots) > 0 {
			out.Entries[elem] = dots
		}
	}
	for node, counter := range s.Clock {
		out.Clock[node] = counter
	}
	for node, counter := range other.Clock {
		if counter > out.Clock[node] {
			out.Clock[node] = counter
		}
	}
	return out
}

func mergeDots(left []Dot, leftClock map[string]uint64, right []Dot, rightClock map[string]uint64) []Dot {
	inRight := make(map[Dot]struct{}, len(right))
	for _, d := range right {
		inRight[d] = struct{}{}
	}
	inLeft := make(map[Dot]struct{}, len(left))
	var out []Dot
	for _, d := range left {
		inLeft[d] = struct{}{}
		if _, ok := inRight[d]; ok || d.Counter > rightClock[d.Node] {
			out = append(out, d)
		}
	}
	for _, d := range right {
		if _, ok := inLeft[d]; ok {
			continue
		}
		if d.Counter > leftClock[d.Node] {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Node != out[j].Node {
			return out[i].Node < out[j].Node
		}
		return out[i].Counter < out[j].Counter
	})
	return out
}
