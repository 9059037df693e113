// Package depgraph maps changed sources to the fact tables that must be
// recomputed, in a safe, deterministic order.
//
// Dependency declarations are fact name → required input names. An input
// that is itself a declared fact forms a fact→fact edge: the upstream fact
// rebuilds first and its fresh output feeds the downstream builder. With no
// fact→fact edges (the common case) the result is plain lexicographic.
package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a cyclic fact→fact declaration.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic fact dependencies: %s", strings.Join(e.Members, " -> "))
}

// Validate checks the declarations for fact→fact cycles, independent of
// what changed. Run once at config load so a broken model fails before any
// spreadsheet I/O.
func Validate(deps map[string][]string) error {
	// Depth-first search with a temporary mark for the current stack and a
	// permanent mark for finished nodes.
	const (
		unvisited = iota
		inStack
		done
	)
	marks := make(map[string]int, len(deps))

	var stack []string
	var visit func(fact string) error
	visit = func(fact string) error {
		switch marks[fact] {
		case done:
			return nil
		case inStack:
			// Trim the stack down to the cycle entry point.
			for i, f := range stack {
				if f == fact {
					members := append([]string{}, stack[i:]...)
					return &CycleError{Members: append(members, fact)}
				}
			}
			return &CycleError{Members: []string{fact}}
		}
		marks[fact] = inStack
		stack = append(stack, fact)
		for _, dep := range sortedDeps(deps[fact]) {
			if _, isFact := deps[dep]; !isFact {
				continue // source edge, cannot cycle
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[fact] = done
		return nil
	}

	for _, fact := range sortedKeys(deps) {
		if err := visit(fact); err != nil {
			return err
		}
	}
	return nil
}

// RebuildSet returns the facts requiring recomputation given the changed
// sources, ordered so every fact comes after the facts it depends on, with
// lexicographic order among unordered peers. An empty changed set
// short-circuits to an empty result.
func RebuildSet(changedSources []string, deps map[string][]string) ([]string, error) {
	if len(changedSources) == 0 {
		return nil, nil
	}

	changed := make(map[string]bool, len(changedSources))
	for _, s := range changedSources {
		changed[s] = true
	}

	// Transitive closure: a fact rebuilds when any input changed, where a
	// rebuilding fact counts as a changed input for its dependents.
	rebuild := make(map[string]bool)
	for {
		grew := false
		for fact, reqs := range deps {
			if rebuild[fact] {
				continue
			}
			for _, dep := range reqs {
				if changed[dep] || rebuild[dep] {
					rebuild[fact] = true
					grew = true
					break
				}
			}
		}
		if !grew {
			break
		}
	}
	if len(rebuild) == 0 {
		return nil, nil
	}

	return order(rebuild, deps)
}

// order runs Kahn's algorithm over the fact→fact edges inside the rebuild
// set, always picking the lexicographically smallest ready fact so output
// is reproducible for logs and tests.
func order(rebuild map[string]bool, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(rebuild))
	dependents := make(map[string][]string, len(rebuild))
	for fact := range rebuild {
		indegree[fact] += 0
		for _, dep := range deps[fact] {
			if rebuild[dep] {
				indegree[fact]++
				dependents[dep] = append(dependents[dep], fact)
			}
		}
	}

	var ready []string
	for fact, n := range indegree {
		if n == 0 {
			ready = append(ready, fact)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(rebuild))
	for len(ready) > 0 {
		fact := ready[0]
		ready = ready[1:]
		result = append(result, fact)
		for _, dependent := range sortedDeps(dependents[fact]) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(result) != len(rebuild) {
		// Leftover facts all sit on a cycle; Validate pinpoints it.
		var members []string
		for fact := range rebuild {
			if indegree[fact] > 0 {
				members = append(members, fact)
			}
		}
		sort.Strings(members)
		return nil, &CycleError{Members: members}
	}
	return result, nil
}

func insertSorted(sorted []string, v string) []string {
	i := sort.SearchStrings(sorted, v)
	sorted = append(sorted, "")
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}

func sortedDeps(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
