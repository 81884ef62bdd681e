// Package validation checks subprompt collections for structural problems:
// malformed records, dangling references, and reference cycles. It reports
// findings as accumulated errors and warnings rather than failing fast, so
// callers can surface everything wrong with a document at once.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/promptloom/promptloom/subprompt"
)

// Result accumulates validation findings. Errors mark the result invalid;
// warnings do not.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewResult returns an empty, valid result.
func NewResult() *Result {
	return &Result{Valid: true}
}

// AddError records an error and marks the result invalid.
func (r *Result) AddError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

// AddWarning records a warning without affecting validity.
func (r *Result) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Merge folds another result into this one.
func (r *Result) Merge(other *Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.Valid {
		r.Valid = false
	}
}

// DetectCircularReferences walks the dependency graph formed by order lists
// looking for cycles. With a startID, only the subgraph reachable from that
// node is checked; otherwise every node is. Dangling references are not an
// error here, they simply have no outgoing edge.
func DetectCircularReferences(collection map[string]*subprompt.Subprompt, startID string) *Result {
	result := NewResult()
	if len(collection) == 0 {
		return result
	}

	graph := buildDependencyGraph(collection)

	if startID != "" {
		if _, ok := graph[startID]; !ok {
			result.AddError("subprompt %q not found in collection", startID)
			return result
		}
		if cycle := detectCycleFrom(graph, startID, nil); cycle != nil {
			result.AddError("circular reference detected starting from %q: %s",
				startID, strings.Join(cycle, " -> "))
		}
		return result
	}

	visited := make(map[string]bool, len(graph))
	for _, node := range sortedKeys(graph) {
		if visited[node] {
			continue
		}
		if cycle := detectCycleFrom(graph, node, visited); cycle != nil {
			result.AddError("circular reference detected: %s", strings.Join(cycle, " -> "))
		}
	}
	return result
}

// ValidateOrderReferences checks that every non-attached token in a
// subprompt's order list names an existing collection entry and is not the
// subprompt itself.
func ValidateOrderReferences(collection map[string]*subprompt.Subprompt, id string) *Result {
	result := NewResult()

	s, ok := collection[id]
	if !ok {
		result.AddError("subprompt %q not found in collection", id)
		return result
	}

	for i, item := range s.Order {
		if item == subprompt.Attached {
			continue
		}
		if item == id || item == s.Name {
			result.AddError("subprompt %q contains self-reference in order[%d]", id, i)
			continue
		}
		if !referenceExists(collection, item) {
			result.AddError("referenced subprompt %q in order[%d] of %q does not exist in collection",
				item, i, id)
		}
	}
	return result
}

// ValidateStructure checks a raw document record before it is promoted to a
// Subprompt. Operating on the untyped map lets the storage layer validate
// damaged records it could not otherwise construct.
func ValidateStructure(data map[string]interface{}) *Result {
	result := NewResult()

	name, hasName := data["name"]
	if !hasName {
		// Very old documents carried the name under "id".
		name, hasName = data["id"]
	}
	if !hasName {
		result.AddError("missing required field: name")
	} else if s, ok := name.(string); !ok || strings.TrimSpace(s) == "" {
		result.AddError("field 'name' must be a non-empty string")
	}

	for _, field := range []string{"positive", "negative", "folder_path"} {
		if v, present := data[field]; present && v != nil {
			if _, ok := v.(string); !ok {
				result.AddError("field %q must be a string", field)
			}
		}
	}

	if v, present := data["trigger_words"]; present && v != nil {
		validateStringListField(result, v, "trigger_words", func(i int, s string) {
			if strings.TrimSpace(s) == "" {
				result.AddWarning("empty trigger word at index %d", i)
			}
		})
	}

	if v, present := data["order"]; present && v != nil {
		list, ok := toList(v)
		if !ok {
			result.AddError("field 'order' must be a list")
			return result
		}
		if len(list) == 0 {
			result.AddError("field 'order' cannot be empty")
			return result
		}
		attached := 0
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				result.AddError("order item at index %d must be a string", i)
				continue
			}
			if s == subprompt.Attached {
				attached++
			} else if strings.TrimSpace(s) == "" {
				result.AddError("order item at index %d is empty", i)
			}
		}
		if attached == 0 {
			result.AddWarning("order list does not contain %q marker", subprompt.Attached)
		} else if attached > 1 {
			result.AddError("order list can only contain one %q marker", subprompt.Attached)
		}
	}

	return result
}

// ValidateCollection runs structure, reference, and cycle checks over an
// entire collection.
func ValidateCollection(collection map[string]*subprompt.Subprompt) *Result {
	result := NewResult()
	if len(collection) == 0 {
		result.AddWarning("empty collection provided")
		return result
	}

	ids := make([]string, 0, len(collection))
	for id := range collection {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := collection[id].Validate(); err != nil {
			result.AddError("subprompt %q: %v", id, err)
		}
	}
	for _, id := range ids {
		result.Merge(ValidateOrderReferences(collection, id))
	}
	result.Merge(DetectCircularReferences(collection, ""))
	return result
}

// ValidateTriggerWords checks trigger word format and, when content is
// given, warns about words that never occur in it.
func ValidateTriggerWords(words []string, content string) *Result {
	result := NewResult()
	contentLower := strings.ToLower(content)

	for i, word := range words {
		trimmed := strings.TrimSpace(word)
		if trimmed == "" {
			result.AddError("trigger word at index %d is empty", i)
			continue
		}
		if len(trimmed) < 2 {
			result.AddWarning("trigger word %q at index %d is very short", trimmed, i)
		}
		if content != "" && !strings.Contains(contentLower, strings.ToLower(trimmed)) {
			result.AddWarning("trigger word %q not found in content", trimmed)
		}
	}
	return result
}

// SafeResolutionOrder computes a topological order over the collection using
// Kahn's algorithm: every subprompt appears after everything it references.
// Dangling references produce warnings and are excluded from the ordering
// constraints. On a cycle, the returned order covers only the acyclic part
// and the result carries an error naming the stuck nodes.
func SafeResolutionOrder(collection map[string]*subprompt.Subprompt) ([]string, *Result) {
	result := NewResult()
	if len(collection) == 0 {
		return nil, result
	}

	graph := buildDependencyGraph(collection)

	forward := make(map[string][]string, len(graph))
	inDegree := make(map[string]int, len(graph))
	for node := range graph {
		inDegree[node] = 0
	}
	for _, node := range sortedKeys(graph) {
		for _, dep := range graph[node] {
			if _, ok := graph[dep]; !ok {
				result.AddWarning("reference to non-existent subprompt %q in %q", dep, node)
				continue
			}
			forward[dep] = append(forward[dep], node)
			inDegree[node]++
		}
	}

	var queue []string
	for _, node := range sortedKeys(graph) {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]string, 0, len(graph))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, next := range forward[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(graph) {
		var stuck []string
		ordered := make(map[string]bool, len(order))
		for _, node := range order {
			ordered[node] = true
		}
		for _, node := range sortedKeys(graph) {
			if !ordered[node] {
				stuck = append(stuck, node)
			}
		}
		result.AddError("cannot determine safe resolution order, circular dependencies detected")
		result.AddError("nodes with unresolved dependencies: %s", strings.Join(stuck, ", "))
	}

	return order, result
}

// buildDependencyGraph maps each collection key to the order-list tokens it
// references. Dangling tokens are kept; callers decide what they mean.
func buildDependencyGraph(collection map[string]*subprompt.Subprompt) map[string][]string {
	graph := make(map[string][]string, len(collection))
	for id, s := range collection {
		var deps []string
		for _, item := range s.Order {
			if item == subprompt.Attached {
				continue
			}
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				deps = append(deps, trimmed)
			}
		}
		graph[id] = deps
	}
	return graph
}

// detectCycleFrom runs an iterative-path DFS from start. The globalVisited
// set, when non-nil, is shared across calls so a full-collection scan does
// not re-walk finished subgraphs. Returns the cycle path (first repeated
// node at both ends) or nil.
func detectCycleFrom(graph map[string][]string, start string, globalVisited map[string]bool) []string {
	visited := globalVisited
	if visited == nil {
		visited = make(map[string]bool)
	}
	onStack := make(map[string]bool)
	var path []string
	var cycle []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		if onStack[node] {
			for i, p := range path {
				if p == node {
					cycle = append(append([]string{}, path[i:]...), node)
					break
				}
			}
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, dep := range graph[node] {
			if _, exists := graph[dep]; !exists {
				continue
			}
			if dfs(dep) {
				return true
			}
		}

		delete(onStack, node)
		path = path[:len(path)-1]
		return false
	}

	if dfs(start) {
		return cycle
	}
	return nil
}

// referenceExists reports whether a token matches any collection key or any
// entry's id or name.
func referenceExists(collection map[string]*subprompt.Subprompt, token string) bool {
	if _, ok := collection[token]; ok {
		return true
	}
	for _, s := range collection {
		if s.ID == token || s.Name == token {
			return true
		}
	}
	return false
}

func sortedKeys(graph map[string][]string) []string {
	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func validateStringListField(result *Result, v interface{}, field string, each func(int, string)) {
	list, ok := toList(v)
	if !ok {
		result.AddError("field %q must be a list", field)
		return
	}
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			result.AddError("%s item at index %d must be a string", field, i)
			continue
		}
		if each != nil {
			each(i, s)
		}
	}
}
