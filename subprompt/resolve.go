package subprompt

import (
	"strings"

	"github.com/promptloom/promptloom/errors"
)

// Collection maps reference tokens (ids or names) to subprompts.
type Collection map[string]*Subprompt

// NewCollection indexes subprompts under both their id and their name so
// either reference style in an order list resolves.
func NewCollection(subprompts []*Subprompt) Collection {
	c := make(Collection, len(subprompts)*2)
	for _, s := range subprompts {
		c[s.ID] = s
		c[s.Name] = s
	}
	return c
}

// Resolver walks reference graphs and flattens them into final text.
//
// The visited set is scoped to the current recursion path, not the whole
// call: a subprompt reachable via two sibling branches is resolved twice,
// not rejected as a false cycle. Resolution is not memoized; templates are
// small and shallow, and a memo table is the first thing to add if that
// stops being true.
type Resolver struct {
	collection Collection
	visited    map[string]bool
	path       []string
}

// NewResolver creates a resolver over the given collection.
func NewResolver(collection Collection) *Resolver {
	return &Resolver{
		collection: collection,
		visited:    make(map[string]bool),
	}
}

// Resolve flattens a subprompt's order list into final positive/negative
// text. Returns a CircularReferenceError when the current path revisits a
// subprompt. Tokens not present in the collection are skipped: dangling
// references degrade gracefully rather than failing resolution.
func (r *Resolver) Resolve(s *Subprompt) (ResolvedPrompts, error) {
	if r.visited[s.Name] {
		return ResolvedPrompts{}, errors.NewCircularReference(append(r.path, s.Name))
	}

	r.visited[s.Name] = true
	r.path = append(r.path, s.Name)
	defer func() {
		delete(r.visited, s.Name)
		r.path = r.path[:len(r.path)-1]
	}()

	var positiveParts, negativeParts []string

	for _, item := range s.Order {
		switch {
		case item == Attached:
			if text := strings.TrimSpace(s.Positive); text != "" {
				positiveParts = append(positiveParts, text)
			}
			if text := strings.TrimSpace(s.Negative); text != "" {
				negativeParts = append(negativeParts, text)
			}

		default:
			nested, ok := r.collection[item]
			if !ok {
				continue
			}
			result, err := r.Resolve(nested)
			if err != nil {
				return ResolvedPrompts{}, err
			}
			if text := strings.TrimSpace(result.Positive); text != "" {
				positiveParts = append(positiveParts, text)
			}
			if text := strings.TrimSpace(result.Negative); text != "" {
				negativeParts = append(negativeParts, text)
			}
		}
	}

	return ResolvedPrompts{
		Positive: joinFragments(positiveParts),
		Negative: joinFragments(negativeParts),
	}, nil
}

// joinFragments joins non-empty fragments with ", " after stripping each
// fragment's own leading/trailing commas and whitespace.
func joinFragments(parts []string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := trimFragment(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ", ")
}

// ResolveNested is the convenience form for one-shot resolution.
func (s *Subprompt) ResolveNested(collection Collection) (ResolvedPrompts, error) {
	return NewResolver(collection).Resolve(s)
}

// ResolveAll resolves every subprompt in the collection. Each entry gets a
// fresh path-scoped resolver so one cycle does not poison unrelated entries.
func ResolveAll(collection Collection) (map[string]ResolvedPrompts, error) {
	results := make(map[string]ResolvedPrompts, len(collection))
	for _, s := range collection {
		if _, done := results[s.Name]; done {
			continue
		}
		resolved, err := NewResolver(collection).Resolve(s)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %q", s.Name)
		}
		results[s.Name] = resolved
	}
	return results, nil
}
