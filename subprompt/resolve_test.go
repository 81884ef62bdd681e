package subprompt

import (
	"reflect"
	"strings"
	"testing"

	"github.com/promptloom/promptloom/errors"
)

func mustNew(t *testing.T, p Params) *Subprompt {
	t.Helper()
	s, err := New(p)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", p.Name, err)
	}
	return s
}

func TestResolve_NestedComposition(t *testing.T) {
	bg := mustNew(t, Params{Name: "bg", Positive: "forest"})
	main := mustNew(t, Params{
		Name:     "main",
		Positive: "knight",
		Order:    []string{"bg", Attached},
	})
	collection := NewCollection([]*Subprompt{bg, main})

	result, err := main.ResolveNested(collection)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Positive != "forest, knight" {
		t.Errorf("expected 'forest, knight', got %q", result.Positive)
	}
	if result.Negative != "" {
		t.Errorf("expected empty negative, got %q", result.Negative)
	}
}

func TestResolve_AttachedPosition(t *testing.T) {
	bg := mustNew(t, Params{Name: "bg", Positive: "forest"})
	main := mustNew(t, Params{
		Name:     "main",
		Positive: "knight",
		Order:    []string{Attached, "bg"},
	})
	collection := NewCollection([]*Subprompt{bg, main})

	result, err := main.ResolveNested(collection)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Positive != "knight, forest" {
		t.Errorf("attached position must control splice order, got %q", result.Positive)
	}
}

func TestResolve_DanglingReferenceSkipped(t *testing.T) {
	main := mustNew(t, Params{
		Name:     "main",
		Positive: "knight",
		Order:    []string{"missing", Attached},
	})
	collection := NewCollection([]*Subprompt{main})

	result, err := main.ResolveNested(collection)
	if err != nil {
		t.Fatalf("dangling reference must not fail resolution: %v", err)
	}
	if result.Positive != "knight" {
		t.Errorf("expected 'knight', got %q", result.Positive)
	}
}

func TestResolve_ByIDOrName(t *testing.T) {
	bg := mustNew(t, Params{ID: "id-bg", Name: "bg", Positive: "forest"})
	byID := mustNew(t, Params{Name: "by-id", Positive: "x", Order: []string{"id-bg", Attached}})
	byName := mustNew(t, Params{Name: "by-name", Positive: "x", Order: []string{"bg", Attached}})
	collection := NewCollection([]*Subprompt{bg, byID, byName})

	for _, s := range []*Subprompt{byID, byName} {
		result, err := s.ResolveNested(collection)
		if err != nil {
			t.Fatalf("Resolve %q failed: %v", s.Name, err)
		}
		if result.Positive != "forest, x" {
			t.Errorf("%q: expected 'forest, x', got %q", s.Name, result.Positive)
		}
	}
}

func TestResolve_CycleDetected(t *testing.T) {
	a := mustNew(t, Params{Name: "a", Positive: "a-text", Order: []string{"b", Attached}})
	b := mustNew(t, Params{Name: "b", Positive: "b-text", Order: []string{"a", Attached}})
	collection := NewCollection([]*Subprompt{a, b})

	_, err := a.ResolveNested(collection)
	if err == nil {
		t.Fatal("expected circular reference error")
	}
	if !errors.IsCircularReference(err) {
		t.Fatalf("expected CircularReferenceError, got %v", err)
	}
	path := errors.CyclePath(err)
	if !reflect.DeepEqual(path, []string{"a", "b", "a"}) {
		t.Errorf("unexpected cycle path: %v", path)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("error message should show the cycle path, got %q", err.Error())
	}
}

func TestResolve_SelfCycleDetected(t *testing.T) {
	a := mustNew(t, Params{Name: "a", Positive: "text", Order: []string{"a", Attached}})
	collection := NewCollection([]*Subprompt{a})

	_, err := a.ResolveNested(collection)
	if !errors.IsCircularReference(err) {
		t.Fatalf("expected CircularReferenceError, got %v", err)
	}
}

func TestResolve_SiblingPathsNoFalseCycle(t *testing.T) {
	// shared is reached through two independent branches; that is a DAG,
	// not a cycle, and shared's text appears once per branch.
	shared := mustNew(t, Params{Name: "shared", Positive: "common"})
	left := mustNew(t, Params{Name: "left", Positive: "l", Order: []string{"shared", Attached}})
	right := mustNew(t, Params{Name: "right", Positive: "r", Order: []string{"shared", Attached}})
	top := mustNew(t, Params{Name: "top", Order: []string{"left", "right"}})
	collection := NewCollection([]*Subprompt{shared, left, right, top})

	result, err := top.ResolveNested(collection)
	if err != nil {
		t.Fatalf("diamond graph must not be reported as a cycle: %v", err)
	}
	if result.Positive != "common, l, common, r" {
		t.Errorf("expected 'common, l, common, r', got %q", result.Positive)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	bg := mustNew(t, Params{Name: "bg", Positive: "forest"})
	main := mustNew(t, Params{Name: "main", Positive: "knight", Order: []string{"bg", Attached}})
	collection := NewCollection([]*Subprompt{bg, main})

	resolver := NewResolver(collection)
	first, err := resolver.Resolve(main)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	second, err := resolver.Resolve(main)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if first != second {
		t.Errorf("resolution is not idempotent: %v vs %v", first, second)
	}
}

func TestResolve_NegativeTextComposes(t *testing.T) {
	bg := mustNew(t, Params{Name: "bg", Positive: "forest", Negative: "city"})
	main := mustNew(t, Params{
		Name:     "main",
		Positive: "knight",
		Negative: "blurry",
		Order:    []string{"bg", Attached},
	})
	collection := NewCollection([]*Subprompt{bg, main})

	result, err := main.ResolveNested(collection)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Negative != "city, blurry" {
		t.Errorf("expected 'city, blurry', got %q", result.Negative)
	}
}

func TestResolveAll(t *testing.T) {
	bg := mustNew(t, Params{Name: "bg", Positive: "forest"})
	main := mustNew(t, Params{Name: "main", Positive: "knight", Order: []string{"bg", Attached}})
	collection := NewCollection([]*Subprompt{bg, main})

	results, err := ResolveAll(collection)
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["main"].Positive != "forest, knight" {
		t.Errorf("unexpected main resolution: %q", results["main"].Positive)
	}
	if results["bg"].Positive != "forest" {
		t.Errorf("unexpected bg resolution: %q", results["bg"].Positive)
	}
}

func TestResolveAll_CycleFails(t *testing.T) {
	a := mustNew(t, Params{Name: "a", Order: []string{"b"}})
	b := mustNew(t, Params{Name: "b", Order: []string{"a"}})
	collection := NewCollection([]*Subprompt{a, b})

	if _, err := ResolveAll(collection); !errors.IsCircularReference(err) {
		t.Fatalf("expected CircularReferenceError, got %v", err)
	}
}
