package folder

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/promptloom/promptloom/errors"
)

func mustNew(t *testing.T, p Params) *Folder {
	t.Helper()
	f, err := New(p)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", p.Name, err)
	}
	return f
}

func TestNew_Defaults(t *testing.T) {
	f := mustNew(t, Params{Name: "  characters  "})

	if f.Name != "characters" {
		t.Errorf("expected trimmed name, got %q", f.Name)
	}
	if _, err := uuid.Parse(f.ID); err != nil {
		t.Errorf("generated id must be a valid UUID: %v", err)
	}
	if f.ParentID != "" {
		t.Errorf("expected root folder, got parent %q", f.ParentID)
	}
	if f.Created == "" || f.Updated == "" {
		t.Error("expected timestamps to be set")
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Params{Name: "  "}); !errors.IsValidationError(err) {
		t.Errorf("blank name: expected validation error, got %v", err)
	}
	if _, err := New(Params{Name: "x", ID: "not-a-uuid"}); !errors.IsValidationError(err) {
		t.Errorf("bad id: expected validation error, got %v", err)
	}
	if _, err := New(Params{Name: "x", ParentID: "not-a-uuid"}); !errors.IsValidationError(err) {
		t.Errorf("bad parent id: expected validation error, got %v", err)
	}
}

func TestRoundTrip_PreservesMetadata(t *testing.T) {
	original := mustNew(t, Params{
		Name:     "assets",
		Metadata: map[string]interface{}{"color": "blue"},
	})

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var restored Folder
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if restored.ID != original.ID || restored.Name != original.Name {
		t.Error("round-trip changed identity fields")
	}
	if restored.Metadata["color"] != "blue" {
		t.Errorf("metadata lost in round-trip: %v", restored.Metadata)
	}
}

func TestToMap_RootParentIsNull(t *testing.T) {
	f := mustNew(t, Params{Name: "root-level"})
	if v, present := f.ToMap()["parent_id"]; !present || v != nil {
		t.Errorf("root folder parent_id must serialize as null, got %v", v)
	}
}

// buildTree creates root -> child -> grandchild.
func buildTree(t *testing.T) (root, child, grandchild *Folder, all []*Folder) {
	t.Helper()
	root = mustNew(t, Params{Name: "project"})
	child = mustNew(t, Params{Name: "assets", ParentID: root.ID})
	grandchild = mustNew(t, Params{Name: "textures", ParentID: child.ID})
	return root, child, grandchild, []*Folder{root, child, grandchild}
}

func TestPath(t *testing.T) {
	root, child, grandchild, all := buildTree(t)
	lookup := BuildHierarchy(all)

	if got := grandchild.Path(lookup); got != "project/assets/textures" {
		t.Errorf("expected full path, got %q", got)
	}
	if got := child.Path(lookup); got != "project/assets" {
		t.Errorf("expected 'project/assets', got %q", got)
	}
	if got := root.Path(nil); got != "project" {
		t.Errorf("nil lookup should fall back to name, got %q", got)
	}
}

func TestChildrenAndDescendants(t *testing.T) {
	root, child, grandchild, all := buildTree(t)

	children := root.Children(all)
	if len(children) != 1 || children[0].ID != child.ID {
		t.Errorf("unexpected children: %v", children)
	}

	descendants := root.Descendants(all)
	if len(descendants) != 2 {
		t.Fatalf("expected 2 descendants, got %d", len(descendants))
	}
	if descendants[0].ID != child.ID || descendants[1].ID != grandchild.ID {
		t.Errorf("unexpected descendant order: %v, %v", descendants[0].Name, descendants[1].Name)
	}
}

func TestChildren_SortedCaseInsensitive(t *testing.T) {
	root := mustNew(t, Params{Name: "root"})
	b := mustNew(t, Params{Name: "Banana", ParentID: root.ID})
	a := mustNew(t, Params{Name: "apple", ParentID: root.ID})
	all := []*Folder{root, b, a}

	children := root.Children(all)
	if children[0].Name != "apple" || children[1].Name != "Banana" {
		t.Errorf("expected case-insensitive name order, got %v, %v",
			children[0].Name, children[1].Name)
	}
}

func TestIsAncestorOf(t *testing.T) {
	root, child, grandchild, all := buildTree(t)

	if !root.IsAncestorOf(grandchild, all) {
		t.Error("root should be ancestor of grandchild")
	}
	if !child.IsAncestorOf(grandchild, all) {
		t.Error("child should be ancestor of grandchild")
	}
	if grandchild.IsAncestorOf(root, all) {
		t.Error("grandchild is not an ancestor of root")
	}
	if root.IsAncestorOf(root, all) {
		t.Error("a folder is not its own ancestor")
	}
}

func TestCanMoveTo(t *testing.T) {
	root, child, grandchild, all := buildTree(t)
	other := mustNew(t, Params{Name: "other"})
	all = append(all, other)

	if !child.CanMoveTo("", all) {
		t.Error("moving to root must always be allowed")
	}
	if !child.CanMoveTo(other.ID, all) {
		t.Error("moving under an unrelated folder must be allowed")
	}
	if child.CanMoveTo(child.ID, all) {
		t.Error("a folder cannot be its own parent")
	}
	if root.CanMoveTo(grandchild.ID, all) {
		t.Error("moving under a descendant would create a cycle")
	}
	if child.CanMoveTo(uuid.NewString(), all) {
		t.Error("moving under a non-existent folder must be rejected")
	}
}

func TestFromPath(t *testing.T) {
	root := mustNew(t, Params{Name: "project"})
	byPath := map[string]*Folder{"project": root}

	f, err := FromPath("project/assets", byPath)
	if err != nil {
		t.Fatalf("FromPath failed: %v", err)
	}
	if f.Name != "assets" {
		t.Errorf("expected leaf name, got %q", f.Name)
	}
	if f.ParentID != root.ID {
		t.Errorf("expected parent resolved through hierarchy, got %q", f.ParentID)
	}
	if f.Metadata["path"] != "project/assets" {
		t.Errorf("original path should be kept in metadata, got %v", f.Metadata)
	}

	orphan, err := FromPath("standalone", nil)
	if err != nil {
		t.Fatalf("FromPath failed: %v", err)
	}
	if orphan.ParentID != "" {
		t.Errorf("single-segment path should be a root folder, got parent %q", orphan.ParentID)
	}

	if _, err := FromPath("  ", nil); !errors.IsValidationError(err) {
		t.Errorf("blank path: expected validation error, got %v", err)
	}
}

func TestValidateStructure(t *testing.T) {
	root, _, _, all := buildTree(t)

	if problems := ValidateStructure(all); len(problems) != 0 {
		t.Fatalf("clean tree should validate, got %v", problems)
	}

	dup := mustNew(t, Params{Name: "Assets", ParentID: root.ID})
	orphan := mustNew(t, Params{Name: "lost", ParentID: uuid.NewString()})
	problems := ValidateStructure(append(all, dup, orphan))

	var haveDup, haveOrphan bool
	for _, p := range problems {
		if strings.Contains(p, "duplicate folder name 'assets'") {
			haveDup = true
		}
		if strings.Contains(p, "non-existent parent") {
			haveOrphan = true
		}
	}
	if !haveDup {
		t.Errorf("expected case-insensitive duplicate name problem, got %v", problems)
	}
	if !haveOrphan {
		t.Errorf("expected orphaned parent problem, got %v", problems)
	}
}

func TestValidateStructure_ParentCycle(t *testing.T) {
	a := mustNew(t, Params{Name: "a"})
	b := mustNew(t, Params{Name: "b", ParentID: a.ID})
	a.ParentID = b.ID

	problems := ValidateStructure([]*Folder{a, b})
	var haveCycle bool
	for _, p := range problems {
		if strings.Contains(p, "circular reference") {
			haveCycle = true
		}
	}
	if !haveCycle {
		t.Errorf("expected cycle problem, got %v", problems)
	}
}
