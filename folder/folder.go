// Package folder models the hierarchical organization of subprompts.
//
// Folders are identified by immutable UUIDs with parent links, so renames
// and moves never invalidate subprompt references. Path strings are a
// derived, legacy view of the hierarchy.
package folder

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptloom/promptloom/errors"
)

// Folder is one node in the hierarchy. ParentID is empty for roots.
type Folder struct {
	ID       string
	Name     string
	ParentID string
	Created  string
	Updated  string
	Metadata map[string]interface{}
}

// Params carries the constructor inputs. Only Name is required.
type Params struct {
	ID       string
	Name     string
	ParentID string
	Created  string
	Updated  string
	Metadata map[string]interface{}
}

// New constructs a validated Folder. A missing id gets a fresh UUID; both
// id and parent id must parse as UUIDs.
func New(p Params) (*Folder, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errors.NewValidationError("folder name cannot be empty")
	}

	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewValidationError("invalid UUID format for folder id: %v", err)
	}

	parentID := strings.TrimSpace(p.ParentID)
	if parentID != "" {
		if _, err := uuid.Parse(parentID); err != nil {
			return nil, errors.NewValidationError("invalid UUID format for parent id: %v", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	created := p.Created
	if created == "" {
		created = now
	}
	updated := p.Updated
	if updated == "" {
		updated = now
	}

	f := &Folder{
		ID:       id,
		Name:     name,
		ParentID: parentID,
		Created:  created,
		Updated:  updated,
		Metadata: map[string]interface{}{},
	}
	for k, v := range p.Metadata {
		f.Metadata[k] = v
	}
	return f, nil
}

// folderFields are the canonical document keys; everything else is metadata.
var folderFields = map[string]bool{
	"id": true, "name": true, "parent_id": true, "created": true, "updated": true,
}

// FromMap builds a Folder from loosely-typed document data. Unknown keys
// are preserved as metadata.
func FromMap(data map[string]interface{}) (*Folder, error) {
	if len(data) == 0 {
		return nil, errors.NewValidationError("folder data cannot be empty")
	}

	p := Params{Metadata: map[string]interface{}{}}
	for k, v := range data {
		if !folderFields[k] {
			p.Metadata[k] = v
			continue
		}
		s, _ := v.(string)
		switch k {
		case "id":
			p.ID = s
		case "name":
			p.Name = s
		case "parent_id":
			p.ParentID = s
		case "created":
			p.Created = s
		case "updated":
			p.Updated = s
		}
	}
	return New(p)
}

// ToMap serializes to the canonical storage shape. A root folder's
// parent_id is emitted as null, matching existing documents.
func (f *Folder) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"id":      f.ID,
		"name":    f.Name,
		"created": f.Created,
		"updated": f.Updated,
	}
	if f.ParentID != "" {
		result["parent_id"] = f.ParentID
	} else {
		result["parent_id"] = nil
	}
	for k, v := range f.Metadata {
		if _, taken := result[k]; !taken {
			result[k] = v
		}
	}
	return result
}

// MarshalJSON emits the canonical document shape.
func (f *Folder) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.ToMap())
}

// UnmarshalJSON decodes the canonical document shape.
func (f *Folder) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromMap(raw)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}

// Clone returns a deep copy.
func (f *Folder) Clone() *Folder {
	c := *f
	c.Metadata = make(map[string]interface{}, len(f.Metadata))
	for k, v := range f.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// FromPath creates a folder from a legacy slash-separated path. When a
// hierarchy keyed by path is given, the parent link is resolved through it.
// The original path is kept in metadata for migration.
func FromPath(path string, byPath map[string]*Folder) (*Folder, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.NewValidationError("path must be a non-empty string")
	}

	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]

	parentID := ""
	if len(parts) > 1 && byPath != nil {
		if parent, ok := byPath[strings.Join(parts[:len(parts)-1], "/")]; ok {
			parentID = parent.ID
		}
	}

	return New(Params{
		Name:     name,
		ParentID: parentID,
		Metadata: map[string]interface{}{"path": path},
	})
}

// Path derives the slash-separated path by walking parent links. Without a
// lookup the folder's own name is the best available answer. A visited set
// guards against damaged hierarchies with parent cycles.
func (f *Folder) Path(lookup map[string]*Folder) string {
	if len(lookup) == 0 {
		return f.Name
	}

	var parts []string
	visited := make(map[string]bool)
	current := f
	for current != nil && !visited[current.ID] {
		visited[current.ID] = true
		parts = append(parts, current.Name)
		if current.ParentID == "" {
			break
		}
		current = lookup[current.ParentID]
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Children returns direct children sorted by case-insensitive name.
func (f *Folder) Children(all []*Folder) []*Folder {
	var children []*Folder
	for _, other := range all {
		if other.ParentID == f.ID {
			children = append(children, other)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
	return children
}

// Descendants returns every folder below this one. A visited set guards
// against parent cycles in damaged data.
func (f *Folder) Descendants(all []*Folder) []*Folder {
	var descendants []*Folder
	visited := make(map[string]bool)

	var collect func(parentID string)
	collect = func(parentID string) {
		if visited[parentID] {
			return
		}
		visited[parentID] = true
		for _, other := range all {
			if other.ParentID == parentID {
				descendants = append(descendants, other)
				collect(other.ID)
			}
		}
	}

	collect(f.ID)
	return descendants
}

// IsAncestorOf reports whether this folder appears in other's parent chain.
func (f *Folder) IsAncestorOf(other *Folder, all []*Folder) bool {
	if other == nil || other.ParentID == "" {
		return false
	}

	lookup := BuildHierarchy(all)
	visited := make(map[string]bool)
	current := other
	for current != nil && current.ParentID != "" && !visited[current.ID] {
		visited[current.ID] = true
		if current.ParentID == f.ID {
			return true
		}
		current = lookup[current.ParentID]
	}
	return false
}

// CanMoveTo reports whether reparenting under newParentID keeps the
// hierarchy acyclic. Moving to root (empty id) is always allowed; moving
// under itself or any of its descendants is not.
func (f *Folder) CanMoveTo(newParentID string, all []*Folder) bool {
	if newParentID == "" {
		return true
	}
	if newParentID == f.ID {
		return false
	}

	var target *Folder
	for _, other := range all {
		if other.ID == newParentID {
			target = other
			break
		}
	}
	if target == nil {
		return false
	}
	return !f.IsAncestorOf(target, all)
}

// Touch refreshes the updated timestamp.
func (f *Folder) Touch() {
	f.Updated = time.Now().UTC().Format(time.RFC3339)
}

// BuildHierarchy indexes folders by id.
func BuildHierarchy(folders []*Folder) map[string]*Folder {
	lookup := make(map[string]*Folder, len(folders))
	for _, f := range folders {
		lookup[f.ID] = f
	}
	return lookup
}

// RootFolders returns folders without a parent.
func RootFolders(folders []*Folder) []*Folder {
	var roots []*Folder
	for _, f := range folders {
		if f.ParentID == "" {
			roots = append(roots, f)
		}
	}
	return roots
}

// ValidateStructure checks a set of folders for duplicate sibling names,
// orphaned parent links, and parent-chain cycles. Returns one message per
// problem found.
func ValidateStructure(folders []*Folder) []string {
	var problems []string
	lookup := BuildHierarchy(folders)

	siblings := make(map[string][]*Folder)
	for _, f := range folders {
		key := f.ParentID
		siblings[key] = append(siblings[key], f)
	}
	parents := make([]string, 0, len(siblings))
	for parentID := range siblings {
		parents = append(parents, parentID)
	}
	sort.Strings(parents)
	for _, parentID := range parents {
		counts := make(map[string]int)
		for _, child := range siblings[parentID] {
			counts[strings.ToLower(child.Name)]++
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if counts[name] > 1 {
				parentName := "root"
				if parent, ok := lookup[parentID]; ok {
					parentName = parent.Name
				}
				problems = append(problems,
					"duplicate folder name '"+name+"' in parent '"+parentName+"'")
			}
		}
	}

	for _, f := range folders {
		if f.ParentID != "" {
			if _, ok := lookup[f.ParentID]; !ok {
				problems = append(problems,
					"folder '"+f.Name+"' has non-existent parent id: "+f.ParentID)
			}
		}
	}

	for _, f := range folders {
		visited := make(map[string]bool)
		current := f
		for current != nil && current.ParentID != "" && !visited[current.ID] {
			visited[current.ID] = true
			current = lookup[current.ParentID]
		}
		if current != nil && visited[current.ID] {
			problems = append(problems,
				"circular reference detected in folder hierarchy at '"+f.Name+"'")
		}
	}

	return problems
}
