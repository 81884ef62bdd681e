package storage

import (
	"testing"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/folder"
	"github.com/promptloom/promptloom/subprompt"
)

func newFolder(t *testing.T, p folder.Params) *folder.Folder {
	t.Helper()
	f, err := folder.New(p)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", p.Name, err)
	}
	return f
}

func TestSaveAndLoadFolder(t *testing.T) {
	store := newTestStore(t)
	f := newFolder(t, folder.Params{Name: "characters"})

	if err := store.SaveFolder(f); err != nil {
		t.Fatalf("SaveFolder failed: %v", err)
	}

	loaded, err := store.LoadFolderByID(f.ID)
	if err != nil {
		t.Fatalf("LoadFolderByID failed: %v", err)
	}
	if loaded.Name != "characters" {
		t.Errorf("unexpected folder: %+v", loaded)
	}
}

func TestLoadFolderByID_Invalid(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"", "null", "undefined"} {
		if _, err := store.LoadFolderByID(id); !errors.IsValidationError(err) {
			t.Errorf("id %q: expected validation error, got %v", id, err)
		}
	}
	if _, err := store.LoadFolderByID("00000000-0000-0000-0000-000000000000"); !errors.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestUpdateFolder(t *testing.T) {
	store := newTestStore(t)
	f := newFolder(t, folder.Params{Name: "old-name"})
	if err := store.SaveFolder(f); err != nil {
		t.Fatalf("SaveFolder failed: %v", err)
	}

	renamed := f.Clone()
	renamed.Name = "new-name"
	found, err := store.UpdateFolder(renamed)
	if err != nil {
		t.Fatalf("UpdateFolder failed: %v", err)
	}
	if !found {
		t.Fatal("expected folder to be found")
	}

	loaded, err := store.LoadFolderByID(f.ID)
	if err != nil {
		t.Fatalf("LoadFolderByID failed: %v", err)
	}
	if loaded.Name != "new-name" {
		t.Errorf("rename not persisted: %+v", loaded)
	}

	unknown := newFolder(t, folder.Params{Name: "ghost"})
	found, err = store.UpdateFolder(unknown)
	if err != nil {
		t.Fatalf("UpdateFolder failed: %v", err)
	}
	if found {
		t.Error("expected unknown folder to report not found")
	}
}

func TestGetFolderByPath(t *testing.T) {
	store := newTestStore(t)
	root := newFolder(t, folder.Params{Name: "project"})
	child := newFolder(t, folder.Params{Name: "assets", ParentID: root.ID})
	if err := store.SaveFolder(root); err != nil {
		t.Fatalf("SaveFolder failed: %v", err)
	}
	if err := store.SaveFolder(child); err != nil {
		t.Fatalf("SaveFolder failed: %v", err)
	}

	found, err := store.GetFolderByPath("project/assets")
	if err != nil {
		t.Fatalf("GetFolderByPath failed: %v", err)
	}
	if found.ID != child.ID {
		t.Errorf("expected child folder, got %+v", found)
	}

	if _, err := store.GetFolderByPath("no/such/path"); !errors.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestEnsureFolderExists(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.EnsureFolderExists("scenes")
	if err != nil {
		t.Fatalf("EnsureFolderExists failed: %v", err)
	}
	if !ok {
		t.Fatal("expected folder to be created")
	}
	if _, err := store.GetFolderByPath("scenes"); err != nil {
		t.Fatalf("created folder not found by path: %v", err)
	}

	// Second call is a no-op
	ok, err = store.EnsureFolderExists("scenes")
	if err != nil || !ok {
		t.Fatalf("idempotent ensure failed: ok=%v err=%v", ok, err)
	}

	// UUID form checks existence without creating
	f := newFolder(t, folder.Params{Name: "by-uuid"})
	ok, err = store.EnsureFolderExists(f.ID)
	if err != nil {
		t.Fatalf("EnsureFolderExists failed: %v", err)
	}
	if ok {
		t.Error("unsaved UUID must not report existing")
	}
	if err := store.SaveFolder(f); err != nil {
		t.Fatalf("SaveFolder failed: %v", err)
	}
	ok, err = store.EnsureFolderExists(f.ID)
	if err != nil || !ok {
		t.Fatalf("saved UUID should exist: ok=%v err=%v", ok, err)
	}
}

func TestLoadAllFolders_SynthesizesFromSubpromptPaths(t *testing.T) {
	store := newTestStore(t)
	sp := newSubprompt(t, subprompt.Params{Name: "mario", FolderPath: "characters"})
	if err := store.SaveSubprompt(sp); err != nil {
		t.Fatalf("SaveSubprompt failed: %v", err)
	}

	folders, err := store.LoadAllFolders()
	if err != nil {
		t.Fatalf("LoadAllFolders failed: %v", err)
	}
	lookup := folder.BuildHierarchy(folders)
	var found bool
	for _, f := range folders {
		if f.Path(lookup) == "characters" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected folder for subprompt path, got %d folders", len(folders))
	}
}

func TestDeleteFolderCascade(t *testing.T) {
	store := newTestStore(t)

	root := newFolder(t, folder.Params{Name: "project"})
	child := newFolder(t, folder.Params{Name: "assets", ParentID: root.ID})
	other := newFolder(t, folder.Params{Name: "keep"})
	for _, f := range []*folder.Folder{root, child, other} {
		if err := store.SaveFolder(f); err != nil {
			t.Fatalf("SaveFolder failed: %v", err)
		}
	}

	inRoot := newSubprompt(t, subprompt.Params{Name: "in-root", FolderID: root.ID})
	inChild := newSubprompt(t, subprompt.Params{Name: "in-child", FolderID: child.ID})
	outside := newSubprompt(t, subprompt.Params{
		Name:  "outside",
		Order: []string{"in-root", subprompt.Attached},
	})
	if err := store.SaveAllSubprompts([]*subprompt.Subprompt{inRoot, inChild, outside}); err != nil {
		t.Fatalf("SaveAllSubprompts failed: %v", err)
	}

	result, err := store.DeleteFolderCascade(root.ID, true)
	if err != nil {
		t.Fatalf("DeleteFolderCascade failed: %v", err)
	}
	if result.DeletedSubprompts != 2 {
		t.Errorf("expected 2 deleted subprompts, got %d", result.DeletedSubprompts)
	}
	if result.DeletedFolders != 2 {
		t.Errorf("expected 2 deleted folders, got %d", result.DeletedFolders)
	}

	remaining, err := store.LoadAllSubprompts()
	if err != nil {
		t.Fatalf("LoadAllSubprompts failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Name != "outside" {
		t.Fatalf("unexpected survivors: %v", names(remaining))
	}
	// References to deleted subprompts are stripped from survivors
	for _, item := range remaining[0].Order {
		if item == "in-root" || item == inRoot.ID {
			t.Errorf("dangling reference survived cascade: %v", remaining[0].Order)
		}
	}

	folders, err := store.LoadAllFolders()
	if err != nil {
		t.Fatalf("LoadAllFolders failed: %v", err)
	}
	for _, f := range folders {
		if f.ID == root.ID || f.ID == child.ID {
			t.Errorf("deleted folder still present: %s", f.Name)
		}
	}
	if _, err := store.LoadFolderByID(other.ID); err != nil {
		t.Errorf("unrelated folder lost: %v", err)
	}
}

func TestDeleteFolderCascade_KeepSubprompts(t *testing.T) {
	store := newTestStore(t)
	f := newFolder(t, folder.Params{Name: "docs"})
	if err := store.SaveFolder(f); err != nil {
		t.Fatalf("SaveFolder failed: %v", err)
	}
	sp := newSubprompt(t, subprompt.Params{Name: "inside", FolderID: f.ID})
	if err := store.SaveSubprompt(sp); err != nil {
		t.Fatalf("SaveSubprompt failed: %v", err)
	}

	result, err := store.DeleteFolderCascade(f.ID, false)
	if err != nil {
		t.Fatalf("DeleteFolderCascade failed: %v", err)
	}
	if result.DeletedSubprompts != 0 {
		t.Errorf("expected no subprompts deleted, got %d", result.DeletedSubprompts)
	}
	if _, err := store.LoadSubprompt(sp.ID); err != nil {
		t.Errorf("subprompt should survive folder-only delete: %v", err)
	}
}

func TestDeleteFolderCascade_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.DeleteFolderCascade("00000000-0000-0000-0000-000000000000", true); !errors.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}
