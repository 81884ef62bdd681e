package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/promptloom/promptloom/config"
	ptesting "github.com/promptloom/promptloom/internal/testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := ptesting.CreateTestStore(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8189,
			AllowedOrigins: []string{"http://localhost"},
		},
	}
	return NewServer(store, cfg)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return decoded
}

func createSubprompt(t *testing.T, s *Server, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/subprompts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create subprompt: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)
}

func TestCreateAndListSubprompts(t *testing.T) {
	s := newTestServer(t)

	created := createSubprompt(t, s, map[string]interface{}{
		"name":     "knight",
		"positive": "armored knight",
	})
	if created["id"] == "" {
		t.Fatal("created subprompt has no id")
	}

	rec := doJSON(t, s, http.MethodGet, "/api/subprompts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected 1 subprompt, got %v", body["count"])
	}
}

func TestGetSubprompt_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/subprompts/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateSubprompt_DuplicateNameInFolder(t *testing.T) {
	s := newTestServer(t)

	createSubprompt(t, s, map[string]interface{}{
		"name":        "mario",
		"folder_path": "characters",
	})

	rec := doJSON(t, s, http.MethodPost, "/api/subprompts", map[string]interface{}{
		"name":        "mario",
		"folder_path": "characters",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// Same name in a different folder is fine
	rec = doJSON(t, s, http.MethodPost, "/api/subprompts", map[string]interface{}{
		"name":        "mario",
		"folder_path": "villains",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSubprompt_CycleRejected(t *testing.T) {
	s := newTestServer(t)

	createSubprompt(t, s, map[string]interface{}{
		"name":  "a",
		"order": []string{"b", "attached"},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/subprompts", map[string]interface{}{
		"name":  "b",
		"order": []string{"a", "attached"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for circular reference, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateSubprompt(t *testing.T) {
	s := newTestServer(t)
	created := createSubprompt(t, s, map[string]interface{}{
		"name":     "scene",
		"positive": "old text",
	})
	id := created["id"].(string)

	rec := doJSON(t, s, http.MethodPut, "/api/subprompts/"+id, map[string]interface{}{
		"name":     "scene",
		"positive": "new text",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/subprompts/"+id, nil)
	body := decodeBody(t, rec)
	if body["positive"] != "new text" {
		t.Errorf("update not persisted: %v", body["positive"])
	}

	rec = doJSON(t, s, http.MethodPut, "/api/subprompts/no-such-id", map[string]interface{}{
		"name": "ghost",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestDeleteSubprompt(t *testing.T) {
	s := newTestServer(t)
	created := createSubprompt(t, s, map[string]interface{}{"name": "doomed"})
	id := created["id"].(string)

	rec := doJSON(t, s, http.MethodDelete, "/api/subprompts/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/subprompts/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/subprompts/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for repeated delete, got %d", rec.Code)
	}
}

func TestResolvePreview(t *testing.T) {
	s := newTestServer(t)

	createSubprompt(t, s, map[string]interface{}{
		"name":     "base",
		"positive": "forest",
	})
	created := createSubprompt(t, s, map[string]interface{}{
		"name":     "knight",
		"positive": "armored knight",
		"order":    []string{"base", "attached"},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/subprompts/resolve", map[string]interface{}{
		"id": created["id"],
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["positive"] != "forest, armored knight" {
		t.Errorf("unexpected resolution: %v", body["positive"])
	}
}

func TestResolvePreview_Inline(t *testing.T) {
	s := newTestServer(t)
	createSubprompt(t, s, map[string]interface{}{
		"name":     "base",
		"positive": "forest",
	})

	rec := doJSON(t, s, http.MethodPost, "/api/subprompts/resolve", map[string]interface{}{
		"subprompt": map[string]interface{}{
			"name":     "draft",
			"positive": "knight",
			"order":    []string{"base", "attached"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["positive"] != "forest, knight" {
		t.Errorf("unexpected resolution: %v", body["positive"])
	}
}

func TestDropdown(t *testing.T) {
	s := newTestServer(t)
	createSubprompt(t, s, map[string]interface{}{"name": "zebra"})
	createSubprompt(t, s, map[string]interface{}{"name": "apple", "folder_path": "fruit"})

	rec := doJSON(t, s, http.MethodGet, "/api/subprompts/dropdown", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dropdown: status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	entries := body["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0].(map[string]interface{})
	if first["display"] != "fruit/apple" {
		t.Errorf("entries not sorted by display: %v", first["display"])
	}
}

func createFolder(t *testing.T, s *Server, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/folders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)
}

func TestFolderCRUD(t *testing.T) {
	s := newTestServer(t)

	created := createFolder(t, s, map[string]interface{}{"name": "project"})
	id := created["id"].(string)

	rec := doJSON(t, s, http.MethodGet, "/api/folders/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get folder: status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["path"] != "project" {
		t.Errorf("unexpected path: %v", body["path"])
	}

	rec = doJSON(t, s, http.MethodPut, "/api/folders/"+id, map[string]interface{}{
		"name": "renamed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/folders", nil)
	listBody := decodeBody(t, rec)
	if listBody["count"].(float64) != 1 {
		t.Errorf("expected 1 folder, got %v", listBody["count"])
	}
}

func TestCreateFolder_SiblingConflict(t *testing.T) {
	s := newTestServer(t)
	createFolder(t, s, map[string]interface{}{"name": "Assets"})

	rec := doJSON(t, s, http.MethodPost, "/api/folders", map[string]interface{}{
		"name": "assets",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for case-insensitive sibling, got %d", rec.Code)
	}
}

func TestMoveFolder_IntoDescendantRejected(t *testing.T) {
	s := newTestServer(t)
	parent := createFolder(t, s, map[string]interface{}{"name": "parent"})
	child := createFolder(t, s, map[string]interface{}{
		"name":      "child",
		"parent_id": parent["id"],
	})

	rec := doJSON(t, s, http.MethodPut, "/api/folders/"+parent["id"].(string), map[string]interface{}{
		"parent_id": child["id"],
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 moving folder under its descendant, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteFolderCascadeEndpoint(t *testing.T) {
	s := newTestServer(t)
	created := createFolder(t, s, map[string]interface{}{"name": "doomed"})
	id := created["id"].(string)
	createSubprompt(t, s, map[string]interface{}{
		"name":      "inside",
		"folder_id": id,
	})

	rec := doJSON(t, s, http.MethodDelete, "/api/folders/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cascade delete: status %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["deleted_subprompts"].(float64) != 1 {
		t.Errorf("expected 1 deleted subprompt, got %v", body["deleted_subprompts"])
	}

	// keep-subprompts mode
	kept := createFolder(t, s, map[string]interface{}{"name": "kept"})
	createSubprompt(t, s, map[string]interface{}{
		"name":      "survivor",
		"folder_id": kept["id"],
	})
	rec = doJSON(t, s, http.MethodDelete,
		fmt.Sprintf("/api/folders/%s?delete_subprompts=false", kept["id"]), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cascade delete: status %d", rec.Code)
	}
	body = decodeBody(t, rec)
	if body["deleted_subprompts"].(float64) != 0 {
		t.Errorf("expected 0 deleted subprompts, got %v", body["deleted_subprompts"])
	}
}

func TestFolderRenameByPath(t *testing.T) {
	s := newTestServer(t)
	createFolder(t, s, map[string]interface{}{"name": "oldname"})

	rec := doJSON(t, s, http.MethodPut, "/api/folders/rename", map[string]interface{}{
		"old_path": "oldname",
		"new_name": "newname",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename by path: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPut, "/api/folders/rename", map[string]interface{}{
		"old_path": "oldname",
		"new_name": "whatever",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for stale path, got %d", rec.Code)
	}
}

func TestStorageEndpoints(t *testing.T) {
	s := newTestServer(t)
	createSubprompt(t, s, map[string]interface{}{"name": "persisted"})

	rec := doJSON(t, s, http.MethodPost, "/api/storage/backup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("backup: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/storage/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("info: status %d", rec.Code)
	}
	info := decodeBody(t, rec)
	if info["subprompt_count"].(float64) != 1 {
		t.Errorf("expected 1 subprompt in info, got %v", info["subprompt_count"])
	}

	exportPath := filepath.Join(t.TempDir(), "export.json")
	rec = doJSON(t, s, http.MethodPost, "/api/storage/export", map[string]interface{}{
		"path": exportPath,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/storage/import", map[string]interface{}{
		"path":  exportPath,
		"merge": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/storage/restore", map[string]interface{}{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for restore without backup, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}
