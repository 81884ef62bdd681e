package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/folder"
)

// HandleFolders serves the folder collection (GET list, POST create).
func (s *Server) HandleFolders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listFolders(w, r)
	case http.MethodPost:
		s.createFolder(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleFolder serves a single folder (GET/PUT/DELETE /api/folders/{id}).
func (s *Server) HandleFolder(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/folders/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing folder id")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		s.getFolder(w, r, id)
	case http.MethodPut:
		s.updateFolder(w, r, id)
	case http.MethodDelete:
		s.deleteFolder(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// folderView flattens a folder with its derived path for responses.
// Marshalling the folder directly would lose the path, which only
// exists relative to the full hierarchy.
func folderView(f *folder.Folder, lookup map[string]*folder.Folder) map[string]interface{} {
	view := f.ToMap()
	view["path"] = f.Path(lookup)
	return view
}

func (s *Server) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.store.LoadAllFolders()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	lookup := folder.BuildHierarchy(folders)
	views := make([]map[string]interface{}, 0, len(folders))
	for _, f := range folders {
		views = append(views, folderView(f, lookup))
	}
	sort.Slice(views, func(i, j int) bool {
		return strings.ToLower(views[i]["path"].(string)) < strings.ToLower(views[j]["path"].(string))
	})

	problems := folder.ValidateStructure(folders)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"folders":  views,
		"count":    len(views),
		"problems": problems,
	})
}

func (s *Server) getFolder(w http.ResponseWriter, r *http.Request, id string) {
	f, err := s.store.LoadFolderByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	folders, err := s.store.LoadAllFolders()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	lookup := folder.BuildHierarchy(folders)

	writeJSON(w, http.StatusOK, folderView(f, lookup))
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		ParentID string `json:"parent_id"`
	}
	if err := readJSON(w, r, &body); err != nil {
		return
	}

	f, err := folder.New(folder.Params{Name: body.Name, ParentID: body.ParentID})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.checkSiblingName(f); err != nil {
		writeStoreError(w, err)
		return
	}

	if err := s.store.SaveFolder(f); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Folder created",
		"folder_id", shortID(f.ID),
		"name", f.Name)
	s.Broadcast(&ChangeEvent{Type: EventFolderSaved, ID: f.ID, Name: f.Name})
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) updateFolder(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := s.store.LoadFolderByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var body struct {
		Name     *string `json:"name"`
		ParentID *string `json:"parent_id"`
	}
	if err := readJSON(w, r, &body); err != nil {
		return
	}

	updated := existing.Clone()
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Folder name cannot be empty")
			return
		}
		updated.Name = name
	}
	if body.ParentID != nil && *body.ParentID != existing.ParentID {
		folders, err := s.store.LoadAllFolders()
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if !updated.CanMoveTo(*body.ParentID, folders) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Cannot move folder %q under %q", existing.Name, *body.ParentID))
			return
		}
		updated.ParentID = *body.ParentID
	}

	if err := s.checkSiblingName(updated); err != nil {
		writeStoreError(w, err)
		return
	}

	found, err := s.store.UpdateFolder(updated)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Folder not found: "+id)
		return
	}

	s.logger.Infow("Folder updated",
		"folder_id", shortID(id),
		"name", updated.Name)
	s.Broadcast(&ChangeEvent{Type: EventFolderSaved, ID: id, Name: updated.Name})
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request, id string) {
	deleteSubprompts := true
	if v := r.URL.Query().Get("delete_subprompts"); v != "" {
		deleteSubprompts = v == "true" || v == "1"
	}

	result, err := s.store.DeleteFolderCascade(id, deleteSubprompts)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.Broadcast(&ChangeEvent{Type: EventFolderDeleted, ID: id, Name: result.FolderName})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":            fmt.Sprintf("Folder %q deleted", result.FolderName),
		"folder":             result.FolderName,
		"deleted_subprompts": result.DeletedSubprompts,
		"deleted_folders":    result.DeletedFolders,
	})
}

// HandleFolderRename renames a folder addressed by its path. Kept for
// clients that predate folder ids.
func (s *Server) HandleFolderRename(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}

	var body struct {
		OldPath string `json:"old_path"`
		NewName string `json:"new_name"`
	}
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	newName := strings.TrimSpace(body.NewName)
	if body.OldPath == "" || newName == "" {
		writeError(w, http.StatusBadRequest, "old_path and new_name are required")
		return
	}

	f, err := s.store.GetFolderByPath(body.OldPath)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	updated := f.Clone()
	updated.Name = newName
	if err := s.checkSiblingName(updated); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := s.store.UpdateFolder(updated); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Folder renamed",
		"folder_id", shortID(f.ID),
		"old_path", body.OldPath,
		"new_name", newName)
	s.Broadcast(&ChangeEvent{Type: EventFolderSaved, ID: f.ID, Name: newName})
	writeJSON(w, http.StatusOK, updated)
}

// checkSiblingName rejects a folder whose name collides with a sibling,
// case-insensitively.
func (s *Server) checkSiblingName(f *folder.Folder) error {
	folders, err := s.store.LoadAllFolders()
	if err != nil {
		return err
	}
	for _, other := range folders {
		if other.ID == f.ID || other.ParentID != f.ParentID {
			continue
		}
		if strings.EqualFold(other.Name, f.Name) {
			return errors.Wrapf(errors.ErrConflict,
				"folder %q already exists at this level", f.Name)
		}
	}
	return nil
}
