package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/subprompt"
)

// HandleSubprompts serves the collection endpoint (GET list, POST create).
func (s *Server) HandleSubprompts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSubprompts(w, r)
	case http.MethodPost:
		s.createSubprompt(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleSubprompt serves a single subprompt (GET/PUT/DELETE
// /api/subprompts/{id}).
func (s *Server) HandleSubprompt(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/subprompts/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing subprompt id")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		s.getSubprompt(w, r, id)
	case http.MethodPut:
		s.updateSubprompt(w, r, id)
	case http.MethodDelete:
		s.deleteSubprompt(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listSubprompts(w http.ResponseWriter, r *http.Request) {
	subprompts, err := s.store.LoadAllSubprompts()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sort.Slice(subprompts, func(i, j int) bool {
		if subprompts[i].FolderPath != subprompts[j].FolderPath {
			return subprompts[i].FolderPath < subprompts[j].FolderPath
		}
		return strings.ToLower(subprompts[i].Name) < strings.ToLower(subprompts[j].Name)
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subprompts": subprompts,
		"count":      len(subprompts),
	})
}

func (s *Server) getSubprompt(w http.ResponseWriter, r *http.Request, id string) {
	sp, err := s.store.LoadSubprompt(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) createSubprompt(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := readJSON(w, r, &body); err != nil {
		return
	}

	sp, err := subprompt.FromMap(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.checkSaveable(sp, ""); err != nil {
		writeStoreError(w, err)
		return
	}

	if err := s.store.SaveSubprompt(sp); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Subprompt created",
		"subprompt_id", shortID(sp.ID),
		"name", sp.Name)
	s.Broadcast(&ChangeEvent{Type: EventSubpromptSaved, ID: sp.ID, Name: sp.Name})
	writeJSON(w, http.StatusCreated, sp)
}

func (s *Server) updateSubprompt(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.store.LoadSubprompt(id); err != nil {
		writeStoreError(w, err)
		return
	}

	var body map[string]interface{}
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	body["id"] = id

	sp, err := subprompt.FromMap(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.checkSaveable(sp, id); err != nil {
		writeStoreError(w, err)
		return
	}

	if err := s.store.SaveSubprompt(sp); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Subprompt updated",
		"subprompt_id", shortID(sp.ID),
		"name", sp.Name)
	s.Broadcast(&ChangeEvent{Type: EventSubpromptSaved, ID: sp.ID, Name: sp.Name})
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) deleteSubprompt(w http.ResponseWriter, r *http.Request, id string) {
	found, err := s.store.DeleteSubprompt(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Subprompt not found: "+id)
		return
	}

	s.logger.Infow("Subprompt deleted", "subprompt_id", shortID(id))
	s.Broadcast(&ChangeEvent{Type: EventSubpromptDeleted, ID: id})
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Subprompt deleted",
		"id":      id,
	})
}

// checkSaveable rejects saves that would corrupt the collection: a
// duplicate name within the same folder, or an order that introduces a
// circular reference. excludeID skips the record being updated.
func (s *Server) checkSaveable(sp *subprompt.Subprompt, excludeID string) error {
	existing, err := s.store.LoadAllSubprompts()
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.ID == excludeID || other.ID == sp.ID {
			continue
		}
		if other.Name == sp.Name && other.FolderPath == sp.FolderPath {
			return errors.Wrapf(errors.ErrConflict,
				"subprompt %q already exists in folder %q", sp.Name, sp.FolderPath)
		}
	}

	// Resolve against the collection as it would look after the save
	merged := make([]*subprompt.Subprompt, 0, len(existing)+1)
	for _, other := range existing {
		if other.ID == sp.ID || (excludeID != "" && other.ID == excludeID) {
			continue
		}
		merged = append(merged, other)
	}
	merged = append(merged, sp)

	collection := subprompt.NewCollection(merged)
	if _, err := sp.ResolveNested(collection); err != nil {
		return err
	}
	return nil
}

// HandleDropdown serves a flat list of subprompts for UI pickers.
func (s *Server) HandleDropdown(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	subprompts, err := s.store.LoadAllSubprompts()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	type entry struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		FolderPath string `json:"folder_path,omitempty"`
		Display    string `json:"display"`
	}

	entries := make([]entry, 0, len(subprompts))
	for _, sp := range subprompts {
		display := sp.Name
		if sp.FolderPath != "" {
			display = sp.FolderPath + "/" + sp.Name
		}
		entries = append(entries, entry{
			ID:         sp.ID,
			Name:       sp.Name,
			FolderPath: sp.FolderPath,
			Display:    display,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Display) < strings.ToLower(entries[j].Display)
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// resolveRequest selects a stored subprompt by id or name, or carries an
// inline definition to preview before saving.
type resolveRequest struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Subprompt map[string]interface{} `json:"subprompt,omitempty"`
}

// HandleResolve previews the fully resolved prompts for a subprompt
// without persisting anything.
func (s *Server) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req resolveRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	all, err := s.store.LoadAllSubprompts()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	collection := subprompt.NewCollection(all)

	var target *subprompt.Subprompt
	switch {
	case req.Subprompt != nil:
		target, err = subprompt.FromMap(req.Subprompt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	case req.ID != "":
		target = collection[req.ID]
	case req.Name != "":
		target = collection[req.Name]
	default:
		writeError(w, http.StatusBadRequest, "Request must name a subprompt by id, name, or inline definition")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "Subprompt not found")
		return
	}

	resolved, err := target.ResolveNested(collection)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       target.ID,
		"name":     target.Name,
		"positive": resolved.Positive,
		"negative": resolved.Negative,
	})
}
