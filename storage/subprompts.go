package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/logger"
	"github.com/promptloom/promptloom/subprompt"
)

// loadSubpromptsLocked materializes the document's subprompt records.
// Records that cannot be promoted even after repair are skipped so one bad
// record never blocks the rest of the collection.
func (s *Store) loadSubpromptsLocked() ([]*subprompt.Subprompt, error) {
	doc, err := s.loadDocumentLocked()
	if err != nil {
		return nil, err
	}

	records, _ := doc["subprompts"].([]interface{})
	subprompts := make([]*subprompt.Subprompt, 0, len(records))
	for _, item := range records {
		record, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		sp, err := subprompt.FromMap(record)
		if err != nil {
			logger.Warnw("Skipping corrupted subprompt record",
				"id", record["id"],
				logger.FieldError, err)
			continue
		}
		subprompts = append(subprompts, sp)
	}
	return subprompts, nil
}

// saveSubpromptsLocked writes the full collection, preserving the
// document's folder entries and registering any folder paths the
// subprompts reference that are not yet recorded.
func (s *Store) saveSubpromptsLocked(subprompts []*subprompt.Subprompt) error {
	doc, err := s.loadDocumentLocked()
	if err != nil {
		return err
	}

	records := make([]interface{}, 0, len(subprompts))
	for _, sp := range subprompts {
		records = append(records, sp.ToMap())
	}
	doc["subprompts"] = records

	folders, _ := doc["folders"].([]interface{})
	known := make(map[string]bool, len(folders))
	for _, entry := range folders {
		switch v := entry.(type) {
		case string:
			known[v] = true
		case map[string]interface{}:
			if path, ok := v["path"].(string); ok && path != "" {
				known[path] = true
			}
		}
	}
	for _, sp := range subprompts {
		path := strings.TrimSpace(sp.FolderPath)
		if path != "" && !known[path] {
			folders = append(folders, path)
			known[path] = true
		}
	}
	doc["folders"] = folders

	return s.writeDocumentLocked(doc)
}

// LoadAllSubprompts returns every subprompt in storage. A missing storage
// file yields an empty collection.
func (s *Store) LoadAllSubprompts() ([]*subprompt.Subprompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSubpromptsLocked()
}

// LoadSubprompt fetches one subprompt by id.
func (s *Store) LoadSubprompt(id string) (*subprompt.Subprompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subprompts, err := s.loadSubpromptsLocked()
	if err != nil {
		return nil, err
	}
	for _, sp := range subprompts {
		if sp.ID == id {
			return sp, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "subprompt %q", id)
}

// SaveAllSubprompts replaces the entire collection.
func (s *Store) SaveAllSubprompts(subprompts []*subprompt.Subprompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSubpromptsLocked(subprompts)
}

// SaveSubprompt inserts or updates one subprompt, keyed by id. The folder
// path it references is created if missing.
func (s *Store) SaveSubprompt(sp *subprompt.Subprompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path := strings.TrimSpace(sp.FolderPath); path != "" {
		if _, err := s.ensureFolderPathLocked(path); err != nil {
			logger.Warnw("Failed to ensure folder exists",
				logger.FieldPath, path,
				logger.FieldError, err)
		}
	}

	subprompts, err := s.loadSubpromptsLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range subprompts {
		if existing.ID == sp.ID {
			subprompts[i] = sp
			replaced = true
			break
		}
	}
	if !replaced {
		subprompts = append(subprompts, sp)
	}

	return s.saveSubpromptsLocked(subprompts)
}

// ListSubpromptIDs returns every stored subprompt id.
func (s *Store) ListSubpromptIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subprompts, err := s.loadSubpromptsLocked()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subprompts))
	for _, sp := range subprompts {
		ids = append(ids, sp.ID)
	}
	return ids, nil
}

// DeleteSubprompt removes a subprompt and strips every reference to it (by
// id or name) from the remaining order lists, in a single atomic write. An
// order list that ends up empty falls back to the attached sentinel so the
// survivor still resolves. Returns false when the id is unknown.
func (s *Store) DeleteSubprompt(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subprompts, err := s.loadSubpromptsLocked()
	if err != nil {
		return false, err
	}

	var deleted *subprompt.Subprompt
	remaining := make([]*subprompt.Subprompt, 0, len(subprompts))
	for _, sp := range subprompts {
		if sp.ID == id {
			deleted = sp
			continue
		}
		remaining = append(remaining, sp)
	}
	if deleted == nil {
		return false, nil
	}

	cleaned := 0
	for _, sp := range remaining {
		if stripReferences(sp, id, deleted.Name) {
			cleaned++
		}
	}

	if err := s.saveSubpromptsLocked(remaining); err != nil {
		return false, errors.Wrapf(err, "cascade deletion failed for subprompt %q", id)
	}

	logger.Infow("Deleted subprompt",
		logger.FieldName, deleted.Name,
		"references_cleaned", cleaned)
	return true, nil
}

// CleanupSubpromptReferences strips references to an already-deleted
// subprompt from all order lists. Returns how many subprompts changed.
// DeleteSubprompt does this inline; this entry point repairs documents
// where references outlived their target.
func (s *Store) CleanupSubpromptReferences(deletedID, deletedName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subprompts, err := s.loadSubpromptsLocked()
	if err != nil {
		return 0, err
	}

	cleaned := 0
	kept := make([]*subprompt.Subprompt, 0, len(subprompts))
	for _, sp := range subprompts {
		if sp.ID == deletedID {
			continue
		}
		if stripReferences(sp, deletedID, deletedName) {
			cleaned++
		}
		kept = append(kept, sp)
	}

	if cleaned > 0 {
		if err := s.saveSubpromptsLocked(kept); err != nil {
			return 0, errors.Wrap(err, "saving after reference cleanup")
		}
		logger.Infow("Reference cleanup completed",
			logger.FieldCount, cleaned)
	}
	return cleaned, nil
}

// stripReferences removes order-list and legacy nested_subprompts entries
// matching the deleted id or name. Reports whether anything changed.
func stripReferences(sp *subprompt.Subprompt, deletedID, deletedName string) bool {
	changed := false

	var order []string
	for _, item := range sp.Order {
		if item != subprompt.Attached && (item == deletedID || (deletedName != "" && item == deletedName)) {
			changed = true
			logger.Infow("Removed reference to deleted subprompt",
				"reference", item,
				logger.FieldSubprompt, sp.Name)
			continue
		}
		order = append(order, item)
	}
	if changed {
		if len(order) == 0 {
			order = []string{subprompt.Attached}
			logger.Warnw("Order became empty, using attached fallback",
				logger.FieldSubprompt, sp.Name)
		}
		sp.Order = order
	}

	if nested, ok := sp.Metadata["nested_subprompts"].([]interface{}); ok {
		var kept []interface{}
		nestedChanged := false
		for _, item := range nested {
			str, isString := item.(string)
			if isString && str != "[Self]" && (str == deletedID || (deletedName != "" && str == deletedName)) {
				nestedChanged = true
				continue
			}
			kept = append(kept, item)
		}
		if nestedChanged {
			if len(kept) == 0 {
				kept = []interface{}{"[Self]"}
			}
			sp.Metadata["nested_subprompts"] = kept
			changed = true
		}
	}

	return changed
}

// ExportSubprompts writes subprompts to an external file for sharing. With
// ids, only those subprompts are exported; missing ids are logged and
// skipped.
func (s *Store) ExportSubprompts(exportPath string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subprompts, err := s.loadSubpromptsLocked()
	if err != nil {
		return err
	}

	selected := subprompts
	if ids != nil {
		byID := make(map[string]*subprompt.Subprompt, len(subprompts))
		for _, sp := range subprompts {
			byID[sp.ID] = sp
		}
		selected = make([]*subprompt.Subprompt, 0, len(ids))
		var missing []string
		for _, id := range ids {
			if sp, ok := byID[id]; ok {
				selected = append(selected, sp)
			} else {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			logger.Warnw("Missing subprompts for export",
				"ids", missing)
		}
	}

	records := make([]interface{}, 0, len(selected))
	for _, sp := range selected {
		records = append(records, sp.ToMap())
	}

	now := time.Now().UTC().Format(time.RFC3339)
	doc := map[string]interface{}{
		"version":    storageVersion,
		"created":    now,
		"updated":    now,
		"exported":   now,
		"source":     "promptloom",
		"subprompts": records,
		"folders":    []interface{}{},
	}

	if dir := filepath.Dir(exportPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.WrapStorage(err, "creating export directory")
		}
	}
	if err := s.atomicWrite(exportPath, doc); err != nil {
		return errors.Wrap(err, "export failed")
	}

	logger.Infow("Exported subprompts",
		logger.FieldCount, len(selected),
		logger.FieldPath, exportPath)
	return nil
}

// ImportSubprompts reads subprompts from an external file. With merge, an
// imported id matching an existing subprompt replaces it; without merge
// the file's contents replace the whole collection. Returns a status per
// imported id: "imported", "updated", or "failed: ...".
func (s *Store) ImportSubprompts(importPath string, merge bool) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(importPath)
	if err != nil {
		return nil, errors.WrapStorage(err, "reading import file")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapStorage(err, "import file is not valid JSON")
	}
	doc := sanitizeDocument(raw)

	var existing []*subprompt.Subprompt
	if merge {
		existing, err = s.loadSubpromptsLocked()
		if err != nil {
			return nil, err
		}
	}

	results := make(map[string]string)
	var added []*subprompt.Subprompt

	records, _ := doc["subprompts"].([]interface{})
	for _, item := range records {
		record, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := record["id"].(string)
		sp, err := subprompt.FromMap(record)
		if err != nil {
			if id == "" {
				id = "unknown"
			}
			results[id] = "failed: " + err.Error()
			logger.Errorw("Failed to import subprompt record",
				"id", id,
				logger.FieldError, err)
			continue
		}

		updated := false
		if merge {
			for i, old := range existing {
				if old.ID == sp.ID {
					existing[i] = sp
					results[sp.ID] = "updated"
					updated = true
					break
				}
			}
		}
		if !updated {
			added = append(added, sp)
			results[sp.ID] = "imported"
		}
	}

	final := append(existing, added...)
	if err := s.saveSubpromptsLocked(final); err != nil {
		return nil, errors.Wrap(err, "import failed")
	}

	succeeded := 0
	for _, status := range results {
		if !strings.HasPrefix(status, "failed") {
			succeeded++
		}
	}
	logger.Infow("Import completed",
		"succeeded", succeeded,
		"total", len(results))
	return results, nil
}
