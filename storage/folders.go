package storage

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/folder"
	"github.com/promptloom/promptloom/logger"
	"github.com/promptloom/promptloom/subprompt"
)

// loadFoldersLocked materializes the document's folder entries. Legacy
// path-string entries become Folder objects, and folder paths referenced
// by subprompts but not yet recorded are synthesized so old documents
// still present a complete hierarchy.
func (s *Store) loadFoldersLocked() ([]*folder.Folder, error) {
	doc, err := s.loadDocumentLocked()
	if err != nil {
		return nil, err
	}

	entries, _ := doc["folders"].([]interface{})
	folders := make([]*folder.Folder, 0, len(entries))
	for _, entry := range entries {
		var f *folder.Folder
		var convErr error
		switch v := entry.(type) {
		case string:
			f, convErr = folder.FromPath(v, nil)
		case map[string]interface{}:
			f, convErr = folder.FromMap(v)
		default:
			continue
		}
		if convErr != nil {
			logger.Errorw("Failed to load folder entry",
				logger.FieldError, convErr)
			continue
		}
		folders = append(folders, f)
	}

	// Synthesize folders for subprompt paths with no folder record
	byPath := pathIndex(folders)
	records, _ := doc["subprompts"].([]interface{})
	for _, item := range records {
		record, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		path, _ := record["folder_path"].(string)
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, exists := byPath[path]; exists {
			continue
		}
		f, err := folder.FromPath(path, byPath)
		if err != nil {
			logger.Warnw("Failed to create folder from path",
				logger.FieldPath, path,
				logger.FieldError, err)
			continue
		}
		folders = append(folders, f)
		byPath[path] = f
	}

	return folders, nil
}

// saveFoldersLocked replaces the document's folder section.
func (s *Store) saveFoldersLocked(folders []*folder.Folder) error {
	doc, err := s.loadDocumentLocked()
	if err != nil {
		return err
	}

	entries := make([]interface{}, 0, len(folders))
	for _, f := range folders {
		entries = append(entries, f.ToMap())
	}
	doc["folders"] = entries

	return s.writeDocumentLocked(doc)
}

// pathIndex maps each folder's derived path to the folder.
func pathIndex(folders []*folder.Folder) map[string]*folder.Folder {
	lookup := folder.BuildHierarchy(folders)
	byPath := make(map[string]*folder.Folder, len(folders))
	for _, f := range folders {
		byPath[f.Path(lookup)] = f
	}
	return byPath
}

// LoadAllFolders returns every folder in storage.
func (s *Store) LoadAllFolders() ([]*folder.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFoldersLocked()
}

// LoadFolderByID fetches one folder by id.
func (s *Store) LoadFolderByID(id string) (*folder.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFolderByIDLocked(id)
}

func (s *Store) loadFolderByIDLocked(id string) (*folder.Folder, error) {
	if id == "" || id == "null" || id == "undefined" {
		return nil, errors.NewValidationError("invalid folder id: %q", id)
	}
	folders, err := s.loadFoldersLocked()
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "folder %q", id)
}

// GetFolderByPath fetches one folder by its derived path.
func (s *Store) GetFolderByPath(path string) (*folder.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.loadFoldersLocked()
	if err != nil {
		return nil, err
	}
	if f, ok := pathIndex(folders)[path]; ok {
		return f, nil
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "folder path %q", path)
}

// SaveFolder inserts or updates a folder, keyed by id.
func (s *Store) SaveFolder(f *folder.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveFolderLocked(f)
}

func (s *Store) saveFolderLocked(f *folder.Folder) error {
	folders, err := s.loadFoldersLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range folders {
		if existing.ID == f.ID {
			folders[i] = f
			replaced = true
			break
		}
	}
	if !replaced {
		folders = append(folders, f)
	}
	return s.saveFoldersLocked(folders)
}

// SaveFolderPath records a folder from a legacy path string.
func (s *Store) SaveFolderPath(path string) (*folder.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.loadFoldersLocked()
	if err != nil {
		return nil, err
	}
	f, err := folder.FromPath(path, pathIndex(folders))
	if err != nil {
		return nil, err
	}
	if err := s.saveFolderLocked(f); err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFolder updates an existing folder, refreshing its timestamp.
// Returns false when the id is unknown.
func (s *Store) UpdateFolder(f *folder.Folder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.loadFoldersLocked()
	if err != nil {
		return false, err
	}

	found := false
	for i, existing := range folders {
		if existing.ID == f.ID {
			f.Touch()
			folders[i] = f
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	return true, s.saveFoldersLocked(folders)
}

// DeleteFolder removes one folder record without touching its contents.
// Returns false when the id is unknown.
func (s *Store) DeleteFolder(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFolderLocked(id)
}

func (s *Store) deleteFolderLocked(id string) (bool, error) {
	if id == "" || id == "null" || id == "undefined" {
		return false, errors.NewValidationError("invalid folder id: %q", id)
	}

	folders, err := s.loadFoldersLocked()
	if err != nil {
		return false, err
	}

	found := false
	remaining := make([]*folder.Folder, 0, len(folders))
	for _, f := range folders {
		if f.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, f)
	}
	if !found {
		return false, nil
	}
	return true, s.saveFoldersLocked(remaining)
}

// CascadeResult reports what a cascading folder deletion removed.
type CascadeResult struct {
	FolderName        string `json:"folder_name"`
	DeletedSubprompts int    `json:"deleted_subprompts"`
	DeletedFolders    int    `json:"deleted_folders"`
}

// DeleteFolderCascade removes a folder, all its descendant folders, and
// (optionally) every subprompt stored in any of them. References to the
// deleted subprompts are stripped from survivors. Descendant folders are
// removed deepest first so the hierarchy never holds an orphaned parent
// link mid-operation.
func (s *Store) DeleteFolderCascade(id string, deleteSubprompts bool) (*CascadeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.loadFolderByIDLocked(id)
	if err != nil {
		return nil, err
	}

	result := &CascadeResult{FolderName: target.Name}

	folders, err := s.loadFoldersLocked()
	if err != nil {
		return nil, err
	}
	lookup := folder.BuildHierarchy(folders)
	descendants := target.Descendants(folders)

	doomedFolders := append([]*folder.Folder{target}, descendants...)
	doomedIDs := make(map[string]bool, len(doomedFolders))
	doomedPaths := make(map[string]bool, len(doomedFolders))
	for _, f := range doomedFolders {
		doomedIDs[f.ID] = true
		doomedPaths[f.Path(lookup)] = true
	}

	if deleteSubprompts {
		subprompts, err := s.loadSubpromptsLocked()
		if err != nil {
			return nil, err
		}

		var survivors []*subprompt.Subprompt
		var doomed []*subprompt.Subprompt
		for _, sp := range subprompts {
			if doomedIDs[sp.FolderID] || (sp.FolderPath != "" && doomedPaths[sp.FolderPath]) {
				doomed = append(doomed, sp)
			} else {
				survivors = append(survivors, sp)
			}
		}

		for _, deleted := range doomed {
			for _, sp := range survivors {
				stripReferences(sp, deleted.ID, deleted.Name)
			}
		}
		result.DeletedSubprompts = len(doomed)

		if err := s.saveSubpromptsLocked(survivors); err != nil {
			return nil, errors.Wrapf(err, "cascade deletion failed for folder %q", id)
		}
	}

	// Deepest first: children before parents
	sort.SliceStable(descendants, func(i, j int) bool {
		return len(descendants[i].Descendants(folders)) > len(descendants[j].Descendants(folders))
	})

	remaining := folders
	for _, doomedFolder := range append(descendants, target) {
		kept := make([]*folder.Folder, 0, len(remaining))
		for _, f := range remaining {
			if f.ID != doomedFolder.ID {
				kept = append(kept, f)
			}
		}
		remaining = kept
		result.DeletedFolders++
	}

	if err := s.saveFoldersLocked(remaining); err != nil {
		return nil, errors.Wrapf(err, "cascade deletion failed for folder %q", id)
	}

	logger.Infow("Deleted folder",
		logger.FieldFolder, target.Name,
		"deleted_subprompts", result.DeletedSubprompts,
		"deleted_folders", result.DeletedFolders)
	return result, nil
}

// EnsureFolderExists guarantees a folder identified by UUID or legacy path
// is present, creating path-identified folders on demand. Returns whether
// the folder now exists.
func (s *Store) EnsureFolderExists(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false, nil
	}

	if _, err := uuid.Parse(identifier); err == nil {
		_, err := s.loadFolderByIDLocked(identifier)
		if err != nil {
			if errors.IsNotFoundError(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	return s.ensureFolderPathLocked(identifier)
}

// ensureFolderPathLocked creates a folder for a legacy path when none
// exists yet.
func (s *Store) ensureFolderPathLocked(path string) (bool, error) {
	folders, err := s.loadFoldersLocked()
	if err != nil {
		return false, err
	}
	byPath := pathIndex(folders)
	if _, ok := byPath[path]; ok {
		return true, nil
	}

	f, err := folder.FromPath(path, byPath)
	if err != nil {
		return false, err
	}
	if err := s.saveFolderLocked(f); err != nil {
		return false, err
	}
	return true, nil
}
