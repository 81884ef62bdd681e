package server

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/promptloom/promptloom/internal/version"
)

// HandleHealth serves the health check endpoint with version info.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        versionInfo.Version,
		"commit":         versionInfo.CommitHash,
		"build_time":     versionInfo.BuildTime,
		"clients":        s.clientCount(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// HandleInfo serves storage statistics.
func (s *Server) HandleInfo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	info, err := s.store.GetInfo()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleBackup creates a timestamped backup of the storage file.
func (s *Server) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	backupPath, err := s.store.BackupStorage()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Backup created", "backup", backupPath)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Backup created",
		"backup":  backupPath,
	})
}

// HandleRestore replaces the storage file with a backup.
func (s *Server) HandleRestore(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		Backup string `json:"backup"`
	}
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	if body.Backup == "" {
		writeError(w, http.StatusBadRequest, "backup is required")
		return
	}

	// Bare filenames are resolved against the store's backup directory
	backupPath := body.Backup
	if !filepath.IsAbs(backupPath) && filepath.Dir(backupPath) == "." {
		backupPath = filepath.Join(s.store.BackupDir(), backupPath)
	}

	if err := s.store.RestoreFromBackup(backupPath); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Storage restored", "backup", backupPath)
	s.Broadcast(&ChangeEvent{Type: EventStorageRestored, Source: "api"})
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Storage restored",
		"backup":  backupPath,
	})
}

// HandleExport writes selected subprompts to a portable JSON file.
func (s *Server) HandleExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		Path string   `json:"path"`
		IDs  []string `json:"ids"`
	}
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	if body.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.store.ExportSubprompts(body.Path, body.IDs); err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Subprompts exported",
		"path", body.Path,
		"requested", len(body.IDs))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Subprompts exported",
		"path":    body.Path,
	})
}

// HandleImport merges subprompts from an exported JSON file.
func (s *Server) HandleImport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		Path  string `json:"path"`
		Merge bool   `json:"merge"`
	}
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	if body.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	statuses, err := s.store.ImportSubprompts(body.Path, body.Merge)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Subprompts imported",
		"path", body.Path,
		"count", len(statuses))
	s.Broadcast(&ChangeEvent{Type: EventStorageReloaded, Source: "import"})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Import complete",
		"statuses": statuses,
	})
}
