// Package storage persists subprompt collections and folder hierarchies in
// a single JSON document with atomic writes, automatic backups, and repair
// of damaged records on load.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/logger"
)

// Store manages one storage directory. All public methods are safe for
// concurrent use; they serialize on a single mutex because every operation
// is a read-modify-write over the whole document. Unexported helpers named
// *Locked assume the caller holds the lock.
type Store struct {
	mu        sync.Mutex
	dir       string
	file      string
	backupDir string
	watcher   *Watcher
}

// NewStore opens (or initializes) a storage directory.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.WrapStorage(err, "resolving storage directory")
	}

	s := &Store{
		dir:       abs,
		file:      filepath.Join(abs, defaultFilename),
		backupDir: filepath.Join(abs, backupDirName),
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return nil, errors.WrapStorage(err, "creating storage directory")
	}
	if err := os.MkdirAll(s.backupDir, 0750); err != nil {
		return nil, errors.WrapStorage(err, "creating backup directory")
	}
	return s, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// File returns the storage file path.
func (s *Store) File() string { return s.file }

// BackupDir returns the backup directory.
func (s *Store) BackupDir() string { return s.backupDir }

// SetWatcher couples a file watcher so the store can mark its own writes
// and the watcher can skip them.
func (s *Store) SetWatcher(w *Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
}

// atomicWrite serializes the document to a temporary file in the target's
// directory and renames it into place, so readers never observe a partial
// file. The temporary file is removed on any failure.
func (s *Store) atomicWrite(path string, doc map[string]interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.WrapStorage(err, "serializing storage document")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".promptloom-*.tmp")
	if err != nil {
		return errors.WrapStorage(err, "creating temporary file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.WrapStorage(err, "writing temporary file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.WrapStorage(err, "closing temporary file")
	}

	if s.watcher != nil {
		s.watcher.MarkOwnWrite()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.WrapStorage(err, "moving temporary file into place")
	}
	return nil
}

// loadDocumentLocked reads and sanitizes the storage document. A missing
// file is initialized on disk with the default document, so later backup
// and info operations see a real file; unparseable JSON is a storage
// error, since silently discarding the file would lose data the backups
// could still recover.
func (s *Store) loadDocumentLocked() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			doc := defaultDocument()
			if writeErr := s.atomicWrite(s.file, doc); writeErr != nil {
				return nil, writeErr
			}
			logger.Infow("Initialized empty storage file",
				logger.FieldPath, s.file)
			return doc, nil
		}
		return nil, errors.WrapStorage(err, "reading storage file")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapStorage(err, "invalid JSON in storage file")
	}
	return sanitizeDocument(raw), nil
}

// writeDocumentLocked backs up the current file (best effort), stamps the
// document, and writes atomically. On write failure the backup is copied
// back so the on-disk state is never left half-replaced.
func (s *Store) writeDocumentLocked(doc map[string]interface{}) error {
	var backupPath string
	if _, err := os.Stat(s.file); err == nil {
		backupPath, err = s.backupLocked()
		if err != nil {
			logger.Warnw("Failed to create backup before save",
				logger.FieldError, err)
			backupPath = ""
		}
	}

	doc["updated"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := doc["version"]; !ok {
		doc["version"] = storageVersion
	}

	if err := s.atomicWrite(s.file, doc); err != nil {
		if backupPath != "" {
			if restoreErr := copyFile(backupPath, s.file); restoreErr != nil {
				logger.Errorw("Failed to restore from backup after save failure",
					logger.FieldBackup, backupPath,
					logger.FieldError, restoreErr)
			} else {
				logger.Infow("Restored from backup after save failure",
					logger.FieldBackup, backupPath)
			}
		}
		return err
	}
	return nil
}

// BackupStorage copies the current storage file into the backup directory
// with a timestamped name and returns the backup path.
func (s *Store) BackupStorage() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked()
}

func (s *Store) backupLocked() (string, error) {
	if _, err := os.Stat(s.file); err != nil {
		return "", errors.NewStorageError("no storage file exists to backup")
	}

	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(s.backupDir, "subprompts_backup_"+timestamp+".json")
	if err := copyFile(s.file, backupPath); err != nil {
		return "", errors.WrapStorage(err, "creating backup")
	}

	logger.Infow("Created storage backup",
		logger.FieldBackup, backupPath)
	return backupPath, nil
}

// RestoreFromBackup replaces the storage file with a backup's contents. The
// backup is validated first and the current state is backed up (best
// effort) so a restore is itself reversible.
func (s *Store) RestoreFromBackup(backupPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return errors.WrapStorage(err, "reading backup file")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WrapStorage(err, "backup file is not valid JSON")
	}

	if _, err := os.Stat(s.file); err == nil {
		if prev, err := s.backupLocked(); err != nil {
			logger.Warnw("Failed to backup current state before restore",
				logger.FieldError, err)
		} else {
			logger.Infow("Previous state backed up",
				logger.FieldBackup, prev)
		}
	}

	doc := sanitizeDocument(raw)
	if err := s.atomicWrite(s.file, doc); err != nil {
		return err
	}

	logger.Infow("Restored storage from backup",
		logger.FieldBackup, backupPath)
	return nil
}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
}

// Info reports storage location, file statistics, record counts, and the
// available backups, newest first.
type Info struct {
	StorageDirectory string       `json:"storage_directory"`
	StorageFile      string       `json:"storage_file"`
	BackupDirectory  string       `json:"backup_directory"`
	Version          string       `json:"version"`
	FileExists       bool         `json:"file_exists"`
	FileSize         int64        `json:"file_size,omitempty"`
	LastModified     string       `json:"last_modified,omitempty"`
	SubpromptCount   int          `json:"subprompt_count"`
	FolderCount      int          `json:"folder_count"`
	Backups          []BackupInfo `json:"backups"`
}

// GetInfo gathers storage statistics.
func (s *Store) GetInfo() (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := &Info{
		StorageDirectory: s.dir,
		StorageFile:      s.file,
		BackupDirectory:  s.backupDir,
		Version:          storageVersion,
		Backups:          []BackupInfo{},
	}

	if stat, err := os.Stat(s.file); err == nil {
		info.FileExists = true
		info.FileSize = stat.Size()
		info.LastModified = stat.ModTime().UTC().Format(time.RFC3339)

		subprompts, err := s.loadSubpromptsLocked()
		if err != nil {
			return nil, err
		}
		info.SubpromptCount = len(subprompts)

		folders, err := s.loadFoldersLocked()
		if err != nil {
			return nil, err
		}
		info.FolderCount = len(folders)
	}

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		logger.Warnw("Failed to list backup directory",
			logger.FieldError, err)
		return info, nil
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		info.Backups = append(info.Backups, BackupInfo{
			Filename: entry.Name(),
			Path:     filepath.Join(s.backupDir, entry.Name()),
			Size:     stat.Size(),
			Created:  stat.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(info.Backups, func(i, j int) bool {
		return info.Backups[i].Created > info.Backups[j].Created
	})

	return info, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0640)
}
