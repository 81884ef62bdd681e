package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptloom/promptloom/logger"
	"github.com/promptloom/promptloom/subprompt"
	"github.com/promptloom/promptloom/validation"
)

const (
	storageVersion  = "1.0"
	defaultFilename = "subprompts.json"
	backupDirName   = "backups"
)

// defaultDocument returns the shape written when no storage file exists.
func defaultDocument() map[string]interface{} {
	now := time.Now().UTC().Format(time.RFC3339)
	return map[string]interface{}{
		"version":    storageVersion,
		"created":    now,
		"updated":    now,
		"subprompts": []interface{}{},
		"folders":    []interface{}{},
	}
}

// sanitizeDocument validates and repairs a loaded storage document. Damaged
// sections degrade to safe defaults and damaged records are repaired where
// possible, so a partially corrupted file never blocks loading. The input
// map is not modified.
func sanitizeDocument(raw map[string]interface{}) map[string]interface{} {
	if len(raw) == 0 {
		logger.Warnw("Storage data is not a valid document, using default structure")
		return defaultDocument()
	}

	doc := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		doc[k] = v
	}

	doc["subprompts"] = sanitizeSubpromptRecords(doc["subprompts"])
	doc["folders"] = sanitizeFolderEntries(doc["folders"])

	if version, ok := doc["version"].(string); ok {
		if version != storageVersion {
			logger.Warnw("Storage version mismatch",
				"found", version,
				"expected", storageVersion)
		}
	} else {
		doc["version"] = storageVersion
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, ok := doc["created"]; !ok {
		doc["created"] = now
	}
	if _, ok := doc["updated"]; !ok {
		doc["updated"] = now
	}

	return doc
}

// sanitizeSubpromptRecords normalizes the subprompts section to a list of
// valid records. The legacy format keyed records by composite name; those
// are converted to the list format with the key salvaged as the id.
func sanitizeSubpromptRecords(section interface{}) []interface{} {
	var records []map[string]interface{}

	switch v := section.(type) {
	case nil:
		logger.Warnw("Storage data missing 'subprompts' section, using empty default")
	case []interface{}:
		for _, item := range v {
			record, ok := item.(map[string]interface{})
			if !ok {
				logger.Warnw("Subprompt record is not an object, skipping")
				continue
			}
			if _, hasID := record["id"]; !hasID {
				record["id"] = uuid.NewString()
			}
			records = append(records, record)
		}
	case map[string]interface{}:
		// Legacy dict format keyed by composite name
		for key, item := range v {
			record, ok := item.(map[string]interface{})
			if !ok {
				logger.Warnw("Subprompt record is not an object, skipping",
					"key", key)
				continue
			}
			if _, hasID := record["id"]; !hasID {
				record["id"] = key
			}
			records = append(records, record)
		}
	default:
		logger.Warnw("'subprompts' section is not a list or object, resetting to empty")
	}

	clean := make([]interface{}, 0, len(records))
	for _, record := range records {
		id, _ := record["id"].(string)
		result := validation.ValidateStructure(record)
		if result.Valid {
			clean = append(clean, record)
			continue
		}
		logger.Warnw("Subprompt record has validation issues",
			"id", id,
			"issues", strings.Join(result.Errors, "; "))
		if repaired := repairRecord(id, record); repaired != nil {
			clean = append(clean, repaired)
		} else {
			logger.Errorw("Could not repair subprompt record, dropping",
				"id", id)
		}
	}
	return clean
}

// sanitizeFolderEntries keeps valid folder entries: non-empty path strings
// from the legacy format and objects carrying at least an id and a name.
func sanitizeFolderEntries(section interface{}) []interface{} {
	list, ok := section.([]interface{})
	if !ok {
		if section != nil {
			logger.Warnw("'folders' section is not a list, resetting to empty")
		}
		return []interface{}{}
	}

	clean := make([]interface{}, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				clean = append(clean, trimmed)
			}
		case map[string]interface{}:
			id, _ := v["id"].(string)
			name, _ := v["name"].(string)
			if id != "" && strings.TrimSpace(name) != "" {
				clean = append(clean, v)
			} else {
				logger.Warnw("Removing folder entry missing required fields")
			}
		default:
			logger.Warnw("Removing folder entry of wrong type")
		}
	}
	return clean
}

// repairRecord salvages what it can from a damaged subprompt record,
// filling the rest with safe defaults. Returns nil only when nothing
// usable remains.
func repairRecord(id string, data map[string]interface{}) map[string]interface{} {
	if id == "" {
		id = uuid.NewString()
	}
	name, _ := data["name"].(string)
	if strings.TrimSpace(name) == "" {
		name = "repaired_subprompt"
	}

	repaired := map[string]interface{}{
		"id":            id,
		"name":          name,
		"positive":      "",
		"negative":      "",
		"trigger_words": []interface{}{},
		"order":         []interface{}{subprompt.Attached},
		"folder_path":   "",
	}

	if s, ok := data["positive"].(string); ok {
		repaired["positive"] = s
	}
	if s, ok := data["negative"].(string); ok {
		repaired["negative"] = s
	}
	if s, ok := data["folder_path"].(string); ok {
		repaired["folder_path"] = s
	}
	if s, ok := data["folder_id"].(string); ok && s != "" {
		repaired["folder_id"] = s
	}

	if words, ok := data["trigger_words"].([]interface{}); ok {
		clean := make([]interface{}, 0, len(words))
		for _, w := range words {
			if s, ok := w.(string); ok && strings.TrimSpace(s) != "" {
				clean = append(clean, strings.TrimSpace(s))
			}
		}
		repaired["trigger_words"] = clean
	}

	if order, ok := data["order"].([]interface{}); ok {
		if clean := cleanOrderItems(order, false); len(clean) > 0 {
			repaired["order"] = clean
		}
	}
	// Legacy nested_subprompts takes precedence when present
	if nested, ok := data["nested_subprompts"].([]interface{}); ok {
		if clean := cleanOrderItems(nested, true); len(clean) > 0 {
			repaired["order"] = clean
		}
	}

	return repaired
}

// cleanOrderItems filters an order list down to usable string tokens. With
// convertLegacy, the old "[Self]" marker becomes the attached sentinel.
func cleanOrderItems(items []interface{}, convertLegacy bool) []interface{} {
	clean := make([]interface{}, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if convertLegacy && s == "[Self]" {
			clean = append(clean, subprompt.Attached)
			continue
		}
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}
