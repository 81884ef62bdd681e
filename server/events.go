package server

import "time"

// Change event types pushed over the WebSocket feed.
const (
	EventSubpromptSaved   = "subprompt_saved"
	EventSubpromptDeleted = "subprompt_deleted"
	EventFolderSaved      = "folder_saved"
	EventFolderDeleted    = "folder_deleted"
	EventStorageReloaded  = "storage_reloaded"
	EventStorageRestored  = "storage_restored"
)

// ChangeEvent notifies clients that the stored collection changed.
type ChangeEvent struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
