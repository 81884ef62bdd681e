package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))

	s.mux.HandleFunc("/api/subprompts/dropdown", s.corsMiddleware(s.HandleDropdown)) // Flat id/name/path list for UI pickers (GET)
	s.mux.HandleFunc("/api/subprompts/resolve", s.corsMiddleware(s.HandleResolve))   // Resolution preview without saving (POST)
	s.mux.HandleFunc("/api/subprompts/", s.corsMiddleware(s.HandleSubprompt))        // Individual subprompt (GET/PUT/DELETE)
	s.mux.HandleFunc("/api/subprompts", s.corsMiddleware(s.HandleSubprompts))        // List/create subprompts (GET/POST)

	s.mux.HandleFunc("/api/folders/rename", s.corsMiddleware(s.HandleFolderRename)) // Legacy rename by path (PUT)
	s.mux.HandleFunc("/api/folders/", s.corsMiddleware(s.HandleFolder))             // Individual folder (GET/PUT/DELETE)
	s.mux.HandleFunc("/api/folders", s.corsMiddleware(s.HandleFolders))             // List/create folders (GET/POST)

	s.mux.HandleFunc("/api/storage/export", s.corsMiddleware(s.HandleExport))   // Export to file (POST)
	s.mux.HandleFunc("/api/storage/import", s.corsMiddleware(s.HandleImport))   // Import from file (POST)
	s.mux.HandleFunc("/api/storage/backup", s.corsMiddleware(s.HandleBackup))   // Create backup (POST)
	s.mux.HandleFunc("/api/storage/restore", s.corsMiddleware(s.HandleRestore)) // Restore from backup (POST)
	s.mux.HandleFunc("/api/storage/info", s.corsMiddleware(s.HandleInfo))       // Storage statistics (GET)
}

// corsMiddleware adds CORS headers to HTTP responses using configured
// allowed origins. Uses the same origin validation as WebSocket
// connections.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates a request origin against the configured allowed
// origins. Prefix matching allows any port number. Requests without an
// Origin header (direct clients, testing) are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}

	for _, allowed := range s.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
