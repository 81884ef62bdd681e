// Package server exposes the subprompt store over HTTP and pushes change
// notifications to WebSocket clients.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/promptloom/promptloom/config"
	"github.com/promptloom/promptloom/internal/version"
	"github.com/promptloom/promptloom/logger"
	"github.com/promptloom/promptloom/storage"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// ShutdownTimeout is how long to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// Server serves the subprompt HTTP API and a WebSocket change feed.
type Server struct {
	store          *storage.Store
	watcher        *storage.Watcher
	allowedOrigins []string

	mux        *http.ServeMux
	httpServer *http.Server

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *ChangeEvent
	mu         sync.RWMutex

	logger *zap.SugaredLogger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	drops     atomic.Int64
	startedAt time.Time
}

// NewServer wires a server around an existing store. The watcher is
// optional; when present, external changes to the storage file are
// broadcast to connected clients.
func NewServer(store *storage.Store, cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		store:          store,
		allowedOrigins: cfg.Server.AllowedOrigins,
		mux:            http.NewServeMux(),
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *ChangeEvent, 64),
		logger:         logger.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startedAt:      time.Now(),
	}
	s.setupRoutes()
	return s
}

// SetWatcher attaches a storage watcher whose change events are relayed
// to WebSocket clients.
func (s *Server) SetWatcher(w *storage.Watcher) {
	s.watcher = w
	w.OnChange(func(st *storage.Store) error {
		s.Broadcast(&ChangeEvent{
			Type:   EventStorageReloaded,
			Source: "watcher",
		})
		return nil
	})
}

// Run starts the hub event loop. It returns when the server context is
// cancelled.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		case event := <-s.broadcast:
			s.handleBroadcast(event)
		}
	}
}

// Broadcast queues a change event for all connected clients.
func (s *Server) Broadcast(event *ChangeEvent) {
	event.Timestamp = time.Now()
	select {
	case s.broadcast <- event:
	case <-s.ctx.Done():
	default:
		s.drops.Add(1)
		s.logger.Warnw("Broadcast queue full, dropping change event",
			"event_type", event.Type)
	}
}

func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients)
		client.close()
		return
	}
	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
		"version", version.Get().Short())
}

func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	totalClients := len(s.clients)
	s.mu.Unlock()

	client.close()
	s.logger.Infow("Client disconnected",
		"client_id", client.id,
		"total_clients", totalClients)
}

func (s *Server) handleBroadcast(event *ChangeEvent) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.sendMsg <- event:
		default:
			s.drops.Add(1)
			s.removeSlowClient(client)
		}
	}
}

// removeSlowClient drops a client whose send queue is full.
func (s *Server) removeSlowClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	s.mu.Unlock()

	client.close()
	s.logger.Warnw("Client send channel full, removing client",
		"client_id", client.id,
		"total_drops", s.drops.Load())
}

// clientCount returns the number of connected WebSocket clients.
func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler returns the routed HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}
