package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/promptloom/promptloom/errors"
)

// Start runs the hub, binds a port, and serves HTTP until the listener
// fails or Stop is called. A busy port falls through to nearby
// alternatives.
func (s *Server) Start(port int) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	if s.watcher != nil {
		s.watcher.Start()
	}

	actualPort, err := findAvailablePort(port)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}
	if actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort)
	}

	addr := fmt.Sprintf(":%d", actualPort)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", actualPort),
		"port", actualPort)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warnw("Failed to stop storage watcher", "error", err)
		}
	}

	// Close client connections first so the read pumps unblock before
	// the context cancellation stops the write pumps.
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	for _, client := range clientsToClose {
		client.conn.Close()
	}

	s.cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Close(); err != nil {
			s.logger.Warnw("HTTP server close error", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout)
	}

	s.logger.Infow("Server shutdown complete",
		"broadcast_drops", s.drops.Load())
	return nil
}

// isPortAvailable checks if a port is available for binding
func isPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// findAvailablePort tries the requested port first, then up to 10
// consecutive alternatives.
func findAvailablePort(requestedPort int) (int, error) {
	if isPortAvailable(requestedPort) {
		return requestedPort, nil
	}
	for i := 1; i <= 10; i++ {
		port := requestedPort + i
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, errors.Newf("no available ports found (tried %d-%d)", requestedPort, requestedPort+10)
}
