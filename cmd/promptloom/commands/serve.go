package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/internal/version"
	"github.com/promptloom/promptloom/server"
	"github.com/promptloom/promptloom/storage"
)

// ServeCmd starts the promptloom HTTP/WebSocket server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the subprompt HTTP API and WebSocket change feed",
	Long: `Launch the promptloom server. The HTTP API exposes subprompt and
folder CRUD, resolution previews, and storage management. Connected
WebSocket clients receive change notifications, including changes made
to the storage file by other processes.`,
	RunE: runServe,
}

var (
	servePort    int
	serveNoWatch bool
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable watching the storage file for external changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}

	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}

	srv := server.NewServer(store, cfg)

	if !serveNoWatch && cfg.Storage.WatchEnabled {
		watcher, err := storage.NewWatcher(store)
		if err != nil {
			pterm.Warning.Println("Storage watcher unavailable:", err)
		} else {
			srv.SetWatcher(watcher)
		}
	}

	printServeBanner(store.Dir(), port)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		pterm.Info.Println("Shutting down...")
		srv.Stop()
	}()

	if err := srv.Start(port); err != nil {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// printServeBanner prints the user-friendly startup message
func printServeBanner(dir string, port int) {
	versionInfo := version.Get()

	pterm.DefaultHeader.WithFullWidth().Println("promptloom")
	fmt.Printf("Version:  %s (commit %s)\n", versionInfo.Version, versionInfo.Short())
	fmt.Printf("Storage:  %s\n", dir)
	fmt.Printf("Listen:   http://localhost:%d\n", port)
	fmt.Println()
	pterm.Info.Println("Press Ctrl+C to stop")
}
