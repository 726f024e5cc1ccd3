// Package server provides the HTTP surface of the memory subsystem:
// the store/recall API, health and maintenance endpoints, and a websocket
// feed of memory events.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/mnemo/internal/config"
	"github.com/scrypster/mnemo/internal/engine"
	"github.com/scrypster/mnemo/internal/notify"
)

// Start initializes and starts the HTTP server. It returns the actual
// listen address (useful for tests with port 0) and the websocket hub so
// callers can wire additional event sources into it. The server shuts down
// when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, eng *engine.Engine) (string, *WebSocketHub, error) {
	mux := http.NewServeMux()

	wsHub := NewWebSocketHub()
	go wsHub.Run()

	h := NewHandlers(eng, wsHub)

	// API routes, auth-gated in production mode.
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/memories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.CreateMemory(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/memories/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.GetMemory(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/recall", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Recall(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/maintenance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.ListMaintenanceRuns(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/maintenance/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.RunMaintenance(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/conflicts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.ListConflicts(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint stays outside the auth gate for monitoring.
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Health(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.Handle("/api/", RequireAuth(apiMux, cfg))
	mux.Handle("/ws/events", wsHub)

	// Relay spooled events from other processes to websocket clients.
	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, func(evt notify.Event) {
		wsHub.Broadcast(evt)
	})
	if err := watcher.Start(); err != nil {
		log.Printf("server: event watcher unavailable: %v", err)
		watcher = nil
	}

	rateLimiter := NewRateLimiter(10.0, 20)
	handler := RateLimitMiddleware(mux, rateLimiter)
	handler = RequestIDMiddleware(handler)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()
	log.Printf("server: listening on %s", actualAddr)

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		if watcher != nil {
			watcher.Stop()
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
