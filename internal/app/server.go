package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	intrnl "squadchat/internal"
	"squadchat/internal/storage"
)

// ServerHandle represents a running HTTP/WebSocket server instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	store  *storage.Store
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer opens the SQLite store, runs migrations, wires the gateway and
// user endpoints, and starts serving in the background along with the flush
// and daily-reset loops. Call Stop/Wait to manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig) (*ServerHandle, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	cfg.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}

	gateway := intrnl.NewGateway(store)
	mux := http.NewServeMux()
	registerHandlers(mux, cfg.Path, gateway)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		store:  store,
		done:   make(chan struct{}),
	}

	loopCtx := ctx
	if loopCtx == nil {
		loopCtx = context.Background()
	}
	go flushLoop(loopCtx, gateway, cfg.FlushInterval)
	go resetLoop(loopCtx, store, location, cfg.ResetCheckInterval)

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err := h.store.Close(); err != nil {
		log.Printf("store close error: %v", err)
	}
	h.err = err
}

// flushLoop drains the online accumulator into the store on a fixed cadence.
func flushLoop(ctx context.Context, gateway *intrnl.Gateway, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(context.Background(), interval)
			gateway.FlushOnline(cycleCtx)
			cancel()
		}
	}
}

// resetLoop zeroes every persisted online counter once per calendar day, when
// the check first lands inside the midnight hour of the reference zone.
func resetLoop(ctx context.Context, store *storage.Store, location *time.Location, interval time.Duration) {
	guard := intrnl.NewResetGuard(location)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !guard.ShouldReset(time.Now()) {
				continue
			}
			resetCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := store.ResetAllOnline(resetCtx); err != nil {
				log.Printf("daily online reset: %v", err)
			} else {
				log.Printf("daily online reset applied")
			}
			cancel()
		}
	}
}

func registerHandlers(mux *http.ServeMux, wsPath string, gateway *intrnl.Gateway) {
	mux.HandleFunc(wsPath, gateway.ServeWS)
	mux.HandleFunc("/users", gateway.HandleUsers)
	mux.HandleFunc("/users/", gateway.HandleUserByID)
	mux.HandleFunc("/auth/signIn", gateway.HandleSignIn)
	mux.Handle("/metrics", gateway.MetricsHandler())
}
