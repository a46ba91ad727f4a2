// ABOUTME: Server lifecycle shared by the gateway and the proxy
// ABOUTME: Serves until the context ends, then shuts down with a fresh deadline

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown once the run context ends.
const ShutdownTimeout = 5 * time.Second

// runServer serves srv on ln and blocks until ctx is canceled or the server
// fails, then calls shutdown.
func runServer(ctx context.Context, name string, srv *http.Server, ln net.Listener, logger *slog.Logger, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(name+" listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		logger.Error("server error", "error", serverErr)
	}

	shutdownErr := gracefulShutdown(shutdown)
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs fn with a fresh context, since the run context is
// already canceled by the time it is called.
func gracefulShutdown(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return fn(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// handleHealth reports liveness as {"ok":true}.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
