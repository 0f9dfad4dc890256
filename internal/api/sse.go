package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// sseKeepAlive is how often an idle stream receives a comment line so
// proxies keep the connection open.
const sseKeepAlive = 30 * time.Second

// handleSSE is the handler for Server-Sent Events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// 1. Get the authenticated user from the context (via the auth middleware).
	claims, err := claimsFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusUnauthorized)
		return
	}

	// 2. Streams outlive the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.errorJSON(w, fmt.Errorf("streaming unsupported: %w", err))
		return
	}

	// 3. Register with the broker before the headers go out, so a client
	// that has seen the response misses nothing.
	clientID, messages := s.broker.AddClient(claims.UserID)
	defer s.broker.RemoveClient(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("SSE flush unsupported", "error", err)
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	// 4. Relay messages until the client goes away.
	for {
		select {
		case message, open := <-messages:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", message); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
