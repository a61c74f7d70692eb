package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"libroreads/auth"
)

// handleEvents bridges one delivery-bus subscription to a server-sent
// event stream. Nothing is replayed: the client receives only events
// published while the stream is open, and the durable record stays in
// the store.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	userID, ok := s.requireSelf(w, r, claims)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe(userID)
	defer s.bus.Unsubscribe(sub)
	s.log.Debug("Live session opened", "user", userID)

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("Live session closed", "user", userID)
			return
		case e, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(toEnvelope(e))
			if err != nil {
				s.log.Warn("Event encoding failed, frame skipped", "user", userID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
