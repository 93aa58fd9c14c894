package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	writeTimeout = 60 * time.Second
	// Browsers wait this long before reconnecting a dropped stream.
	reconnectDelay = 5 * time.Second
)

// Authenticator resolves the user behind a stream request.
type Authenticator func(r *http.Request) (userID string, err error)

// Handler serves GET /api/v1/events.
type Handler struct {
	manager      *Manager
	authenticate Authenticator
	logger       *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, authenticate Authenticator, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, authenticate: authenticate, logger: logger}
}

// stream is one live response. seq numbers frames so clients can spot gaps.
type stream struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	seq uint64
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Register before committing headers so refusals get a real status.
	client, err := h.manager.Connect(userID)
	switch {
	case errors.Is(err, ErrTooManyStreams):
		http.Error(w, "Too many open event streams", http.StatusTooManyRequests)
		return
	case errors.Is(err, ErrClosed):
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Error("failed to open event stream", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client)

	log := h.logger.With(slog.String("client_id", client.ID), slog.String("user_id", userID))

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	s := &stream{w: w, rc: http.NewResponseController(w)}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", reconnectDelay.Milliseconds()); err != nil {
		return
	}
	if err := s.send(string(EventConnected), map[string]string{"client_id": client.ID}); err != nil {
		log.Warn("failed to open event stream", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()
	for {
		select {
		case evt, ok := <-client.EventChan:
			if !ok {
				log.Debug("event stream closed by server")
				return
			}
			if err := s.send(string(evt.Type), evt); err != nil {
				log.Debug("client went away mid-write")
				return
			}
		case <-client.Done:
			log.Debug("event stream closed by server")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *stream) send(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, eventType, payload); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines; httptest's doesn't.
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}
