package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/streaming"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // secure via proxy in prod
}

const (
	wsReadDeadline  = 60 * time.Second
	wsPingInterval  = 20 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// EventsHandler serves the websocket progress stream for running
// analyses.
type EventsHandler struct {
	mgr    *streaming.Manager
	logger *zap.Logger
}

// NewEventsHandler creates the handler.
func NewEventsHandler(mgr *streaming.Manager, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{mgr: mgr, logger: logger}
}

// RegisterRoutes mounts GET /api/v1/analyses/{id}/events on the mux.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/analyses/", h.handleEvents)
}

// handleEvents upgrades to websocket and streams the execution's
// progress events, replaying retained history from last_seq first.
func (h *EventsHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	executionID, ok := eventsPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var lastSeq uint64
	if q := r.URL.Query().Get("last_seq"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			lastSeq = n
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	logger := h.logger.With(zap.String("execution_id", executionID))
	logger.Debug("Event subscriber connected")

	ch := h.mgr.Subscribe(executionID, 256)
	defer h.mgr.Unsubscribe(executionID, ch)

	for _, ev := range h.mgr.ReplaySince(executionID, lastSeq) {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	// Reader pump: client messages are discarded, the read loop only
	// notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteDeadline)); err != nil {
				return
			}
		}
	}
}

// eventsPath extracts the execution id from
// /api/v1/analyses/{id}/events.
func eventsPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/api/v1/analyses/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/events")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
