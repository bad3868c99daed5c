package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/dhsingh07/ensureu-sub002/internal/app"
	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// WSHandler streams percentile-band snapshots to clients watching a paper.
type WSHandler struct {
	analytics *app.AnalyticsService
	upgrader  websocket.Upgrader
}

func NewWSHandler(analytics *app.AnalyticsService) *WSHandler {
	return &WSHandler{
		analytics: analytics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and forwards band snapshots until the client
// disconnects. The first message is the current snapshot; one follows after
// every ingestion for the paper.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	paperID := r.URL.Query().Get("paperId")
	if paperID == "" {
		http.Error(w, "missing paperId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.analytics.SubscribeBands(r.Context(), paperID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	// reader exists only to observe the close
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case bands, ok := <-updates:
			if !ok {
				return
			}
			msg := outboundMessage[[]domain.PercentileBand]{Type: "percentiles", Payload: bands}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-disconnected:
			return
		}
	}
}
