package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/accounts-be/internal/auth"
	ws "github.com/isdelr/accounts-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// EventsHandler upgrades admin connections to the event feed.
type EventsHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler. Browser connections must come
// from one of allowedOrigins; clients that send no Origin header are accepted.
func NewEventsHandler(hub *ws.Hub, allowedOrigins []string) *EventsHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.RequesterFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, requester.ID)
	if !h.hub.Join(client) {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteMessage(websocket.TextMessage, ws.NewErrorMessage("event feed is shutting down"))
		conn.Close()
		return
	}
	log.Info().Str("user_id", requester.ID).Str("client_id", client.ID).Msg("Event feed subscriber joined")

	go client.WritePump()
	go client.ReadPump()
}
