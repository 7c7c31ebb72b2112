package handlers

import (
	"net/http"

	"bidding-system/internal/infrastructure/websocket"
)

type WebSocketHandlers struct {
	gateway *websocket.SessionGateway
}

func NewWebSocketHandlers(gateway *websocket.SessionGateway) *WebSocketHandlers {
	return &WebSocketHandlers{
		gateway: gateway,
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.gateway.HandleConnection(w, r)
}
