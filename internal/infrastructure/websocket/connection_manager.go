package websocket

import (
	"sync"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"
)

// ConnectionManager tracks live sessions so they can be counted and closed
// together on shutdown.
type ConnectionManager struct {
	connections map[string]domain.WebSocketConnection // sessionID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.connections[conn.SessionID()] = conn

	cm.log.Info("Connection registered", "session_id", conn.SessionID(), "bidder_id", conn.BidderID())
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(sessionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if _, exists := cm.connections[sessionID]; !exists {
		return nil
	}
	delete(cm.connections, sessionID)

	cm.log.Info("Connection unregistered", "session_id", sessionID)
	return nil
}

func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// CloseAll closes every registered connection and empties the registry.
func (cm *ConnectionManager) CloseAll() error {
	cm.mutex.Lock()
	connections := cm.connections
	cm.connections = make(map[string]domain.WebSocketConnection)
	cm.mutex.Unlock()

	for sessionID, conn := range connections {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "session_id", sessionID, "error", err)
		}
	}

	cm.log.Info("Connections closed", "count", len(connections))
	return nil
}
