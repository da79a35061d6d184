package websocket

import (
	"encoding/json"
	"sync"

	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"
)

type ConnectionManager struct {
	connections map[string]domain.WebSocketConnection // connID -> connection
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

	cm.connections[conn.ID()] = conn

	cm.log.Info("Connection registered", "conn_id", conn.ID(), "username", conn.Username(),
		"total", len(cm.connections))
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(connID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if _, exists := cm.connections[connID]; !exists {
		return nil
	}
	delete(cm.connections, connID)

	cm.log.Info("Connection unregistered", "conn_id", connID, "total", len(cm.connections))
	return nil
}

func (cm *ConnectionManager) Connections() []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := make([]domain.WebSocketConnection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// Broadcast marshals message once and sends it to every registered connection.
// Connections that fail to receive are closed and dropped.
func (cm *ConnectionManager) Broadcast(message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	connections := cm.Connections()
	cm.log.Info("Broadcasting", "connections", len(connections), "message", string(messageBytes))

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message, dropping connection", "conn_id", conn.ID(),
				"username", conn.Username(), "error", err)
			cm.drop(conn)
			// Continue to other connections
		}
	}

	return nil
}

// Ping probes every connection and drops the ones that no longer answer writes.
func (cm *ConnectionManager) Ping() int {
	dropped := 0
	for _, conn := range cm.Connections() {
		if err := conn.Ping(); err != nil {
			cm.log.Warn("Ping failed, dropping connection", "conn_id", conn.ID(), "error", err)
			cm.drop(conn)
			dropped++
		}
	}
	return dropped
}

func (cm *ConnectionManager) CloseAll() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for connID, conn := range cm.connections {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "conn_id", connID, "error", err)
		}
		delete(cm.connections, connID)
	}

	cm.log.Info("All connections closed")
	return nil
}

func (cm *ConnectionManager) drop(conn domain.WebSocketConnection) {
	if err := conn.Close(); err != nil {
		cm.log.Debug("Failed to close dropped connection", "conn_id", conn.ID(), "error", err)
	}
	cm.UnregisterConnection(conn.ID())
}
