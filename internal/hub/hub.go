// Package hub maintains the live connections of family members, grouped by
// pregnancy group, and fans change events out to everyone in the group
// except the acting user. The hub keeps no replay log: a reconnecting
// client pulls fresh state instead of expecting buffered events.
package hub

import (
	"sync"

	"go.uber.org/zap"
)

// Hub is the connection registry. All access goes through Register,
// Unregister and Broadcast; the registry is never exposed directly.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Connection]struct{}
	logger *zap.Logger
}

// New creates an empty hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Connection]struct{}),
		logger: logger.Named("hub"),
	}
}

// Register adds the connection under its pregnancy group channel.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[conn.GroupID()]
	if !ok {
		group = make(map[*Connection]struct{})
		h.groups[conn.GroupID()] = group
	}

	group[conn] = struct{}{}

	h.logger.Debug("Registered connection",
		zap.String("connID", conn.ID()),
		zap.String("groupID", conn.GroupID()),
		zap.Int("groupSize", len(group)))
}

// Unregister removes the connection from the registry and closes it.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()

	if group, ok := h.groups[conn.GroupID()]; ok {
		delete(group, conn)

		if len(group) == 0 {
			delete(h.groups, conn.GroupID())
		}
	}

	h.mu.Unlock()

	conn.Close()

	h.logger.Debug("Unregistered connection",
		zap.String("connID", conn.ID()),
		zap.String("groupID", conn.GroupID()))
}

// Broadcast sends the event to every connection in the pregnancy group
// except those belonging to excludeUserID, which already received the
// authoritative state in its synchronous response. Dead connections found
// during fan-out are pruned inline; they never abort the broadcast.
func (h *Hub) Broadcast(groupID string, event Event, excludeUserID string) {
	data, err := MarshalEvent(event)
	if err != nil {
		h.logger.Error("Failed to marshal event",
			zap.String("groupID", groupID), zap.Error(err))

		return
	}

	h.mu.RLock()

	conns := make([]*Connection, 0, len(h.groups[groupID]))
	for conn := range h.groups[groupID] {
		conns = append(conns, conn)
	}

	h.mu.RUnlock()

	var dead []*Connection

	delivered := 0

	for _, conn := range conns {
		if conn.UserID() == excludeUserID {
			continue
		}

		if conn.trySend(data) {
			delivered++
		} else {
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		h.Unregister(conn)
	}

	h.logger.Debug("Broadcast event",
		zap.String("groupID", groupID),
		zap.String("type", string(event.EventType())),
		zap.Int("delivered", delivered),
		zap.Int("pruned", len(dead)))
}

// GroupSize returns the number of live connections in a group.
func (h *Hub) GroupSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.groups[groupID])
}

// ConnectionCount returns the total number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, group := range h.groups {
		total += len(group)
	}

	return total
}
