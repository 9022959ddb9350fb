package hub_test

import (
	"testing"

	"github.com/bumpring/bumpring/internal/hub"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newConn(t *testing.T, userID, groupID string, queueSize int) *hub.Connection {
	t.Helper()
	return hub.NewConnection(nil, userID, groupID, queueSize, zap.NewNop())
}

func receive(t *testing.T, conn *hub.Connection) map[string]any {
	t.Helper()

	select {
	case data := <-conn.Outbound():
		var decoded map[string]any

		require.NoError(t, sonic.Unmarshal(data, &decoded))

		return decoded
	default:
		t.Fatal("expected a queued event")
		return nil
	}
}

func TestBroadcastExcludesActor(t *testing.T) {
	t.Parallel()

	h := hub.New(zap.NewNop())

	actor := newConn(t, "mom", "group-1", 4)
	other := newConn(t, "grandma", "group-1", 4)
	h.Register(actor)
	h.Register(other)

	h.Broadcast("group-1", hub.WarmthUpdated{PostID: "post-1"}, "mom")

	decoded := receive(t, other)
	assert.Equal(t, "warmth-updated", decoded["type"])

	// The acting user already has the authoritative response
	assert.Empty(t, actor.Outbound())
}

func TestBroadcastScopedToGroup(t *testing.T) {
	t.Parallel()

	h := hub.New(zap.NewNop())

	inside := newConn(t, "grandma", "group-1", 4)
	outside := newConn(t, "stranger", "group-2", 4)
	h.Register(inside)
	h.Register(outside)

	h.Broadcast("group-1", hub.WarmthUpdated{PostID: "post-1"}, "")

	assert.Len(t, inside.Outbound(), 1)
	assert.Empty(t, outside.Outbound())
}

func TestBroadcastPrunesDeadConnections(t *testing.T) {
	t.Parallel()

	h := hub.New(zap.NewNop())

	// Queue size 1: the second broadcast overflows and marks it dead
	slow := newConn(t, "grandma", "group-1", 1)
	h.Register(slow)
	require.Equal(t, 1, h.GroupSize("group-1"))

	h.Broadcast("group-1", hub.WarmthUpdated{PostID: "post-1"}, "")
	h.Broadcast("group-1", hub.WarmthUpdated{PostID: "post-1"}, "")

	assert.Equal(t, 0, h.GroupSize("group-1"))
}

func TestBroadcastAfterClose(t *testing.T) {
	t.Parallel()

	h := hub.New(zap.NewNop())

	conn := newConn(t, "grandma", "group-1", 4)
	h.Register(conn)
	conn.Close()

	// Closed connections are treated as dead and pruned, not written to
	h.Broadcast("group-1", hub.WarmthUpdated{PostID: "post-1"}, "")

	assert.Equal(t, 0, h.GroupSize("group-1"))
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestUnregisterDropsEmptyGroups(t *testing.T) {
	t.Parallel()

	h := hub.New(zap.NewNop())

	conn := newConn(t, "grandma", "group-1", 4)
	h.Register(conn)
	h.Unregister(conn)

	assert.Equal(t, 0, h.GroupSize("group-1"))
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestMarshalEventEnvelope(t *testing.T) {
	t.Parallel()

	data, err := hub.MarshalEvent(hub.ReactionChanged{
		PostID:   "post-1",
		TargetID: "post-1",
		ActorID:  "mom",
	})
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			PostID  string `json:"postId"`
			ActorID string `json:"actorId"`
		} `json:"data"`
	}

	require.NoError(t, sonic.Unmarshal(data, &decoded))
	assert.Equal(t, "reaction-changed", decoded.Type)
	assert.Equal(t, "post-1", decoded.Data.PostID)
	assert.Equal(t, "mom", decoded.Data.ActorID)
}
