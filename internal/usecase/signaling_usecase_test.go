package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslive/signaling/internal/domain/events"
	"github.com/campuslive/signaling/internal/infra/adapters/memory"
)

// fakeConnRegistry records outbound messages instead of writing to real
// websocket connections.
type fakeConnRegistry struct {
	connected map[string]bool
	writes    map[string][]events.Message
}

func newFakeConnRegistry(clientIDs ...string) *fakeConnRegistry {
	f := &fakeConnRegistry{
		connected: make(map[string]bool),
		writes:    make(map[string][]events.Message),
	}
	for _, id := range clientIDs {
		f.connected[id] = true
	}
	return f
}

func (f *fakeConnRegistry) Add(clientID string, _ *websocket.Conn) {
	f.connected[clientID] = true
}

func (f *fakeConnRegistry) Remove(clientID string) {
	delete(f.connected, clientID)
}

func (f *fakeConnRegistry) Has(clientID string) bool {
	return f.connected[clientID]
}

func (f *fakeConnRegistry) Write(clientID string, payload any) {
	if !f.connected[clientID] {
		return
	}

	msg, ok := payload.(events.Message)
	if !ok {
		panic("unexpected payload type")
	}

	f.writes[clientID] = append(f.writes[clientID], msg)
}

func (f *fakeConnRegistry) messagesOfType(clientID, msgType string) []events.Message {
	var out []events.Message
	for _, msg := range f.writes[clientID] {
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

func setup(clientIDs ...string) (SignalingUsecase, *fakeConnRegistry) {
	conns := newFakeConnRegistry(clientIDs...)
	return NewSignalingUsecase(conns, memory.NewRoomRegistry()), conns
}

func join(t *testing.T, uc SignalingUsecase, clientID, roomName string) {
	t.Helper()
	require.NoError(t, uc.HandleJoin(context.Background(), clientID, events.JoinEvent{RoomName: roomName}))
}

func presenceID(t *testing.T, msg events.Message) string {
	t.Helper()
	var ev events.PresenceEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	return ev.ID
}

func TestHandleConnectAcknowledgesOwnID(t *testing.T) {
	uc, conns := setup("a")

	require.NoError(t, uc.HandleConnect(context.Background(), "a"))

	acks := conns.messagesOfType("a", events.TypeConnected)
	require.Len(t, acks, 1)

	var ev events.ConnectedEvent
	require.NoError(t, json.Unmarshal(acks[0].Data, &ev))
	assert.Equal(t, "a", ev.ID)
}

func TestJoinNotifiesExistingMembersOnly(t *testing.T) {
	uc, conns := setup("a", "b", "c")

	join(t, uc, "a", "lobby")
	join(t, uc, "b", "lobby")
	join(t, uc, "c", "lobby")

	// C's join reaches A and B exactly once, never C itself.
	assert.Empty(t, conns.messagesOfType("c", events.TypeUserConnected))

	for _, id := range []string{"a", "b"} {
		joins := conns.messagesOfType(id, events.TypeUserConnected)

		var fromC int
		for _, msg := range joins {
			if presenceID(t, msg) == "c" {
				fromC++
			}
		}
		assert.Equal(t, 1, fromC, "member %s", id)
	}
}

func TestJoinEmptyRoomNameRejected(t *testing.T) {
	uc, conns := setup("a")

	require.NoError(t, uc.HandleJoin(context.Background(), "a", events.JoinEvent{}))

	require.Len(t, conns.messagesOfType("a", events.TypeError), 1)

	// Membership unchanged: a later disconnect announces nothing.
	require.NoError(t, uc.HandleDisconnect(context.Background(), "a"))
	assert.Empty(t, conns.messagesOfType("a", events.TypeUserDisconnected))
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	uc, conns := setup("a", "b", "c")

	join(t, uc, "a", "old")
	join(t, uc, "b", "old")
	join(t, uc, "c", "new")

	join(t, uc, "b", "new")

	// The old room sees the departure, the new room sees the arrival.
	leaves := conns.messagesOfType("a", events.TypeUserDisconnected)
	require.Len(t, leaves, 1)
	assert.Equal(t, "b", presenceID(t, leaves[0]))

	joins := conns.messagesOfType("c", events.TypeUserConnected)
	require.Len(t, joins, 1)
	assert.Equal(t, "b", presenceID(t, joins[0]))
}

func TestJoinSameRoomTwiceIsNoop(t *testing.T) {
	uc, conns := setup("a", "b")

	join(t, uc, "a", "lobby")
	join(t, uc, "b", "lobby")

	join(t, uc, "b", "lobby")

	assert.Len(t, conns.messagesOfType("a", events.TypeUserConnected), 1)
	assert.Empty(t, conns.messagesOfType("a", events.TypeUserDisconnected))
}

func TestOfferRelayedToTargetOnly(t *testing.T) {
	uc, conns := setup("a", "b", "c")

	join(t, uc, "a", "lobby")
	join(t, uc, "b", "lobby")
	join(t, uc, "c", "lobby")

	sdp := json.RawMessage(`"abc"`)
	require.NoError(t, uc.HandleOffer(context.Background(), "a", events.SignalEvent{Target: "b", SDP: sdp}))

	offers := conns.messagesOfType("b", events.TypeOffer)
	require.Len(t, offers, 1)

	var relayed events.RelayedSignal
	require.NoError(t, json.Unmarshal(offers[0].Data, &relayed))
	assert.Equal(t, "a", relayed.From)
	assert.JSONEq(t, `"abc"`, string(relayed.SDP))

	assert.Empty(t, conns.messagesOfType("a", events.TypeOffer))
	assert.Empty(t, conns.messagesOfType("c", events.TypeOffer))
}

func TestCandidatePayloadForwardedVerbatim(t *testing.T) {
	uc, conns := setup("a", "b")

	// The relay never parses negotiation payloads; arbitrary JSON
	// structures must survive untouched.
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 10.0.0.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}`)

	require.NoError(t, uc.HandleCandidate(context.Background(), "a", events.SignalEvent{Target: "b", Candidate: candidate}))

	msgs := conns.messagesOfType("b", events.TypeICECandidate)
	require.Len(t, msgs, 1)

	var relayed events.RelayedSignal
	require.NoError(t, json.Unmarshal(msgs[0].Data, &relayed))
	assert.Equal(t, "a", relayed.From)
	assert.JSONEq(t, string(candidate), string(relayed.Candidate))
}

func TestMissingTargetSilentlyDropped(t *testing.T) {
	uc, conns := setup("a")

	join(t, uc, "a", "lobby")

	err := uc.HandleOffer(context.Background(), "a", events.SignalEvent{
		Target: "nonexistent",
		SDP:    json.RawMessage(`"abc"`),
	})
	require.NoError(t, err)

	// No delivery anywhere and no error surfaced to the sender.
	for id, msgs := range conns.writes {
		for _, msg := range msgs {
			assert.NotEqual(t, events.TypeOffer, msg.Type, "client %s", id)
			assert.NotEqual(t, events.TypeError, msg.Type, "client %s", id)
		}
	}
}

func TestDisconnectBroadcastsToRemainingMembers(t *testing.T) {
	uc, conns := setup("a", "b", "c")

	join(t, uc, "a", "lobby")
	join(t, uc, "b", "lobby")
	join(t, uc, "c", "lobby")

	conns.Remove("c")
	require.NoError(t, uc.HandleDisconnect(context.Background(), "c"))

	for _, id := range []string{"a", "b"} {
		leaves := conns.messagesOfType(id, events.TypeUserDisconnected)
		require.Len(t, leaves, 1, "member %s", id)
		assert.Equal(t, "c", presenceID(t, leaves[0]))
	}

	assert.Empty(t, conns.messagesOfType("c", events.TypeUserDisconnected))
}

func TestDisconnectWithoutJoinIsNoop(t *testing.T) {
	uc, conns := setup("a", "b")

	join(t, uc, "b", "lobby")

	require.NoError(t, uc.HandleDisconnect(context.Background(), "a"))

	assert.Empty(t, conns.messagesOfType("b", events.TypeUserDisconnected))
}

func TestDisconnectTwiceIsIdempotent(t *testing.T) {
	uc, conns := setup("a", "b")

	join(t, uc, "a", "lobby")
	join(t, uc, "b", "lobby")

	require.NoError(t, uc.HandleDisconnect(context.Background(), "a"))
	require.NoError(t, uc.HandleDisconnect(context.Background(), "a"))

	assert.Len(t, conns.messagesOfType("b", events.TypeUserDisconnected), 1)
}

// The end-to-end negotiation flow from the protocol description: join,
// offer, peer loss, stale retry.
func TestNegotiationScenario(t *testing.T) {
	uc, conns := setup("a", "b")

	join(t, uc, "a", "lobby")
	join(t, uc, "b", "lobby")

	require.NoError(t, uc.HandleOffer(context.Background(), "a", events.SignalEvent{Target: "b", SDP: json.RawMessage(`"abc"`)}))

	offers := conns.messagesOfType("b", events.TypeOffer)
	require.Len(t, offers, 1)

	var relayed events.RelayedSignal
	require.NoError(t, json.Unmarshal(offers[0].Data, &relayed))
	assert.Equal(t, "a", relayed.From)

	conns.Remove("b")
	require.NoError(t, uc.HandleDisconnect(context.Background(), "b"))

	leaves := conns.messagesOfType("a", events.TypeUserDisconnected)
	require.Len(t, leaves, 1)
	assert.Equal(t, "b", presenceID(t, leaves[0]))

	// Stale target: dropped without an error to the sender.
	require.NoError(t, uc.HandleOffer(context.Background(), "a", events.SignalEvent{Target: "b", SDP: json.RawMessage(`"retry"`)}))
	assert.Empty(t, conns.messagesOfType("a", events.TypeError))
}
