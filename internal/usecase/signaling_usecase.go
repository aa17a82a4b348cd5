package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campuslive/signaling/internal/application/constant"
	"github.com/campuslive/signaling/internal/application/metric"
	"github.com/campuslive/signaling/internal/domain/events"
	"github.com/campuslive/signaling/internal/infra/adapters/memory"
)

// SignalingUsecase implements the relay protocol: room membership,
// presence broadcasts and point-to-point signal forwarding. It knows
// nothing about users or persistence, only connections and rooms.
type SignalingUsecase interface {
	HandleConnect(ctx context.Context, clientID string) error

	HandleJoin(ctx context.Context, clientID string, join events.JoinEvent) error

	HandleOffer(ctx context.Context, clientID string, signal events.SignalEvent) error
	HandleAnswer(ctx context.Context, clientID string, signal events.SignalEvent) error
	HandleCandidate(ctx context.Context, clientID string, signal events.SignalEvent) error

	// HandleDisconnect tears down room membership and notifies the
	// remaining members. Idempotent.
	HandleDisconnect(ctx context.Context, clientID string) error

	HandlePing(ctx context.Context, clientID string)
}

type signalingUsecase struct {
	connRegistry memory.ConnectionRegistry
	roomRegistry memory.RoomRegistry
}

func NewSignalingUsecase(
	connRegistry memory.ConnectionRegistry,
	roomRegistry memory.RoomRegistry,
) SignalingUsecase {
	return &signalingUsecase{
		connRegistry: connRegistry,
		roomRegistry: roomRegistry,
	}
}

// HandleConnect acknowledges a freshly accepted connection with its id.
// The peer needs it to be addressable by others and to recognize its own
// id in presence events.
func (s *signalingUsecase) HandleConnect(ctx context.Context, clientID string) error {
	if err := s.send(clientID, events.TypeConnected, events.ConnectedEvent{ID: clientID}); err != nil {
		return fmt.Errorf("send connected ack: %w", err)
	}

	return nil
}

func (s *signalingUsecase) HandleJoin(ctx context.Context, clientID string, join events.JoinEvent) error {
	if join.RoomName == "" {
		return s.send(clientID, events.TypeError, events.ErrorEvent{Message: "roomName is required"})
	}

	// A connection belongs to at most one room. A second join moves the
	// client: the old room sees the same event a disconnect would produce.
	if prev, ok := s.roomRegistry.Room(clientID); ok {
		if prev == join.RoomName {
			return nil
		}

		s.leaveAndNotify(clientID)
	}

	s.roomRegistry.Join(clientID, join.RoomName)

	slog.Info(
		"client joined room",
		slog.String(constant.ClientID, clientID),
		slog.String(constant.Room, join.RoomName),
	)

	if err := s.broadcast(join.RoomName, clientID, events.TypeUserConnected, events.PresenceEvent{ID: clientID}); err != nil {
		return fmt.Errorf("broadcast user-connected: %w", err)
	}

	return nil
}

func (s *signalingUsecase) HandleOffer(ctx context.Context, clientID string, signal events.SignalEvent) error {
	return s.relay(clientID, events.TypeOffer, signal)
}

func (s *signalingUsecase) HandleAnswer(ctx context.Context, clientID string, signal events.SignalEvent) error {
	return s.relay(clientID, events.TypeAnswer, signal)
}

func (s *signalingUsecase) HandleCandidate(ctx context.Context, clientID string, signal events.SignalEvent) error {
	return s.relay(clientID, events.TypeICECandidate, signal)
}

// relay forwards a signal to its target, stamping the sender's id. A
// target that is not connected means the message is silently dropped:
// negotiation above this layer times out and retries with a fresh
// target lookup.
func (s *signalingUsecase) relay(from, kind string, signal events.SignalEvent) error {
	if signal.Target == "" || !s.connRegistry.Has(signal.Target) {
		metric.SignalDropped(kind)

		slog.Debug(
			"signal target not connected, dropping",
			slog.String(constant.ClientID, from),
			slog.String(constant.Target, signal.Target),
		)

		return nil
	}

	err := s.send(signal.Target, kind, events.RelayedSignal{
		From:      from,
		SDP:       signal.SDP,
		Candidate: signal.Candidate,
	})
	if err != nil {
		return fmt.Errorf("relay %s: %w", kind, err)
	}

	metric.SignalRelayed(kind)

	return nil
}

func (s *signalingUsecase) HandleDisconnect(ctx context.Context, clientID string) error {
	roomName, ok := s.leaveAndNotify(clientID)
	if !ok {
		// Never joined, nothing to announce.
		return nil
	}

	slog.Info(
		"client left room",
		slog.String(constant.ClientID, clientID),
		slog.String(constant.Room, roomName),
	)

	return nil
}

func (s *signalingUsecase) HandlePing(ctx context.Context, clientID string) {
	s.connRegistry.Write(clientID, events.Message{Type: events.TypePong})
}

// leaveAndNotify clears the client's membership and tells the remaining
// members. Broadcast happens after removal so the leaver never receives
// its own leave event.
func (s *signalingUsecase) leaveAndNotify(clientID string) (string, bool) {
	roomName, ok := s.roomRegistry.Leave(clientID)
	if !ok {
		return "", false
	}

	if err := s.broadcast(roomName, clientID, events.TypeUserDisconnected, events.PresenceEvent{ID: clientID}); err != nil {
		slog.Error(
			"broadcast user-disconnected",
			slog.Any(constant.Error, err),
			slog.String(constant.Room, roomName),
		)
	}

	return roomName, true
}

// broadcast sends an event to every member of a room except exclude.
func (s *signalingUsecase) broadcast(roomName, exclude, msgType string, payload any) error {
	msg, err := events.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	for _, memberID := range s.roomRegistry.Members(roomName) {
		if memberID == exclude {
			continue
		}

		s.connRegistry.Write(memberID, msg)
	}

	return nil
}

func (s *signalingUsecase) send(clientID, msgType string, payload any) error {
	msg, err := events.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	s.connRegistry.Write(clientID, msg)

	return nil
}
