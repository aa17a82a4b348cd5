package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/campuslive/signaling/internal/application/config"
	"github.com/campuslive/signaling/internal/application/constant"
	"github.com/campuslive/signaling/internal/domain/events"
	"github.com/campuslive/signaling/internal/infra/adapters/memory"
	"github.com/campuslive/signaling/internal/usecase"
)

const (
	// readLimit is generous enough for any SDP payload.
	readLimit = 64 * 1024

	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	signalingUsecase usecase.SignalingUsecase

	connRegistry memory.ConnectionRegistry
}

func NewWebSocketHandler(
	cfg *config.Config,
	signalingUsecase usecase.SignalingUsecase,
	connRegistry memory.ConnectionRegistry,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.AllowedOrigin
			},
		},
		signalingUsecase: signalingUsecase,
		connRegistry:     connRegistry,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	// The connection id is assigned here, on accept. A reconnecting peer
	// gets a fresh one.
	clientID := uuid.NewString()

	h.connRegistry.Add(clientID, ws)

	defer func() {
		if err := h.signalingUsecase.HandleDisconnect(c.Request().Context(), clientID); err != nil {
			slog.Error(
				"handle disconnect",
				slog.Any(constant.Error, err),
				slog.String(constant.ClientID, clientID),
			)
		}

		h.connRegistry.Remove(clientID)
	}()

	slog.Info("WebSocket connection established", slog.String(constant.ClientID, clientID))

	if err := h.signalingUsecase.HandleConnect(c.Request().Context(), clientID); err != nil {
		return err
	}

	ws.SetReadLimit(readLimit)

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			h.handleWebsocketError(clientID, err)
			return nil
		}

		signalMessage := new(events.Message)

		if err = json.Unmarshal(msg, signalMessage); err != nil {
			slog.Error(
				"unmarshal websocket message",
				slog.Any(constant.Error, err),
				slog.String(constant.ClientID, clientID),
			)

			return nil
		}

		if err = h.handleMessage(c.Request().Context(), clientID, signalMessage); err != nil {
			slog.Error(
				"handle message",
				slog.Any(constant.Error, err),
				slog.String(constant.ClientID, clientID),
			)
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	clientID string,
	msg *events.Message,
) error {
	switch msg.Type {
	case events.TypeJoinRoom:
		var join events.JoinEvent

		if err := json.Unmarshal(msg.Data, &join); err != nil {
			return fmt.Errorf("unmarshal join event: %w", err)
		}

		if err := h.signalingUsecase.HandleJoin(ctx, clientID, join); err != nil {
			return fmt.Errorf("handle join: %w", err)
		}

	case events.TypeOffer:
		var signal events.SignalEvent

		if err := json.Unmarshal(msg.Data, &signal); err != nil {
			return fmt.Errorf("unmarshal offer: %w", err)
		}

		if err := h.signalingUsecase.HandleOffer(ctx, clientID, signal); err != nil {
			return fmt.Errorf("handle offer: %w", err)
		}

	case events.TypeAnswer:
		var signal events.SignalEvent

		if err := json.Unmarshal(msg.Data, &signal); err != nil {
			return fmt.Errorf("unmarshal answer: %w", err)
		}

		if err := h.signalingUsecase.HandleAnswer(ctx, clientID, signal); err != nil {
			return fmt.Errorf("handle answer: %w", err)
		}

	case events.TypeICECandidate:
		var signal events.SignalEvent

		if err := json.Unmarshal(msg.Data, &signal); err != nil {
			return fmt.Errorf("unmarshal ice candidate: %w", err)
		}

		if err := h.signalingUsecase.HandleCandidate(ctx, clientID, signal); err != nil {
			return fmt.Errorf("handle ice candidate: %w", err)
		}

	case events.TypePing:
		h.signalingUsecase.HandlePing(ctx, clientID)

	default:
		return errors.New("unknown message type")
	}

	return nil
}

func (h *WebSocketHandler) handleWebsocketError(clientID string, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("client disconnected from websocket", slog.String(constant.ClientID, clientID))
		default:
			slog.Error(
				"websocket close error",
				slog.Any(constant.Error, err),
				slog.String(constant.ClientID, clientID),
			)
		}
	} else {
		slog.Error(
			"websocket read",
			slog.Any(constant.Error, err),
			slog.String(constant.ClientID, clientID),
		)
	}
}
