package handler

import (
	"context"
	"encoding/json"
	"errors"

	"redline-be/internal/pkg/logger"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/service"
	internalWS "redline-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type textFrame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// StateFrame is written to a joining client before the update replay.
type StateFrame struct {
	Type    string          `json:"type"`
	Version string          `json:"version"`
	Content json.RawMessage `json:"content"`
}

// SyncHandler serves the document sync socket. Binary frames are replica
// updates; text frames carry awareness or a full editor state.
type SyncHandler struct {
	documents service.IDocumentService
	hub       *internalWS.Hub
	secret    []byte
	logger    logger.ILogger
}

func NewSyncHandler(documents service.IDocumentService, hub *internalWS.Hub, secret []byte, log logger.ILogger) *SyncHandler {
	return &SyncHandler{
		documents: documents,
		hub:       hub,
		secret:    secret,
		logger:    log,
	}
}

func (h *SyncHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	room := c.Params("id")
	token := socketToken(c)

	return websocket.New(func(conn *websocket.Conn) {
		claims, err := serverutils.VerifySocketToken(h.secret, token, room)
		if err != nil {
			h.logger.Warn("SyncHandler", "Socket rejected", map[string]interface{}{"room": room, "error": err.Error()})
			if errors.Is(err, serverutils.ErrSocketForbidden) {
				internalWS.CloseWith(conn, CloseForbidden, "Forbidden")
			} else {
				internalWS.CloseWith(conn, CloseUnauthorized, "Unauthorized")
			}
			return
		}
		docId, err := uuid.Parse(room)
		if err != nil {
			internalWS.CloseWith(conn, CloseNotFound, "Not Found")
			return
		}

		ctx := context.Background()
		if _, err := h.documents.Session(ctx, docId); err != nil {
			h.logger.Warn("SyncHandler", "Document unavailable", map[string]interface{}{"room": room, "error": err.Error()})
			internalWS.CloseWith(conn, CloseNotFound, "Not Found")
			return
		}

		client := internalWS.NewClient(h.hub, conn, room, claims.UserID)
		client.OnMessage = func(cl *internalWS.Client, messageType int, data []byte) {
			h.onMessage(ctx, docId, cl, messageType, data)
		}

		h.logger.Info("SyncHandler", "Starting sync session", map[string]interface{}{"room": room, "user_id": claims.UserID, "client_id": client.ID})
		internalWS.ServeWs(h.hub, client, func(cl *internalWS.Client) error {
			return h.join(ctx, docId, cl)
		})
		h.logger.Info("SyncHandler", "Sync session ended", map[string]interface{}{"room": room, "user_id": claims.UserID, "client_id": client.ID})
	})(c)
}

// join sends the current editor state, then replays the update log in order.
func (h *SyncHandler) join(ctx context.Context, docId uuid.UUID, cl *internalWS.Client) error {
	doc, err := h.documents.Show(ctx, docId)
	if err != nil {
		return err
	}
	state, err := json.Marshal(StateFrame{Type: "state", Version: doc.Version, Content: doc.Content})
	if err != nil {
		return err
	}
	if err := cl.WriteDirect(internalWS.TextMessage, state); err != nil {
		return err
	}

	updates, err := h.documents.Updates(ctx, docId)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := cl.WriteDirect(internalWS.BinaryMessage, u.Data); err != nil {
			return err
		}
	}
	return nil
}

func (h *SyncHandler) onMessage(ctx context.Context, docId uuid.UUID, cl *internalWS.Client, messageType int, data []byte) {
	if messageType == internalWS.BinaryMessage {
		if err := h.documents.HandleUpdate(ctx, docId, cl.ID, data); err != nil {
			h.logger.Warn("SyncHandler", "Update rejected", map[string]interface{}{"room": cl.Room, "client_id": cl.ID, "error": err.Error()})
		}
		return
	}

	var frame textFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Debug("SyncHandler", "Ignoring undecodable text frame", map[string]interface{}{"room": cl.Room, "client_id": cl.ID})
		return
	}

	switch frame.Type {
	case "awareness":
		h.relayAwareness(cl, data)
	case "state":
		if err := h.documents.ReplaceContent(ctx, docId, frame.Content); err != nil {
			h.logger.Warn("SyncHandler", "State rejected", map[string]interface{}{"room": cl.Room, "client_id": cl.ID, "error": err.Error()})
		}
	default:
		h.logger.Debug("SyncHandler", "Ignoring text frame", map[string]interface{}{"room": cl.Room, "type": frame.Type})
	}
}

// relayAwareness stamps the sender and its presence color on the frame and
// passes it to the rest of the room. Awareness is never stored.
func (h *SyncHandler) relayAwareness(cl *internalWS.Client, data []byte) {
	payload := map[string]interface{}{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	payload["user_id"] = cl.UserID
	payload["client_id"] = cl.ID
	payload["color"] = presenceColor(cl.UserID)

	h.hub.BroadcastJSON(cl.Room, payload, cl.ID)
}

func (h *SyncHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/documents/:id/sync", h.ServeWs)
}
