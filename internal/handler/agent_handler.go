package handler

import (
	"context"
	"encoding/json"

	"redline-be/internal/pkg/logger"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/service"
	internalWS "redline-be/internal/websocket"
	"redline-be/pkg/agent"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// AgentHandler serves the agent socket. Each connection is its own room so
// answers only reach the client that asked.
type AgentHandler struct {
	agent  service.IAgentService
	hub    *internalWS.Hub
	secret []byte
	logger logger.ILogger
}

func NewAgentHandler(agentService service.IAgentService, hub *internalWS.Hub, secret []byte, log logger.ILogger) *AgentHandler {
	return &AgentHandler{
		agent:  agentService,
		hub:    hub,
		secret: secret,
		logger: log,
	}
}

func (h *AgentHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := socketToken(c)

	return websocket.New(func(conn *websocket.Conn) {
		claims, err := serverutils.VerifySocketToken(h.secret, token, "")
		if err != nil {
			h.logger.Warn("AgentHandler", "Socket rejected", map[string]interface{}{"error": err.Error()})
			internalWS.CloseWith(conn, CloseUnauthorized, "Unauthorized")
			return
		}

		client := internalWS.NewClient(h.hub, conn, "", claims.UserID)
		client.Room = "agent:" + client.ID

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// answers run one at a time, in the order they were asked
		inbox := make(chan agent.Inbound, 8)
		defer close(inbox)
		go h.answer(ctx, client, claims, inbox)

		client.OnMessage = func(cl *internalWS.Client, _ int, data []byte) {
			var in agent.Inbound
			if err := json.Unmarshal(data, &in); err != nil {
				h.send(cl, agent.ErrorFrame{Error: "invalid message"})
				return
			}
			select {
			case inbox <- in:
			default:
				h.send(cl, agent.ErrorFrame{Error: "too many pending messages"})
			}
		}

		h.logger.Info("AgentHandler", "Starting agent session", map[string]interface{}{"user_id": claims.UserID, "client_id": client.ID})
		internalWS.ServeWs(h.hub, client, nil)
		h.logger.Info("AgentHandler", "Agent session ended", map[string]interface{}{"user_id": claims.UserID, "client_id": client.ID})
	})(c)
}

func (h *AgentHandler) answer(ctx context.Context, cl *internalWS.Client, claims *serverutils.SocketClaims, inbox <-chan agent.Inbound) {
	for in := range inbox {
		if in.DocumentID != "" && claims.DocumentID != "" && in.DocumentID != claims.DocumentID {
			h.send(cl, agent.ErrorFrame{Error: "Forbidden"})
			continue
		}
		err := h.agent.Handle(ctx, claims.UserID, in, func(v interface{}) error {
			return h.send(cl, v)
		})
		if err != nil {
			h.logger.Warn("AgentHandler", "Agent answer failed", map[string]interface{}{"document_id": in.DocumentID, "client_id": cl.ID, "error": err.Error()})
			h.send(cl, agent.ErrorFrame{Error: err.Error()})
		}
	}
}

func (h *AgentHandler) send(cl *internalWS.Client, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.hub.SendTo(cl, internalWS.TextMessage, data)
}

func (h *AgentHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/agent", h.ServeWs)
}
