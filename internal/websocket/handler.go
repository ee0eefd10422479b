package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the client, lets onJoin write directly to the connection
// (the write pump is not running yet) and then pumps until the peer leaves.
func ServeWs(hub *Hub, client *Client, onJoin func(*Client) error) {
	hub.Register(client)

	if onJoin != nil {
		if err := onJoin(client); err != nil {
			hub.logger.Warn("Hub", "Join failed", map[string]interface{}{"room": client.Room, "error": err.Error()})
			hub.Unregister(client)
			client.Conn.Close()
			return
		}
	}

	go client.writePump()
	client.readPump()
}

// CloseWith sends a close frame with the given code and reason.
func CloseWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.Close()
}
