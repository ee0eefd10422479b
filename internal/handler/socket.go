package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Close codes sent on the sockets.
const (
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
	CloseNotFound     = 4404
)

// socketToken reads the token from the query string, which browsers can set,
// and falls back to a bearer header for other clients.
func socketToken(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}
