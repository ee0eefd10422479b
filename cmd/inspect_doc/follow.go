package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"redline-be/internal/config"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/session"
	"redline-be/pkg/relayclient"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

type relayOrigin struct{}

func syncURL(cfg *config.Config, documentID string) string {
	return fmt.Sprintf("ws://localhost:%s/ws/documents/%s/sync", cfg.App.Port, documentID)
}

// follow joins the document's sync socket at url as a read-only peer. Binary
// frames are replica updates and get applied to sess, text frames are printed
// by type.
func follow(ctx context.Context, url string, secret []byte, documentID string, sess *session.Session) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := relayclient.New(relayclient.Config{
		URL: url,
		Token: func(ctx context.Context, refresh bool) (string, error) {
			token, _, err := serverutils.IssueSocketToken(secret, "inspect_doc", documentID, serverutils.SocketTokenTTL)
			return token, err
		},
		Logger: logger.Named("relay"),
	})

	color.Yellow("\nFOLLOWING (ctrl-c to stop)")
	last := sess.DocumentText()
	return client.Run(ctx, func(messageType int, data []byte) {
		stamp := time.Now().Format("15:04:05")
		switch messageType {
		case websocket.BinaryMessage:
			if err := sess.Doc().ApplyUpdate(data, relayOrigin{}); err != nil {
				color.Red("%s update %dB rejected: %v", stamp, len(data), err)
				return
			}
			text := sess.DocumentText()
			if text == last {
				color.HiBlack("%s update %dB", stamp, len(data))
				return
			}
			last = text
			color.Green("%s update %dB", stamp, len(data))
			fmt.Println(text)
		case websocket.TextMessage:
			var frame struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
				frame.Type = "unknown"
			}
			color.Cyan("%s %s %dB", stamp, frame.Type, len(data))
		}
	})
}
