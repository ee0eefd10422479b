package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"redline-be/internal/config"
	"redline-be/internal/model"
	"redline-be/internal/service"
	"redline-be/internal/session"
	"redline-be/pkg/database"
	"redline-be/pkg/doctree"
	"redline-be/pkg/lexical"

	"github.com/fatih/color"
)

// inspect_doc prints the tree, threads and update log of one document.
// With --follow it then joins the running server's sync socket and prints
// every change peers make.
//
//	go run ./cmd/inspect_doc <document-id> [--follow]
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: inspect_doc <document-id> [--follow]")
	}
	documentID := os.Args[1]
	following := len(os.Args) > 2 && os.Args[2] == "--follow"
	ctx := context.Background()

	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	var doc model.Document
	if err := db.Where("id = ?", documentID).First(&doc).Error; err != nil {
		log.Fatal("Document not found:", err)
	}
	color.Cyan("🔍 INSPECTING DOCUMENT: %s (%s)", doc.Title, doc.Id)
	fmt.Printf("Owner: %s  Version: %s  Snapshot: %s\n", doc.OwnerId, doc.Version, doc.SnapshotKey)

	sess, err := session.New(documentID, session.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	var updates []model.DocumentUpdate
	if err := db.Where("document_id = ?", documentID).Order("seq ASC").Find(&updates).Error; err != nil {
		log.Fatal("Error: Failed to read update log:", err)
	}
	color.Yellow("\nUPDATE LOG (%d entries)", len(updates))
	for _, u := range updates {
		status := color.GreenString("ok")
		if err := sess.Doc().ApplyUpdate(u.Data, nil); err != nil {
			status = color.RedString("bad: %v", err)
		}
		fmt.Printf("  #%d %s client=%s %dB %s\n", u.Seq, u.CreatedAt.Format("2006-01-02 15:04:05"), u.ClientId, len(u.Data), status)
	}

	if !sess.Replicated() {
		color.HiBlack("update log holds no tree, reading the snapshot")
		state := lexical.NewEditorState()
		if doc.SnapshotKey != "" {
			snapshots, err := service.NewMinioSnapshotService(ctx, cfg.MinIO)
			if err != nil {
				log.Fatal("Error: Failed to connect to MinIO:", err)
			}
			data, err := snapshots.Load(ctx, doc.SnapshotKey)
			if err != nil {
				log.Fatal("Error: Failed to load snapshot:", err)
			}
			if state, err = lexical.Decode(data); err != nil {
				log.Fatal("Error: Snapshot is not a valid editor state:", err)
			}
		}
		if err := sess.Load(state); err != nil {
			log.Fatal("Error: Failed to load tree:", err)
		}
	}

	color.Yellow("\nTREE")
	_ = sess.Tree().Read(func(tx *doctree.Tx) error {
		printNode(tx, tx.Root(), 0)
		return nil
	})

	color.Yellow("\nTHREADS")
	for _, th := range sess.SortedThreads() {
		status := color.GreenString("open")
		if th.Resolved {
			status = color.HiBlackString("resolved")
		}
		fmt.Printf("  %s [%s, %s] %q\n", th.ID, th.Layer, status, sess.MarkText(th.ID))
		for _, c := range th.Comments {
			fmt.Printf("    - %s: %s\n", c.AuthorDetails.FullName, c.Content)
		}
	}

	color.Yellow("\nDOCUMENT TEXT")
	fmt.Println(sess.DocumentText())

	if following {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := follow(ctx, syncURL(cfg, documentID), []byte(cfg.App.JWTSecret), documentID, sess); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal("Error: Sync socket:", err)
		}
	}
}

func printNode(tx *doctree.Tx, n *doctree.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	label := fmt.Sprintf("%s%s %s (%s)", indent, n.Key, n.Kind, n.Type)

	switch n.Kind {
	case doctree.KindDeletion:
		color.Red("%s", label)
	case doctree.KindInsertion:
		color.Green("%s change=%s", label, n.ChangeID)
	case doctree.KindMark:
		color.Magenta("%s ids=%v", label, n.IDs)
	case doctree.KindText:
		fmt.Printf("%s %q\n", label, n.Text)
	default:
		fmt.Println(label)
	}

	for _, child := range tx.Children(n.Key) {
		printNode(tx, child, depth+1)
	}
}
