package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"redline-be/internal/dto"
	"redline-be/internal/entity"
	"redline-be/internal/pkg/logger"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/repository/memory"
	"redline-be/internal/repository/specification"
	"redline-be/internal/repository/unitofwork"
	"redline-be/internal/session"
	"redline-be/internal/websocket"
	"redline-be/pkg/doctree"
	"redline-be/pkg/events"
	"redline-be/pkg/lexical"
	"redline-be/pkg/thread"

	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidContent   = errors.New("content is not a valid editor state")
	ErrInvalidUpdate    = errors.New("document update rejected")
)

const (
	// the update log of a document is folded into one state update past this
	compactThreshold = 200
	downloadURLTTL   = 15 * time.Minute
)

// RoomBroadcaster fans frames out to everyone connected to a document.
type RoomBroadcaster interface {
	Broadcast(room string, messageType int, data []byte, origin string)
	BroadcastJSON(room string, v interface{}, origin string)
}

// syncOrigin marks replica updates that came in over a sync socket. They are
// persisted and relayed by HandleUpdate, not by the update listener.
type syncOrigin struct {
	clientID string
}

type IDocumentService interface {
	Create(ctx context.Context, userId string, request *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.ShowDocumentResponse, error)
	Session(ctx context.Context, id uuid.UUID) (*session.Session, error)
	IssueSocketToken(ctx context.Context, userId string, id uuid.UUID) (*dto.SocketTokenResponse, error)
	DownloadURL(ctx context.Context, id uuid.UUID) (*dto.DownloadURLResponse, error)

	ListThreads(ctx context.Context, id uuid.UUID) (*dto.ListThreadsResponse, error)
	CreateThread(ctx context.Context, author session.Author, id uuid.UUID, request *dto.CreateThreadRequest) (*dto.ThreadResponse, error)
	AddComment(ctx context.Context, author session.Author, id uuid.UUID, threadId string, request *dto.AddCommentRequest) (*dto.CommentResponse, error)
	CollectEmptyThreads(ctx context.Context, id uuid.UUID) error
	ResolveChange(ctx context.Context, author session.Author, id uuid.UUID, containerKey string, accept bool) (*dto.ResolveChangeResponse, error)
	ApplyProposal(ctx context.Context, author session.Author, id uuid.UUID, request *dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error)
	ListAgentMessages(ctx context.Context, id uuid.UUID) ([]*dto.AgentMessageResponse, error)

	HandleUpdate(ctx context.Context, id uuid.UUID, clientId string, data []byte) error
	ReplaceContent(ctx context.Context, id uuid.UUID, content json.RawMessage) error
	Updates(ctx context.Context, id uuid.UUID) ([]*entity.DocumentUpdate, error)
	Compact(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	uowFactory   unitofwork.RepositoryFactory
	sessions     *memory.SessionRepository
	snapshots    ISnapshotService
	rooms        RoomBroadcaster
	events       events.Publisher
	opts         session.Options
	socketSecret []byte
	logger       logger.ILogger

	// document id -> *outbox of its open session
	outboxes sync.Map
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	sessions *memory.SessionRepository,
	snapshots ISnapshotService,
	rooms RoomBroadcaster,
	publisher events.Publisher,
	opts session.Options,
	socketSecret []byte,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		uowFactory:   uowFactory,
		sessions:     sessions,
		snapshots:    snapshots,
		rooms:        rooms,
		events:       publisher,
		opts:         opts,
		socketSecret: socketSecret,
		logger:       log,
	}
}

func emptyState() *lexical.EditorState {
	return lexical.NewEditorState(lexical.NewParagraph())
}

func versionOf(state []byte) string {
	sum := sha256.Sum256(state)
	return hex.EncodeToString(sum[:])
}

func (c *documentService) Create(ctx context.Context, userId string, request *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	state := emptyState()
	if len(request.Content) > 0 && string(request.Content) != "null" {
		decoded, err := lexical.Decode(request.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		state = decoded
	}
	data, err := lexical.Encode(state)
	if err != nil {
		return nil, err
	}

	doc := entity.Document{
		Id:      uuid.New(),
		OwnerId: userId,
		Title:   request.Title,
		Version: versionOf(data),
	}
	key, err := c.snapshots.Save(ctx, doc.Id.String(), data)
	if err != nil {
		return nil, err
	}
	doc.SnapshotKey = key

	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().Create(ctx, &doc); err != nil {
		return nil, err
	}

	c.logger.Info("DocumentService", "Document created", map[string]interface{}{"document_id": doc.Id, "user_id": userId})
	return &dto.CreateDocumentResponse{Id: doc.Id}, nil
}

func (c *documentService) find(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (c *documentService) Show(ctx context.Context, id uuid.UUID) (*dto.ShowDocumentResponse, error) {
	doc, err := c.find(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := sess.Export()
	if err != nil {
		return nil, err
	}

	return &dto.ShowDocumentResponse{
		Id:        doc.Id,
		Title:     doc.Title,
		OwnerId:   doc.OwnerId,
		Version:   versionOf(content),
		Content:   content,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Session returns the open session of a document, loading it from the
// latest snapshot and the update log when needed.
func (c *documentService) Session(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	return c.sessions.GetOrOpen(id.String(), func(string) (*session.Session, error) {
		return c.open(ctx, id)
	})
}

func (c *documentService) open(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	doc, err := c.find(ctx, id)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(id.String(), c.opts)
	if err != nil {
		return nil, err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	updates, err := uow.DocumentUpdateRepository().FindAll(ctx, specification.ByDocumentID{DocumentID: id})
	if err != nil {
		sess.Close()
		return nil, err
	}
	for _, u := range updates {
		if err := sess.Doc().ApplyUpdate(u.Data, syncOrigin{clientID: u.ClientId}); err != nil {
			c.logger.Warn("DocumentService", "Skipping bad update on replay", map[string]interface{}{"document_id": id, "seq": u.Seq, "error": err})
		}
	}

	// a log without tree nodes starts from the snapshot, whose nodes are
	// then written to the log for the peers
	seeded := false
	if !sess.Replicated() {
		state, err := c.loadSnapshot(ctx, doc)
		if err != nil {
			sess.Close()
			return nil, err
		}
		if err := sess.Load(state); err != nil {
			sess.Close()
			return nil, err
		}
		seeded = true
	}

	if err := c.attach(id, sess); err != nil {
		sess.Close()
		return nil, err
	}
	if seeded {
		data, err := sess.Doc().EncodeState()
		if err == nil {
			err = c.appendUpdate(ctx, id, sess, sess.Doc().ClientID(), data)
		}
		if err != nil {
			c.logger.Error("DocumentService", "Failed to seed update log", map[string]interface{}{"document_id": id, "error": err})
		}
	}
	c.logger.Info("DocumentService", "Session opened", map[string]interface{}{"document_id": id, "updates": len(updates), "from_snapshot": seeded})
	return sess, nil
}

func (c *documentService) loadSnapshot(ctx context.Context, doc *entity.Document) (*lexical.EditorState, error) {
	if doc.SnapshotKey == "" {
		return emptyState(), nil
	}
	data, err := c.snapshots.Load(ctx, doc.SnapshotKey)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		c.logger.Warn("DocumentService", "Snapshot missing, starting empty", map[string]interface{}{"document_id": doc.Id, "key": doc.SnapshotKey})
		return emptyState(), nil
	case err != nil:
		return nil, err
	}
	state, err := lexical.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return state, nil
}

// attach persists and relays replica updates made on this server, and turns
// every committed tree change into a patch for the room. Both listeners run
// inside transactions, so the network side goes through the outbox.
func (c *documentService) attach(id uuid.UUID, sess *session.Session) error {
	room := id.String()
	out := newOutbox()
	c.outboxes.Store(room, out)
	sess.OnClose(func() {
		c.outboxes.CompareAndDelete(room, out)
		out.close()
	})

	clientId := sess.Doc().ClientID()
	sess.Doc().OnUpdate(func(update []byte, origin any) {
		if _, remote := origin.(syncOrigin); remote {
			return
		}
		out.push(func() {
			if err := c.appendUpdate(context.Background(), id, sess, clientId, update); err != nil {
				c.logger.Error("DocumentService", "Failed to persist update", map[string]interface{}{"document_id": id, "error": err})
			}
			c.rooms.Broadcast(room, websocket.BinaryMessage, update, "")
		})
	})

	current, err := sess.Export()
	if err != nil {
		return err
	}
	var mu sync.Mutex
	prev, prevVersion := current, versionOf(current)

	sess.OnChange(func(_ doctree.MutationEvent, state []byte) {
		mu.Lock()
		defer mu.Unlock()

		patch, err := jsondiff.CompareJSON(prev, state)
		if err != nil {
			c.logger.Warn("DocumentService", "Failed to diff snapshots", map[string]interface{}{"document_id": id, "error": err})
			return
		}
		if len(patch) == 0 {
			return
		}
		raw, err := json.Marshal(patch)
		if err != nil {
			return
		}
		next := versionOf(state)
		msg := dto.PatchMessage{
			Type:    "patch",
			Version: next,
			Parents: []string{prevVersion},
			Patch:   raw,
		}
		out.push(func() { c.rooms.BroadcastJSON(room, msg, "") })
		prev, prevVersion = state, next
	})
	return nil
}

// saveSnapshot stores the current tree and records its version.
func (c *documentService) saveSnapshot(ctx context.Context, id uuid.UUID, sess *session.Session) error {
	data, err := sess.Export()
	if err != nil {
		return err
	}
	key, err := c.snapshots.Save(ctx, id.String(), data)
	if err != nil {
		return err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	doc.SnapshotKey = key
	doc.Version = versionOf(data)
	return uow.DocumentRepository().Update(ctx, doc)
}

func (c *documentService) persist(ctx context.Context, id uuid.UUID, sess *session.Session) {
	if err := c.saveSnapshot(ctx, id, sess); err != nil {
		c.logger.Error("DocumentService", "Failed to save snapshot", map[string]interface{}{"document_id": id, "error": err})
	}
}

func (c *documentService) publish(ctx context.Context, event events.Event) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("DocumentService", "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err})
	}
}

func (c *documentService) IssueSocketToken(ctx context.Context, userId string, id uuid.UUID) (*dto.SocketTokenResponse, error) {
	if _, err := c.find(ctx, id); err != nil {
		return nil, err
	}
	token, expires, err := serverutils.IssueSocketToken(c.socketSecret, userId, id.String(), serverutils.SocketTokenTTL)
	if err != nil {
		return nil, err
	}
	return &dto.SocketTokenResponse{Token: token, ExpiresAt: expires}, nil
}

func (c *documentService) DownloadURL(ctx context.Context, id uuid.UUID) (*dto.DownloadURLResponse, error) {
	doc, err := c.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess, ok := c.sessions.Get(id.String()); ok {
		if err := c.saveSnapshot(ctx, id, sess); err != nil {
			return nil, err
		}
	}
	url, err := c.snapshots.DownloadURL(ctx, doc.SnapshotKey, downloadURLTTL)
	if err != nil {
		return nil, err
	}
	return &dto.DownloadURLResponse{URL: url, ExpiresAt: time.Now().Add(downloadURLTTL)}, nil
}

func (c *documentService) threadResponse(sess *session.Session, th thread.Thread) dto.ThreadResponse {
	layer := sess.Options().VisibleLayer
	comments := thread.DisplayComments(th, sess.Local())
	res := dto.ThreadResponse{
		Id:       th.ID,
		Layer:    th.Layer,
		Resolved: th.Resolved,
		Comments: make([]dto.CommentResponse, 0, len(comments)),
	}
	for _, cm := range comments {
		res.Comments = append(res.Comments, dto.CommentResponse{
			Comment:  cm,
			Disabled: thread.CommentDisabled(layer, th, cm),
		})
	}
	return res
}

func (c *documentService) ListThreads(ctx context.Context, id uuid.UUID) (*dto.ListThreadsResponse, error) {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	threads := sess.SortedThreads()
	res := &dto.ListThreadsResponse{
		Threads: make([]dto.ThreadResponse, 0, len(threads)),
		Layout:  sess.Layout(),
	}
	for _, th := range threads {
		res.Threads = append(res.Threads, c.threadResponse(sess, th))
	}
	return res, nil
}

func (c *documentService) CreateThread(ctx context.Context, author session.Author, id uuid.UUID, request *dto.CreateThreadRequest) (*dto.ThreadResponse, error) {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	sel := doctree.TextRange(request.AnchorKey, request.AnchorOffset, request.FocusKey, request.FocusOffset)
	th, err := sess.AddThread(sel, request.Content, author)
	if err != nil {
		return nil, err
	}
	c.persist(ctx, id, sess)
	c.publish(ctx, events.NewThreadCreated(id.String(), th.ID, author.ID))

	res := c.threadResponse(sess, th)
	return &res, nil
}

func (c *documentService) AddComment(ctx context.Context, author session.Author, id uuid.UUID, threadId string, request *dto.AddCommentRequest) (*dto.CommentResponse, error) {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	cm, err := sess.AddComment(threadId, request.Content, author)
	if err != nil {
		return nil, err
	}
	th, _, _ := sess.Threads().Get(threadId)
	return &dto.CommentResponse{
		Comment:  cm,
		Disabled: thread.CommentDisabled(sess.Options().VisibleLayer, th, cm),
	}, nil
}

func (c *documentService) CollectEmptyThreads(ctx context.Context, id uuid.UUID) error {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.CollectEmptyThreads(); err != nil {
		return err
	}
	c.persist(ctx, id, sess)
	return nil
}

func (c *documentService) ResolveChange(ctx context.Context, author session.Author, id uuid.UUID, containerKey string, accept bool) (*dto.ResolveChangeResponse, error) {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	resolve := sess.Reject
	if accept {
		resolve = sess.Accept
	}
	res, err := resolve(ctx, containerKey, author)
	if err != nil {
		return nil, err
	}
	if res.Resolved > 0 {
		c.persist(ctx, id, sess)
		c.publish(ctx, events.NewChangeResolved(accept, id.String(), containerKey, res.ThreadIDs, author.ID))
	}

	threadIds := res.ThreadIDs
	if threadIds == nil {
		threadIds = []string{}
	}
	return &dto.ResolveChangeResponse{
		ContainerKey: containerKey,
		Action:       res.Action,
		Resolved:     res.Resolved,
		ThreadIds:    threadIds,
	}, nil
}

func (c *documentService) ApplyProposal(ctx context.Context, author session.Author, id uuid.UUID, request *dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error) {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := sess.ApplyProposal(request.Changes, request.Justification, author)
	if err != nil {
		c.logger.Warn("DocumentService", "Proposal rejected", map[string]interface{}{"document_id": id, "error": err})
		return nil, err
	}
	c.persist(ctx, id, sess)
	c.publish(ctx, events.NewProposalApplied(id.String(), res.ThreadIDs, author.ID))

	return &dto.ApplyProposalResponse{ThreadIds: res.ThreadIDs}, nil
}

func (c *documentService) ListAgentMessages(ctx context.Context, id uuid.UUID) ([]*dto.AgentMessageResponse, error) {
	if _, err := c.find(ctx, id); err != nil {
		return nil, err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	msgs, err := uow.AgentMessageRepository().FindAll(ctx, specification.ByDocumentID{DocumentID: id})
	if err != nil {
		return nil, err
	}

	res := make([]*dto.AgentMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		metadata := map[string]interface{}{
			"has_document_content": m.Metadata.HasDocumentContent,
		}
		if m.Metadata.Model != "" {
			metadata["model"] = m.Metadata.Model
		}
		if m.Metadata.ThreadId != "" {
			metadata["thread_id"] = m.Metadata.ThreadId
		}
		if m.Metadata.Changes != "" {
			metadata["changes"] = m.Metadata.Changes
			metadata["justification"] = m.Metadata.Justification
		}
		res = append(res, &dto.AgentMessageResponse{
			Id:        m.Id,
			UserId:    m.UserId,
			Role:      m.Role,
			Content:   m.Content,
			Metadata:  metadata,
			Timestamp: m.CreatedAt,
		})
	}
	return res, nil
}

// HandleUpdate merges an update received on a sync socket, appends it to
// the log and relays it to the rest of the room.
func (c *documentService) HandleUpdate(ctx context.Context, id uuid.UUID, clientId string, data []byte) error {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.Doc().ApplyUpdate(data, syncOrigin{clientID: clientId}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	c.rooms.Broadcast(id.String(), websocket.BinaryMessage, data, clientId)
	return c.appendUpdate(ctx, id, sess, clientId, data)
}

func (c *documentService) appendUpdate(ctx context.Context, id uuid.UUID, sess *session.Session, clientId string, data []byte) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	update := entity.DocumentUpdate{
		DocumentId: id,
		ClientId:   clientId,
		Data:       data,
	}
	if err := uow.DocumentUpdateRepository().Append(ctx, &update); err != nil {
		return err
	}

	count, err := uow.DocumentUpdateRepository().Count(ctx, specification.ByDocumentID{DocumentID: id})
	if err != nil {
		return err
	}
	if count > compactThreshold {
		return c.compact(ctx, id, sess)
	}
	return nil
}

// ReplaceContent loads a full editor state sent by a client. Open threads
// keep their marks only where the new state carries them.
func (c *documentService) ReplaceContent(ctx context.Context, id uuid.UUID, content json.RawMessage) error {
	state, err := lexical.Decode(content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	sess, err := c.Session(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.Load(state); err != nil {
		return err
	}
	c.persist(ctx, id, sess)
	return nil
}

func (c *documentService) Updates(ctx context.Context, id uuid.UUID) ([]*entity.DocumentUpdate, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	return uow.DocumentUpdateRepository().FindAll(ctx, specification.ByDocumentID{DocumentID: id})
}

func (c *documentService) Compact(ctx context.Context, id uuid.UUID) error {
	sess, err := c.Session(ctx, id)
	if err != nil {
		return err
	}
	return c.compact(ctx, id, sess)
}

// compact replaces the update log with a single update carrying the whole
// replica state.
func (c *documentService) compact(ctx context.Context, id uuid.UUID, sess *session.Session) error {
	state, err := sess.Doc().EncodeState()
	if err != nil {
		return err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.DocumentUpdateRepository().DeleteByDocumentId(ctx, id); err != nil {
		return err
	}
	if err := uow.DocumentUpdateRepository().Append(ctx, &entity.DocumentUpdate{
		DocumentId: id,
		ClientId:   sess.Doc().ClientID(),
		Data:       state,
	}); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	c.logger.Info("DocumentService", "Update log compacted", map[string]interface{}{"document_id": id})
	return nil
}
