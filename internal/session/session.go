// Package session composes everything one open document needs: the tree, the
// mark index, the replicated thread list, the private comment overlay and
// the margin layout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"redline-be/pkg/agent"
	"redline-be/pkg/doctree"
	"redline-be/pkg/layout"
	"redline-be/pkg/lexical"
	"redline-be/pkg/mark"
	"redline-be/pkg/replica"
	"redline-be/pkg/thread"
	"redline-be/pkg/trackchange"
)

var ErrEmptySelection = errors.New("selection covers no text")

const (
	TagProposal = "proposal"
	TagThread   = "thread"
	TagLoad     = "load"
)

type Options struct {
	Margin        float64
	LineHeight    float64
	ThreadHeight  float64
	CommentHeight float64
	VisibleLayer  string
}

func DefaultOptions() Options {
	return Options{
		Margin:        layout.DefaultMargin,
		LineHeight:    24,
		ThreadHeight:  40,
		CommentHeight: 30,
		VisibleLayer:  thread.LayerBase,
	}
}

// Author is whoever acts on the session.
type Author = thread.AuthorDetails

type Session struct {
	ID   string
	opts Options

	tree     *doctree.Tree
	index    *mark.Index
	doc      *replica.Doc
	threads  *thread.Store
	local    *thread.LocalComments
	layout   *layout.Engine
	resolver *trackchange.Resolver

	// serializes operations that touch both the tree and the thread list
	opMu sync.Mutex

	mu        sync.Mutex
	activeIDs []string
	anchors   map[string]float64
	gcPending bool
	cleanup   []func()
}

func New(id string, opts Options) (*Session, error) {
	s := &Session{
		ID:      id,
		opts:    opts,
		tree:    doctree.New(),
		index:   mark.NewIndex(),
		doc:     replica.NewDoc(),
		local:   thread.NewLocalComments(),
		anchors: map[string]float64{},
	}
	s.threads = thread.NewStore(s.doc)
	s.tree.SetKeyPrefix(s.doc.ClientID()[:8] + ".")
	s.layout = layout.New(opts.Margin, s.anchor)
	s.resolver = trackchange.NewResolver(s.tree, resolutionLog{s})

	s.cleanup = append(s.cleanup, mark.Register(s.tree))
	detach, err := s.index.Attach(s.tree)
	if err != nil {
		return nil, fmt.Errorf("attach mark index: %w", err)
	}
	s.cleanup = append(s.cleanup, detach)
	s.cleanup = append(s.cleanup, s.tree.Subscribe(s.onTreeChange))
	s.cleanup = append(s.cleanup, s.replicate()...)
	s.cleanup = append(s.cleanup, s.threads.Observe(func(replica.Event) {
		_ = s.tree.Read(func(tx *doctree.Tx) error {
			s.syncLayout(tx)
			return nil
		})
	}))
	return s, nil
}

// OnClose registers fn to run when the session closes.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup = append(s.cleanup, fn)
}

// Close detaches every listener.
func (s *Session) Close() {
	s.mu.Lock()
	cleanup := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
}

func (s *Session) Tree() *doctree.Tree          { return s.tree }
func (s *Session) Doc() *replica.Doc            { return s.doc }
func (s *Session) Threads() *thread.Store       { return s.threads }
func (s *Session) Local() *thread.LocalComments { return s.local }
func (s *Session) Options() Options             { return s.opts }

// Load replaces the document content.
func (s *Session) Load(state *lexical.EditorState) error {
	return s.tree.Update(func(tx *doctree.Tx) error { return tx.Import(state) }, TagLoad)
}

// Export returns the serialized editor state.
func (s *Session) Export() ([]byte, error) {
	var data []byte
	err := s.tree.Read(func(tx *doctree.Tx) error {
		var err error
		data, err = tx.ExportJSON()
		return err
	})
	return data, err
}

// DocumentText renders the document as markdown with every text leaf
// prefixed by its key.
func (s *Session) DocumentText() string {
	var out string
	_ = s.tree.Read(func(tx *doctree.Tx) error {
		out = lexical.NewParser(lexical.WithKeys()).Render(tx.Export().Root)
		return nil
	})
	return out
}

// OnChange is called after every committed tree transaction with the new
// serialized state.
func (s *Session) OnChange(fn func(ev doctree.MutationEvent, state []byte)) (unsubscribe func()) {
	return s.tree.Subscribe(func(tx *doctree.Tx, ev doctree.MutationEvent) {
		if len(ev.Mutations) == 0 {
			return
		}
		data, err := tx.ExportJSON()
		if err != nil {
			return
		}
		fn(ev, data)
	})
}

func (s *Session) onTreeChange(tx *doctree.Tx, ev doctree.MutationEvent) {
	if ev.SelectionChanged {
		var active []string
		if sel, ok := tx.Selection(); ok {
			if n, ok := tx.Node(sel.Anchor.Key); ok && n.Kind == doctree.KindText {
				active = mark.GetMarkIDs(tx, sel.Anchor.Key, sel.Anchor.Offset)
			}
		}
		s.mu.Lock()
		if len(s.activeIDs) > 0 && len(active) == 0 {
			s.gcPending = true
		}
		s.activeIDs = active
		s.mu.Unlock()
	}
	s.syncLayout(tx)
}

// syncLayout feeds the thread order, anchors, heights and focus to the
// layout engine. It runs under the tree lock.
func (s *Session) syncLayout(tx *doctree.Tx) {
	threads := s.threads.Threads()
	byID := make(map[string]thread.Thread, len(threads))
	ids := make([]string, 0, len(threads))
	for _, th := range threads {
		byID[th.ID] = th
		ids = append(ids, th.ID)
	}
	s.index.Sort(tx, ids)

	anchors := make(map[string]float64, len(ids))
	for _, id := range ids {
		if key, ok := s.index.FirstMark(tx, id); ok {
			anchors[id] = float64(topBlockIndex(tx, key)) * s.opts.LineHeight
		}
	}

	s.mu.Lock()
	s.anchors = anchors
	focused := append([]string(nil), s.activeIDs...)
	s.mu.Unlock()

	s.layout.SetThreads(ids)
	for _, id := range ids {
		s.layout.Mount(id, s.height(byID[id]))
	}
	s.layout.SetFocused(focused)
	s.layout.Invalidate()
}

func (s *Session) height(th thread.Thread) float64 {
	return s.opts.ThreadHeight + s.opts.CommentHeight*float64(len(thread.DisplayComments(th, s.local)))
}

func (s *Session) anchor(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchors[id]
}

func topBlockIndex(tx *doctree.Tx, key string) int {
	for {
		p := tx.Parent(key)
		if p == nil {
			return 0
		}
		if p.Key == doctree.RootKey {
			return tx.IndexWithinParent(key)
		}
		key = p.Key
	}
}

// AddThread anchors a new thread to sel. The thread goes to the head of the
// shared list and gets content as its first comment when content is set.
func (s *Session) AddThread(sel doctree.RangeSelection, content string, author Author) (thread.Thread, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	th := thread.NewThread(s.opts.VisibleLayer)
	err := s.tree.Update(func(tx *doctree.Tx) error {
		marks, err := mark.Wrap(tx, sel, th.ID)
		if err != nil {
			return err
		}
		if len(marks) == 0 {
			return ErrEmptySelection
		}
		return nil
	}, TagThread)
	if err != nil {
		return thread.Thread{}, err
	}

	if content != "" {
		th.Comments = append(th.Comments, thread.NewComment(content, author))
	}
	if err := s.threads.Insert(th, 0); err != nil {
		return thread.Thread{}, err
	}
	return th, nil
}

// AddComment appends to a thread. Comments on the base layer made while
// looking at another layer stay private to this session.
func (s *Session) AddComment(threadID, content string, author Author) (thread.Comment, error) {
	th, _, ok := s.threads.Get(threadID)
	if !ok {
		return thread.Comment{}, thread.ErrThreadNotFound
	}
	c := thread.NewComment(content, author)
	if thread.IsPrivate(th, s.opts.VisibleLayer) {
		s.local.Add(threadID, c)
		c.Private = true
		_ = s.tree.Read(func(tx *doctree.Tx) error {
			s.syncLayout(tx)
			return nil
		})
		return c, nil
	}
	return c, s.threads.AppendComment(threadID, c)
}

// Accept resolves the tracked changes under containerKey.
func (s *Session) Accept(ctx context.Context, containerKey string, author Author) (trackchange.Resolution, error) {
	return s.resolver.Accept(ctx, containerKey, trackchange.Author(author))
}

// Reject discards the tracked changes under containerKey.
func (s *Session) Reject(ctx context.Context, containerKey string, author Author) (trackchange.Resolution, error) {
	return s.resolver.Reject(ctx, containerKey, trackchange.Author(author))
}

type resolutionLog struct{ s *Session }

func (l resolutionLog) LogResolution(_ context.Context, res trackchange.Resolution, author trackchange.Author) error {
	text := "Accepted the change"
	if res.Action == trackchange.ActionReject {
		text = "Rejected the change"
	}
	content, err := lexical.TextEditorState(text)
	if err != nil {
		return err
	}
	for _, id := range res.ThreadIDs {
		c := thread.NewComment(content, thread.AuthorDetails(author))
		c.Action = res.Action
		err := l.s.threads.AppendComment(id, c)
		if err != nil && !errors.Is(err, thread.ErrThreadNotFound) {
			return err
		}
	}
	return nil
}

// Select moves the selection and returns the new active thread ids. When
// the caret leaves every thread, threads without comments are dropped.
func (s *Session) Select(sel *doctree.RangeSelection) ([]string, error) {
	if err := s.tree.Update(func(tx *doctree.Tx) error { return tx.SetSelection(sel) }); err != nil {
		return nil, err
	}

	s.mu.Lock()
	gc := s.gcPending
	s.gcPending = false
	active := append([]string(nil), s.activeIDs...)
	s.mu.Unlock()

	if gc {
		if err := s.CollectEmptyThreads(); err != nil {
			return active, err
		}
	}
	return active, nil
}

func (s *Session) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activeIDs...)
}

// CollectEmptyThreads deletes every thread that has no comment, along with
// its marks.
func (s *Session) CollectEmptyThreads() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	for _, id := range s.threads.EmptyThreadIDs() {
		if err := s.deleteThread(id); err != nil {
			return err
		}
	}
	return nil
}

// Escape drops the active threads that never got a comment.
func (s *Session) Escape() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	for _, id := range s.ActiveIDs() {
		th, _, ok := s.threads.Get(id)
		if !ok || len(thread.DisplayComments(th, s.local)) > 0 {
			continue
		}
		if err := s.deleteThread(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) deleteThread(id string) error {
	if err := s.threads.Delete(id); err != nil && !errors.Is(err, thread.ErrThreadNotFound) {
		return err
	}
	s.local.DeleteThread(id)
	return s.tree.Update(func(tx *doctree.Tx) error {
		return mark.RemoveID(tx, s.index.Keys(id), id)
	}, TagThread)
}

// ActiveMarkText is the text anchored to the first active thread.
func (s *Session) ActiveMarkText() string {
	active := s.ActiveIDs()
	if len(active) == 0 {
		return ""
	}
	return s.MarkText(active[0])
}

// MarkKeys lists the mark nodes carrying id.
func (s *Session) MarkKeys(id string) []string {
	return s.index.Keys(id)
}

// MarkText is the text of every mark carrying id, in document order.
func (s *Session) MarkText(id string) string {
	var out string
	_ = s.tree.Read(func(tx *doctree.Tx) error {
		out = mark.MarkText(tx, s.index.Keys(id))
		return nil
	})
	return out
}

// SortedThreads returns the threads in the document order of their anchors.
// Threads whose anchor is gone come last.
func (s *Session) SortedThreads() []thread.Thread {
	threads := s.threads.Threads()
	byID := make(map[string]thread.Thread, len(threads))
	ids := make([]string, 0, len(threads))
	for _, th := range threads {
		byID[th.ID] = th
		ids = append(ids, th.ID)
	}
	_ = s.tree.Read(func(tx *doctree.Tx) error {
		s.index.Sort(tx, ids)
		return nil
	})
	out := make([]thread.Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// Layout returns the current margin projection, recomputing it if needed.
func (s *Session) Layout() []layout.Output {
	out, _ := s.layout.Tick()
	return out
}

// ProposalResult lists the threads a proposal created.
type ProposalResult struct {
	ThreadIDs []string
}

// ApplyProposal turns an agent proposal into tracked changes. Every deletion
// gets its own thread carrying the justification; a replacement text goes
// right after its deletion. The proposal applies entirely or not at all.
func (s *Session) ApplyProposal(changes []agent.Change, justification string, author Author) (ProposalResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	groups := agent.GroupChanges(changes)
	if len(groups) == 0 {
		return ProposalResult{}, nil
	}
	threadIDs := make([]string, len(groups))
	for i := range groups {
		threadIDs[i] = thread.NewThread("").ID
	}

	var created []string
	err := s.tree.Update(func(tx *doctree.Tx) error {
		if err := agent.Validate(tx, groups); err != nil {
			return err
		}
		sorted := append([]agent.Group(nil), groups...)
		agent.SortDescending(tx, sorted)

		for _, g := range sorted {
			id := threadIDs[indexOfGroup(groups, g)]
			ok, err := applyGroup(tx, g, id)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, id)
			}
		}
		return nil
	}, TagProposal)
	if err != nil {
		return ProposalResult{}, err
	}

	var comments []thread.Comment
	if justification != "" {
		content, err := lexical.TextEditorState(justification)
		if err != nil {
			return ProposalResult{}, err
		}
		comments = append(comments, thread.NewComment(content, author))
	}
	for i := len(created) - 1; i >= 0; i-- {
		th := thread.NewThread(s.opts.VisibleLayer)
		th.ID = created[i]
		th.Comments = append(th.Comments, comments...)
		if err := s.threads.Insert(th, 0); err != nil {
			return ProposalResult{}, err
		}
	}
	return ProposalResult{ThreadIDs: created}, nil
}

func indexOfGroup(groups []agent.Group, g agent.Group) int {
	for i := range groups {
		if groups[i].Deletion == g.Deletion && groups[i].Addition == g.Addition {
			return i
		}
	}
	return -1
}

// applyGroup wraps one group in a mark for threadID and turns its content
// into tracked changes. It reports whether a mark was created.
func applyGroup(tx *doctree.Tx, g agent.Group, threadID string) (bool, error) {
	if g.Deletion == nil {
		key, offset := g.Addition.Anchor()
		ins, err := trackchange.ApplyInsertionAt(tx, g.Addition.Text, doctree.Point{Key: key, Offset: offset, Type: doctree.PointText})
		if err != nil || ins == "" {
			return false, err
		}
		marks, err := tx.WrapNodes([]string{ins}, mark.Strategy{IDs: []string{threadID}})
		return len(marks) > 0, err
	}

	marks, err := mark.Wrap(tx, g.Deletion.Selection(), threadID)
	if err != nil || len(marks) == 0 {
		return false, err
	}

	first := tx.TextLeaves(marks[0])
	last := tx.TextLeaves(marks[len(marks)-1])
	if len(first) == 0 || len(last) == 0 {
		return true, nil
	}
	end := last[len(last)-1]
	del, err := trackchange.ApplyDeletion(tx, doctree.TextRange(first[0].Key, 0, end.Key, end.Size()))
	if err != nil {
		return true, err
	}

	if g.Addition == nil {
		return true, nil
	}
	after := del
	if after == "" {
		after = end.Key
	}
	_, err = trackchange.ApplyInsertion(tx, g.Addition.Text, after)
	return true, err
}
