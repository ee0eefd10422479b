package trackchange

import (
	"context"

	"redline-be/pkg/doctree"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Author identifies who resolved a change group.
type Author struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// Resolution describes what Accept or Reject did.
type Resolution struct {
	ContainerKey string
	Action       string
	Resolved     int
	ThreadIDs    []string
}

// ResolutionLogger records a resolution on the threads it touched.
type ResolutionLogger interface {
	LogResolution(ctx context.Context, res Resolution, author Author) error
}

// Resolver applies Accept and Reject against a tree and logs what was resolved.
type Resolver struct {
	tree   *doctree.Tree
	logger ResolutionLogger
}

func NewResolver(tree *doctree.Tree, logger ResolutionLogger) *Resolver {
	return &Resolver{tree: tree, logger: logger}
}

func (r *Resolver) Accept(ctx context.Context, containerKey string, author Author) (Resolution, error) {
	return r.resolve(ctx, containerKey, author, Accept)
}

func (r *Resolver) Reject(ctx context.Context, containerKey string, author Author) (Resolution, error) {
	return r.resolve(ctx, containerKey, author, Reject)
}

func (r *Resolver) resolve(ctx context.Context, key string, author Author, fn func(*doctree.Tx, string) (Resolution, error)) (Resolution, error) {
	var res Resolution
	err := r.tree.Update(func(tx *doctree.Tx) error {
		var err error
		res, err = fn(tx, key)
		return err
	}, "resolve")
	if err != nil {
		return Resolution{}, err
	}
	if res.Resolved == 0 || len(res.ThreadIDs) == 0 || r.logger == nil {
		return res, nil
	}
	return res, r.logger.LogResolution(ctx, res, author)
}

// Accept unwraps every Insertion and removes every Deletion under
// containerKey. Resolving an already resolved group does nothing.
func Accept(tx *doctree.Tx, containerKey string) (Resolution, error) {
	return resolve(tx, containerKey, ActionApprove, func(n *doctree.Node) error {
		if n.Kind == doctree.KindInsertion {
			return tx.Unwrap(n.Key)
		}
		return tx.Remove(n.Key)
	})
}

// Reject removes every Insertion under containerKey and turns every Deletion
// back into plain text leaves with the same format.
func Reject(tx *doctree.Tx, containerKey string) (Resolution, error) {
	return resolve(tx, containerKey, ActionReject, func(n *doctree.Node) error {
		if n.Kind == doctree.KindInsertion {
			return tx.Remove(n.Key)
		}
		return restore(tx, n)
	})
}

func restore(tx *doctree.Tx, del *doctree.Node) error {
	for _, c := range tx.Children(del.Key) {
		if c.Kind != doctree.KindText {
			if err := tx.InsertBefore(del.Key, c.Key); err != nil {
				return err
			}
			continue
		}
		leaf := tx.CreateTextLike(c, c.Text)
		if err := tx.InsertBefore(del.Key, leaf.Key); err != nil {
			return err
		}
	}
	return tx.Remove(del.Key)
}

func resolve(tx *doctree.Tx, key, action string, apply func(*doctree.Node) error) (Resolution, error) {
	res := Resolution{ContainerKey: key, Action: action}
	container, err := tx.Live(key)
	if err != nil {
		return res, swallowStale(err)
	}

	res.ThreadIDs = threadIDs(tx, container)
	for _, n := range Changes(tx, key) {
		if !tx.IsAttached(n.Key) {
			continue
		}
		if err := apply(n); err != nil {
			return res, err
		}
		res.Resolved++
	}
	return res, nil
}

// Changes lists the tracked changes at or under key in document order. A
// change nested in another change is reported through its outer one only.
func Changes(tx *doctree.Tx, key string) []*doctree.Node {
	n, ok := tx.Node(key)
	if !ok {
		return nil
	}
	if n.Kind == doctree.KindDeletion || n.Kind == doctree.KindInsertion {
		return []*doctree.Node{n}
	}
	var out []*doctree.Node
	tx.Walk(key, func(c *doctree.Node) bool {
		if c.Kind == doctree.KindDeletion || c.Kind == doctree.KindInsertion {
			out = append(out, c)
			return false
		}
		return true
	})
	return out
}

func threadIDs(tx *doctree.Tx, container *doctree.Node) []string {
	if container.Kind == doctree.KindMark {
		return append([]string(nil), container.IDs...)
	}
	if m := tx.Ancestor(container.Key, doctree.KindMark); m != nil {
		return append([]string(nil), m.IDs...)
	}
	return nil
}
