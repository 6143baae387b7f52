// Package rtstore models the shared real-time document tree that sessions,
// messages and user records live in. Values are opaque JSON documents
// addressed by slash-separated paths; children of a path are ordered by key.
package rtstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("invalid store path")

// Kind distinguishes the two change notifications a listener can receive.
type Kind int

const (
	ChildAdded Kind = iota + 1
	ChildChanged
)

func (k Kind) String() string {
	switch k {
	case ChildAdded:
		return "child_added"
	case ChildChanged:
		return "child_changed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Child is one direct child of a collection path.
type Child struct {
	Key   string
	Value []byte
}

// Event reports a single child write under Parent. Delivery is
// at-least-once and may repeat; consumers should refetch rather than
// apply the payload incrementally.
type Event struct {
	Kind   Kind   `json:"kind"`
	Parent string `json:"parent"`
	Key    string `json:"key"`
	Value  []byte `json:"value,omitempty"`
}

// Handler receives change events. Handlers run on the backend's delivery
// goroutine and must not block for long.
type Handler func(Event)

// Store is the real-time document store.
type Store interface {
	// Get reads one value. A missing path is found=false with a nil error.
	Get(ctx context.Context, path string) (value []byte, found bool, err error)
	// Children lists the direct children of path ordered by key.
	Children(ctx context.Context, path string) ([]Child, error)
	// Set replaces the value at path. Last writer wins.
	Set(ctx context.Context, path string, value []byte) error
	// Push writes value under a fresh key that sorts after every key
	// previously pushed from this process, and returns that key.
	Push(ctx context.Context, path string, value []byte) (string, error)
	// Subscribe registers h for added and changed children of path. The
	// subscription ends when cancel is called or ctx is done.
	Subscribe(ctx context.Context, path string, h Handler) (cancel func(), err error)
}

// Notifier carries change events between writers and listeners. Backends
// without native notifications publish through one.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
	Listen(parent string, h Handler) (cancel func(), err error)
}

// Clean normalizes path by trimming surrounding slashes and rejects empty
// segments.
func Clean(path string) (string, error) {
	p := strings.Trim(path, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return p, nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitLast separates the final segment of a cleaned path. A single-segment
// path has an empty parent.
func SplitLast(path string) (parent, key string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// SplitLeaf cleans path and requires it to name a child of some collection.
func SplitLeaf(path string) (parent, key string, err error) {
	p, err := Clean(path)
	if err != nil {
		return "", "", err
	}
	parent, key = SplitLast(p)
	if parent == "" {
		return "", "", fmt.Errorf("%w: %q has no parent", ErrInvalidPath, path)
	}
	return parent, key, nil
}
