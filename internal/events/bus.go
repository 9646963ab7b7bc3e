// Package events carries before/after notifications for content lifecycle operations.
package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	models "folio/internal/domain/models/content"
)

// Kind names the lifecycle operation an event belongs to
type Kind string

const (
	New           Kind = "new"
	Save          Kind = "save"
	Publish       Kind = "publish"
	Unpublish     Kind = "unpublish"
	SendToPublish Kind = "send_to_publish"
	Copy          Kind = "copy"
	Rollback      Kind = "rollback"
	Move          Kind = "move"
	MoveToTrash   Kind = "move_to_trash"
	Restore       Kind = "restore"
	Delete        Kind = "delete"
)

// Phase says whether handlers run before the first write or after the operation completed
type Phase int

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	if p == Before {
		return "before"
	}
	return "after"
}

// Event is handed to every handler registered for its kind and phase.
type Event struct {
	Kind   Kind
	Phase  Phase
	NodeID int64
	Actor  models.Actor

	// ParentID is the destination for new, copy, move and restore
	ParentID int64
	// CopyID is the node created by a copy. Set on After only.
	CopyID int64
	// VersionID is the version published or rolled back to, when known
	VersionID uuid.UUID

	cancelled bool
}

// Cancel vetoes the operation. It only has an effect during the Before phase.
func (e *Event) Cancel() {
	if e.Phase == Before {
		e.cancelled = true
	}
}

// Cancelled reports whether a Before handler vetoed the operation
func (e *Event) Cancelled() bool {
	return e.cancelled
}

// Handler observes an event. Errors are logged and never abort the operation.
type Handler func(ctx context.Context, e *Event) error

type entry struct {
	name     string
	handler  Handler
	priority int
}

type key struct {
	kind  Kind
	phase Phase
}

// Bus is a thread-safe registry of lifecycle handlers. Lower priorities run first.
type Bus struct {
	handlers map[key][]entry
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[key][]entry),
		logger:   logger,
	}
}

// Register adds a handler under name for the kind and phase
func (b *Bus) Register(kind Kind, phase Phase, name string, handler Handler, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{kind: kind, phase: phase}
	b.handlers[k] = append(b.handlers[k], entry{name: name, handler: handler, priority: priority})
	sort.SliceStable(b.handlers[k], func(i, j int) bool {
		return b.handlers[k][i].priority < b.handlers[k][j].priority
	})
}

// Unregister removes every handler registered under name
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, entries := range b.handlers {
		filtered := entries[:0]
		for _, e := range entries {
			if e.name != name {
				filtered = append(filtered, e)
			}
		}
		b.handlers[k] = filtered
	}
}

// Before runs the Before handlers and reports whether any of them cancelled. All handlers run
// even after a cancel so observers see a consistent sequence.
func (b *Bus) Before(ctx context.Context, e Event) (cancelled bool) {
	e.Phase = Before
	b.dispatch(ctx, &e)
	return e.cancelled
}

// After runs the After handlers
func (b *Bus) After(ctx context.Context, e Event) {
	e.Phase = After
	b.dispatch(ctx, &e)
}

func (b *Bus) dispatch(ctx context.Context, e *Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	entries := make([]entry, len(b.handlers[key{kind: e.Kind, phase: e.Phase}]))
	copy(entries, b.handlers[key{kind: e.Kind, phase: e.Phase}])
	b.mu.RUnlock()

	for _, en := range entries {
		if err := en.handler(ctx, e); err != nil {
			b.logger.Error("event handler failed",
				"kind", e.Kind,
				"phase", e.Phase.String(),
				"handler", en.name,
				"node_id", e.NodeID,
				"error", err,
			)
		}
	}
}
