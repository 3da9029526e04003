package eventbus

import (
	"context"
	"sync"

	"pkt.systems/promptdeck/schema"
	"pkt.systems/pslog"
)

// Bus fanouts workspace events to per-project subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.ProjectID]map[chan schema.WorkspaceEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.ProjectID]map[chan schema.WorkspaceEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the project and returns a channel + cancel.
func (b *Bus) Subscribe(projectID schema.ProjectID) (<-chan schema.WorkspaceEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.WorkspaceEvent, b.depth)
	b.mu.Lock()
	projectSubs := b.subs[projectID]
	if projectSubs == nil {
		projectSubs = make(map[chan schema.WorkspaceEvent]struct{})
		b.subs[projectID] = projectSubs
	}
	projectSubs[ch] = struct{}{}
	count := len(projectSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("project", projectID).Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if subs := b.subs[projectID]; subs != nil {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, projectID)
			}
		}
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.With("project", projectID).Debug("eventbus unsubscribe")
		}
	}
}

// OnWorkspaceEvent publishes a workspace event to the project's subscribers.
func (b *Bus) OnWorkspaceEvent(event schema.WorkspaceEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	projectSubs := b.subs[event.ProjectID]
	subs := make([]chan schema.WorkspaceEvent, 0, len(projectSubs))
	for sub := range projectSubs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.With("project", event.ProjectID).Trace("eventbus dropped", "count", dropped)
	}
}
