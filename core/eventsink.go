package core

import "pkt.systems/promptdeck/schema"

// EventSink receives workspace events after every successful transition.
type EventSink interface {
	OnWorkspaceEvent(event schema.WorkspaceEvent)
}
