package core

import (
	"pkt.systems/promptdeck/internal/persist"
	"pkt.systems/pslog"
)

// Deps captures optional dependencies shared by every workspace a
// registry hands out. A nil Store disables persistence; a nil Sink
// disables event fanout.
type Deps struct {
	Store  *persist.Store
	Sink   EventSink
	Logger pslog.Logger
}
