package core

import (
	"github.com/google/uuid"

	"pkt.systems/promptdeck/schema"
)

func newTabID() schema.TabID {
	return schema.TabID(uuid.NewString())
}

func newWindowID() schema.WindowID {
	return schema.WindowID(uuid.NewString())
}
