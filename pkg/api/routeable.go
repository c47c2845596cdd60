package api

import (
	"strings"

	"github.com/fgrzl/json/polymorphic"
)

// Routeable is a request that can open a stream. Its discriminator selects
// the handler on the node.
type Routeable interface {
	polymorphic.Polymorphic
}

// KindOf returns the short request name ("pull_trait", "upsert_item", ...)
// of msg, or "unknown" when msg is not routeable.
func KindOf(msg any) string {
	r, ok := msg.(Routeable)
	if !ok {
		return "unknown"
	}
	d := r.GetDiscriminator()
	return d[strings.LastIndex(d, "/")+1:]
}
