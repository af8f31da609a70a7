package hosts

import (
	"time"

	"github.com/pders01/podrelay/internal/plugins"
)

// NewRegistry returns a registry with every built-in plugin.
func NewRegistry(timeout time.Duration) *plugins.Registry {
	r := plugins.NewRegistry(timeout)
	r.Register(NewAnchorPlugin())
	r.Register(NewApplePlugin())
	return r
}
