//go:build cronet

package cloak

import (
	"github.com/stealthrocket/cloak/internal/netengine"
	"github.com/stealthrocket/cloak/internal/netengine/cronet"
)

// DefaultBackend is the engine backend used when the configuration does not
// select one.
const DefaultBackend = "cronet"

func init() {
	backends["cronet"] = func() netengine.Library { return cronet.Library{} }
}
