package cloak

import (
	"fmt"
	"strings"

	"github.com/stealthrocket/cloak/internal/netengine"
	"github.com/stealthrocket/cloak/internal/netengine/gonet"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// backends maps the names of engine backends to their constructor. The
// cronet backend is registered by builds with the cronet tag.
var backends = map[string]func() netengine.Library{
	"go": func() netengine.Library { return &gonet.Library{} },
}

// Backends returns the names of the engine backends of the program.
func Backends() []string {
	names := maps.Keys(backends)
	slices.Sort(names)
	return names
}

func isBackend(name string) bool {
	_, ok := backends[name]
	return ok
}

// NewLibrary returns the native engine library of the named backend.
func NewLibrary(name string) (netengine.Library, error) {
	newLibrary, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unsupported engine backend: %q (not one of %s)", name, strings.Join(Backends(), ", "))
	}
	return newLibrary(), nil
}
