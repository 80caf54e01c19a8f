//go:build !cronet

package cloak

// DefaultBackend is the engine backend used when the configuration does not
// select one.
const DefaultBackend = "go"
