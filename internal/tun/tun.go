// Package tun opens and configures the TUN device the engine reads and
// writes translated packets through, adapted from the teacher's
// platform-specific tun/tun_linux.go and tun/tun_darwin.go.
package tun

import "net"

// Config parameterizes the TUN device. Address is optional: when set, Open
// assigns it to the device; when nil the device stays unnumbered (routing
// is handled externally, per spec.md §1's non-goals). cmd/nat64d leaves it
// nil in every mode.
type Config struct {
	Name    string
	MTU     int
	Address *net.IPNet
	Persist bool
}
