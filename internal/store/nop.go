package store

import (
	"net"

	"github.com/radiogrid/dmrelay/internal/protocol"
	"github.com/radiogrid/dmrelay/internal/registry"
)

// Nop is a Store that records nothing. It stands in when no database
// is configured or the configured one is unreachable at startup.
type Nop struct{}

// NewNop creates a no-op store.
func NewNop() *Nop { return &Nop{} }

func (*Nop) LogFrame(*protocol.Frame, *net.UDPAddr) error  { return nil }
func (*Nop) LogClientEvent(*registry.Client, string) error { return nil }
func (*Nop) LookupCallsign(uint32) (string, error)         { return "", ErrNotFound }
func (*Nop) Close() error                                  { return nil }
