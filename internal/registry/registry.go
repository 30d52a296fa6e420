// Package registry tracks the bounded set of active relay clients.
package registry

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/radiogrid/dmrelay/internal/logging"
	"github.com/radiogrid/dmrelay/internal/metrics"
)

// Client lifecycle event kinds.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventTimeout    = "timeout"
)

// MaxCallsignLen is the longest callsign stored per client.
const MaxCallsignLen = 9

// ErrRegistryFull is returned when the registry holds its maximum
// number of active clients and a new address tries to register.
var ErrRegistryFull = errors.New("registry full")

// EventSink receives client lifecycle events and resolves callsigns.
// All methods are best-effort: failures are logged and dropped, they
// never affect registry state.
type EventSink interface {
	// LogClientEvent records a lifecycle event for a client.
	LogClientEvent(c *Client, event string) error

	// LookupCallsign resolves a callsign by DMR ID.
	LookupCallsign(dmrID uint32) (string, error)
}

// Client is one active relay endpoint, identified by its UDP source
// address. A client that changes source port registers as a new client.
type Client struct {
	Addr      *net.UDPAddr
	DMRID     uint32 // 0 until the first frame with a nonzero source ID
	Callsign  string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Config contains registry construction parameters.
type Config struct {
	// MaxClients bounds the number of simultaneously active clients.
	MaxClients int

	// Sink receives lifecycle events and identity lookups. Optional.
	Sink EventSink

	// Clock supplies timestamps; tests inject a mock.
	Clock clock.Clock

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Registry is the bounded table of active clients, keyed by source
// address. All operations serialize on one mutex so the sweeper may
// run on its own goroutine while the receive loop mutates the table.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client

	maxClients int
	sink       EventSink
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// DefaultMaxClients is the registry capacity when none is configured.
const DefaultMaxClients = 100

// New creates a new client registry.
func New(cfg Config) *Registry {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}

	return &Registry{
		clients:    make(map[string]*Client),
		maxClients: cfg.MaxClients,
		sink:       cfg.Sink,
		clock:      cfg.Clock,
		logger:     cfg.Logger.With(slog.String(logging.KeyComponent, "registry")),
		metrics:    cfg.Metrics,
	}
}

// Upsert refreshes the client for addr, creating it on first contact.
// An existing client gets its last-seen timestamp refreshed; if its
// DMR ID is still unbound and srcID is nonzero the ID is bound once
// and the callsign resolved through the sink. A later nonzero srcID
// never overwrites an already-bound ID.
//
// Returns ErrRegistryFull when a new address arrives at capacity; the
// table is left unchanged.
func (r *Registry) Upsert(addr *net.UDPAddr, srcID uint32) (*Client, error) {
	now := r.clock.Now()
	key := addr.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[key]; ok {
		c.LastSeen = now
		if c.DMRID == 0 && srcID != 0 {
			c.DMRID = srcID
			r.bindCallsign(c)
		}
		return c, nil
	}

	if len(r.clients) >= r.maxClients {
		r.metrics.RegistryFull.Inc()
		return nil, ErrRegistryFull
	}

	c := &Client{
		Addr:      addr,
		DMRID:     srcID,
		FirstSeen: now,
		LastSeen:  now,
	}
	if srcID != 0 {
		r.bindCallsign(c)
	}
	r.clients[key] = c
	r.metrics.RecordClientConnect()

	r.logger.Info("client connected",
		logging.KeyClient, key,
		logging.KeySrcID, srcID,
		logging.KeyCount, len(r.clients))

	r.emitEvent(c, EventConnect)

	return c, nil
}

// Remove deactivates the client for addr with the given reason.
// Returns false when no such client is active.
func (r *Registry) Remove(addr *net.UDPAddr, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(addr.String(), reason)
}

// Sweep removes every client idle longer than timeout, measured
// against now. Returns the number of clients removed; idempotent when
// nothing is expired.
func (r *Registry) Sweep(now time.Time, timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for key, c := range r.clients {
		if now.Sub(c.LastSeen) > timeout {
			expired = append(expired, key)
		}
	}

	for _, key := range expired {
		r.removeLocked(key, EventTimeout)
	}

	return len(expired)
}

// Snapshot returns a consistent copy of all active clients, taken
// under the registry lock. Callers may iterate it while the table
// mutates; entries removed afterwards still appear in the snapshot.
func (r *Registry) Snapshot() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		snap = append(snap, *c)
	}
	return snap
}

// Len returns the number of active clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// removeLocked deletes a client and emits its removal event.
// Caller must hold r.mu.
func (r *Registry) removeLocked(key, reason string) bool {
	c, ok := r.clients[key]
	if !ok {
		return false
	}

	delete(r.clients, key)
	r.metrics.RecordClientRemoval(reason)

	r.logger.Info("client removed",
		logging.KeyClient, key,
		logging.KeySrcID, c.DMRID,
		logging.KeyReason, reason,
		logging.KeyCount, len(r.clients))

	r.emitEvent(c, reason)

	return true
}

// bindCallsign resolves the callsign for a freshly bound DMR ID.
// Lookup failure leaves the callsign empty; the binding itself stands.
func (r *Registry) bindCallsign(c *Client) {
	if r.sink == nil {
		return
	}

	cs, err := r.sink.LookupCallsign(c.DMRID)
	if err != nil {
		r.logger.Debug("callsign lookup failed",
			logging.KeySrcID, c.DMRID,
			logging.KeyError, err)
		r.metrics.RecordStoreError("lookup_callsign")
		return
	}

	if len(cs) > MaxCallsignLen {
		cs = cs[:MaxCallsignLen]
	}
	c.Callsign = cs
}

// emitEvent forwards a lifecycle event to the sink, swallowing failures.
func (r *Registry) emitEvent(c *Client, event string) {
	if r.sink == nil {
		return
	}

	if err := r.sink.LogClientEvent(c, event); err != nil {
		r.logger.Debug("client event log failed",
			logging.KeyClient, c.Addr.String(),
			logging.KeyReason, event,
			logging.KeyError, err)
		r.metrics.RecordStoreError("log_client_event")
	}
}
