// Package relay implements the UDP server that receives DMR frames
// and rebroadcasts them to every other active client.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/radiogrid/dmrelay/internal/logging"
	"github.com/radiogrid/dmrelay/internal/metrics"
	"github.com/radiogrid/dmrelay/internal/protocol"
	"github.com/radiogrid/dmrelay/internal/registry"
	"github.com/radiogrid/dmrelay/internal/store"
)

const readBufferSize = 1024

// Config contains relay server construction parameters.
type Config struct {
	// Listen is the UDP address to bind, e.g. ":62031".
	Listen string

	// ClientTimeout is how long a client may stay silent before the
	// sweeper removes it.
	ClientTimeout time.Duration

	// SweepInterval is how often the sweeper scans for idle clients.
	SweepInterval time.Duration

	Registry *registry.Registry
	Store    store.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Clock    clock.Clock
}

// Server is the DMR frame relay. Frames are processed strictly in
// arrival order by a single receive goroutine; only the expiry
// sweeper runs concurrently with it.
type Server struct {
	listen        string
	clientTimeout time.Duration
	sweepInterval time.Duration

	registry *registry.Registry
	store    store.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    clock.Clock

	conn  *net.UDPConn
	stats Stats

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a relay server from cfg. Registry is required.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Listen == "" {
		cfg.Listen = ":62031"
	}
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = 300 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	if cfg.Store == nil {
		cfg.Store = store.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Server{
		listen:        cfg.Listen,
		clientTimeout: cfg.ClientTimeout,
		sweepInterval: cfg.SweepInterval,
		registry:      cfg.Registry,
		store:         cfg.Store,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With(slog.String(logging.KeyComponent, "relay")),
		clock:         cfg.Clock,
		stopCh:        make(chan struct{}),
	}, nil
}

// Start binds the UDP socket and launches the receive and sweep
// goroutines. A bind failure is returned to the caller; the server
// cannot run without its socket.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	addr, err := net.ResolveUDPAddr("udp", s.listen)
	if err != nil {
		return fmt.Errorf("resolve listen address %q: %w", s.listen, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind %q: %w", s.listen, err)
	}

	s.conn = conn
	s.running = true

	s.logger.Info("listening", logging.KeyAddress, conn.LocalAddr().String())

	s.wg.Add(2)
	go s.receiveLoop()
	go s.sweepLoop()

	return nil
}

// receiveLoop reads datagrams one at a time and relays each before
// reading the next. Malformed datagrams are counted and dropped.
func (s *Server) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("read failed", logging.KeyError, err)
			continue
		}

		s.stats.packetsReceived.Add(1)
		s.stats.bytesReceived.Add(uint64(n))
		s.metrics.PacketsReceived.Inc()
		s.metrics.BytesReceived.Add(float64(n))

		f, err := protocol.Decode(buf[:n])
		if err != nil {
			s.stats.droppedFrames.Add(1)
			s.metrics.FramesDropped.Inc()
			s.logger.Debug("frame dropped",
				logging.KeyAddress, addr.String(),
				logging.KeyError, err)
			continue
		}

		s.handleFrame(f, addr)
	}
}

// handleFrame registers or refreshes the sender, records the frame and
// rebroadcasts it. A sender rejected for capacity still has its frame
// relayed; admission only gates membership, not traffic.
func (s *Server) handleFrame(f *protocol.Frame, from *net.UDPAddr) {
	s.metrics.RecordFrameReceived(protocol.FrameTypeName(f.Type))

	if _, err := s.registry.Upsert(from, f.SrcID); err != nil {
		s.logger.Warn("client rejected",
			logging.KeyAddress, from.String(),
			logging.KeyError, err)
	}

	if err := s.store.LogFrame(f, from); err != nil {
		s.logger.Debug("frame log failed", logging.KeyError, err)
		s.metrics.RecordStoreError("log_frame")
	}

	s.logger.Debug("frame received",
		logging.KeyAddress, from.String(),
		slog.String("frame_type", protocol.FrameTypeName(f.Type)),
		logging.KeySlot, f.Slot,
		logging.KeySrcID, f.SrcID,
		logging.KeyDstID, f.DstID)

	s.Broadcast(f, from)
}

// Broadcast encodes f once and sends it to every active client except
// the origin. Send failures are counted and skipped; one unreachable
// client never blocks delivery to the rest. Returns the number of
// clients the frame was sent to.
func (s *Server) Broadcast(f *protocol.Frame, origin *net.UDPAddr) int {
	wire := f.Encode()
	originKey := ""
	if origin != nil {
		originKey = origin.String()
	}

	sent := 0
	for _, c := range s.registry.Snapshot() {
		if c.Addr.String() == originKey {
			continue
		}

		n, err := s.conn.WriteToUDP(wire, c.Addr)
		if err != nil {
			s.stats.sendErrors.Add(1)
			s.metrics.SendErrors.Inc()
			s.logger.Debug("send failed",
				logging.KeyClient, c.Addr.String(),
				logging.KeyError, err)
			continue
		}

		sent++
		s.stats.packetsRelayed.Add(1)
		s.stats.bytesSent.Add(uint64(n))
		s.metrics.PacketsRelayed.Inc()
		s.metrics.BytesSent.Add(float64(n))
	}

	return sent
}

// sweepLoop periodically removes clients idle longer than the
// configured timeout.
func (s *Server) sweepLoop() {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := s.clock.Now()
			removed := s.registry.Sweep(now, s.clientTimeout)
			if removed > 0 {
				s.logger.Info("swept idle clients", logging.KeyCount, removed)
			}

			snap := s.stats.Snapshot(s.registry.Len())
			s.logger.Debug("stats",
				slog.Uint64("packets_received", snap.PacketsReceived),
				slog.Uint64("packets_relayed", snap.PacketsRelayed),
				slog.Uint64("bytes_received", snap.BytesReceived),
				slog.Uint64("bytes_sent", snap.BytesSent),
				slog.Uint64("dropped_frames", snap.DroppedFrames),
				slog.Uint64("send_errors", snap.SendErrors),
				slog.Int("active_clients", snap.ActiveClients))
		}
	}
}

// Stats returns a snapshot of the traffic counters.
func (s *Server) Stats() StatsSnapshot {
	return s.stats.Snapshot(s.registry.Len())
}

// IsRunning reports whether the server has been started and not yet
// stopped.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LocalAddr returns the bound UDP address, or nil before Start.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop closes the socket, waits for the loops to exit and closes the
// store. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		conn := s.conn
		s.mu.Unlock()

		close(s.stopCh)
		if conn != nil {
			// Unblocks the receive loop's pending read.
			conn.Close()
		}

		s.wg.Wait()

		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close failed", logging.KeyError, err)
		}

		s.logger.Info("stopped")
	})
}

// StopWithContext stops the server, abandoning the wait when ctx
// expires. The goroutines keep winding down in the background.
func (s *Server) StopWithContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
