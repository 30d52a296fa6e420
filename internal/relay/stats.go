package relay

import "sync/atomic"

// Stats holds the server's monotonic traffic counters. All fields are
// updated atomically so the health endpoint may read them while the
// receive loop runs.
type Stats struct {
	packetsReceived atomic.Uint64
	packetsRelayed  atomic.Uint64
	bytesReceived   atomic.Uint64
	bytesSent       atomic.Uint64
	droppedFrames   atomic.Uint64
	sendErrors      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	PacketsReceived uint64 `json:"packets_received"`
	PacketsRelayed  uint64 `json:"packets_relayed"`
	BytesReceived   uint64 `json:"bytes_received"`
	BytesSent       uint64 `json:"bytes_sent"`
	DroppedFrames   uint64 `json:"dropped_frames"`
	SendErrors      uint64 `json:"send_errors"`
	ActiveClients   int    `json:"active_clients"`
}

// Snapshot returns the current counter values together with the
// active client count supplied by the caller.
func (s *Stats) Snapshot(activeClients int) StatsSnapshot {
	return StatsSnapshot{
		PacketsReceived: s.packetsReceived.Load(),
		PacketsRelayed:  s.packetsRelayed.Load(),
		BytesReceived:   s.bytesReceived.Load(),
		BytesSent:       s.bytesSent.Load(),
		DroppedFrames:   s.droppedFrames.Load(),
		SendErrors:      s.sendErrors.Load(),
		ActiveClients:   activeClients,
	}
}
