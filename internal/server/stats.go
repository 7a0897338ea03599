package server

import "sync/atomic"

// Stats tracks ambient per-server counters using individual atomics
// rather than a mutex-guarded struct, since every field here is an
// independent monotonic counter and never read-modify-written as a
// group. Nothing here is exposed over the wire — the protocol has no
// STATS opcode — it exists for logs/operators only.
type Stats struct {
	connections  atomic.Uint64
	getOps       atomic.Uint64
	setOps       atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

func (s *Stats) recordConnection()   { s.connections.Add(1) }
func (s *Stats) recordGet()          { s.getOps.Add(1) }
func (s *Stats) recordSet()          { s.setOps.Add(1) }
func (s *Stats) recordRead(n int)    { s.bytesRead.Add(uint64(n)) }
func (s *Stats) recordWritten(n int) { s.bytesWritten.Add(uint64(n)) }

// Snapshot is a race-free copy of the counters. Each counter is loaded
// atomically on its own, so the fields need not reflect one instant.
type Snapshot struct {
	Connections  uint64
	GetOps       uint64
	SetOps       uint64
	BytesRead    uint64
	BytesWritten uint64
}

// Snapshot returns the current values of every counter.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Connections:  s.connections.Load(),
		GetOps:       s.getOps.Load(),
		SetOps:       s.setOps.Load(),
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
	}
}
